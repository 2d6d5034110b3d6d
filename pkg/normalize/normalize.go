// Package normalize maps adapter-specific raw records into canonical
// candidates: coordinate fallback selection, date parsing, URL
// classification and quality scoring.
package normalize

import (
	"math"
	"strings"

	"github.com/Ramsey-B/willow/pkg/models"
)

// Candidate normalizes a raw adapter record. Normalization is pure and
// idempotent: the same raw input always produces the same candidate.
func Candidate(raw *models.RawRecord) *models.Candidate {
	c := &models.Candidate{
		Source:   raw.Source,
		QID:      strings.TrimSpace(raw.ExternalID),
		PageID:   raw.PageID,
		Title:    strings.TrimSpace(raw.Title),
		Category: models.CategoryDeceased,
	}
	if raw.Missing {
		c.Category = models.CategoryMissing
	}

	c.EventDate, c.EventYear = ParseEventDate(raw.RawDates)

	c.DeathCoords = finiteOrNil(raw.DeathCoords)
	c.BurialCoords = finiteOrNil(raw.BurialCoords)
	c.LastSeenCoords = finiteOrNil(raw.LastSeenCoords)
	c.CoordKind = pickCoordKind(c)

	c.SourceURLs = URLs(raw.URL, raw.URLs)

	c.Address = nonEmpty(raw.Address)
	c.CrossRef = nonEmpty(raw.CrossRef)
	c.Summary = nonEmpty(raw.Summary)

	c.Score = QualityScore(c)
	return c
}

// pickCoordKind walks the fallback chain. The first slot with a finite pair
// wins: death, then burial, then last seen.
func pickCoordKind(c *models.Candidate) models.CoordKind {
	switch {
	case c.DeathCoords != nil:
		return models.CoordKindDeath
	case c.BurialCoords != nil:
		return models.CoordKindBurial
	case c.LastSeenCoords != nil:
		return models.CoordKindLastSeen
	}
	return models.CoordKindNone
}

// finiteOrNil drops coordinate pairs containing NaN, infinities or values
// outside the valid latitude/longitude ranges. Sources do emit these.
func finiteOrNil(p *models.Coordinates) *models.Coordinates {
	if p == nil {
		return nil
	}
	if !isFinite(p.Lat) || !isFinite(p.Lng) {
		return nil
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return nil
	}
	return &models.Coordinates{Lat: p.Lat, Lng: p.Lng}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
