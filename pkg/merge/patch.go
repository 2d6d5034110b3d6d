package merge

import (
	"github.com/Ramsey-B/willow/pkg/database"
	"github.com/Ramsey-B/willow/pkg/models"
)

// fillNulls applies a candidate onto a stored row, filling only fields that
// are currently null. A previously-set value is never silently overwritten.
// allowQID/allowPageID gate the key columns for the collision fallback, where
// one key may belong to a different row.
func fillNulls(dst *models.Person, c *models.Candidate, allowQID, allowPageID bool) {
	if allowQID && dst.WikidataQID == nil && c.QID != "" {
		qid := c.QID
		dst.WikidataQID = &qid
	}
	if allowPageID && dst.WikipediaPageID == nil && c.PageID != 0 {
		pageID := c.PageID
		dst.WikipediaPageID = &pageID
	}

	if dst.Title == "" {
		dst.Title = c.Title
	}
	if dst.Category == "" {
		dst.Category = c.Category
	}

	if dst.EventDate == nil && c.EventDate != nil {
		d := *c.EventDate
		dst.EventDate = &d
	}
	if dst.EventYear == nil && c.EventYear != nil {
		y := *c.EventYear
		dst.EventYear = &y
	}

	fillPair(&dst.DeathLat, &dst.DeathLng, c.DeathCoords)
	fillPair(&dst.BurialLat, &dst.BurialLng, c.BurialCoords)
	fillPair(&dst.LastSeenLat, &dst.LastSeenLng, c.LastSeenCoords)
	dst.CoordKind = coordKind(dst)

	if dst.Address == nil && c.Address != nil {
		v := *c.Address
		dst.Address = &v
	}
	if dst.Summary == nil && c.Summary != nil {
		v := *c.Summary
		dst.Summary = &v
	}
	if dst.CrossRef == nil && c.CrossRef != nil {
		v := *c.CrossRef
		dst.CrossRef = &v
	}

	dst.SourceURLs = database.NewJSONB(mergeURLs(dst.SourceURLs.GetValue(), c.SourceURLs))
}

// fillPair fills a coordinate slot only when both halves are null. A
// half-set pair is corrupt and left alone for a human to notice.
func fillPair(lat, lng **float64, src *models.Coordinates) {
	if src == nil || *lat != nil || *lng != nil {
		return
	}
	la, ln := src.Lat, src.Lng
	*lat = &la
	*lng = &ln
}

// absorb fills the winner's null fields from the loser during a soft merge.
// Key columns are skipped: the loser keeps them, and store-level uniqueness
// would reject the claim anyway.
func absorb(winner, loser *models.Person) {
	if winner.Title == "" {
		winner.Title = loser.Title
	}
	if winner.Category == "" {
		winner.Category = loser.Category
	}

	if winner.EventDate == nil && loser.EventDate != nil {
		d := *loser.EventDate
		winner.EventDate = &d
	}
	if winner.EventYear == nil && loser.EventYear != nil {
		y := *loser.EventYear
		winner.EventYear = &y
	}

	absorbPair(&winner.DeathLat, &winner.DeathLng, loser.DeathLat, loser.DeathLng)
	absorbPair(&winner.BurialLat, &winner.BurialLng, loser.BurialLat, loser.BurialLng)
	absorbPair(&winner.LastSeenLat, &winner.LastSeenLng, loser.LastSeenLat, loser.LastSeenLng)
	winner.CoordKind = coordKind(winner)

	if winner.Address == nil && loser.Address != nil {
		v := *loser.Address
		winner.Address = &v
	}
	if winner.Summary == nil && loser.Summary != nil {
		v := *loser.Summary
		winner.Summary = &v
	}
	if winner.CrossRef == nil && loser.CrossRef != nil {
		v := *loser.CrossRef
		winner.CrossRef = &v
	}

	winner.SourceURLs = database.NewJSONB(mergeURLs(winner.SourceURLs.GetValue(), loser.SourceURLs.GetValue()))
}

// absorbPair is fillPair for row-to-row fills. Same half-set rule.
func absorbPair(lat, lng **float64, srcLat, srcLng *float64) {
	if srcLat == nil || srcLng == nil || *lat != nil || *lng != nil {
		return
	}
	la, ln := *srcLat, *srcLng
	*lat = &la
	*lng = &ln
}

// coordKind recomputes the authoritative slot from what the row now holds.
func coordKind(p *models.Person) models.CoordKind {
	switch {
	case p.DeathLat != nil && p.DeathLng != nil:
		return models.CoordKindDeath
	case p.BurialLat != nil && p.BurialLng != nil:
		return models.CoordKindBurial
	case p.LastSeenLat != nil && p.LastSeenLng != nil:
		return models.CoordKindLastSeen
	}
	return models.CoordKindNone
}

// mergeURLs appends incoming URLs after the stored ones, deduplicated,
// preserving first-seen order. Stored order never changes.
func mergeURLs(stored, incoming []models.SourceURL) []models.SourceURL {
	seen := make(map[string]struct{}, len(stored)+len(incoming))
	out := make([]models.SourceURL, 0, len(stored)+len(incoming))
	for _, u := range stored {
		if _, dup := seen[u.URL]; dup {
			continue
		}
		seen[u.URL] = struct{}{}
		out = append(out, u)
	}
	for _, u := range incoming {
		if _, dup := seen[u.URL]; dup {
			continue
		}
		seen[u.URL] = struct{}{}
		out = append(out, u)
	}
	return out
}

// FromCandidate builds a brand-new row from a candidate, all keys included.
// The backfill's batch path uses this directly; the engine uses newRow.
func FromCandidate(c *models.Candidate) *models.Person {
	return newRow(c, true, true)
}

func newRow(c *models.Candidate, includeQID, includePageID bool) *models.Person {
	p := &models.Person{
		Title:     c.Title,
		Category:  c.Category,
		CoordKind: models.CoordKindNone,
		Published: true,
	}
	fillNulls(p, c, includeQID, includePageID)
	if p.SourceURLs.GetValue() == nil {
		p.SourceURLs = database.NewJSONB([]models.SourceURL{})
	}
	return p
}
