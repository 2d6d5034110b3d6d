package models

import (
	"strconv"
	"time"
)

// SourceKind identifies which external source produced a record.
type SourceKind string

const (
	SourceWikidata    SourceKind = "wikidata"
	SourceWikipedia   SourceKind = "wikipedia"
	SourceSeeingStars SourceKind = "seeing-stars"
	SourceGravesite   SourceKind = "gravesite"
)

// RawRecord is the unprocessed output of one source adapter call. It carries
// whatever the source happened to return; nothing here is trusted or
// normalized. Discarded after normalization.
type RawRecord struct {
	Source     SourceKind
	ExternalID string // Wikidata QID when known, e.g. "Q42"
	PageID     int64  // Wikipedia page id when known
	Title      string
	RawDates   []string

	// Competing coordinate pairs, in source terms. Any of these may be
	// missing, partial, or non-finite garbage.
	DeathCoords    *Coordinates
	BurialCoords   *Coordinates
	LastSeenCoords *Coordinates

	// Legacy single-URL field and the multi-URL array it was superseded by.
	URL  string
	URLs []string

	Address  string
	CrossRef string
	Summary  string
	Missing  bool // record describes a missing person rather than a death
}

// Candidate is a normalized record ready for resolution and merge.
type Candidate struct {
	Source         SourceKind
	QID            string
	PageID         int64
	Title          string
	Category       Category
	EventDate      *time.Time
	EventYear      *int
	DeathCoords    *Coordinates
	BurialCoords   *Coordinates
	LastSeenCoords *Coordinates
	CoordKind      CoordKind
	SourceURLs     []SourceURL
	Address        *string
	Summary        *string
	CrossRef       *string
	Score          int
}

// Key returns the strongest identity the candidate carries, used for
// per-subject serialization in the worker pool. Candidates with no external
// identity fall back to their normalized title.
func (c *Candidate) Key() string {
	if c.QID != "" {
		return "qid:" + c.QID
	}
	if c.PageID != 0 {
		return "page:" + strconv.FormatInt(c.PageID, 10)
	}
	return "title:" + c.Title
}
