// Package models contains the data types shared across the ingestion pipeline.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/willow/pkg/database"
)

// CoordKind names which coordinate slot is authoritative for the current read mode.
type CoordKind string

const (
	CoordKindDeath    CoordKind = "death"
	CoordKindBurial   CoordKind = "burial"
	CoordKindLastSeen CoordKind = "last_seen"
	CoordKindNone     CoordKind = "none"
)

// Category classifies a person record.
type Category string

const (
	CategoryDeceased Category = "deceased"
	CategoryMissing  Category = "missing"
)

// URLKind classifies a source URL by host for display ordering.
type URLKind string

const (
	URLKindWikipedia URLKind = "wikipedia"
	URLKindWikidata  URLKind = "wikidata"
	URLKindMemorial  URLKind = "memorial"
	URLKindOther     URLKind = "other"
)

// SourceURL is a normalized, classified source link.
type SourceURL struct {
	URL  string  `json:"url"`
	Kind URLKind `json:"kind"`
}

// Coordinates is a latitude/longitude pair. Both values are finite when present.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Person is the canonical, persisted record for one real-world subject.
//
// A person is addressable by either of two independently-unique legacy key
// columns: wikidata_qid and wikipedia_page_id. Historically the store was keyed
// by Wikipedia page id alone; the Wikidata backfill added its own unique key
// instead of migrating, so both must be honored on write (see pkg/merge).
type Person struct {
	ID              uuid.UUID `db:"id" json:"id"`
	WikidataQID     *string   `db:"wikidata_qid" json:"wikidata_qid,omitempty"`
	WikipediaPageID *int64    `db:"wikipedia_page_id" json:"wikipedia_page_id,omitempty"`

	Title     string     `db:"title" json:"title"`
	Category  Category   `db:"category" json:"category"`
	EventDate *time.Time `db:"event_date" json:"event_date,omitempty"`
	EventYear *int       `db:"event_year" json:"event_year,omitempty"`

	DeathLat    *float64  `db:"death_lat" json:"death_lat,omitempty"`
	DeathLng    *float64  `db:"death_lng" json:"death_lng,omitempty"`
	BurialLat   *float64  `db:"burial_lat" json:"burial_lat,omitempty"`
	BurialLng   *float64  `db:"burial_lng" json:"burial_lng,omitempty"`
	LastSeenLat *float64  `db:"last_seen_lat" json:"last_seen_lat,omitempty"`
	LastSeenLng *float64  `db:"last_seen_lng" json:"last_seen_lng,omitempty"`
	CoordKind   CoordKind `db:"coord_kind" json:"coord_kind"`

	SourceURLs database.JSONB[[]SourceURL] `db:"source_urls" json:"source_urls"`

	Address  *string `db:"address" json:"address,omitempty"`
	Summary  *string `db:"summary" json:"summary,omitempty"`
	CrossRef *string `db:"cross_ref" json:"cross_ref,omitempty"`

	Published  bool       `db:"published" json:"published"`
	MergedInto *uuid.UUID `db:"merged_into" json:"merged_into,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Coords returns the authoritative coordinate pair per the stored coord_kind.
func (p *Person) Coords() *Coordinates {
	switch p.CoordKind {
	case CoordKindDeath:
		return pairOrNil(p.DeathLat, p.DeathLng)
	case CoordKindBurial:
		return pairOrNil(p.BurialLat, p.BurialLng)
	case CoordKindLastSeen:
		return pairOrNil(p.LastSeenLat, p.LastSeenLng)
	}
	return nil
}

func pairOrNil(lat, lng *float64) *Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	return &Coordinates{Lat: *lat, Lng: *lng}
}

// IsMerged reports whether this row has been soft-merged into another row.
// Merged rows are excluded from resolution and from all read paths.
func (p *Person) IsMerged() bool {
	return p.MergedInto != nil
}
