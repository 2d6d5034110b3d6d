package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestFillPair(t *testing.T) {
	src := &models.Coordinates{Lat: 10, Lng: 20}

	t.Run("fills an empty pair", func(t *testing.T) {
		var lat, lng *float64
		fillPair(&lat, &lng, src)
		require.NotNil(t, lat)
		assert.Equal(t, 10.0, *lat)
		assert.Equal(t, 20.0, *lng)
	})

	t.Run("leaves a set pair alone", func(t *testing.T) {
		lat, lng := floatPtr(1), floatPtr(2)
		fillPair(&lat, &lng, src)
		assert.Equal(t, 1.0, *lat)
		assert.Equal(t, 2.0, *lng)
	})

	t.Run("leaves a half-set pair alone", func(t *testing.T) {
		lat := floatPtr(1)
		var lng *float64
		fillPair(&lat, &lng, src)
		assert.Equal(t, 1.0, *lat)
		assert.Nil(t, lng)
	})

	t.Run("nil source is a no-op", func(t *testing.T) {
		var lat, lng *float64
		fillPair(&lat, &lng, nil)
		assert.Nil(t, lat)
		assert.Nil(t, lng)
	})
}

func TestCoordKindRecomputedFromRow(t *testing.T) {
	p := &models.Person{CoordKind: models.CoordKindNone}
	assert.Equal(t, models.CoordKindNone, coordKind(p))

	p.BurialLat, p.BurialLng = floatPtr(1), floatPtr(2)
	assert.Equal(t, models.CoordKindBurial, coordKind(p))

	p.DeathLat, p.DeathLng = floatPtr(3), floatPtr(4)
	assert.Equal(t, models.CoordKindDeath, coordKind(p), "death outranks burial once filled")

	half := &models.Person{DeathLat: floatPtr(1), LastSeenLat: floatPtr(5), LastSeenLng: floatPtr(6)}
	assert.Equal(t, models.CoordKindLastSeen, coordKind(half), "half-set death pair does not count")
}

func TestMergeURLs_StoredOrderNeverChanges(t *testing.T) {
	stored := []models.SourceURL{
		{URL: "https://a.example", Kind: models.URLKindOther},
		{URL: "https://b.example", Kind: models.URLKindOther},
	}
	incoming := []models.SourceURL{
		{URL: "https://b.example", Kind: models.URLKindOther},
		{URL: "https://c.example", Kind: models.URLKindOther},
	}

	out := mergeURLs(stored, incoming)
	require.Len(t, out, 3)
	assert.Equal(t, "https://a.example", out[0].URL)
	assert.Equal(t, "https://b.example", out[1].URL)
	assert.Equal(t, "https://c.example", out[2].URL)

	again := mergeURLs(out, incoming)
	assert.Equal(t, out, again)
}

func TestFillNulls_KeyClaimGates(t *testing.T) {
	c := &models.Candidate{QID: "Q1", PageID: 11, Title: "x", Category: models.CategoryDeceased}

	t.Run("both keys allowed", func(t *testing.T) {
		p := &models.Person{}
		fillNulls(p, c, true, true)
		require.NotNil(t, p.WikidataQID)
		require.NotNil(t, p.WikipediaPageID)
	})

	t.Run("page id gated off", func(t *testing.T) {
		p := &models.Person{}
		fillNulls(p, c, true, false)
		require.NotNil(t, p.WikidataQID)
		assert.Nil(t, p.WikipediaPageID)
	})

	t.Run("qid gated off", func(t *testing.T) {
		p := &models.Person{}
		fillNulls(p, c, false, true)
		assert.Nil(t, p.WikidataQID)
		require.NotNil(t, p.WikipediaPageID)
	})

	t.Run("existing keys are never replaced", func(t *testing.T) {
		qid := "Q999"
		p := &models.Person{WikidataQID: &qid}
		fillNulls(p, c, true, true)
		assert.Equal(t, "Q999", *p.WikidataQID)
	})
}

func TestFromCandidate(t *testing.T) {
	year := 1960
	c := &models.Candidate{
		QID:          "Q5",
		Title:        "Someone",
		Category:     models.CategoryDeceased,
		EventYear:    &year,
		BurialCoords: &models.Coordinates{Lat: 1, Lng: 2},
		CoordKind:    models.CoordKindBurial,
	}

	p := FromCandidate(c)
	assert.True(t, p.Published)
	require.NotNil(t, p.WikidataQID)
	assert.Equal(t, "Q5", *p.WikidataQID)
	assert.Equal(t, models.CoordKindBurial, p.CoordKind)
	assert.NotNil(t, p.SourceURLs.GetValue(), "source urls column must never be null")
}
