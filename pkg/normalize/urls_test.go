package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/models"
)

func TestURLs_MergesLegacyFieldFirst(t *testing.T) {
	out := URLs("https://en.wikipedia.org/wiki/Jane_Doe", []string{
		"https://www.wikidata.org/wiki/Q100",
		"https://www.seeing-stars.com/Died/90s.shtml",
	})

	require.Len(t, out, 3)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Jane_Doe", out[0].URL)
	assert.Equal(t, models.URLKindWikipedia, out[0].Kind)
	assert.Equal(t, models.URLKindWikidata, out[1].Kind)
	assert.Equal(t, models.URLKindMemorial, out[2].Kind)
}

func TestURLs_TrimsAndDeduplicates(t *testing.T) {
	out := URLs("https://example.com/page/", []string{
		"  https://example.com/page ",
		"https://example.com/page",
		"",
		"https://example.com/other",
	})

	require.Len(t, out, 2)
	assert.Equal(t, "https://example.com/page", out[0].URL)
	assert.Equal(t, "https://example.com/other", out[1].URL)
}

func TestURLs_OutputIsStableUnderReprocessing(t *testing.T) {
	first := URLs("https://en.wikipedia.org/wiki/Jane_Doe/", []string{
		"https://www.findagrave.com/memorial/123/",
		"https://en.wikipedia.org/wiki/Jane_Doe",
	})

	raw := make([]string, 0, len(first))
	for _, u := range first {
		raw = append(raw, u.URL)
	}
	second := URLs("", raw)
	assert.Equal(t, first, second)
}

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		url  string
		want models.URLKind
	}{
		{"https://en.wikipedia.org/wiki/Jane_Doe", models.URLKindWikipedia},
		{"https://www.wikidata.org/wiki/Q100", models.URLKindWikidata},
		{"https://www.seeing-stars.com/Died/90s.shtml", models.URLKindMemorial},
		{"https://www.findagrave.com/memorial/123", models.URLKindMemorial},
		{"https://example.com/obituary", models.URLKindOther},
		{"not a url", models.URLKindOther},
		{"/relative/path", models.URLKindOther},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ClassifyURL(tc.url), tc.url)
	}
}
