package normalize

import (
	"net/url"
	"strings"

	"github.com/Ramsey-B/willow/pkg/models"
)

// URLs merges the legacy single-URL field with the multi-URL array, trims,
// strips trailing slashes, deduplicates preserving first-seen order and
// classifies each entry by host. Running the output back through produces an
// identical list.
func URLs(legacy string, multi []string) []models.SourceURL {
	raw := make([]string, 0, len(multi)+1)
	if legacy != "" {
		raw = append(raw, legacy)
	}
	raw = append(raw, multi...)

	seen := make(map[string]struct{}, len(raw))
	out := make([]models.SourceURL, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		u = strings.TrimSuffix(u, "/")
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, models.SourceURL{URL: u, Kind: ClassifyURL(u)})
	}
	return out
}

// ClassifyURL buckets a URL by host for display ordering.
func ClassifyURL(raw string) models.URLKind {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return models.URLKindOther
	}
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")

	switch {
	case strings.HasSuffix(host, "wikipedia.org"):
		return models.URLKindWikipedia
	case strings.HasSuffix(host, "wikidata.org"):
		return models.URLKindWikidata
	case strings.HasSuffix(host, "seeing-stars.com") || strings.HasSuffix(host, "findagrave.com"):
		return models.URLKindMemorial
	}
	return models.URLKindOther
}
