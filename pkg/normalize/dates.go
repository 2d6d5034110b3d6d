package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts covers the formats the sources actually emit: ISO timestamps
// from the SPARQL endpoint, month-name lines from scraped memorial pages, and
// slash dates from older page revisions.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
}

var yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)

// ParseEventDate walks raw date strings in order and returns the first full
// date it can parse. When no string parses as a full date, it falls back to
// the first recognizable four-digit year, which is enough for fuzzy matching.
func ParseEventDate(raws []string) (*time.Time, *int) {
	var year *int
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		// Wikidata pads unknown-precision dates with a leading plus sign.
		raw = strings.TrimPrefix(raw, "+")

		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, raw)
			if err != nil {
				continue
			}
			t = t.UTC()
			y := t.Year()
			return &t, &y
		}

		if year == nil {
			if m := yearPattern.FindString(raw); m != "" {
				y, err := strconv.Atoi(m)
				if err == nil {
					year = &y
				}
			}
		}
	}
	return nil, year
}
