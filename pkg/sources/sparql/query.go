package sparql

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// deathsQuery selects humans who died inside one [from, to) sub-window, with
// whatever location data exists: place-of-death coordinates, burial
// coordinates and the English Wikipedia sitelink. OPTIONAL keeps sparse rows;
// the normalizer sorts out what is usable.
const deathsQuery = `SELECT ?person ?personLabel ?dod ?coord ?burialCoord ?article WHERE {
  ?person wdt:P31 wd:Q5 ;
          wdt:P570 ?dod .
  FILTER(?dod >= "%s"^^xsd:dateTime && ?dod < "%s"^^xsd:dateTime)
  OPTIONAL { ?person wdt:P20 ?pod . ?pod wdt:P625 ?coord . }
  OPTIONAL { ?person wdt:P119 ?burial . ?burial wdt:P625 ?burialCoord . }
  OPTIONAL {
    ?article schema:about ?person ;
             schema:isPartOf <https://en.wikipedia.org/> .
  }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
LIMIT %d`

func buildQuery(from, to time.Time, rowCap int) string {
	return fmt.Sprintf(deathsQuery,
		from.UTC().Format("2006-01-02T15:04:05Z"),
		to.UTC().Format("2006-01-02T15:04:05Z"),
		rowCap,
	)
}

// qidFromURI extracts "Q42" from an entity URI. Returns "" for anything that
// is not an entity URI.
func qidFromURI(uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return ""
	}
	qid := uri[idx+1:]
	if len(qid) < 2 || qid[0] != 'Q' {
		return ""
	}
	return qid
}

// parsePoint parses a WKT "Point(lng lat)" literal. Wikidata emits longitude
// first.
func parsePoint(wkt string) (lat, lng float64, ok bool) {
	wkt = strings.TrimSpace(wkt)
	if !strings.HasPrefix(wkt, "Point(") || !strings.HasSuffix(wkt, ")") {
		return 0, 0, false
	}
	parts := strings.Fields(wkt[len("Point(") : len(wkt)-1])
	if len(parts) != 2 {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}
