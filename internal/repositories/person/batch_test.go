package person

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordKindCase(t *testing.T) {
	expr := coordKindCase()

	// The recomputation must look at the merged values, not just the
	// incoming row, so a COALESCE fill cannot leave coord_kind stale.
	assert.Contains(t, expr, "COALESCE(persons.death_lat, EXCLUDED.death_lat) IS NOT NULL")
	assert.Contains(t, expr, "COALESCE(persons.burial_lng, EXCLUDED.burial_lng) IS NOT NULL")
	assert.Contains(t, expr, "COALESCE(persons.last_seen_lat, EXCLUDED.last_seen_lat) IS NOT NULL")
	assert.True(t, strings.HasSuffix(expr, "ELSE 'none' END"))

	// Slot precedence mirrors the merge engine: death, burial, last seen.
	assert.Less(t, strings.Index(expr, "'death'"), strings.Index(expr, "'burial'"))
	assert.Less(t, strings.Index(expr, "'burial'"), strings.Index(expr, "'last_seen'"))
}
