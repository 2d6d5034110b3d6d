package resolve

import (
	"strings"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/normalize"
)

// Fuzzy match weights. An exact event year outweighs everything a label can
// contribute, so among two label matches the year decides.
const (
	scoreLabelExact     = 50
	scoreLabelSubstring = 20
	scoreYearExact      = 100
	scoreYearOffByOne   = 10
	scoreYearMismatch   = -50
	scoreHasAnyDate     = 5

	// DefaultAcceptThreshold rejects label-only matches with no supporting
	// year evidence.
	DefaultAcceptThreshold = 60
)

// matchScore rates one stored person against a normalized candidate name and
// optional event year hint.
func matchScore(name string, yearHint *int, p *models.Person) int {
	score := 0

	stored := normalize.Name(p.Title)
	switch {
	case stored == name:
		score += scoreLabelExact
	case strings.Contains(stored, name) || strings.Contains(name, stored):
		score += scoreLabelSubstring
	}

	if yearHint != nil && p.EventYear != nil {
		switch diff := *p.EventYear - *yearHint; {
		case diff == 0:
			score += scoreYearExact
		case diff == 1 || diff == -1:
			score += scoreYearOffByOne
		default:
			score += scoreYearMismatch
		}
	}

	if p.EventDate != nil || p.EventYear != nil {
		score += scoreHasAnyDate
	}

	return score
}
