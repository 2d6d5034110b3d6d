package normalize

import "github.com/Ramsey-B/willow/pkg/models"

// Scoring weights for deduplicating raw records that describe the same
// subject. A primary-location pair outranks everything else combined.
const (
	scorePrimaryCoords   = 100
	scoreSecondaryCoords = 25
	scoreEnrichmentField = 10
	scoreTitleCap        = 40
)

// QualityScore rates how complete a candidate is. Used only to pick a winner
// among duplicates sharing an external id; never persisted.
func QualityScore(c *models.Candidate) int {
	score := 0
	if c.DeathCoords != nil || c.LastSeenCoords != nil {
		score += scorePrimaryCoords
	}
	if c.BurialCoords != nil {
		score += scoreSecondaryCoords
	}
	if c.Address != nil {
		score += scoreEnrichmentField
	}
	if c.CrossRef != nil {
		score += scoreEnrichmentField
	}
	score += min(len(c.Title), scoreTitleCap)
	return score
}

// DedupeByExternalID keeps the highest-scoring candidate per external id,
// preserving first-seen order among the survivors. Candidates without an
// external id are never merged with each other. Ties keep the earlier record.
func DedupeByExternalID(candidates []*models.Candidate) (kept []*models.Candidate, dropped int) {
	best := make(map[string]int) // external id -> index into kept
	for _, c := range candidates {
		if c.QID == "" {
			kept = append(kept, c)
			continue
		}
		idx, ok := best[c.QID]
		if !ok {
			best[c.QID] = len(kept)
			kept = append(kept, c)
			continue
		}
		dropped++
		if c.Score > kept[idx].Score {
			kept[idx] = c
		}
	}
	return kept, dropped
}
