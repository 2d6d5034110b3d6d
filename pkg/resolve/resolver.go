// Package resolve maps a normalized candidate to a canonical person. The
// deterministic path wins whenever an explicit external id is available; the
// fuzzy name-and-year path is the fallback and may reject as ambiguous.
package resolve

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/normalize"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// Outcome classifies a resolution.
type Outcome string

const (
	OutcomeNew       Outcome = "new"
	OutcomeExisting  Outcome = "existing"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Resolution is the result of resolving one candidate.
type Resolution struct {
	Outcome Outcome
	// Match is set for OutcomeExisting.
	Match *models.Person
	// Score is the fuzzy score that produced the match; zero on the
	// deterministic path.
	Score int
}

// PersonID returns the matched row id, or uuid.Nil.
func (r *Resolution) PersonID() uuid.UUID {
	if r.Match == nil {
		return uuid.Nil
	}
	return r.Match.ID
}

// Store is the subset of the person repository the resolver needs.
type Store interface {
	GetByQID(ctx context.Context, qid string) (*models.Person, error)
	GetByPageID(ctx context.Context, pageID int64) (*models.Person, error)
	SearchByTitle(ctx context.Context, fragment string, yearHint *int, limit int) ([]models.Person, error)
}

// Resolver resolves candidates against the canonical store.
type Resolver struct {
	store     Store
	logger    ectologger.Logger
	threshold int
	searchCap int
}

func New(store Store, logger ectologger.Logger, acceptThreshold int) *Resolver {
	if acceptThreshold <= 0 {
		acceptThreshold = DefaultAcceptThreshold
	}
	return &Resolver{
		store:     store,
		logger:    logger,
		threshold: acceptThreshold,
		searchCap: 25,
	}
}

// Resolve maps a candidate to an outcome. Preference order: explicit QID,
// explicit page id, wiki-link-derived cross-reference, fuzzy name search.
// The cross-reference outranks fuzzy search because it is effectively
// deterministic.
func (r *Resolver) Resolve(ctx context.Context, c *models.Candidate) (*Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "resolve.Resolver.Resolve")
	defer span.End()

	if c.QID != "" {
		p, err := r.store.GetByQID(ctx, c.QID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return &Resolution{Outcome: OutcomeExisting, Match: p}, nil
		}
		// The candidate may still be the Wikipedia-keyed row missing its QID.
		if c.PageID != 0 {
			return r.byPageID(ctx, c.PageID)
		}
		return &Resolution{Outcome: OutcomeNew}, nil
	}

	if c.PageID != 0 {
		return r.byPageID(ctx, c.PageID)
	}

	if qid := crossRefQID(c.CrossRef); qid != "" {
		p, err := r.store.GetByQID(ctx, qid)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return &Resolution{Outcome: OutcomeExisting, Match: p}, nil
		}
		return &Resolution{Outcome: OutcomeNew}, nil
	}

	return r.fuzzy(ctx, c)
}

func (r *Resolver) byPageID(ctx context.Context, pageID int64) (*Resolution, error) {
	p, err := r.store.GetByPageID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return &Resolution{Outcome: OutcomeExisting, Match: p}, nil
	}
	return &Resolution{Outcome: OutcomeNew}, nil
}

func (r *Resolver) fuzzy(ctx context.Context, c *models.Candidate) (*Resolution, error) {
	name := normalize.Name(c.Title)
	if name == "" {
		return &Resolution{Outcome: OutcomeAmbiguous}, nil
	}

	matches, err := r.store.SearchByTitle(ctx, name, c.EventYear, r.searchCap)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &Resolution{Outcome: OutcomeNew}, nil
	}

	var best *models.Person
	bestScore := 0
	for i := range matches {
		score := matchScore(name, c.EventYear, &matches[i])
		if best == nil || score > bestScore {
			best = &matches[i]
			bestScore = score
		}
	}

	if bestScore < r.threshold {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"title":      c.Title,
			"best_score": bestScore,
			"threshold":  r.threshold,
		}).Warn("Fuzzy resolution rejected as ambiguous")
		return &Resolution{Outcome: OutcomeAmbiguous, Score: bestScore}, nil
	}

	return &Resolution{Outcome: OutcomeExisting, Match: best, Score: bestScore}, nil
}

// crossRefQID extracts a Wikidata QID from a stored cross-reference value.
func crossRefQID(ref *string) string {
	if ref == nil {
		return ""
	}
	v := strings.TrimSpace(*ref)
	if idx := strings.LastIndex(v, "/"); idx >= 0 {
		v = v[idx+1:]
	}
	if len(v) >= 2 && v[0] == 'Q' {
		return v
	}
	return ""
}
