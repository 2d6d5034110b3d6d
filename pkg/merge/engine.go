// Package merge applies resolved candidates to the canonical store. Every
// write is idempotent under retry: re-running the same candidate after a
// partial failure converges on the same end state.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/willow/internal/repositories/person"
	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/fingerprint"
	"github.com/Ramsey-B/willow/pkg/metrics"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// Result is what an apply did to the store.
type Result string

const (
	ResultCreated Result = "created"
	ResultUpdated Result = "updated"
	ResultNoop    Result = "noop"
	ResultSkipped Result = "skipped"
)

// Store is the subset of the person repository the engine needs.
type Store interface {
	Create(ctx context.Context, p *models.Person) (*models.Person, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Person, error)
	GetByQID(ctx context.Context, qid string) (*models.Person, error)
	GetByPageID(ctx context.Context, pageID int64) (*models.Person, error)
	Update(ctx context.Context, p *models.Person) (*models.Person, error)
	MergeInto(ctx context.Context, loserID, winnerID uuid.UUID) error
}

// Engine merges candidates into the canonical store.
type Engine struct {
	store   Store
	emitter *events.Emitter
	logger  ectologger.Logger
	job     string
}

func NewEngine(store Store, emitter *events.Emitter, logger ectologger.Logger, job string) *Engine {
	return &Engine{
		store:   store,
		emitter: emitter,
		logger:  logger,
		job:     job,
	}
}

// Apply writes one resolved candidate. Ambiguous resolutions are skipped, not
// errors: the row is counted and left for a human or a later run with better
// identifiers.
func (e *Engine) Apply(ctx context.Context, c *models.Candidate, res *resolve.Resolution) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Engine.Apply")
	defer span.End()

	switch res.Outcome {
	case resolve.OutcomeAmbiguous:
		return ResultSkipped, nil
	case resolve.OutcomeNew:
		return e.insert(ctx, c)
	case resolve.OutcomeExisting:
		return e.patch(ctx, c, res.Match)
	}
	return ResultSkipped, retry.Permanent(fmt.Errorf("unknown resolution outcome %q", res.Outcome))
}

func (e *Engine) insert(ctx context.Context, c *models.Candidate) (Result, error) {
	p := newRow(c, true, true)

	created, err := e.store.Create(ctx, p)
	if err != nil {
		var uv *person.UniqueViolationError
		if errors.As(err, &uv) {
			// Another run (or an earlier partial failure) already owns one of
			// the keys. Fall through to the collision path.
			return e.collisionFallback(ctx, c, uv)
		}
		return ResultSkipped, err
	}

	e.emitter.PersonCreated(ctx, created)
	return ResultCreated, nil
}

func (e *Engine) patch(ctx context.Context, c *models.Candidate, row *models.Person) (Result, error) {
	// Re-read so the null-only discipline applies to current values, not the
	// snapshot the resolver saw.
	current, err := e.store.Get(ctx, row.ID)
	if err != nil {
		return ResultSkipped, err
	}
	if current.IsMerged() {
		// The row lost a soft merge since resolution. Follow the pointer.
		current, err = e.store.Get(ctx, *current.MergedInto)
		if err != nil {
			return ResultSkipped, err
		}
	}

	before := fingerprint.Person(current)
	fillNulls(current, c, true, true)
	if fingerprint.Person(current) == before {
		return ResultNoop, nil
	}

	if _, err := e.store.Update(ctx, current); err != nil {
		var uv *person.UniqueViolationError
		if errors.As(err, &uv) {
			return e.collisionFallback(ctx, c, uv)
		}
		return ResultSkipped, err
	}

	e.emitter.PersonUpdated(ctx, current)
	return ResultUpdated, nil
}

// collisionFallback handles the dual legacy key collision: two different
// rows already own wikidata_qid and wikipedia_page_id for this subject. No
// single write may carry both keys. The QID owner is patched when it exists,
// otherwise the page-id owner; whichever key the other row owns is omitted
// from the patch entirely.
func (e *Engine) collisionFallback(ctx context.Context, c *models.Candidate, uv *person.UniqueViolationError) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "merge.Engine.collisionFallback")
	defer span.End()

	metrics.MergeConflicts.WithLabelValues(e.job).Inc()

	// A key whose constraint just fired but whose owner is invisible (a
	// soft-merged row still holds it at the store level) must not be claimed
	// again.
	collidedQID := strings.Contains(uv.Constraint, "wikidata_qid")
	collidedPage := strings.Contains(uv.Constraint, "wikipedia_page_id")

	var qidOwner, pageOwner *models.Person
	var err error
	if c.QID != "" {
		if qidOwner, err = e.store.GetByQID(ctx, c.QID); err != nil {
			return ResultSkipped, err
		}
	}
	if c.PageID != 0 {
		if pageOwner, err = e.store.GetByPageID(ctx, c.PageID); err != nil {
			return ResultSkipped, err
		}
	}

	if qidOwner == nil && pageOwner == nil {
		return ResultSkipped, retry.Permanent(fmt.Errorf(
			"unique violation for candidate %s but no owning row found", c.Key()))
	}

	target := qidOwner
	allowQID, allowPageID := true, true
	if target != nil {
		// The page id may only be claimed if nobody else owns it.
		allowPageID = (pageOwner == nil && !collidedPage) || (pageOwner != nil && pageOwner.ID == target.ID)
	} else {
		target = pageOwner
		allowQID = !collidedQID
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate": c.Key(),
		"target_id": target.ID.String(),
		"claim_qid": allowQID,
		"claim_pid": allowPageID,
	}).Warn("Resolving dual key collision")

	before := fingerprint.Person(target)
	fillNulls(target, c, allowQID, allowPageID)
	if fingerprint.Person(target) == before {
		return ResultNoop, nil
	}

	if _, err := e.store.Update(ctx, target); err != nil {
		return ResultSkipped, err
	}

	e.emitter.PersonUpdated(ctx, target)
	return ResultUpdated, nil
}

// Merge soft-merges one row into another once they are known to be the same
// subject. The winner absorbs the loser's null-fillable fields; the loser is
// pointed at the winner and unpublished, keeping its key columns so neither
// legacy key is ever freed for reuse.
func (e *Engine) Merge(ctx context.Context, loserID, winnerID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "merge.Engine.Merge")
	defer span.End()

	if loserID == winnerID {
		return retry.Permanent(fmt.Errorf("cannot merge row %s into itself", loserID))
	}

	loser, err := e.store.Get(ctx, loserID)
	if err != nil {
		return err
	}
	if loser.IsMerged() {
		// Already merged; a retry of the same merge converges here.
		return nil
	}
	winner, err := e.store.Get(ctx, winnerID)
	if err != nil {
		return err
	}
	if winner.IsMerged() {
		return retry.Permanent(fmt.Errorf("merge target %s is itself merged", winnerID))
	}

	before := fingerprint.Person(winner)
	absorb(winner, loser)
	if fingerprint.Person(winner) != before {
		if _, err := e.store.Update(ctx, winner); err != nil {
			return err
		}
		e.emitter.PersonUpdated(ctx, winner)
	}

	if err := e.store.MergeInto(ctx, loserID, winnerID); err != nil {
		return err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"loser_id":  loserID.String(),
		"winner_id": winnerID.String(),
	}).Info("Soft merged person")

	e.emitter.PersonMerged(ctx, loser, winnerID.String())
	return nil
}
