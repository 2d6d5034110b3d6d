// Package checkpoint persists each job's resume cursor. The cursor only
// advances after every row in its window has reached a terminal outcome, so a
// crash re-processes at most one window.
package checkpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/willow/pkg/database"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

const table = "job_checkpoints"

// Repository handles job checkpoint persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new checkpoint repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get returns the stored cursor for a job, or "" when the job has never
// checkpointed.
func (r *Repository) Get(ctx context.Context, jobName string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("job_name", "cursor", "updated_at")
	sb.From(table)
	sb.Where(sb.Equal("job_name", jobName))

	query, args := sb.Build()
	var cp models.Checkpoint
	if err := r.db.GetContext(ctx, &cp, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return "", nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get checkpoint")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to get checkpoint")
	}

	return cp.Cursor, nil
}

// Advance moves the job's cursor forward. Cursors are ordered strings; a
// re-run that has fallen behind the stored cursor must not move it backwards.
func (r *Repository) Advance(ctx context.Context, jobName, cursor string) error {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.Repository.Advance")
	defer span.End()

	now := time.Now().UTC()
	ib := database.NewInsertBuilder().InsertInto(table)
	ib.Cols("job_name", "cursor", "updated_at")
	ib.Values(jobName, cursor, now)

	// GREATEST keeps the cursor monotonic even if a stale re-run writes late.
	ub := ib.OnConflict("job_name")
	ub.Set(
		ub.Assign("cursor", sqlbuilder.Raw("GREATEST("+table+".cursor, EXCLUDED.cursor)")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_name": jobName,
			"cursor":   cursor,
		}).Error("Failed to advance checkpoint")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to advance checkpoint")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"job_name": jobName,
		"cursor":   cursor,
	}).Debug("Advanced checkpoint")
	return nil
}
