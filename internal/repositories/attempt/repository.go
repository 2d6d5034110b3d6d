// Package attempt records terminal ingest outcomes per subject, including
// "checked and found nothing". The sentinel keeps re-runs from re-fetching
// subjects that legitimately have no data upstream.
package attempt

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

const table = "ingest_attempts"

// Repository handles ingest attempt persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new attempt repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Record stores the terminal outcome for a subject. A later attempt
// overwrites an earlier one; "found" after "none" is the common case when a
// subject gains upstream data.
func (r *Repository) Record(ctx context.Context, jobName, subjectKey string, outcome models.AttemptOutcome) error {
	ctx, span := tracing.StartSpan(ctx, "attempt.Repository.Record")
	defer span.End()

	ib := database.NewInsertBuilder().InsertInto(table)
	ib.Cols("job_name", "subject_key", "outcome", "checked_at")
	ib.Values(jobName, subjectKey, outcome, time.Now().UTC())

	ub := ib.OnConflict("job_name", "subject_key")
	ub.Set(
		ub.Assign("outcome", database.Excluded("outcome")),
		ub.Assign("checked_at", database.Excluded("checked_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_name":    jobName,
			"subject_key": subjectKey,
		}).Error("Failed to record ingest attempt")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record ingest attempt")
	}

	return nil
}

// WasChecked reports whether a subject already has a terminal outcome for
// this job. The enrichment job skips these instead of re-asking upstream.
func (r *Repository) WasChecked(ctx context.Context, jobName, subjectKey string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.Repository.WasChecked")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("outcome")
	sb.From(table)
	sb.Where(
		sb.Equal("job_name", jobName),
		sb.Equal("subject_key", subjectKey),
	)

	query, args := sb.Build()
	var outcome models.AttemptOutcome
	if err := r.db.GetContext(ctx, &outcome, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return false, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check ingest attempt")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check ingest attempt")
	}

	return true, nil
}

// CheckedKeys returns the subject keys already holding a terminal outcome for
// a job, bounding a page of work before fan-out.
func (r *Repository) CheckedKeys(ctx context.Context, jobName string, subjectKeys []string) (map[string]models.AttemptOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.Repository.CheckedKeys")
	defer span.End()

	checked := make(map[string]models.AttemptOutcome, len(subjectKeys))
	if len(subjectKeys) == 0 {
		return checked, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("job_name", "subject_key", "outcome", "checked_at")
	sb.From(table)
	sb.Where(
		sb.Equal("job_name", jobName),
		sb.In("subject_key", sqlbuilder.Flatten(subjectKeys)...),
	)

	query, args := sb.Build()
	var attempts []models.IngestAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load ingest attempts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load ingest attempts")
	}

	for _, a := range attempts {
		checked[a.SubjectKey] = a.Outcome
	}
	return checked, nil
}
