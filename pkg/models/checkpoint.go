package models

import "time"

// Checkpoint is a per-job monotonic cursor. The cursor is an opaque ordering
// key (a date for the backfill job, a row id for the enrichment jobs); it is
// advanced only once every row in the just-fetched page has a terminal
// outcome, so resuming never skips a row.
type Checkpoint struct {
	JobName   string    `db:"job_name" json:"job_name"`
	Cursor    string    `db:"cursor" json:"cursor"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AttemptOutcome records the result of a best-effort extraction attempt.
type AttemptOutcome string

const (
	// AttemptFound means the source yielded a usable value.
	AttemptFound AttemptOutcome = "found"
	// AttemptNone means the source was checked and had nothing. Distinct from
	// "never attempted" so reprocessing loops terminate.
	AttemptNone AttemptOutcome = "none"
)

// IngestAttempt is the persisted checked-with-no-result sentinel.
type IngestAttempt struct {
	JobName    string         `db:"job_name" json:"job_name"`
	SubjectKey string         `db:"subject_key" json:"subject_key"`
	Outcome    AttemptOutcome `db:"outcome" json:"outcome"`
	CheckedAt  time.Time      `db:"checked_at" json:"checked_at"`
}
