package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/merge"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/normalize"
	"github.com/Ramsey-B/willow/pkg/ratelimit"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/slicer"
	"github.com/Ramsey-B/willow/pkg/tracing"
	"github.com/Ramsey-B/willow/pkg/workerpool"
)

// BackfillJob is the job name used for checkpoints and metrics.
const BackfillJob = "wikidata-backfill"

// Checkpoints persists and reads per-job resume cursors. Satisfied by the
// checkpoint repository.
type Checkpoints interface {
	Get(ctx context.Context, jobName string) (string, error)
	Advance(ctx context.Context, jobName, cursor string) error
}

// WindowSource fetches one temporal window of raw records. Satisfied by the
// SPARQL adapter.
type WindowSource interface {
	FetchWindow(ctx context.Context, w slicer.Window) ([]*models.RawRecord, bool, error)
}

// PersonBatcher flushes brand-new QID-only rows in one statement. Satisfied
// by the person repository.
type PersonBatcher interface {
	BatchUpsertByQID(ctx context.Context, persons []*models.Person) error
}

// Backfill pulls death records from the SPARQL endpoint month by month and
// merges them into the store.
type Backfill struct {
	Logger      ectologger.Logger
	Source      WindowSource
	Executor    *retry.Executor
	Limiter     *ratelimit.Limiter
	Checkpoints Checkpoints
	Persons     PersonBatcher
	Resolver    *resolve.Resolver
	Engine      *merge.Engine
	Emitter     *events.Emitter

	FromYear     int
	ToYear       int
	WorkerCount  int
	TotalItemCap int
	// ResumeCursor overrides the stored checkpoint when set.
	ResumeCursor string
}

// Run processes every month window after the resume cursor. Checkpoint
// advancement is page-atomic: a window's cursor is stored only after every
// row in it reached a terminal outcome.
func (b *Backfill) Run(ctx context.Context) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Backfill.Run")
	defer span.End()

	summary := NewSummary(BackfillJob)

	cursor := b.ResumeCursor
	if cursor == "" {
		stored, err := b.Checkpoints.Get(ctx, BackfillJob)
		if err != nil {
			return summary, err
		}
		cursor = stored
	}

	windows := slicer.After(b.windows(), cursor)
	b.Logger.WithContext(ctx).WithFields(map[string]any{
		"windows": len(windows),
		"cursor":  cursor,
	}).Info("Starting backfill")

	processed := 0
	for _, w := range windows {
		if ctx.Err() != nil {
			break
		}

		records, truncated, err := b.fetchWindow(ctx, w)
		if err != nil {
			// The executor already absorbed transient failures. Whatever is
			// left means the window was never fully read; stop without
			// advancing so the next run retries it.
			return summary, err
		}
		if truncated {
			summary.AddTruncated(w.Cursor())
		}
		summary.AddScanned(string(models.SourceWikidata), len(records))

		candidates := make([]*models.Candidate, 0, len(records))
		for _, rec := range records {
			candidates = append(candidates, normalize.Candidate(rec))
		}
		kept, dropped := normalize.DedupeByExternalID(candidates)
		summary.AddDeduplicated(dropped)

		capped := false
		if b.TotalItemCap > 0 && processed+len(kept) > b.TotalItemCap {
			kept = kept[:b.TotalItemCap-processed]
			capped = true
		}

		if err := b.processPage(ctx, kept, summary); err != nil {
			return summary, err
		}

		if capped {
			// The window was only partially attempted. Leave the cursor behind
			// it so the next run retries the whole window.
			b.Logger.WithContext(ctx).Infof("Total item cap %d reached", b.TotalItemCap)
			break
		}

		if err := b.Checkpoints.Advance(ctx, BackfillJob, w.Cursor()); err != nil {
			return summary, err
		}

		processed += len(kept)
		if b.TotalItemCap > 0 && processed >= b.TotalItemCap {
			b.Logger.WithContext(ctx).Infof("Total item cap %d reached", b.TotalItemCap)
			break
		}
	}

	return summary, nil
}

func (b *Backfill) windows() []slicer.Window {
	from := b.FromYear
	to := b.ToYear
	if to <= 0 {
		to = time.Now().UTC().Year() + 1
	}
	return slicer.Months(
		time.Date(from, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(to, time.January, 1, 0, 0, 0, 0, time.UTC),
	)
}

func (b *Backfill) fetchWindow(ctx context.Context, w slicer.Window) (records []*models.RawRecord, truncated bool, err error) {
	err = b.Executor.Do(ctx, "sparql window "+w.Cursor(), func(ctx context.Context) error {
		if err := b.Limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		var fetchErr error
		records, truncated, fetchErr = b.Source.FetchWindow(ctx, w)
		return fetchErr
	})
	return records, truncated, err
}

// processPage fans a page of candidates across the worker pool. Brand-new
// QID-only rows are collected and flushed in one batch upsert; everything
// else goes through the merge engine row by row.
func (b *Backfill) processPage(ctx context.Context, candidates []*models.Candidate, summary *Summary) error {
	var mu sync.Mutex
	var batch []*models.Person

	pool := workerpool.New(b.WorkerCount, b.Logger)
	pool.OnError = func(task workerpool.Task, err error) {
		summary.AddSkipped("row_failed")
	}

	tasks := make(chan workerpool.Task)
	go func() {
		defer close(tasks)
		for _, c := range candidates {
			c := c
			select {
			case <-ctx.Done():
				return
			case tasks <- workerpool.Task{
				Key: c.Key(),
				Run: func(ctx context.Context) error {
					res, err := b.Resolver.Resolve(ctx, c)
					if err != nil {
						return err
					}
					if res.Outcome == resolve.OutcomeNew && c.PageID == 0 {
						mu.Lock()
						batch = append(batch, merge.FromCandidate(c))
						mu.Unlock()
						return nil
					}
					result, err := b.Engine.Apply(ctx, c, res)
					if err != nil {
						return err
					}
					record(summary, result)
					return nil
				},
			}:
			}
		}
	}()

	if err := pool.Run(ctx, tasks); err != nil && ctx.Err() == nil {
		return err
	}

	if len(batch) > 0 {
		if err := b.Persons.BatchUpsertByQID(ctx, batch); err != nil {
			return err
		}
		for _, p := range batch {
			b.Emitter.PersonCreated(ctx, p)
			summary.AddCreated()
		}
	}
	return nil
}

func record(summary *Summary, result merge.Result) {
	switch result {
	case merge.ResultCreated:
		summary.AddCreated()
	case merge.ResultUpdated:
		summary.AddUpdated()
	case merge.ResultNoop:
		summary.AddNoop()
	case merge.ResultSkipped:
		summary.AddSkipped("ambiguous")
	}
}
