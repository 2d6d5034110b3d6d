package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/merge"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/normalize"
	"github.com/Ramsey-B/willow/pkg/ratelimit"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/sources/wiki"
	"github.com/Ramsey-B/willow/pkg/tracing"
	"github.com/Ramsey-B/willow/pkg/workerpool"
)

// EnrichJob is the job name used for checkpoints and metrics.
const EnrichJob = "wikipedia-enrich"

// CrossRefSource answers wiki lookups by article title. Satisfied by the
// wiki adapter.
type CrossRefSource interface {
	LookupCrossRef(ctx context.Context, title string) (*wiki.CrossRef, error)
	Summary(ctx context.Context, title string) (string, error)
}

// Attempts records terminal per-subject lookup outcomes so re-runs skip
// subjects already checked. Satisfied by the attempt repository.
type Attempts interface {
	Record(ctx context.Context, jobName, subjectKey string, outcome models.AttemptOutcome) error
	WasChecked(ctx context.Context, jobName, subjectKey string) (bool, error)
	CheckedKeys(ctx context.Context, jobName string, subjectKeys []string) (map[string]models.AttemptOutcome, error)
}

// PersonLister pages through unmerged persons. Satisfied by the person
// repository.
type PersonLister interface {
	List(ctx context.Context, offset, limit int) ([]models.Person, error)
}

// Enrich walks the store and fills missing Wikidata cross-references and
// summaries from the wiki APIs.
type Enrich struct {
	Logger      ectologger.Logger
	Persons     PersonLister
	Attempts    Attempts
	Checkpoints Checkpoints
	Wiki        CrossRefSource
	Executor    *retry.Executor
	Limiter     *ratelimit.Limiter
	Resolver    *resolve.Resolver
	Engine      *merge.Engine

	PageSize     int
	WorkerCount  int
	TotalItemCap int
	ResumeCursor string
}

// Run pages through unmerged persons, skipping subjects that already carry a
// terminal attempt outcome. The offset cursor is fixed-width so checkpoint
// ordering stays lexicographic.
func (e *Enrich) Run(ctx context.Context) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Enrich.Run")
	defer span.End()

	summary := NewSummary(EnrichJob)

	offset, err := e.resumeOffset(ctx)
	if err != nil {
		return summary, err
	}

	pageSize := e.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	processed := 0
	for ctx.Err() == nil {
		page, err := e.Persons.List(ctx, offset, pageSize)
		if err != nil {
			return summary, err
		}
		if len(page) == 0 {
			break
		}
		summary.AddScanned(string(models.SourceWikipedia), len(page))

		keys := make([]string, 0, len(page))
		for i := range page {
			keys = append(keys, subjectKey(&page[i]))
		}
		checked, err := e.Attempts.CheckedKeys(ctx, EnrichJob, keys)
		if err != nil {
			return summary, err
		}

		if err := e.processPage(ctx, page, checked, summary); err != nil {
			return summary, err
		}

		offset += len(page)
		if err := e.Checkpoints.Advance(ctx, EnrichJob, offsetCursor(offset)); err != nil {
			return summary, err
		}

		processed += len(page)
		if e.TotalItemCap > 0 && processed >= e.TotalItemCap {
			e.Logger.WithContext(ctx).Infof("Total item cap %d reached", e.TotalItemCap)
			break
		}
	}

	return summary, nil
}

func (e *Enrich) resumeOffset(ctx context.Context) (int, error) {
	cursor := e.ResumeCursor
	if cursor == "" {
		stored, err := e.Checkpoints.Get(ctx, EnrichJob)
		if err != nil {
			return 0, err
		}
		cursor = stored
	}
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("malformed resume cursor %q: %w", cursor, err))
	}
	return offset, nil
}

func offsetCursor(offset int) string {
	return fmt.Sprintf("%012d", offset)
}

func subjectKey(p *models.Person) string {
	return "person:" + p.ID.String()
}

func (e *Enrich) processPage(ctx context.Context, page []models.Person, checked map[string]models.AttemptOutcome, summary *Summary) error {
	pool := workerpool.New(e.WorkerCount, e.Logger)
	pool.OnError = func(task workerpool.Task, err error) {
		summary.AddSkipped("row_failed")
	}

	tasks := make(chan workerpool.Task)
	go func() {
		defer close(tasks)
		for i := range page {
			p := page[i]
			if _, done := checked[subjectKey(&p)]; done {
				summary.AddSkipped("already_checked")
				continue
			}
			if p.WikidataQID != nil && p.Summary != nil {
				summary.AddNoop()
				continue
			}

			select {
			case <-ctx.Done():
				return
			case tasks <- workerpool.Task{
				Key: subjectKey(&p),
				Run: func(ctx context.Context) error {
					return e.enrichOne(ctx, &p, summary)
				},
			}:
			}
		}
	}()

	if err := pool.Run(ctx, tasks); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// enrichOne looks up the cross-reference and summary for one stored person
// and merges whatever came back. "Nothing came back" is recorded as a
// terminal outcome so the next run skips the subject.
func (e *Enrich) enrichOne(ctx context.Context, p *models.Person, summary *Summary) error {
	var ref *wiki.CrossRef
	err := e.Executor.Do(ctx, "wiki crossref "+p.Title, func(ctx context.Context) error {
		if err := e.Limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		var lookupErr error
		ref, lookupErr = e.Wiki.LookupCrossRef(ctx, p.Title)
		return lookupErr
	})
	if err != nil {
		if retry.IsPermanent(err) {
			summary.AddSkipped("crossref_failed")
			return e.Attempts.Record(ctx, EnrichJob, subjectKey(p), models.AttemptNone)
		}
		return err
	}

	var extract string
	if p.Summary == nil {
		err = e.Executor.Do(ctx, "wiki summary "+p.Title, func(ctx context.Context) error {
			if err := e.Limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
			var sumErr error
			extract, sumErr = e.Wiki.Summary(ctx, p.Title)
			return sumErr
		})
		if err != nil && !retry.IsPermanent(err) {
			return err
		}
	}

	if ref == nil && extract == "" {
		summary.AddSkipped("nothing_found")
		return e.Attempts.Record(ctx, EnrichJob, subjectKey(p), models.AttemptNone)
	}

	raw := &models.RawRecord{
		Source:  models.SourceWikipedia,
		Title:   p.Title,
		Summary: extract,
		Missing: p.Category == models.CategoryMissing,
	}
	if ref != nil {
		raw.ExternalID = ref.QID
		raw.PageID = ref.PageID
		raw.CrossRef = ref.QID
	}
	// Fall back to the identity the row already holds so a summary-only
	// enrichment still resolves deterministically to this person.
	if raw.ExternalID == "" && p.WikidataQID != nil {
		raw.ExternalID = *p.WikidataQID
	}
	if raw.PageID == 0 && p.WikipediaPageID != nil {
		raw.PageID = *p.WikipediaPageID
	}
	c := normalize.Candidate(raw)

	res, err := e.Resolver.Resolve(ctx, c)
	if err != nil {
		return err
	}
	result, err := e.Engine.Apply(ctx, c, res)
	if err != nil {
		return err
	}
	record(summary, result)

	return e.Attempts.Record(ctx, EnrichJob, subjectKey(p), models.AttemptFound)
}
