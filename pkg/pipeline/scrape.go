package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/merge"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/normalize"
	"github.com/Ramsey-B/willow/pkg/ratelimit"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/sources/memorial"
	"github.com/Ramsey-B/willow/pkg/sources/wiki"
	"github.com/Ramsey-B/willow/pkg/tracing"
	"github.com/Ramsey-B/willow/pkg/workerpool"
)

// ScrapeJob is the job name used for checkpoints and metrics.
const ScrapeJob = "memorial-scrape"

// DecadeSource lists and fetches the memorial directory's decade pages.
// Satisfied by the seeing-stars adapter.
type DecadeSource interface {
	DecadePages() []string
	FetchDecade(ctx context.Context, page string) ([]*models.RawRecord, error)
}

// BurialSource looks up a burial location by name. Satisfied by the grave
// directory adapter; nil disables the burial enrichment step.
type BurialSource interface {
	FetchBurial(ctx context.Context, title string) (*memorial.Burial, error)
}

// Scrape pulls entries from the memorial directories, cross-references them
// against the wiki where possible, and merges them into the store.
type Scrape struct {
	Logger      ectologger.Logger
	SeeingStars DecadeSource
	Gravesite   BurialSource
	Wiki        CrossRefSource
	Executor    *retry.Executor
	Limiters    *ratelimit.Registry
	Attempts    Attempts
	Checkpoints Checkpoints
	Resolver    *resolve.Resolver
	Engine      *merge.Engine

	WorkerCount  int
	TotalItemCap int
	ResumeCursor string
}

// Run scrapes each decade page after the resume cursor. The cursor is the
// index of the next page to scrape, fixed-width for lexicographic ordering.
func (s *Scrape) Run(ctx context.Context) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Scrape.Run")
	defer span.End()

	summary := NewSummary(ScrapeJob)

	start, err := s.resumeIndex(ctx)
	if err != nil {
		return summary, err
	}

	pages := s.SeeingStars.DecadePages()
	processed := 0
	for i := start; i < len(pages) && ctx.Err() == nil; i++ {
		records, err := s.fetchPage(ctx, pages[i])
		if err != nil {
			if retry.IsPermanent(err) {
				// A page with no extractable entries is terminal; skip it and
				// move on rather than stalling the whole run.
				summary.AddSkipped("page_unusable")
				if err := s.Checkpoints.Advance(ctx, ScrapeJob, pageCursor(i+1)); err != nil {
					return summary, err
				}
				continue
			}
			return summary, err
		}
		summary.AddScanned(string(models.SourceSeeingStars), len(records))

		candidates := make([]*models.Candidate, 0, len(records))
		for _, rec := range records {
			candidates = append(candidates, normalize.Candidate(rec))
		}

		capped := false
		if s.TotalItemCap > 0 && processed+len(candidates) > s.TotalItemCap {
			candidates = candidates[:s.TotalItemCap-processed]
			capped = true
		}

		if err := s.processPage(ctx, candidates, summary); err != nil {
			return summary, err
		}

		if capped {
			// The page was only partially attempted. Leave the cursor behind
			// it so the next run retries the whole page.
			s.Logger.WithContext(ctx).Infof("Total item cap %d reached", s.TotalItemCap)
			break
		}

		if err := s.Checkpoints.Advance(ctx, ScrapeJob, pageCursor(i+1)); err != nil {
			return summary, err
		}

		processed += len(candidates)
		if s.TotalItemCap > 0 && processed >= s.TotalItemCap {
			s.Logger.WithContext(ctx).Infof("Total item cap %d reached", s.TotalItemCap)
			break
		}
	}

	return summary, nil
}

func (s *Scrape) resumeIndex(ctx context.Context) (int, error) {
	cursor := s.ResumeCursor
	if cursor == "" {
		stored, err := s.Checkpoints.Get(ctx, ScrapeJob)
		if err != nil {
			return 0, err
		}
		cursor = stored
	}
	if cursor == "" {
		return 0, nil
	}
	idx, err := strconv.Atoi(cursor)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("malformed resume cursor %q: %w", cursor, err))
	}
	return idx, nil
}

func pageCursor(idx int) string {
	return fmt.Sprintf("%03d", idx)
}

func (s *Scrape) fetchPage(ctx context.Context, page string) (records []*models.RawRecord, err error) {
	limiter := s.Limiters.For(string(models.SourceSeeingStars))
	err = s.Executor.Do(ctx, "scrape page "+page, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		var fetchErr error
		records, fetchErr = s.SeeingStars.FetchDecade(ctx, page)
		return fetchErr
	})
	return records, err
}

func (s *Scrape) processPage(ctx context.Context, candidates []*models.Candidate, summary *Summary) error {
	pool := workerpool.New(s.WorkerCount, s.Logger)
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
					return s.scrapeOne(ctx, c, summary)
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

// scrapeOne merges one memorial entry: attach a wiki cross-reference when the
// entry linked an article, resolve, apply, then try the grave directory for a
// burial location the entry lacks.
func (s *Scrape) scrapeOne(ctx context.Context, c *models.Candidate, summary *Summary) error {
	if title := wikiTitle(c.SourceURLs); title != "" {
		ref, err := s.lookupCrossRef(ctx, title)
		if err != nil && !retry.IsPermanent(err) {
			return err
		}
		if ref != nil {
			c.QID = ref.QID
			c.PageID = ref.PageID
		}
	}

	res, err := s.Resolver.Resolve(ctx, c)
	if err != nil {
		return err
	}
	result, err := s.Engine.Apply(ctx, c, res)
	if err != nil {
		return err
	}
	record(summary, result)

	if result == merge.ResultSkipped {
		return nil
	}
	return s.fillBurial(ctx, c, summary)
}

func (s *Scrape) lookupCrossRef(ctx context.Context, title string) (ref *wiki.CrossRef, err error) {
	limiter := s.Limiters.For(string(models.SourceWikipedia))
	err = s.Executor.Do(ctx, "wiki crossref "+title, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		var lookupErr error
		ref, lookupErr = s.Wiki.LookupCrossRef(ctx, title)
		return lookupErr
	})
	return ref, err
}

// fillBurial asks the grave directory for a burial location, once per
// subject. Empty results are recorded so later runs skip the fetch.
func (s *Scrape) fillBurial(ctx context.Context, c *models.Candidate, summary *Summary) error {
	if s.Gravesite == nil || c.BurialCoords != nil {
		return nil
	}

	graveKey := "grave:" + c.Key()
	done, err := s.Attempts.WasChecked(ctx, ScrapeJob, graveKey)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	var burial *memorial.Burial
	limiter := s.Limiters.For(string(models.SourceGravesite))
	err = s.Executor.Do(ctx, "grave lookup "+c.Title, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		var fetchErr error
		burial, fetchErr = s.Gravesite.FetchBurial(ctx, c.Title)
		return fetchErr
	})
	if err != nil {
		if retry.IsPermanent(err) {
			return s.Attempts.Record(ctx, ScrapeJob, graveKey, models.AttemptNone)
		}
		return err
	}
	if burial == nil {
		return s.Attempts.Record(ctx, ScrapeJob, graveKey, models.AttemptNone)
	}

	patch := &models.Candidate{
		Source:       models.SourceGravesite,
		QID:          c.QID,
		PageID:       c.PageID,
		Title:        c.Title,
		Category:     c.Category,
		EventYear:    c.EventYear,
		BurialCoords: burial.Coords,
	}
	if burial.Address != "" {
		patch.Address = &burial.Address
	}
	if patch.BurialCoords != nil {
		patch.CoordKind = models.CoordKindBurial
	}

	res, err := s.Resolver.Resolve(ctx, patch)
	if err != nil {
		return err
	}
	result, err := s.Engine.Apply(ctx, patch, res)
	if err != nil {
		return err
	}
	record(summary, result)

	return s.Attempts.Record(ctx, ScrapeJob, graveKey, models.AttemptFound)
}

// wikiTitle pulls an article title out of a harvested Wikipedia link.
func wikiTitle(urls []models.SourceURL) string {
	for _, u := range urls {
		if u.Kind != models.URLKindWikipedia {
			continue
		}
		parsed, err := url.Parse(u.URL)
		if err != nil {
			continue
		}
		path := parsed.Path
		idx := strings.Index(path, "/wiki/")
		if idx < 0 {
			continue
		}
		title := path[idx+len("/wiki/"):]
		title = strings.ReplaceAll(title, "_", " ")
		if decoded, err := url.PathUnescape(title); err == nil {
			title = decoded
		}
		return title
	}
	return ""
}
