package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/merge"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/ratelimit"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
)

type fakeDecadeSource struct {
	mu      sync.Mutex
	pages   []string
	records map[string][]*models.RawRecord
	fetches map[string]int
}

func (f *fakeDecadeSource) DecadePages() []string { return f.pages }

func (f *fakeDecadeSource) FetchDecade(ctx context.Context, page string) ([]*models.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetches == nil {
		f.fetches = make(map[string]int)
	}
	f.fetches[page]++
	return f.records[page], nil
}

type fakeAttempts struct {
	mu   sync.Mutex
	done map[string]models.AttemptOutcome
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{done: make(map[string]models.AttemptOutcome)}
}

func (f *fakeAttempts) Record(ctx context.Context, jobName, subjectKey string, outcome models.AttemptOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[jobName+"/"+subjectKey] = outcome
	return nil
}

func (f *fakeAttempts) WasChecked(ctx context.Context, jobName, subjectKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.done[jobName+"/"+subjectKey]
	return ok, nil
}

func (f *fakeAttempts) CheckedKeys(ctx context.Context, jobName string, subjectKeys []string) (map[string]models.AttemptOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.AttemptOutcome)
	for _, key := range subjectKeys {
		if outcome, ok := f.done[jobName+"/"+key]; ok {
			out[key] = outcome
		}
	}
	return out, nil
}

func newTestScrape(src *fakeDecadeSource, cps *fakeCheckpoints, store *fakePersonStore, itemCap int) *Scrape {
	logger := testLogger()
	return &Scrape{
		Logger:       logger,
		SeeingStars:  src,
		Executor:     retry.NewExecutor(testPolicy(), logger),
		Limiters:     ratelimit.NewRegistry(0),
		Attempts:     newFakeAttempts(),
		Checkpoints:  cps,
		Resolver:     resolve.New(store, logger, 0),
		Engine:       merge.NewEngine(store, events.Noop(logger, "test"), logger, "test"),
		WorkerCount:  2,
		TotalItemCap: itemCap,
	}
}

func rawMemorial(title, date string) *models.RawRecord {
	return &models.RawRecord{
		Source:   models.SourceSeeingStars,
		Title:    title,
		RawDates: []string{date},
	}
}

func TestScrape_CapMidPageDoesNotAdvanceCursor(t *testing.T) {
	src := &fakeDecadeSource{
		pages: []string{"stars90s", "stars2000s"},
		records: map[string][]*models.RawRecord{
			"stars90s": {
				rawMemorial("Alpha One", "1991-02-03"),
				rawMemorial("Beta Two", "1992-03-04"),
				rawMemorial("Gamma Three", "1993-04-05"),
			},
		},
	}
	cps := newFakeCheckpoints()
	store := newFakePersonStore()

	_, err := newTestScrape(src, cps, store, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cps.cursor(ScrapeJob), "a partially attempted page must not checkpoint")
	assert.Equal(t, 2, store.size())

	// The next run retries the whole page and converges.
	_, err = newTestScrape(src, cps, store, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, store.size(), "no duplicates and no silently dropped rows")
	assert.Equal(t, pageCursor(2), cps.cursor(ScrapeJob))
	assert.Equal(t, 2, src.fetches["stars90s"])
}

func TestScrape_ResumesStrictlyAfterStoredCursor(t *testing.T) {
	src := &fakeDecadeSource{
		pages: []string{"stars90s", "stars2000s"},
		records: map[string][]*models.RawRecord{
			"stars90s":   {rawMemorial("Alpha One", "1991-02-03")},
			"stars2000s": {rawMemorial("Beta Two", "2002-03-04")},
		},
	}
	cps := newFakeCheckpoints()
	cps.cursors[ScrapeJob] = pageCursor(1)
	store := newFakePersonStore()

	_, err := newTestScrape(src, cps, store, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, src.fetches["stars90s"], "pages behind the cursor stay untouched")
	assert.Equal(t, 1, src.fetches["stars2000s"])
	assert.Equal(t, 1, store.size())
	assert.Equal(t, pageCursor(2), cps.cursor(ScrapeJob))
}
