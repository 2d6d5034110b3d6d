package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/merge"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/ratelimit"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/slicer"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeWindowSource struct {
	mu      sync.Mutex
	records map[string][]*models.RawRecord
	fetches map[string]int
}

func (f *fakeWindowSource) FetchWindow(ctx context.Context, w slicer.Window) ([]*models.RawRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetches == nil {
		f.fetches = make(map[string]int)
	}
	f.fetches[w.Cursor()]++
	return f.records[w.Cursor()], false, nil
}

type fakeCheckpoints struct {
	mu       sync.Mutex
	cursors  map[string]string
	failNext error
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{cursors: make(map[string]string)}
}

func (f *fakeCheckpoints) Get(ctx context.Context, jobName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[jobName], nil
}

func (f *fakeCheckpoints) Advance(ctx context.Context, jobName, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	// Monotonic, like the repository's GREATEST upsert.
	if cursor > f.cursors[jobName] {
		f.cursors[jobName] = cursor
	}
	return nil
}

func (f *fakeCheckpoints) cursor(jobName string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[jobName]
}

// fakePersonStore backs the resolver, the merge engine and the batch path in
// one fake: rows are copied on read and write, soft-merged rows are excluded
// from lookups, and the batch upsert only inserts unseen QIDs.
type fakePersonStore struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]*models.Person
	order       []uuid.UUID
	batches     int
	failOnBatch int
}

func newFakePersonStore() *fakePersonStore {
	return &fakePersonStore{rows: make(map[uuid.UUID]*models.Person)}
}

func (f *fakePersonStore) seed(p models.Person) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.rows[p.ID] = &p
	f.order = append(f.order, p.ID)
	return p.ID
}

func (f *fakePersonStore) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakePersonStore) Create(ctx context.Context, p *models.Person) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.ID = uuid.New()
	f.rows[cp.ID] = &cp
	f.order = append(f.order, cp.ID)
	out := cp
	return &out, nil
}

func (f *fakePersonStore) Get(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, errors.New("row not found")
	}
	cp := *row
	return &cp, nil
}

func (f *fakePersonStore) GetByQID(ctx context.Context, qid string) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.MergedInto == nil && row.WikidataQID != nil && *row.WikidataQID == qid {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePersonStore) GetByPageID(ctx context.Context, pageID int64) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.MergedInto == nil && row.WikipediaPageID != nil && *row.WikipediaPageID == pageID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePersonStore) SearchByTitle(ctx context.Context, fragment string, yearHint *int, limit int) ([]models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Person
	for _, id := range f.order {
		row := f.rows[id]
		if row.MergedInto != nil {
			continue
		}
		if strings.Contains(strings.ToLower(row.Title), fragment) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakePersonStore) List(ctx context.Context, offset, limit int) ([]models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var unmerged []models.Person
	for _, id := range f.order {
		if row := f.rows[id]; row.MergedInto == nil {
			unmerged = append(unmerged, *row)
		}
	}
	if offset >= len(unmerged) {
		return nil, nil
	}
	end := offset + limit
	if end > len(unmerged) {
		end = len(unmerged)
	}
	return unmerged[offset:end], nil
}

func (f *fakePersonStore) Update(ctx context.Context, p *models.Person) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakePersonStore) MergeInto(ctx context.Context, loserID, winnerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[loserID]
	if !ok || row.MergedInto != nil {
		return errors.New("row not found or already merged")
	}
	cp := *row
	cp.MergedInto = &winnerID
	cp.Published = false
	f.rows[loserID] = &cp
	return nil
}

func (f *fakePersonStore) BatchUpsertByQID(ctx context.Context, persons []*models.Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.failOnBatch != 0 && f.batches == f.failOnBatch {
		return errors.New("store connection lost")
	}
	for _, p := range persons {
		exists := false
		for _, row := range f.rows {
			if p.WikidataQID != nil && row.WikidataQID != nil && *p.WikidataQID == *row.WikidataQID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		cp := *p
		cp.ID = uuid.New()
		f.rows[cp.ID] = &cp
		f.order = append(f.order, cp.ID)
	}
	return nil
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newTestBackfill(src *fakeWindowSource, cps *fakeCheckpoints, store *fakePersonStore, itemCap int) *Backfill {
	logger := testLogger()
	return &Backfill{
		Logger:       logger,
		Source:       src,
		Executor:     retry.NewExecutor(testPolicy(), logger),
		Limiter:      ratelimit.NewLimiter(0),
		Checkpoints:  cps,
		Persons:      store,
		Resolver:     resolve.New(store, logger, 0),
		Engine:       merge.NewEngine(store, events.Noop(logger, "test"), logger, "test"),
		Emitter:      events.Noop(logger, "test"),
		FromYear:     2020,
		ToYear:       2021,
		WorkerCount:  2,
		TotalItemCap: itemCap,
	}
}

func rawDeath(qid, title, date string) *models.RawRecord {
	return &models.RawRecord{
		Source:     models.SourceWikidata,
		ExternalID: qid,
		Title:      title,
		RawDates:   []string{date},
	}
}

func TestBackfill_CapMidWindowDoesNotAdvanceCursor(t *testing.T) {
	src := &fakeWindowSource{records: map[string][]*models.RawRecord{
		"2020-01-01": {
			rawDeath("Q1", "Alpha One", "2020-01-05"),
			rawDeath("Q2", "Beta Two", "2020-01-12"),
			rawDeath("Q3", "Gamma Three", "2020-01-20"),
		},
	}}
	cps := newFakeCheckpoints()
	store := newFakePersonStore()

	summary, err := newTestBackfill(src, cps, store, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cps.cursor(BackfillJob), "a partially attempted window must not checkpoint")
	assert.Equal(t, 2, store.size())
	assert.Contains(t, summary.String(), "created=2")

	// The next run retries the whole window and converges.
	_, err = newTestBackfill(src, cps, store, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, store.size(), "no duplicates and no silently dropped rows")
	assert.Equal(t, "2020-12-01", cps.cursor(BackfillJob))
	assert.Equal(t, 2, src.fetches["2020-01-01"])
}

func TestBackfill_FailureMidRunLeavesCursorBehindAndResumeConverges(t *testing.T) {
	src := &fakeWindowSource{records: map[string][]*models.RawRecord{
		"2020-01-01": {
			rawDeath("Q1", "Alpha One", "2020-01-05"),
			rawDeath("Q2", "Beta Two", "2020-01-12"),
		},
		"2020-02-01": {
			rawDeath("Q3", "Gamma Three", "2020-02-07"),
			rawDeath("Q4", "Delta Four", "2020-02-19"),
		},
	}}
	cps := newFakeCheckpoints()
	store := newFakePersonStore()
	store.failOnBatch = 2

	_, err := newTestBackfill(src, cps, store, 0).Run(context.Background())
	require.Error(t, err, "the second window's flush fails")
	assert.Equal(t, "2020-01-01", cps.cursor(BackfillJob), "cursor stops at the last fully terminal window")
	assert.Equal(t, 2, store.size())

	summary, err := newTestBackfill(src, cps, store, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, store.size())
	assert.Equal(t, 1, src.fetches["2020-01-01"], "completed windows are not refetched")
	assert.Equal(t, 2, src.fetches["2020-02-01"])
	assert.Equal(t, "2020-12-01", cps.cursor(BackfillJob))
	assert.Contains(t, summary.String(), "created=2")
}
