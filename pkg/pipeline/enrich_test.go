package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/merge"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/ratelimit"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/sources/wiki"
)

type fakeWiki struct {
	refs      map[string]*wiki.CrossRef
	summaries map[string]string
}

func (f *fakeWiki) LookupCrossRef(ctx context.Context, title string) (*wiki.CrossRef, error) {
	return f.refs[title], nil
}

func (f *fakeWiki) Summary(ctx context.Context, title string) (string, error) {
	return f.summaries[title], nil
}

func newTestEnrich(store *fakePersonStore, attempts *fakeAttempts, cps *fakeCheckpoints, w *fakeWiki) *Enrich {
	logger := testLogger()
	return &Enrich{
		Logger:      logger,
		Persons:     store,
		Attempts:    attempts,
		Checkpoints: cps,
		Wiki:        w,
		Executor:    retry.NewExecutor(testPolicy(), logger),
		Limiter:     ratelimit.NewLimiter(0),
		Resolver:    resolve.New(store, logger, 0),
		Engine:      merge.NewEngine(store, events.Noop(logger, "test"), logger, "test"),
		PageSize:    10,
		WorkerCount: 2,
	}
}

func TestEnrich_CheckpointFailureRerunConvergesWithoutReprocessing(t *testing.T) {
	store := newFakePersonStore()
	pageA, pageB := int64(101), int64(102)
	store.seed(models.Person{Title: "Alpha One", Category: models.CategoryDeceased, WikipediaPageID: &pageA, Published: true})
	store.seed(models.Person{Title: "Beta Two", Category: models.CategoryDeceased, WikipediaPageID: &pageB, Published: true})

	w := &fakeWiki{
		refs: map[string]*wiki.CrossRef{
			"Alpha One": {PageID: pageA, QID: "Q101"},
			"Beta Two":  {PageID: pageB, QID: "Q102"},
		},
		summaries: map[string]string{
			"Alpha One": "first subject",
			"Beta Two":  "second subject",
		},
	}
	attempts := newFakeAttempts()
	cps := newFakeCheckpoints()
	cps.failNext = errors.New("store connection lost")

	// The first run enriches the page but dies before the cursor lands.
	_, err := newTestEnrich(store, attempts, cps, w).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, cps.cursor(EnrichJob))

	alpha, err := store.GetByQID(context.Background(), "Q101")
	require.NoError(t, err)
	require.NotNil(t, alpha, "enrichment landed despite the lost checkpoint")
	require.NotNil(t, alpha.Summary)
	assert.Equal(t, "first subject", *alpha.Summary)

	// The re-run sees both subjects as already checked, skips them, and
	// advances the cursor it failed to store.
	summary, err := newTestEnrich(store, attempts, cps, w).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.size(), "no duplicate rows on re-run")
	assert.Contains(t, summary.String(), "already_checked:2")
	assert.Equal(t, offsetCursor(2), cps.cursor(EnrichJob))
}

func TestEnrich_SubjectsWithNothingToFillAreNoops(t *testing.T) {
	store := newFakePersonStore()
	qid := "Q7"
	summary := "already enriched"
	store.seed(models.Person{Title: "Gamma Three", Category: models.CategoryDeceased, WikidataQID: &qid, Summary: &summary, Published: true})

	attempts := newFakeAttempts()
	cps := newFakeCheckpoints()

	out, err := newTestEnrich(store, attempts, cps, &fakeWiki{}).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "noop=1")
	assert.Equal(t, offsetCursor(1), cps.cursor(EnrichJob))
}
