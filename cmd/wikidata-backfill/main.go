// wikidata-backfill pulls death records from the SPARQL endpoint month by
// month and merges them into the atlas store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ramsey-B/willow/internal/app"
	"github.com/Ramsey-B/willow/pkg/pipeline"
	"github.com/Ramsey-B/willow/pkg/ratelimit"
	"github.com/Ramsey-B/willow/pkg/sources/sparql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, pipeline.BackfillJob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.StartOps(ctx, pipeline.BackfillJob)

	job := &pipeline.Backfill{
		Logger:      a.Logger,
		Source:      sparql.NewAdapter(a.HTTP, a.Logger, a.Config.SPARQLEndpoint, a.Config.SPARQLRowCap),
		Executor:    a.NewExecutor(),
		Limiter:     ratelimit.NewLimiter(a.Config.MinRequestDelay),
		Checkpoints: a.Checkpoints,
		Persons:     a.Persons,
		Resolver:    a.NewResolver(),
		Engine:      a.NewEngine(pipeline.BackfillJob),
		Emitter:     a.NewEmitter(pipeline.BackfillJob),

		FromYear:     a.Config.BackfillFromYear,
		ToYear:       a.Config.BackfillToYear,
		WorkerCount:  a.Config.WorkerCount,
		TotalItemCap: a.Config.TotalItemCap,
		ResumeCursor: a.Config.ResumeCursor,
	}

	summary, runErr := job.Run(ctx)
	fmt.Println(summary)

	if runErr != nil {
		a.Logger.WithError(runErr).Error("Backfill failed")
		os.Exit(1)
	}
}
