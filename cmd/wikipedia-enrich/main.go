// wikipedia-enrich walks the store and fills missing Wikidata
// cross-references and article summaries from the wiki APIs.
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
	"github.com/Ramsey-B/willow/pkg/sources/wiki"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, pipeline.EnrichJob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.StartOps(ctx, pipeline.EnrichJob)

	job := &pipeline.Enrich{
		Logger:      a.Logger,
		Persons:     a.Persons,
		Attempts:    a.Attempts,
		Checkpoints: a.Checkpoints,
		Wiki:        wiki.NewAdapter(a.HTTP, a.Logger, a.Config.WikipediaAPIBase, a.Config.WikipediaRESTBase),
		Executor:    a.NewExecutor(),
		Limiter:     ratelimit.NewLimiter(a.Config.MinRequestDelay),
		Resolver:    a.NewResolver(),
		Engine:      a.NewEngine(pipeline.EnrichJob),

		PageSize:     a.Config.PageSize,
		WorkerCount:  a.Config.WorkerCount,
		TotalItemCap: a.Config.TotalItemCap,
		ResumeCursor: a.Config.ResumeCursor,
	}

	summary, runErr := job.Run(ctx)
	fmt.Println(summary)

	if runErr != nil {
		a.Logger.WithError(runErr).Error("Enrichment failed")
		os.Exit(1)
	}
}
