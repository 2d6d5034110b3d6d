// memorial-scrape pulls entries from the memorial directory sites,
// cross-references them against the wiki, and merges them into the store.
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
	"github.com/Ramsey-B/willow/pkg/sources/memorial"
	"github.com/Ramsey-B/willow/pkg/sources/wiki"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, pipeline.ScrapeJob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.StartOps(ctx, pipeline.ScrapeJob)

	job := &pipeline.Scrape{
		Logger:      a.Logger,
		SeeingStars: memorial.NewSeeingStars(a.HTTP, a.Logger, a.Config.SeeingStarsBaseURL),
		Wiki:        wiki.NewAdapter(a.HTTP, a.Logger, a.Config.WikipediaAPIBase, a.Config.WikipediaRESTBase),
		Executor:    a.NewExecutor(),
		Limiters:    ratelimit.NewRegistry(a.Config.MinRequestDelay),
		Attempts:    a.Attempts,
		Checkpoints: a.Checkpoints,
		Resolver:    a.NewResolver(),
		Engine:      a.NewEngine(pipeline.ScrapeJob),

		WorkerCount:  a.Config.WorkerCount,
		TotalItemCap: a.Config.TotalItemCap,
		ResumeCursor: a.Config.ResumeCursor,
	}

	// The grave directory is optional; without a base URL the burial
	// enrichment step is skipped.
	if a.Config.GravesiteBaseURL != "" {
		job.Gravesite = memorial.NewGravesite(a.HTTP, a.Logger, a.Config.GravesiteBaseURL)
	}

	summary, runErr := job.Run(ctx)
	fmt.Println(summary)

	if runErr != nil {
		a.Logger.WithError(runErr).Error("Scrape failed")
		os.Exit(1)
	}
}
