// Package events handles event emission for person lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/kafka"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// Publisher is the producer surface the emitter needs. Satisfied by
// *kafka.Producer; nil-able via Noop for runs without a broker.
type Publisher interface {
	PublishPersonEvent(ctx context.Context, event *kafka.PersonEvent) error
}

// Emitter emits person lifecycle events. Emission is best-effort: a publish
// failure is logged and dropped, never fed back into the pipeline as a row
// failure.
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
	job      string
}

// NewEmitter creates a new event emitter for one job run.
func NewEmitter(producer Publisher, logger ectologger.Logger, job string) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
		job:      job,
	}
}

// Noop returns an emitter that drops everything, for runs without a broker.
func Noop(logger ectologger.Logger, job string) *Emitter {
	return &Emitter{producer: nil, logger: logger, job: job}
}

// PersonCreated emits a person.created event.
func (e *Emitter) PersonCreated(ctx context.Context, p *models.Person) {
	e.emit(ctx, "person.created", p, "")
}

// PersonUpdated emits a person.updated event.
func (e *Emitter) PersonUpdated(ctx context.Context, p *models.Person) {
	e.emit(ctx, "person.updated", p, "")
}

// PersonMerged emits a person.merged event for the superseded row.
func (e *Emitter) PersonMerged(ctx context.Context, loser *models.Person, winnerID string) {
	e.emit(ctx, "person.merged", loser, winnerID)
}

func (e *Emitter) emit(ctx context.Context, eventType string, p *models.Person, mergedInto string) {
	if e.producer == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	data, err := json.Marshal(p)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to marshal person event payload")
		return
	}

	event := &kafka.PersonEvent{
		EventType:  eventType,
		PersonID:   p.ID.String(),
		MergedInto: mergedInto,
		Data:       data,
		Job:        e.job,
	}
	if p.WikidataQID != nil {
		event.WikidataQID = *p.WikidataQID
	}
	if p.WikipediaPageID != nil {
		event.WikipediaPageID = *p.WikipediaPageID
	}

	if err := e.producer.PublishPersonEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
	}
}
