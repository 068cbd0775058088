// Package messaging delivers board domain events to observers.
package messaging

import (
	"context"

	"flowboard/application/ports"
	"flowboard/domain/events"

	"go.uber.org/zap"
)

// EventCounter counts published events by type
type EventCounter interface {
	IncBoardEvent(eventType string)
}

// Flusher is a sink that buffers events and can send them on demand
type Flusher interface {
	Flush(ctx context.Context) error
}

// LocalPublisher logs and counts events, then hands each batch to the
// configured sinks. Sink errors are logged and never reach the mutator.
type LocalPublisher struct {
	logger  *zap.Logger
	counter EventCounter
	sinks   []ports.EventPublisher
}

var _ ports.EventPublisher = (*LocalPublisher)(nil)

// NewLocalPublisher creates a publisher. counter may be nil.
func NewLocalPublisher(logger *zap.Logger, counter EventCounter) *LocalPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalPublisher{
		logger:  logger,
		counter: counter,
	}
}

// Forward adds a sink that receives every published batch.
// Sinks are added at wiring time, before any Publish.
func (p *LocalPublisher) Forward(sink ports.EventPublisher) {
	p.sinks = append(p.sinks, sink)
}

// Publish implements ports.EventPublisher
func (p *LocalPublisher) Publish(ctx context.Context, evts []events.DomainEvent) error {
	for _, event := range evts {
		p.logger.Debug("Board event",
			zap.String("type", event.GetEventType()),
			zap.String("boardID", event.GetAggregateID()),
			zap.Int("version", event.GetVersion()),
		)
		if p.counter != nil {
			p.counter.IncBoardEvent(event.GetEventType())
		}
	}

	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, evts); err != nil {
			p.logger.Warn("Event sink failed", zap.Int("events", len(evts)), zap.Error(err))
		}
	}
	return nil
}

// Flush asks every buffering sink to send what it holds
func (p *LocalPublisher) Flush(ctx context.Context) {
	for _, sink := range p.sinks {
		f, ok := sink.(Flusher)
		if !ok {
			continue
		}
		if err := f.Flush(ctx); err != nil {
			p.logger.Warn("Event sink flush failed", zap.Error(err))
		}
	}
}
