// Package eventbridge forwards board events to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// EventBridge accepts at most 10 entries per PutEvents call
const batchSize = 10

// PutEventsAPI is the part of the EventBridge client the publisher uses
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Config configures a Publisher
type Config struct {
	BusName string
	Source  string
	// FlushInterval is how long events may wait before being sent
	FlushInterval time.Duration
	// MaxBuffered caps queued events; newer events are dropped beyond it
	MaxBuffered int
}

// Publisher buffers board events and sends them in batches off the
// mutation path, so a slow bus never holds up editing. Sending is best
// effort: failed batches are logged and dropped.
type Publisher struct {
	client  PutEventsAPI
	busName string
	source  string
	max     int
	logger  *zap.Logger

	mu      sync.Mutex
	buffer  []events.DomainEvent
	dropped int

	// serialises sends so batches leave in order
	sendMu sync.Mutex

	kick     chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher and starts its flush loop. Close stops it.
func NewPublisher(client PutEventsAPI, cfg Config, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Source == "" {
		cfg.Source = events.Source
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = 1000
	}
	p := &Publisher{
		client:  client,
		busName: cfg.BusName,
		source:  cfg.Source,
		max:     cfg.MaxBuffered,
		logger:  logger.With(zap.String("eventBus", cfg.BusName)),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run(cfg.FlushInterval)
	return p
}

// Publish queues events for sending. It never blocks on the network.
func (p *Publisher) Publish(_ context.Context, evts []events.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	p.mu.Lock()
	room := p.max - len(p.buffer)
	if room < len(evts) {
		if room < 0 {
			room = 0
		}
		p.dropped += len(evts) - room
		evts = evts[:room]
	}
	p.buffer = append(p.buffer, evts...)
	full := len(p.buffer) >= batchSize
	p.mu.Unlock()

	if full {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush sends everything queued so far
func (p *Publisher) Flush(ctx context.Context) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	pending := p.buffer
	p.buffer = nil
	dropped := p.dropped
	p.dropped = 0
	p.mu.Unlock()

	if dropped > 0 {
		p.logger.Warn("Event buffer full, events dropped", zap.Int("dropped", dropped))
	}

	var firstErr error
	for i := 0; i < len(pending); i += batchSize {
		end := i + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := p.send(ctx, pending[i:end]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close stops the flush loop and sends what is still queued
func (p *Publisher) Close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.done) })
	<-p.stopped
	return p.Flush(ctx)
}

func (p *Publisher) run(interval time.Duration) {
	defer close(p.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		case <-p.kick:
		}
		if err := p.Flush(context.Background()); err != nil {
			p.logger.Warn("Failed to forward board events", zap.Error(err))
		}
	}
}

func (p *Publisher) send(ctx context.Context, batch []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	sent := make([]events.DomainEvent, 0, len(batch))

	for _, event := range batch {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.String("eventType", event.GetEventType()),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
		})
		sent = append(sent, event)
	}
	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(sent) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", sent[i].GetEventType()),
					zap.String("boardID", sent[i].GetAggregateID()),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge", zap.Int("count", len(entries)))
	return nil
}
