package decorators

import (
	"flowboard/application/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Chain builds the decorator stack around a base store.
// Order: Base -> Circuit Breaker -> Cache -> Metrics -> Tracing
type Chain struct {
	Breaker  *CircuitBreakerConfig
	Cache    redis.UniversalClient
	Caching  CachingConfig
	Recorder StoreRecorder
	Tracer   SpanTracer
	Logger   *zap.Logger
}

// Decorate applies every configured layer to base
func (c Chain) Decorate(base ports.BoardStore) ports.BoardStore {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	decorated := base

	if c.Breaker != nil {
		decorated = NewCircuitBreakerBoardStore(decorated, *c.Breaker, logger)
		logger.Debug("Applied circuit breaker decorator to BoardStore")
	}
	if c.Cache != nil {
		decorated = NewCachingBoardStore(decorated, c.Cache, c.Caching, logger)
		logger.Debug("Applied caching decorator to BoardStore")
	}
	if c.Recorder != nil {
		decorated = NewInstrumentedBoardStore(decorated, c.Recorder)
		logger.Debug("Applied metrics decorator to BoardStore")
	}
	if c.Tracer != nil {
		decorated = NewTracingBoardStore(decorated, c.Tracer)
		logger.Debug("Applied tracing decorator to BoardStore")
	}
	return decorated
}
