package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	pkgerrors "flowboard/pkg/errors"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// Middleware defines query middleware
type Middleware func(next QueryHandler) QueryHandler

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers    map[reflect.Type]QueryHandler
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewQueryBus creates a new query bus
func NewQueryBus(middlewares ...Middleware) *QueryBus {
	return &QueryBus{
		handlers:    make(map[reflect.Type]QueryHandler),
		middlewares: middlewares,
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}

	for i := len(b.middlewares) - 1; i >= 0; i-- {
		handler = b.middlewares[i](handler)
	}
	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("no handler registered for query type %T", query))
	}

	return handler.Handle(ctx, query)
}

// Recorder observes handled queries
type Recorder interface {
	ObserveQuery(name string, err error, duration time.Duration)
}

// MetricsMiddleware records query counts and durations
func MetricsMiddleware(recorder Recorder) Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
			start := time.Now()
			result, err := next.Handle(ctx, query)
			recorder.ObserveQuery(reflect.TypeOf(query).Name(), err, time.Since(start))
			return result, err
		})
	}
}
