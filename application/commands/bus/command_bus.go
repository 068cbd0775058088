package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	pkgerrors "flowboard/pkg/errors"

	"go.uber.org/zap"
)

// Command represents a command that changes state
type Command interface {
	Validate() error
}

// CommandHandler handles a specific command type
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) error
}

// CommandHandlerFunc is an adapter to allow functions to be used as handlers
type CommandHandlerFunc func(ctx context.Context, cmd Command) error

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// Middleware defines command middleware
type Middleware func(next CommandHandler) CommandHandler

// CommandBus dispatches commands to their handlers
type CommandBus struct {
	handlers    map[reflect.Type]CommandHandler
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewCommandBus creates a new command bus. Middleware wraps every handler,
// outermost first.
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handlers:    make(map[reflect.Type]CommandHandler),
		middlewares: middlewares,
	}
}

// Register registers a handler for a command type
func (b *CommandBus) Register(cmdType Command, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(cmdType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for command type %s", t.Name())
	}

	for i := len(b.middlewares) - 1; i >= 0; i-- {
		handler = b.middlewares[i](handler)
	}
	b.handlers[t] = handler
	return nil
}

// Send validates a command and dispatches it to its handler
func (b *CommandBus) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !exists {
		return pkgerrors.NewInternalError(fmt.Sprintf("no handler registered for command type %T", cmd))
	}

	return handler.Handle(ctx, cmd)
}

// LoggingMiddleware logs command execution
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
			cmdType := reflect.TypeOf(cmd).Name()
			start := time.Now()

			err := next.Handle(ctx, cmd)
			if err != nil {
				logger.Warn("Command failed",
					zap.String("type", cmdType),
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err),
				)
				return err
			}

			logger.Debug("Command succeeded",
				zap.String("type", cmdType),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
	}
}

// Recorder observes handled commands
type Recorder interface {
	ObserveCommand(name string, err error, duration time.Duration)
}

// MetricsMiddleware records command counts and durations
func MetricsMiddleware(recorder Recorder) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
			start := time.Now()
			err := next.Handle(ctx, cmd)
			recorder.ObserveCommand(reflect.TypeOf(cmd).Name(), err, time.Since(start))
			return err
		})
	}
}
