package decorators

import (
	"context"
	"errors"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreakerConfig holds configuration for the store circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig returns a default configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreakerBoardStore stops calling a failing store for a while.
// Rejected calls return an UnavailableError.
type CircuitBreakerBoardStore struct {
	base ports.BoardStore
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreakerBoardStore wraps base with a circuit breaker
func NewCircuitBreakerBoardStore(base ports.BoardStore, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerBoardStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isHealthyOutcome,
	})
	return &CircuitBreakerBoardStore{base: base, cb: cb}
}

// isHealthyOutcome treats caller mistakes as successes; only store
// faults count toward tripping.
func isHealthyOutcome(err error) bool {
	if err == nil {
		return true
	}
	return pkgerrors.IsNotFound(err) ||
		pkgerrors.IsValidation(err) ||
		pkgerrors.IsConflict(err) ||
		errors.Is(err, context.Canceled)
}

// State reports the breaker state, used by readiness checks
func (s *CircuitBreakerBoardStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *CircuitBreakerBoardStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.NewUnavailableError("board store").WithCause(err)
	}
	return result, err
}

// Create implements ports.BoardStore
func (s *CircuitBreakerBoardStore) Create(ctx context.Context, board ports.StoredBoard) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.base.Create(ctx, board)
	})
	return err
}

// Load implements ports.BoardStore
func (s *CircuitBreakerBoardStore) Load(ctx context.Context, userID string, id valueobjects.BoardID) (*ports.StoredBoard, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.base.Load(ctx, userID, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ports.StoredBoard), nil
}

// Save implements ports.BoardStore
func (s *CircuitBreakerBoardStore) Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.base.Save(ctx, userID, id, content)
	})
	return err
}

// List implements ports.BoardStore
func (s *CircuitBreakerBoardStore) List(ctx context.Context, userID string) ([]ports.BoardSummary, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.base.List(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]ports.BoardSummary), nil
}

// Delete implements ports.BoardStore
func (s *CircuitBreakerBoardStore) Delete(ctx context.Context, userID string, id valueobjects.BoardID) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.base.Delete(ctx, userID, id)
	})
	return err
}
