package gorient

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker guarding session acquisition.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests have been observed.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns conservative defaults: trip at an 80%
// failure rate over at least 5 requests, retry half-open after a minute.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerPool wraps a Pool with a circuit breaker so a struggling database
// fails fast instead of queueing every caller behind connection timeouts.
type BreakerPool struct {
	inner  Pool
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerPool wraps pool with a circuit breaker. A nil logger disables
// logging.
func NewBreakerPool(inner Pool, config BreakerConfig, logger *zap.Logger) *BreakerPool {
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
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("session pool breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerPool{inner: inner, cb: cb, logger: logger}
}

func (p *BreakerPool) Acquire(ctx context.Context) (Session, error) {
	result, err := p.cb.Execute(func() (any, error) {
		return p.inner.Acquire(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(Session), nil
}
