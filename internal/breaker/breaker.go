package breaker

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds circuit breaker tuning for the LLM port
type Config struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold trips the breaker once this failure ratio is reached
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig returns conservative defaults for an LLM-backed call
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,                // probes allowed in half-open state
		Interval:         30 * time.Second, // stats window before reset
		Timeout:          45 * time.Second, // open -> half-open delay
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Breaker wraps an unreliable upstream call. When the upstream degrades,
// the breaker opens and callers fail fast instead of burning stage budgets.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(config Config) *Breaker {
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
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("⚠️ Circuit breaker '%s' state changed from %v to %v", name, from, to)
		},
	})
	return &Breaker{cb: cb}
}

// Execute runs fn under the breaker. ErrOpenState and ErrTooManyRequests
// come back unchanged so callers can distinguish fast-fail from real errors.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return b.cb.Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn(ctx)
	})
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// IsOpen reports whether calls are currently being rejected
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}
