// Package circuitbreaker wraps github.com/sony/gobreaker for provider and database calls.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned without calling the protected function while the circuit is open
// or the half-open probe budget is used up.
var ErrOpen = errors.New("circuit breaker open")

// Config describes when a breaker trips and how it recovers.
type Config struct {
	Name string

	// MaxRequests caps the probes let through while half-open.
	MaxRequests uint32

	// Interval resets the closed-state counters. Zero never resets them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold trips the breaker once failures/requests reaches it.
	FailureThreshold float64

	// MinRequests must be seen in the current interval before the ratio counts.
	MinRequests uint32

	// OnStateChange runs after the transition has been logged.
	OnStateChange func(name string, from, to gobreaker.State)
}

// ChannelConfig returns the configuration for one notification channel provider.
// Providers recover slowly, so the open state lasts longer than for the database.
func ChannelConfig(channel string) Config {
	return Config{
		Name:             "notify-" + channel,
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.7,
		MinRequests:      6,
	}
}

func (c Config) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureThreshold
}

// CircuitBreaker is a named gobreaker.CircuitBreaker that reports ErrOpen when
// it rejects a call.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New builds a breaker from cfg. A function that fails with context.Canceled
// is counted as a success: the caller gave up, the dependency did not fail.
func New(cfg Config) *CircuitBreaker {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.readyToTrip,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker transition",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	})
	return &CircuitBreaker{breaker: breaker, name: cfg.Name}
}

// Execute calls fn unless the breaker rejects it.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := cb.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrOpen, err)
	}
	return res, err
}

// Run is Execute for functions without a result.
func (cb *CircuitBreaker) Run(fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

func (cb *CircuitBreaker) Name() string { return cb.name }

// IsOpen reports whether calls are currently rejected outright.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == gobreaker.StateOpen
}
