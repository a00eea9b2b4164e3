// Package circuitbreaker guards the delivery providers. When a vendor keeps
// failing, the breaker opens and sends fail fast instead of waiting out the
// call timeout for every recipient in the batch.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/provider"
)

// ErrCircuitOpen is reported when the breaker rejects a send.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds the configuration for a Breaker.
type Config struct {
	// Name identifies the breaker, normally the provider name.
	Name string

	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32

	// RecoveryTimeout is how long to stay open before letting a trial request through.
	RecoveryTimeout time.Duration

	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration

	// HalfOpenMaxRequests is the number of trial requests allowed while half-open.
	HalfOpenMaxRequests uint32
}

// DefaultConfig returns production defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxFailures:         5,
		RecoveryTimeout:     30 * time.Second,
		Interval:            60 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Breaker is a named gobreaker over provider outcomes.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[provider.Outcome]
	name   string
	logger *zap.Logger
}

// New creates a breaker and registers its state gauge.
func New(cfg Config, logger *zap.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests == 0 {
		cfg.HalfOpenMaxRequests = 1
	}

	b := &Breaker{name: cfg.Name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[provider.Outcome](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerState(name, int(to))
		},
	})
	metrics.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))

	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Do runs send through the breaker. Skipped outcomes count as successes;
// only attempted-and-failed sends move the breaker toward open.
func (b *Breaker) Do(send func() provider.Outcome) (provider.Outcome, bool) {
	out, err := b.cb.Execute(func() (provider.Outcome, error) {
		out := send()
		if out.Err != "" {
			return out, errors.New(out.Err)
		}
		return out, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return provider.Outcome{}, false
	}
	return out, true
}
