package circuitbreaker

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

type Settings struct {
	Name string
	// MaxRequests is the number of trial requests let through while half-open.
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ConsecutiveFailures trips the breaker. Zero disables tripping.
	ConsecutiveFailures uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		MaxRequests:         3,
		Interval:            10 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// CircuitBreaker fails fast while the backend is unreachable. It never retries.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// Failure marks an error that should count against the breaker. Errors not wrapped with it
// (for example a 404 from the backend) pass through without tripping it.
type Failure struct{ Err error }

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	threshold := settings.ConsecutiveFailures
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return threshold > 0 && counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				_, failed := err.(*Failure)
				return !failed
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

// Execute runs fn unless the breaker is open. A *Failure returned by fn is unwrapped.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if f, ok := err.(*Failure); ok {
		return f.Err
	}
	return err
}

func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// Open reports whether err came from the breaker refusing the call.
func Open(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
