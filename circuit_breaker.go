package cik

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker wraps a request/response exchange. When the breaker is
// open, Execute fails fast without touching the connection.
//
// Satisfied by *gobreaker.CircuitBreaker[any].
type CircuitBreaker interface {
	Execute(req func() (any, error)) (any, error)
}

// NewCircuitBreakerConfig returns a factory for Config.NewCircuitBreaker.
// The breaker trips after at least 3 requests with a failure ratio of 60%
// or more. Soft conditions do not count as failures; only hard faults do.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[any](settings)
	}
}
