package providers

import (
	"github.com/sony/gobreaker"
)

// Breaker is a source's circuit breaker. It remembers the half-open request
// budget so callers can tell ahead of time whether a call would be rejected.
type Breaker struct {
	*gobreaker.CircuitBreaker
	maxRequests uint32
}

// NewBreaker creates a breaker from gobreaker settings
func NewBreaker(settings gobreaker.Settings) *Breaker {
	maxRequests := settings.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	return &Breaker{
		CircuitBreaker: gobreaker.NewCircuitBreaker(settings),
		maxRequests:    maxRequests,
	}
}

// Admits reports whether a call made now would reach the source. An open
// breaker rejects everything; a half-open one only until its budget is used.
func (b *Breaker) Admits() bool {
	switch b.State() {
	case gobreaker.StateOpen:
		return false
	case gobreaker.StateHalfOpen:
		return b.Counts().Requests < b.maxRequests
	}
	return true
}
