package services

import (
	"sync"
	"time"

	"github.com/jstittsworth/cricklytics/internal/providers"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// CircuitBreakerService hands out one breaker per upstream source
type CircuitBreakerService struct {
	mu       sync.Mutex
	breakers map[string]*providers.Breaker
	settings gobreaker.Settings
	logger   *logrus.Logger
}

func NewCircuitBreakerService(threshold int, timeout time.Duration, logger *logrus.Logger) *CircuitBreakerService {
	if threshold <= 0 {
		threshold = 1
	}

	settings := gobreaker.Settings{
		MaxRequests: uint32(threshold),
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"source":    name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &CircuitBreakerService{
		breakers: make(map[string]*providers.Breaker),
		settings: settings,
		logger:   logger,
	}
}

// Breaker returns the breaker for source, creating it on first use
func (cb *CircuitBreakerService) Breaker(source string) *providers.Breaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if b, ok := cb.breakers[source]; ok {
		return b
	}
	settings := cb.settings
	settings.Name = source
	b := providers.NewBreaker(settings)
	cb.breakers[source] = b
	return b
}

// GetState returns the current state of a circuit breaker
func (cb *CircuitBreakerService) GetState(source string) gobreaker.State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if b, ok := cb.breakers[source]; ok {
		return b.State()
	}
	return gobreaker.StateClosed
}

// GetCounts returns the current counts for a circuit breaker
func (cb *CircuitBreakerService) GetCounts(source string) gobreaker.Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if b, ok := cb.breakers[source]; ok {
		return b.Counts()
	}
	return gobreaker.Counts{}
}
