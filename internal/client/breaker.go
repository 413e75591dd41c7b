package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"odoo-proxy/internal/config"
	"odoo-proxy/internal/metrics"
)

// ErrCircuitOpen is returned when the breaker for an upstream host rejects a request.
var ErrCircuitOpen = errors.New("upstream circuit breaker is open")

// breakerSet holds one circuit breaker per upstream host. With per-request
// upstream resolution a single failing Odoo instance must not trip requests
// destined for another.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	settings config.CircuitBreakerConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func newBreakerSet(cfg config.CircuitBreakerConfig, logger *slog.Logger, m *metrics.Metrics) *breakerSet {
	return &breakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		settings: cfg,
		logger:   logger,
		metrics:  m,
	}
}

func (s *breakerSet) get(host string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[host]; ok {
		return cb
	}

	threshold := safeIntToUint32(s.settings.MaxFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     time.Duration(s.settings.OpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change",
				"host", name,
				"from", from.String(),
				"to", to.String(),
			)
			if s.metrics != nil {
				s.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
		IsSuccessful: func(err error) bool {
			// A client hanging up says nothing about the upstream's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	s.breakers[host] = cb
	return cb
}

func (s *breakerSet) do(host string, fn func() (*http.Response, error)) (*http.Response, error) {
	res, err := s.get(host).Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, host)
	}
	if err != nil {
		return nil, err
	}
	return res.(*http.Response), nil
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
