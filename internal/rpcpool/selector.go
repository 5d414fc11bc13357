package rpcpool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"solana-trading-bot/internal/domain"
)

// ErrNoEndpoints is returned when the selector has no endpoints to probe.
var ErrNoEndpoints = errors.New("rpcpool: no endpoints configured")

// Selector picks the fastest healthy endpoint from the pool and caches
// the selection for a TTL. When no endpoint is healthy it falls back to
// a random endpoint without caching it, so the next call probes again.
type Selector struct {
	endpoints []string
	prober    Prober
	ttl       time.Duration

	// injectable for tests
	now  func() time.Time
	intn func(n int) int

	mu     sync.Mutex
	cached *domain.Selection
}

// NewSelector creates a Selector over the given endpoints.
func NewSelector(endpoints []string, prober Prober, ttl time.Duration) (*Selector, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	return &Selector{
		endpoints: append([]string(nil), endpoints...),
		prober:    prober,
		ttl:       ttl,
		now:       time.Now,
		intn:      rand.Intn,
	}, nil
}

// Select returns the current best endpoint. A cached healthy selection
// is reused until the TTL elapses.
func (s *Selector) Select(ctx context.Context) (domain.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.cached.CheckedAt) < s.ttl {
		return *s.cached, nil
	}
	return s.selectLocked(ctx)
}

// Refresh discards any cached selection and probes the pool again.
func (s *Selector) Refresh(ctx context.Context) (domain.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	return s.selectLocked(ctx)
}

// selectLocked probes all endpoints and picks the fastest healthy one.
// Caller holds s.mu.
func (s *Selector) selectLocked(ctx context.Context) (domain.Selection, error) {
	statuses := s.prober.Probe(ctx, s.endpoints)

	best := -1
	for i, st := range statuses {
		if !st.Healthy {
			continue
		}
		if best == -1 || st.Latency < statuses[best].Latency {
			best = i
		}
	}

	if best == -1 {
		// All endpoints down. Return a random one so callers can still
		// try, but do not cache it: the next call probes again.
		i := s.intn(len(s.endpoints))
		return domain.Selection{
			Endpoint:  s.endpoints[i],
			Healthy:   false,
			CheckedAt: s.now(),
		}, nil
	}

	sel := domain.Selection{
		Endpoint:  statuses[best].Endpoint,
		Latency:   statuses[best].Latency,
		Healthy:   true,
		CheckedAt: s.now(),
	}
	s.cached = &sel
	return sel, nil
}

// Snapshot probes every endpoint and returns their statuses in
// configuration order. It never consults or updates the cache.
func (s *Selector) Snapshot(ctx context.Context) []domain.EndpointStatus {
	return s.prober.Probe(ctx, s.endpoints)
}

// Endpoints returns the configured endpoints in order.
func (s *Selector) Endpoints() []string {
	return append([]string(nil), s.endpoints...)
}
