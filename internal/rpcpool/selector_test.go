package rpcpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"solana-trading-bot/internal/domain"
)

// fakeProber returns scripted statuses and counts probes.
type fakeProber struct {
	statuses []domain.EndpointStatus
	calls    atomic.Int32
}

func (f *fakeProber) Probe(ctx context.Context, endpoints []string) []domain.EndpointStatus {
	f.calls.Add(1)
	out := make([]domain.EndpointStatus, len(endpoints))
	copy(out, f.statuses)
	return out
}

func statuses(healthy map[string]time.Duration, endpoints ...string) []domain.EndpointStatus {
	out := make([]domain.EndpointStatus, len(endpoints))
	for i, e := range endpoints {
		lat, ok := healthy[e]
		out[i] = domain.EndpointStatus{Endpoint: e, Healthy: ok, Latency: lat}
	}
	return out
}

func TestNewSelectorRequiresEndpoints(t *testing.T) {
	if _, err := NewSelector(nil, &fakeProber{}, time.Minute); err != ErrNoEndpoints {
		t.Fatalf("err = %v, want ErrNoEndpoints", err)
	}
}

func TestSelectPicksFastestHealthy(t *testing.T) {
	endpoints := []string{"https://a", "https://b", "https://c"}
	prober := &fakeProber{statuses: statuses(map[string]time.Duration{
		"https://a": 90 * time.Millisecond,
		"https://b": 40 * time.Millisecond,
		"https://c": 120 * time.Millisecond,
	}, endpoints...)}

	s, err := NewSelector(endpoints, prober, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	sel, err := s.Select(context.Background())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Endpoint != "https://b" || !sel.Healthy {
		t.Errorf("selection = %+v, want healthy https://b", sel)
	}
}

func TestSelectCachesWithinTTL(t *testing.T) {
	endpoints := []string{"https://a", "https://b"}
	prober := &fakeProber{statuses: statuses(map[string]time.Duration{
		"https://a": 10 * time.Millisecond,
		"https://b": 50 * time.Millisecond,
	}, endpoints...)}

	s, err := NewSelector(endpoints, prober, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	first, _ := s.Select(context.Background())

	// Make a later probe favor b; the cache must mask it.
	prober.statuses = statuses(map[string]time.Duration{
		"https://b": 5 * time.Millisecond,
	}, endpoints...)
	now = now.Add(59 * time.Second)

	second, _ := s.Select(context.Background())
	if second != first {
		t.Errorf("cached selection changed: %+v vs %+v", second, first)
	}
	if prober.calls.Load() != 1 {
		t.Errorf("probe calls = %d, want 1 (cache hit)", prober.calls.Load())
	}

	// Past the TTL the pool is probed again.
	now = now.Add(2 * time.Second)
	third, _ := s.Select(context.Background())
	if third.Endpoint != "https://b" {
		t.Errorf("post-TTL selection = %+v, want https://b", third)
	}
	if prober.calls.Load() != 2 {
		t.Errorf("probe calls = %d, want 2", prober.calls.Load())
	}
}

func TestRefreshBypassesCache(t *testing.T) {
	endpoints := []string{"https://a", "https://b"}
	prober := &fakeProber{statuses: statuses(map[string]time.Duration{
		"https://a": 10 * time.Millisecond,
	}, endpoints...)}

	s, err := NewSelector(endpoints, prober, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Select(context.Background()); err != nil {
		t.Fatal(err)
	}

	prober.statuses = statuses(map[string]time.Duration{
		"https://b": 5 * time.Millisecond,
	}, endpoints...)

	sel, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sel.Endpoint != "https://b" {
		t.Errorf("refreshed selection = %+v, want https://b", sel)
	}
}

func TestSelectAllUnhealthyFallsBackWithoutCaching(t *testing.T) {
	endpoints := []string{"https://a", "https://b", "https://c"}
	prober := &fakeProber{statuses: statuses(nil, endpoints...)}

	s, err := NewSelector(endpoints, prober, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s.intn = func(n int) int { return 2 }

	sel, err := s.Select(context.Background())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Healthy {
		t.Error("fallback selection reported healthy")
	}
	if sel.Endpoint != "https://c" {
		t.Errorf("fallback endpoint = %q, want https://c", sel.Endpoint)
	}

	// Fallback must not be cached: a recovered endpoint wins next call.
	prober.statuses = statuses(map[string]time.Duration{
		"https://a": 20 * time.Millisecond,
	}, endpoints...)

	sel2, _ := s.Select(context.Background())
	if sel2.Endpoint != "https://a" || !sel2.Healthy {
		t.Errorf("selection after recovery = %+v, want healthy https://a", sel2)
	}
	if prober.calls.Load() != 2 {
		t.Errorf("probe calls = %d, want 2", prober.calls.Load())
	}
}

func TestSnapshotPreservesOrderAndSkipsCache(t *testing.T) {
	endpoints := []string{"https://a", "https://b", "https://c"}
	prober := &fakeProber{statuses: statuses(map[string]time.Duration{
		"https://b": 40 * time.Millisecond,
	}, endpoints...)}

	s, err := NewSelector(endpoints, prober, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	got := s.Snapshot(context.Background())
	if len(got) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(got))
	}
	for i, e := range endpoints {
		if got[i].Endpoint != e {
			t.Errorf("snapshot[%d].Endpoint = %q, want %q", i, got[i].Endpoint, e)
		}
	}
	if got[0].Healthy || !got[1].Healthy || got[2].Healthy {
		t.Errorf("snapshot health = %v, want only https://b healthy", got)
	}

	// Two snapshots mean two probes, regardless of TTL.
	s.Snapshot(context.Background())
	if prober.calls.Load() != 2 {
		t.Errorf("probe calls = %d, want 2", prober.calls.Load())
	}
}
