// Package rpcpool selects the best Solana RPC endpoint from a
// configured pool by probing node health concurrently.
package rpcpool

import (
	"context"
	"sync"
	"time"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/solana"
)

// Prober measures health and latency of RPC endpoints.
type Prober interface {
	// Probe checks every endpoint concurrently. The result slice is
	// index-aligned with the input.
	Probe(ctx context.Context, endpoints []string) []domain.EndpointStatus
}

// HealthProber probes endpoints with the JSON-RPC getHealth method.
// Each probe is a single attempt; an endpoint that needs retries to
// answer is not a good trading endpoint.
type HealthProber struct {
	timeout time.Duration
}

// NewHealthProber creates a prober with the given per-request timeout.
func NewHealthProber(timeout time.Duration) *HealthProber {
	return &HealthProber{timeout: timeout}
}

// Probe implements Prober.
func (p *HealthProber) Probe(ctx context.Context, endpoints []string) []domain.EndpointStatus {
	results := make([]domain.EndpointStatus, len(endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			results[i] = p.probeOne(ctx, endpoint)
		}(i, endpoint)
	}
	wg.Wait()

	return results
}

func (p *HealthProber) probeOne(ctx context.Context, endpoint string) domain.EndpointStatus {
	client := solana.NewHTTPClient(endpoint,
		solana.WithTimeout(p.timeout),
		solana.WithMaxRetries(0),
	)

	start := time.Now()
	err := client.GetHealth(ctx)
	latency := time.Since(start)

	status := domain.EndpointStatus{
		Endpoint: endpoint,
		Healthy:  err == nil,
	}
	if status.Healthy {
		status.Latency = latency
	}
	return status
}

var _ Prober = (*HealthProber)(nil)
