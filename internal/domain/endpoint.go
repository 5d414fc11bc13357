package domain

import "time"

// EndpointStatus is the result of one liveness probe against an RPC endpoint.
// Ephemeral: recomputed each probe round, never persisted.
// Latency is meaningful only when Healthy is true.
type EndpointStatus struct {
	Endpoint string
	Latency  time.Duration
	Healthy  bool
}

// Selection is a chosen RPC endpoint with the latency that won it the pick.
// CheckedAt is the probe time used for cache TTL accounting.
type Selection struct {
	Endpoint  string
	Latency   time.Duration
	Healthy   bool
	CheckedAt time.Time
}
