// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC endpoint selection
	EndpointProbes    *prometheus.CounterVec
	EndpointSelected  *prometheus.CounterVec
	SelectionFallback prometheus.Counter
	ProbeLatency      *prometheus.HistogramVec

	// Scanner
	ScansTotal       prometheus.Counter
	TokensDiscovered prometheus.Counter
	TokensRefreshed  prometheus.Counter
	ScanErrors       prometheus.Counter

	// Trading
	TokensAnalyzed prometheus.Counter
	BuyOrders      prometheus.Counter
	SellOrders     prometheus.Counter
	SwapFailures   prometheus.Counter
	DailyCapHalts  prometheus.Counter
	InvestedUSD    prometheus.Counter

	// Positions
	PositionChecks prometheus.Counter
	PositionRatio  prometheus.Histogram

	// API
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_trading_bot"
	}

	return &Metrics{
		EndpointProbes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "endpoint_probes_total",
			Help:      "Total endpoint health probes by result",
		}, []string{"endpoint", "result"}),
		EndpointSelected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "endpoint_selected_total",
			Help:      "Times each endpoint was selected as best",
		}, []string{"endpoint"}),
		SelectionFallback: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "selection_fallback_total",
			Help:      "Selections where no endpoint was healthy",
		}),
		ProbeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "probe_latency_seconds",
			Help:      "Health probe latency by endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		ScansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Total scan cycles executed",
		}),
		TokensDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tokens_discovered_total",
			Help:      "New tokens discovered and stored",
		}),
		TokensRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tokens_refreshed_total",
			Help:      "Known tokens with refreshed market data",
		}),
		ScanErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scan_errors_total",
			Help:      "Scan cycles that ended with an error",
		}),

		TokensAnalyzed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "tokens_analyzed_total",
			Help:      "Tokens evaluated for investment",
		}),
		BuyOrders: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "buy_orders_total",
			Help:      "Completed buy orders",
		}),
		SellOrders: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "sell_orders_total",
			Help:      "Completed sell orders",
		}),
		SwapFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "swap_failures_total",
			Help:      "Swaps that failed to quote, build, or submit",
		}),
		DailyCapHalts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "daily_cap_halts_total",
			Help:      "Order batches halted by the daily investment cap",
		}),
		InvestedUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "invested_usd_total",
			Help:      "Cumulative USD invested through buy orders",
		}),

		PositionChecks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "checks_total",
			Help:      "Open position check passes",
		}),
		PositionRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "price_ratio",
			Help:      "Observed price ratio of open positions at check time",
			Buckets:   []float64{0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
