package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RPCRequestsTotal counts raw JSON-RPC requests by chain and method.
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_rpc_requests_total",
			Help: "Number of JSON-RPC requests issued, by chain and method.",
		},
		[]string{"chain", "method"},
	)

	// RPCRetriesTotal counts retried RPC attempts by chain and method.
	RPCRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_rpc_retries_total",
			Help: "Number of retried JSON-RPC attempts, by chain and method.",
		},
		[]string{"chain", "method"},
	)

	// RPCErrorsTotal counts RPC calls that exhausted all retries.
	RPCErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_rpc_errors_total",
			Help: "Number of JSON-RPC calls that failed after all retries.",
		},
		[]string{"chain", "method"},
	)

	// CacheHitsTotal counts RPC response cache hits.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_rpc_cache_hits_total",
			Help: "Number of RPC response cache hits.",
		},
	)

	// CacheMissesTotal counts RPC response cache misses.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_rpc_cache_misses_total",
			Help: "Number of RPC response cache misses.",
		},
	)

	// ChainScansTotal counts chain scans by outcome.
	ChainScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_chain_scans_total",
			Help: "Number of chain activity scans, by chain and outcome.",
		},
		[]string{"chain", "outcome"},
	)

	// PositionsFetchedTotal counts positions returned by protocol handlers.
	PositionsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_positions_fetched_total",
			Help: "Number of positions fetched, by chain and protocol.",
		},
		[]string{"chain", "protocol"},
	)
)

var registerOnce sync.Once

// MustRegisterMetrics registers all collectors with the default registry.
// Safe to call more than once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RPCRequestsTotal,
			RPCRetriesTotal,
			RPCErrorsTotal,
			CacheHitsTotal,
			CacheMissesTotal,
			ChainScansTotal,
			PositionsFetchedTotal,
		)
	})
}
