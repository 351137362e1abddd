// Package metrics exposes the Prometheus registry used by catalog-select.
// Metrics are defined in their respective packages (catalog, cache,
// ratelimit, selection) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry. All metrics are registered
// on it via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/catalog):
//   - catalog_requests_total{status} (Counter): Listing requests by HTTP status
//   - catalog_request_duration_seconds (Histogram): Listing request duration
//   - catalog_fetch_errors_total{class} (Counter): Fetch errors by class
//
// Retry Metrics (pkg/catalog):
//   - catalog_retries_total{error_class} (Counter): Retry attempts by error class
//   - catalog_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - catalog_retry_exhausted_total{error_class} (Counter): Fetches that exhausted max attempts
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - catalog_cache_misses_total (Counter): Cache misses
//   - catalog_cache_bytes_written_total{layer="redis"} (Counter): Serialized bytes stored
//   - catalog_conditional_requests_total (Counter): Requests sent with validators
//   - catalog_304_responses_total (Counter): 304 Not Modified responses
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_remaining (Gauge): Requests left in the server window
//   - catalog_rate_limit_blocks_total (Counter): Requests refused on an exhausted window
//   - catalog_rate_limit_throttles_total (Counter): Requests delayed near exhaustion
//   - catalog_rate_limit_wait_seconds (Histogram): Time spent in the token bucket
//
// Selection Metrics (pkg/selection):
//   - selection_operations_total{op, result} (Counter): Controller operations
//   - selection_walk_pages_total (Counter): Pages fetched by select-first-N walks
//   - selection_size (Gauge): Selected IDs after the last committed change
//
// Example Prometheus Queries:
//
//   # Revalidation rate
//   rate(catalog_304_responses_total[5m]) / rate(catalog_requests_total[5m])
//
//   # Average pages per walk
//   rate(selection_walk_pages_total[5m]) /
//   rate(selection_operations_total{op="select_first_n"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
//
//   # Superseded responses
//   sum by (op) (rate(selection_operations_total{result="superseded"}[5m]))
