package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of catalog response cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of catalog response cache misses",
		},
	)

	// CacheBytesWritten counts serialized entry bytes stored, overwrites
	// included
	CacheBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_bytes_written_total",
			Help: "Total bytes written to the catalog response cache",
		},
		[]string{"layer"},
	)

	// ConditionalRequestsSent tracks requests sent with a validator
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_conditional_requests_total",
			Help: "Total number of listing requests sent with If-None-Match or If-Modified-Since",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_304_responses_total",
			Help: "Total number of 304 Not Modified listing responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
