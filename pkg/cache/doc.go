// Package cache provides an optional Redis-backed response cache for catalog
// listing requests.
//
// The cache never answers a request on its own. A stored entry only lets the
// client send a conditional request (If-None-Match / If-Modified-Since); the
// cached body is reused when the catalog API answers 304 Not Modified. Every
// page fetch therefore still reflects the live catalog.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "/api/v1/artworks",
//		Query:    url.Values{"page": []string{"1"}, "limit": []string{"12"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// plain request
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{layer="redis"}
//   - catalog_cache_misses_total
//   - catalog_cache_bytes_written_total{layer="redis"}
//   - catalog_conditional_requests_total
//   - catalog_304_responses_total
//   - catalog_cache_errors_total{operation}
package cache
