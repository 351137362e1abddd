package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultPrefix is the namespace for all cache keys.
const DefaultPrefix = "catalog"

// Key identifies a cached listing response.
type Key struct {
	// Endpoint is the listing path (e.g., "/api/v1/artworks")
	Endpoint string

	// Query holds the request query parameters (page, limit, fields)
	Query url.Values
}

// String generates a deterministic cache key string.
//
// Example:
//
//	catalog:api/v1/artworks:limit=12:page=1
func (k Key) String() string {
	return k.withPrefix(DefaultPrefix)
}

func (k Key) withPrefix(prefix string) string {
	parts := []string{prefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), k.Query[name]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
