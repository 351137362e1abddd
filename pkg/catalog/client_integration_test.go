//go:build integration

package catalog

import (
	"context"
	"net/url"
	"testing"

	"github.com/Sternrassler/catalog-select/internal/testutil"
	"github.com/Sternrassler/catalog-select/pkg/cache"
	"github.com/Sternrassler/catalog-select/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(ctx)
	})

	return client
}

func newCachedClient(t *testing.T, mock *testutil.MockCatalog, redisClient *redis.Client) *Client {
	t.Helper()

	cfg := DefaultConfig("TestApp/1.0.0 (integration@test.com)")
	cfg.BaseURL = mock.URL()
	cfg.Endpoint = testutil.ListingPath
	cfg.Redis = redisClient
	cfg.RateLimit = ratelimit.Config{}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestIntegration_ConditionalRevalidation(t *testing.T) {
	redisClient := setupRedisContainer(t)
	mock := testutil.NewMockCatalog(30)
	defer mock.Close()

	client := newCachedClient(t, mock, redisClient)
	ctx := context.Background()

	// Request 1: plain request, response cached
	first, err := client.FetchPage(ctx, 1, 12)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	if mock.ConditionalCount() != 0 {
		t.Errorf("ConditionalCount after request 1 = %d, want 0", mock.ConditionalCount())
	}

	key := cache.Key{
		Endpoint: testutil.ListingPath,
		Query: url.Values{
			"page":   []string{"2"},
			"limit":  []string{"12"},
			"fields": []string{"id,title,artist_display,category_titles"},
		},
	}
	entry, err := client.GetCache().Get(ctx, key)
	if err != nil {
		t.Fatalf("Cache lookup failed: %v", err)
	}
	if entry.ETag == "" {
		t.Error("cached entry should carry the ETag")
	}

	// Request 2: conditional, answered with 304 and served from cache
	second, err := client.FetchPage(ctx, 1, 12)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2 (cache must never skip the round trip)", mock.RequestCount())
	}
	if mock.ConditionalCount() != 1 {
		t.Errorf("ConditionalCount = %d, want 1", mock.ConditionalCount())
	}
	if len(second.Records) != len(first.Records) || second.Records[0].ID != first.Records[0].ID {
		t.Errorf("cached page differs: %v vs %v", second.IDs(), first.IDs())
	}
}

func TestIntegration_LiveChangeInvalidatesCache(t *testing.T) {
	redisClient := setupRedisContainer(t)
	mock := testutil.NewMockCatalog(30)
	defer mock.Close()

	client := newCachedClient(t, mock, redisClient)
	ctx := context.Background()

	if _, err := client.FetchPage(ctx, 0, 12); err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}

	mock.SetTotal(5)

	page, err := client.FetchPage(ctx, 0, 12)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	if page.Total != 5 || len(page.Records) != 5 {
		t.Errorf("page after change: total %d, %d records, want 5/5", page.Total, len(page.Records))
	}
}

func TestIntegration_NoValidatorNotCached(t *testing.T) {
	redisClient := setupRedisContainer(t)
	mock := testutil.NewMockCatalog(30)
	defer mock.Close()
	mock.DisableETags()

	client := newCachedClient(t, mock, redisClient)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.FetchPage(ctx, 0, 12); err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
	}

	if mock.ConditionalCount() != 0 {
		t.Errorf("ConditionalCount = %d, want 0", mock.ConditionalCount())
	}
	keys, err := redisClient.Keys(ctx, "catalog:*").Result()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("cached keys = %v, want none", keys)
	}
}
