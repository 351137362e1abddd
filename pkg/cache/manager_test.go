package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips the test when
// none is running. The integration suite runs against a container instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	// Ping to check connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{
		Endpoint: "/api/v1/artworks",
	}

	entry := &Entry{
		Data:         []byte(`{"data":[{"id":1}],"pagination":{"total":1}}`),
		ETag:         `"abc123"`,
		Expires:      time.Now().Add(5 * time.Minute),
		LastModified: time.Now().Add(-1 * time.Hour),
		StatusCode:   200,
		Headers:      http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:     time.Now(),
	}

	// Set entry
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Get entry
	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Verify data
	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
	if retrieved.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", retrieved.ETag, entry.ETag)
	}
	if retrieved.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode mismatch: got %d, want %d", retrieved.StatusCode, entry.StatusCode)
	}
}

func bytesWritten(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := CacheBytesWritten.WithLabelValues("redis").Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestManager_Set_CountsBytesWritten(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{Endpoint: "/api/v1/artworks", Query: url.Values{"page": []string{"9"}}}
	entry := &Entry{
		Data:       []byte(`{"data":[],"pagination":{"total":0}}`),
		ETag:       `"bytes"`,
		Expires:    time.Now().Add(time.Minute),
		StatusCode: 200,
	}

	before := bytesWritten(t)
	for range 2 {
		if err := manager.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	written := bytesWritten(t) - before

	// overwrites are counted, the counter never reflects what Redis holds
	if written <= float64(2*len(entry.Data)) {
		t.Errorf("bytes written = %v, want more than %d", written, 2*len(entry.Data))
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{
		Endpoint: "/api/v1/missing",
	}

	_, err := manager.Get(ctx, key)
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_ExpiredEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{
		Endpoint: "/api/v1/artworks/expiring",
	}

	// Create already expired entry
	entry := &Entry{
		Data:    []byte(`{"test": "data"}`),
		Expires: time.Now().Add(-1 * time.Hour), // Already expired
	}

	// Set should not cache expired entries
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Get should return cache miss
	_, err := manager.Get(ctx, key)
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{
		Endpoint: "/api/v1/artworks/expiring",
	}

	entry := &Entry{
		Data:    []byte(`{"test": "data"}`),
		Expires: time.Now().Add(5 * time.Minute),
	}

	// Set entry
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Verify it exists
	if _, err := manager.Get(ctx, key); err != nil {
		t.Fatalf("Get after Set failed: %v", err)
	}

	// Delete entry
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// Verify it's gone
	_, err := manager.Get(ctx, key)
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_UpdateTTL(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{
		Endpoint: "/api/v1/artworks/expiring",
	}

	// Create entry with initial TTL
	entry := &Entry{
		Data:    []byte(`{"test": "data"}`),
		Expires: time.Now().Add(5 * time.Minute),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Update TTL to a new expiration time
	newExpires := time.Now().Add(10 * time.Minute)
	if err := manager.UpdateTTL(ctx, key, newExpires); err != nil {
		t.Fatalf("UpdateTTL failed: %v", err)
	}

	// Get entry and verify new expiration
	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after UpdateTTL failed: %v", err)
	}

	// Check that the new expires time is close to what we set
	diff := retrieved.Expires.Sub(newExpires)
	if diff < -1*time.Second || diff > 1*time.Second {
		t.Errorf("Expires time not updated correctly: got %v, want %v (diff: %v)",
			retrieved.Expires, newExpires, diff)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{
		Endpoint: "/api/v1/artworks/expiring",
	}

	err := manager.Set(ctx, key, nil)
	if err == nil {
		t.Error("Set with nil entry should return error")
	}
}

func TestManager_WithPrefix_IsolatesKeys(t *testing.T) {
	client := setupTestRedis(t)
	base := NewManager(client)
	other := base.WithPrefix("catalog-test")
	ctx := context.Background()

	key := Key{
		Endpoint: "/api/v1/artworks",
		Query:    url.Values{"page": []string{"1"}, "limit": []string{"12"}},
	}
	entry := &Entry{
		Data:    []byte(`{"data":[]}`),
		ETag:    `"v1"`,
		Expires: time.Now().Add(time.Minute),
	}

	if err := other.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := base.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("default prefix Get = %v, want ErrCacheMiss", err)
	}
	got, err := other.Get(ctx, key)
	if err != nil {
		t.Fatalf("prefixed Get failed: %v", err)
	}
	if got.ETag != `"v1"` {
		t.Errorf("ETag = %q, want %q", got.ETag, `"v1"`)
	}

	exists, err := client.Exists(ctx, "catalog-test:api/v1/artworks:limit=12:page=1").Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists != 1 {
		t.Errorf("prefixed key not found in redis")
	}
}

func TestManager_Get_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{Endpoint: "/api/v1/artworks"}
	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get = %v, want ErrInvalidEntry", err)
	}
}
