// Package testutil provides testing utilities for the catalog client and the
// selection controller.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// ListingPath is the path the mock serves the listing on.
const ListingPath = "/api/v1/artworks"

// idBase offsets record IDs from catalog positions so tests cannot confuse
// the two.
const idBase = 1000

// MockCatalog is a configurable mock of a paginated listing API.
type MockCatalog struct {
	server *httptest.Server

	mu          sync.RWMutex
	total       int
	version     int
	failures    map[int]int
	delays      map[int]time.Duration
	handlers    map[string]http.HandlerFunc
	rateHeaders map[string]string
	etags       bool

	// Tracking
	requestCount      int
	conditionalCount  int
	pageRequests      map[int]int
	lastRequestHeader http.Header
}

// NewMockCatalog starts a mock listing server holding total records.
func NewMockCatalog(total int) *MockCatalog {
	m := &MockCatalog{
		total:        total,
		failures:     make(map[int]int),
		delays:       make(map[int]time.Duration),
		handlers:     make(map[string]http.HandlerFunc),
		pageRequests: make(map[int]int),
		etags:        true,
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requestCount++
		m.lastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			m.conditionalCount++
		}
		handler, exists := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		if r.URL.Path != ListingPath {
			http.NotFound(w, r)
			return
		}
		m.listingHandler(w, r)
	}))

	return m
}

// URL returns the mock server base URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// IDAt returns the record ID at zero-based catalog position pos.
func IDAt(pos int) int64 {
	return int64(idBase + pos)
}

// FirstIDs returns the IDs of the first n records.
func FirstIDs(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = IDAt(i)
	}
	return ids
}

// SetTotal changes the catalog size, simulating live data. Cached ETags
// are invalidated.
func (m *MockCatalog) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
	m.version++
}

// FailPage makes requests for zero-based page index answer with status.
func (m *MockCatalog) FailPage(index, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[index] = status
}

// DelayPage delays responses for zero-based page index.
func (m *MockCatalog) DelayPage(index int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[index] = d
}

// DisableETags stops the mock from sending validators.
func (m *MockCatalog) DisableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = false
}

// SetRateLimitHeaders adds X-RateLimit-* headers to listing responses.
func (m *MockCatalog) SetRateLimitHeaders(limit, remaining, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateHeaders = map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(limit),
		"X-RateLimit-Remaining": strconv.Itoa(remaining),
		"X-RateLimit-Reset":     strconv.Itoa(resetSeconds),
	}
}

// SetHandler overrides the handler for a path.
func (m *MockCatalog) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetBody makes path answer with a fixed status and body.
func (m *MockCatalog) SetBody(path string, status int, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockCatalog) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ConditionalCount returns the number of conditional requests.
func (m *MockCatalog) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// PageRequests returns how often zero-based page index was requested.
func (m *MockCatalog) PageRequests(index int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageRequests[index]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockCatalog) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.pageRequests = make(map[int]int)
	m.lastRequestHeader = nil
}

type mockRecord struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	ArtistDisplay  string   `json:"artist_display"`
	CategoryTitles []string `json:"category_titles"`
}

type mockPagination struct {
	Total       int `json:"total"`
	Limit       int `json:"limit"`
	Offset      int `json:"offset"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
}

type mockListing struct {
	Pagination mockPagination `json:"pagination"`
	Data       []mockRecord   `json:"data"`
}

// listingHandler serves one-based ?page= and ?limit= like the artic.edu API.
func (m *MockCatalog) listingHandler(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 12)
	if page < 1 || limit < 1 {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"error":"Invalid page or limit"}`))
		return
	}
	index := page - 1

	m.mu.Lock()
	m.pageRequests[index]++
	total := m.total
	version := m.version
	failStatus := m.failures[index]
	delay := m.delays[index]
	etags := m.etags
	rateHeaders := m.rateHeaders
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	for k, v := range rateHeaders {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")

	if failStatus != 0 {
		w.WriteHeader(failStatus)
		_, _ = fmt.Fprintf(w, `{"status":%d,"error":"mock failure"}`, failStatus)
		return
	}

	etag := fmt.Sprintf(`"v%d-p%d-l%d-t%d"`, version, page, limit, total)
	if etags {
		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
	}

	offset := index * limit
	listing := mockListing{
		Pagination: mockPagination{
			Total:       total,
			Limit:       limit,
			Offset:      offset,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
		},
		Data: []mockRecord{},
	}
	for pos := offset; pos < offset+limit && pos < total; pos++ {
		listing.Data = append(listing.Data, mockRecord{
			ID:             IDAt(pos),
			Title:          fmt.Sprintf("Artwork %d", pos),
			ArtistDisplay:  fmt.Sprintf("Artist %d", pos%7),
			CategoryTitles: []string{"Category " + strconv.Itoa(pos%3)},
		})
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(listing)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
