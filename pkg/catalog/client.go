// Package catalog provides the remote catalog client: one HTTP request per
// page against a paginated listing endpoint, decoded into typed pages, with
// optional response caching and request pacing.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-select/pkg/cache"
	"github.com/Sternrassler/catalog-select/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for the Art Institute of Chicago public API.
const (
	DefaultBaseURL  = "https://api.artic.edu"
	DefaultEndpoint = "/api/v1/artworks"
	DefaultTimeout  = 30 * time.Second

	// maxBodyBytes bounds a single listing response.
	maxBodyBytes = 16 << 20
)

// DefaultFields is the field projection requested from the listing endpoint.
var DefaultFields = []string{"id", "title", "artist_display", "category_titles"}

// Prometheus metrics for catalog requests.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog listing requests by HTTP status",
	}, []string{"status"})

	catalogRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog listing request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	catalogFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fetch_errors_total",
		Help: "Total failed page fetches by error class",
	}, []string{"class"})
)

// Client fetches catalog pages.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	listingURL  *url.URL
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API origin, e.g. "https://api.artic.edu".
	BaseURL string

	// Endpoint is the listing path, e.g. "/api/v1/artworks".
	Endpoint string

	// Fields is the field projection sent as the "fields" query parameter.
	// Empty sends no projection.
	Fields []string

	// User-Agent header (REQUIRED)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	Timeout time.Duration

	// Redis enables the conditional-request response cache. Optional.
	Redis       *redis.Client
	CachePrefix string

	// RateLimit configures local pacing and server header tracking.
	RateLimit ratelimit.Config
}

// DefaultConfig returns a configuration for the public artic.edu API.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Endpoint:  DefaultEndpoint,
		Fields:    append([]string(nil), DefaultFields...),
		UserAgent: userAgent,
		Timeout:   DefaultTimeout,
		RateLimit: ratelimit.DefaultConfig(),
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	listingURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	if listingURL.Scheme == "" || listingURL.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: ratelimit.NewTracker(cfg.RateLimit, logger),
		listingURL:  listingURL,
		config:      cfg,
		logger:      logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis).WithPrefix(cfg.CachePrefix)
	}

	return c, nil
}

// FetchPage fetches the zero-based page pageIndex. Every failure is
// returned as a *FetchError; invalid arguments return ErrInvalidPageRequest
// without a network call. FetchPage never retries.
func (c *Client) FetchPage(ctx context.Context, pageIndex, pageSize int) (*Page, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: page index %d, page size %d", ErrInvalidPageRequest, pageIndex, pageSize)
	}

	query := url.Values{}
	// the listing endpoint counts pages from 1
	query.Set("page", strconv.Itoa(pageIndex+1))
	query.Set("limit", strconv.Itoa(pageSize))
	if len(c.config.Fields) > 0 {
		query.Set("fields", strings.Join(c.config.Fields, ","))
	}

	body, err := c.get(ctx, query, pageIndex)
	if err != nil {
		return nil, err
	}

	page, err := decodePage(body, pageIndex, pageSize)
	if err != nil {
		catalogFetchErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().Err(err).Int("page", pageIndex).Msg("Malformed listing response")
		return nil, err
	}

	c.logger.Debug().
		Int("page", pageIndex).
		Int("records", len(page.Records)).
		Int("total", page.Total).
		Msg("Fetched catalog page")

	return page, nil
}

// get performs a listing request with pacing, conditional revalidation, and
// error classification, and returns the response body of a 200 (or a cached
// body confirmed by a 304).
func (c *Client) get(ctx context.Context, query url.Values, pageIndex int) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: pacing
	if err := c.rateLimiter.Wait(ctx); err != nil {
		class := ErrorClassNetwork
		if errors.Is(err, ratelimit.ErrBlocked) {
			class = ErrorClassRateLimit
		}
		return nil, c.fail(&FetchError{Class: class, PageIndex: pageIndex, Message: "request not sent", Err: err})
	}

	u := *c.listingURL
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, c.fail(&FetchError{Class: ErrorClassNetwork, PageIndex: pageIndex, Message: "create request", Err: err})
	}

	// Step 2: cache lookup
	cacheKey := cache.Key{Endpoint: c.listingURL.Path, Query: query}
	var cachedEntry *cache.Entry
	if c.cache != nil {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", cacheKey.String()).Msg("Cache get error")
		}
		if cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Int("page", pageIndex).
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	// Step 3: identify ourselves
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("AIC-User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", u.String()).Msg("Executing listing request")

	// Step 4: send
	resp, err := c.httpClient.Do(req)
	if err != nil {
		catalogRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&FetchError{Class: ErrorClassNetwork, PageIndex: pageIndex, Message: "request failed", Err: err})
	}
	defer resp.Body.Close()

	catalogRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.rateLimiter.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	// Step 5: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		if cachedEntry == nil {
			return nil, c.fail(&FetchError{
				Class:      ErrorClassDecode,
				StatusCode: resp.StatusCode,
				PageIndex:  pageIndex,
				Message:    "304 Not Modified without a cached response",
			})
		}
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Int("page", pageIndex).Msg("304 Not Modified - using cache")

		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}
		return cachedEntry.Data, nil
	}

	// Step 6: HTTP errors
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := resp.Status
		if s := strings.TrimSpace(string(snippet)); s != "" {
			msg = msg + ": " + s
		}
		return nil, c.fail(&FetchError{
			Class:      classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			PageIndex:  pageIndex,
			Message:    msg,
		})
	}

	// Step 7: success
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.fail(&FetchError{
			Class:      ErrorClassNetwork,
			StatusCode: resp.StatusCode,
			PageIndex:  pageIndex,
			Message:    "read response body",
			Err:        err,
		})
	}

	if c.cache != nil {
		c.store(ctx, cacheKey, resp, body)
	}

	return body, nil
}

// store caches a 200 response when it carries a validator; without one the
// entry could never be revalidated.
func (c *Client) store(ctx context.Context, key cache.Key, resp *http.Response, body []byte) {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		return
	}
	if !entry.Validatable() || entry.TTL() <= 0 {
		return
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
		return
	}
	c.logger.Debug().Str("key", key.String()).Dur("ttl", entry.TTL()).Msg("Cached response")
}

func (c *Client) fail(fe *FetchError) error {
	catalogFetchErrorsTotal.WithLabelValues(string(fe.Class)).Inc()
	c.logger.Warn().
		Int("page", fe.PageIndex).
		Int("status", fe.StatusCode).
		Str("error_class", string(fe.Class)).
		Err(fe.Err).
		Msg(fe.Message)
	return fe
}

// classifyStatus maps a non-200 status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		// 1xx/2xx/3xx other than 200 and 304 are not a listing payload
		return ErrorClassDecode
	}
}

// listingResponse is the wire shape of the listing endpoint.
type listingResponse struct {
	Data       *[]Record `json:"data"`
	Pagination *struct {
		Total *int `json:"total"`
	} `json:"pagination"`
}

func decodePage(body []byte, pageIndex, pageSize int) (*Page, error) {
	var lr listingResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, &FetchError{Class: ErrorClassDecode, StatusCode: http.StatusOK, PageIndex: pageIndex, Message: "decode listing", Err: err}
	}
	if lr.Data == nil {
		return nil, &FetchError{Class: ErrorClassDecode, StatusCode: http.StatusOK, PageIndex: pageIndex, Message: `listing has no "data" array`}
	}
	if lr.Pagination == nil || lr.Pagination.Total == nil {
		return nil, &FetchError{Class: ErrorClassDecode, StatusCode: http.StatusOK, PageIndex: pageIndex, Message: `listing has no "pagination.total"`}
	}
	if *lr.Pagination.Total < 0 {
		return nil, &FetchError{Class: ErrorClassDecode, StatusCode: http.StatusOK, PageIndex: pageIndex, Message: fmt.Sprintf("negative total %d", *lr.Pagination.Total)}
	}

	return &Page{
		Index:   pageIndex,
		Size:    pageSize,
		Records: *lr.Data,
		Total:   *lr.Pagination.Total,
	}, nil
}

// RateLimitState returns the last server-reported rate limit window.
func (c *Client) RateLimitState() ratelimit.State {
	return c.rateLimiter.State()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
