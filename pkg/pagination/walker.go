package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned when Config.Continue ended the walk.
var ErrStopped = errors.New("page walk stopped")

// DefaultMaxPages bounds a single walk.
const DefaultMaxPages = 10_000

// progressEvery controls how often long walks log progress.
const progressEvery = 50

// Config holds walker configuration.
type Config struct {
	// PageSize is the number of records requested per page.
	PageSize int

	// MaxPages bounds the number of fetches in one walk.
	MaxPages int

	// Timeout per page fetch. Zero means no per-page timeout.
	Timeout time.Duration

	// Continue is consulted before every fetch after the first. Returning
	// false ends the walk with ErrStopped. Nil always continues.
	Continue func() bool
}

// DefaultConfig returns the default walker configuration for pageSize.
func DefaultConfig(pageSize int) Config {
	return Config{
		PageSize: pageSize,
		MaxPages: DefaultMaxPages,
	}
}

// VisitFunc receives each fetched page in order and returns true to stop.
type VisitFunc func(page *catalog.Page) (stop bool)

// Result summarises a walk.
type Result struct {
	// PagesFetched counts successful fetches.
	PagesFetched int

	// LastPage is the last successfully fetched page, nil if none.
	LastPage *catalog.Page

	// Exhausted is true when a short page ended the walk.
	Exhausted bool

	// Satisfied is true when the visitor ended the walk.
	Satisfied bool
}

// Walker walks pages sequentially.
type Walker struct {
	fetcher catalog.PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewWalker creates a new walker.
func NewWalker(fetcher catalog.PageFetcher, config Config) *Walker {
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}
	return &Walker{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "page-walker").Logger(),
	}
}

// WithLogger returns a copy of the walker that logs to logger.
func (w *Walker) WithLogger(logger zerolog.Logger) *Walker {
	cp := *w
	cp.logger = logger
	return &cp
}

// Walk fetches pages 0, 1, 2, ... and hands each to visit.
func (w *Walker) Walk(ctx context.Context, visit VisitFunc) (Result, error) {
	var result Result

	if w.config.PageSize <= 0 {
		return result, fmt.Errorf("%w: page size %d", catalog.ErrInvalidPageRequest, w.config.PageSize)
	}

	start := time.Now()

	for index := 0; index < w.config.MaxPages; index++ {
		if index > 0 && w.config.Continue != nil && !w.config.Continue() {
			w.logger.Debug().
				Int("pages_fetched", result.PagesFetched).
				Msg("Walk stopped before next fetch")
			return result, ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := w.fetch(ctx, index)
		if err != nil {
			w.logger.Warn().
				Err(err).
				Int("page", index).
				Int("pages_fetched", result.PagesFetched).
				Msg("Page fetch failed - returning partial walk")
			return result, fmt.Errorf("walk page %d: %w", index, err)
		}

		result.PagesFetched++
		result.LastPage = page

		if visit(page) {
			result.Satisfied = true
			break
		}
		if page.Short() {
			result.Exhausted = true
			break
		}

		if result.PagesFetched%progressEvery == 0 {
			w.logger.Info().
				Int("fetched", result.PagesFetched).
				Int("total", page.Total).
				Msg("Walk progress")
		}
	}

	w.logger.Debug().
		Int("pages", result.PagesFetched).
		Bool("exhausted", result.Exhausted).
		Bool("satisfied", result.Satisfied).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return result, nil
}

func (w *Walker) fetch(ctx context.Context, index int) (*catalog.Page, error) {
	if w.config.Timeout <= 0 {
		return w.fetcher.FetchPage(ctx, index, w.config.PageSize)
	}
	pageCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()
	return w.fetcher.FetchPage(pageCtx, index, w.config.PageSize)
}
