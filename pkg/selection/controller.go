package selection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/Sternrassler/catalog-select/pkg/pagination"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the number of records per page.
const DefaultPageSize = 12

// State is a copy of the controller state for rendering.
type State struct {
	// Cursor is the zero-based index of the displayed page.
	Cursor int `json:"cursor"`

	// Records are the records of the displayed page.
	Records []catalog.Record `json:"records"`

	// Selection holds the selected IDs in ascending order.
	Selection []int64 `json:"selection"`

	TotalCount int `json:"total_count"`
	PageSize   int `json:"page_size"`
	PageCount  int `json:"page_count"`

	// Loading is true while the newest page-changing request is in flight.
	Loading bool `json:"loading"`

	// Version increases with every state change.
	Version uint64 `json:"version"`

	// LastError is the error of the most recent failed operation, cleared by
	// the next successful fetch.
	LastError error `json:"-"`
}

// IsSelected reports whether id is in the state's selection.
func (s State) IsSelected(id int64) bool {
	for _, sel := range s.Selection {
		if sel == id {
			return true
		}
	}
	return false
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the page size.
func WithPageSize(size int) Option {
	return func(c *Controller) {
		c.pageSize = size
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMaxWalkPages bounds the number of pages a single SelectFirstN walk
// may fetch.
func WithMaxWalkPages(pages int) Option {
	return func(c *Controller) {
		c.maxWalkPages = pages
	}
}

// WithWalkPageTimeout bounds each page fetch of a SelectFirstN walk,
// retries included. Zero leaves fetches bounded only by the caller's context.
func WithWalkPageTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.walkPageTimeout = d
	}
}

// Controller owns the cursor, the displayed page and the selection.
// All methods are safe for concurrent use.
type Controller struct {
	fetcher      catalog.PageFetcher
	pageSize     int
	maxWalkPages int
	logger       zerolog.Logger

	walkPageTimeout time.Duration

	mu             sync.Mutex
	seq            uint64
	viewOwner      uint64
	selectionOwner uint64
	loadingToken   uint64
	cursor         int
	records        []catalog.Record
	snapshot       catalog.Snapshot
	hasSnapshot    bool
	selection      *Set
	lastErr        error
	version        uint64

	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSubID   int

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a controller that fetches pages through fetcher.
func New(fetcher catalog.PageFetcher, opts ...Option) (*Controller, error) {
	if fetcher == nil {
		return nil, errors.New("page fetcher is required")
	}

	c := &Controller{
		fetcher:      fetcher,
		pageSize:     DefaultPageSize,
		maxWalkPages: pagination.DefaultMaxPages,
		logger:       log.With().Str("component", "selection-controller").Logger(),
		records:      []catalog.Record{},
		selection:    NewSet(),
		subscribers:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive (got %d)", c.pageSize)
	}
	if c.maxWalkPages <= 0 {
		c.maxWalkPages = pagination.DefaultMaxPages
	}
	if c.walkPageTimeout < 0 {
		return nil, fmt.Errorf("walk page timeout must not be negative (got %s)", c.walkPageTimeout)
	}
	c.snapshot = catalog.Snapshot{PageSize: c.pageSize}

	return c, nil
}

// PageSize returns the configured page size.
func (c *Controller) PageSize() int {
	return c.pageSize
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// IsSelected reports whether id is currently selected.
func (c *Controller) IsSelected(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Contains(id)
}

// SelectedCount returns the size of the selection.
func (c *Controller) SelectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Len()
}

// Subscribe registers fn to receive the state after every change. States are
// delivered in Version order; a state older than one already delivered is
// skipped. fn must not call back into the controller synchronously.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, id)
			c.subMu.Unlock()
		})
	}
}

// GoToPage fetches page index and makes it the displayed page. The index is
// clamped to the known page range. Selection is never changed. On a fetch
// error the displayed page is kept and the error is returned. A response
// overtaken by a newer page request returns ErrSuperseded.
func (c *Controller) GoToPage(ctx context.Context, index int) error {
	logger := c.opLogger(opGoToPage)

	c.mu.Lock()
	token := c.nextTokenLocked()
	c.viewOwner = token
	c.loadingToken = token
	if c.hasSnapshot {
		index = c.snapshot.ClampPage(index)
	} else if index < 0 {
		index = 0
	}
	st := c.publishLocked()
	c.mu.Unlock()
	c.notify(st)

	logger.Debug().Int("page", index).Uint64("token", token).Msg("Fetching page")

	page, err := c.fetcher.FetchPage(ctx, index, c.pageSize)
	if err == nil {
		snap := catalog.Snapshot{TotalCount: page.Total, PageSize: c.pageSize}
		if clamped := snap.ClampPage(index); clamped != index {
			if !c.ownsView(token) {
				return c.discard(logger, opGoToPage, token)
			}
			logger.Debug().
				Int("requested", index).
				Int("clamped", clamped).
				Int("total", page.Total).
				Msg("Catalog shrank - fetching last page")
			index = clamped
			page, err = c.fetcher.FetchPage(ctx, index, c.pageSize)
		}
	}

	c.mu.Lock()
	if c.viewOwner != token {
		c.mu.Unlock()
		return c.discard(logger, opGoToPage, token)
	}
	c.loadingToken = 0

	if err != nil {
		c.lastErr = err
		st := c.publishLocked()
		c.mu.Unlock()
		c.notify(st)

		operationsTotal.WithLabelValues(opGoToPage, resultError).Inc()
		logger.Error().Err(err).Int("page", index).Msg("Page fetch failed")
		return fmt.Errorf("go to page %d: %w", index, err)
	}

	c.snapshot = catalog.Snapshot{TotalCount: page.Total, PageSize: c.pageSize}
	c.hasSnapshot = true
	c.cursor = c.snapshot.ClampPage(index)
	c.records = page.Records
	c.lastErr = nil
	st = c.publishLocked()
	c.mu.Unlock()
	c.notify(st)

	operationsTotal.WithLabelValues(opGoToPage, resultOK).Inc()
	logger.Info().
		Int("page", st.Cursor).
		Int("records", len(st.Records)).
		Int("total", st.TotalCount).
		Msg("Page loaded")
	return nil
}

// ToggleOne flips the membership of id. It supersedes a running
// SelectFirstN walk.
func (c *Controller) ToggleOne(id int64) {
	c.mu.Lock()
	c.selectionOwner = c.nextTokenLocked()
	selected := c.selection.Toggle(id)
	size := c.selection.Len()
	st := c.publishLocked()
	c.mu.Unlock()
	c.notify(st)

	selectionSize.Set(float64(size))
	operationsTotal.WithLabelValues(opToggle, resultOK).Inc()
	c.logger.Debug().Int64("id", id).Bool("selected", selected).Int("size", size).Msg("Selection toggled")
}

// ClearSelection empties the selection. It supersedes a running
// SelectFirstN walk.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.selectionOwner = c.nextTokenLocked()
	c.selection = NewSet()
	st := c.publishLocked()
	c.mu.Unlock()
	c.notify(st)

	selectionSize.Set(0)
	operationsTotal.WithLabelValues(opClear, resultOK).Inc()
	c.logger.Debug().Msg("Selection cleared")
}

// SelectFirstNInput parses text with ParseCount and calls SelectFirstN.
func (c *Controller) SelectFirstNInput(ctx context.Context, text string) error {
	n, err := ParseCount(text)
	if err != nil {
		operationsTotal.WithLabelValues(opSelectFirstN, resultInvalid).Inc()
		c.logger.Debug().Err(err).Msg("Rejected selection count")
		return err
	}
	return c.SelectFirstN(ctx, n)
}

// SelectFirstN replaces the selection with the IDs of the first n records
// in catalog order, walking pages from 0. Fewer than n IDs are selected when
// the catalog is shorter. On a fetch error the IDs collected before the
// failure become the selection and the error is returned. The cursor moves
// to the page holding the last selected record, reusing the walked page.
func (c *Controller) SelectFirstN(ctx context.Context, n int) error {
	if n <= 0 {
		operationsTotal.WithLabelValues(opSelectFirstN, resultInvalid).Inc()
		return &InvalidInputError{Input: strconv.Itoa(n), Reason: "must be positive"}
	}

	logger := c.opLogger(opSelectFirstN)

	c.mu.Lock()
	token := c.nextTokenLocked()
	c.viewOwner = token
	c.selectionOwner = token
	c.loadingToken = token
	st := c.publishLocked()
	c.mu.Unlock()
	c.notify(st)

	logger.Debug().Int("n", n).Uint64("token", token).Msg("Starting page walk")

	var (
		collected = make([]int64, 0, min(n, c.pageSize*4))
		seen      = make(map[int64]struct{})
		pages     = make(map[int][]catalog.Record)
	)

	walker := pagination.NewWalker(c.fetcher, pagination.Config{
		PageSize: c.pageSize,
		MaxPages: c.maxWalkPages,
		Timeout:  c.walkPageTimeout,
		Continue: func() bool { return c.ownsWalk(token) },
	}).WithLogger(logger)

	result, walkErr := walker.Walk(ctx, func(page *catalog.Page) bool {
		walkPagesTotal.Inc()
		pages[page.Index] = page.Records
		for _, id := range page.IDs() {
			if len(collected) == n {
				break
			}
			// a live catalog can shift a record across a page boundary
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			collected = append(collected, id)
		}
		return len(collected) >= n
	})

	c.mu.Lock()
	if c.viewOwner != token || c.selectionOwner != token {
		if c.loadingToken == token {
			c.loadingToken = 0
			st := c.publishLocked()
			c.mu.Unlock()
			c.notify(st)
		} else {
			c.mu.Unlock()
		}
		return c.discard(logger, opSelectFirstN, token)
	}
	c.loadingToken = 0

	c.selection = NewSet(collected...)
	if result.LastPage != nil {
		c.snapshot = catalog.Snapshot{TotalCount: result.LastPage.Total, PageSize: c.pageSize}
		c.hasSnapshot = true
	}
	if k := len(collected); k > 0 {
		cursor := c.snapshot.ClampPage((k - 1) / c.pageSize)
		if records, ok := pages[cursor]; ok {
			c.cursor = cursor
			c.records = records
		}
	} else if result.LastPage != nil {
		// page 0 came back empty
		c.cursor = 0
		c.records = result.LastPage.Records
	}
	if walkErr != nil {
		c.lastErr = walkErr
	} else {
		c.lastErr = nil
	}
	st = c.publishLocked()
	c.mu.Unlock()
	c.notify(st)

	selectionSize.Set(float64(len(collected)))

	if walkErr != nil {
		operationsTotal.WithLabelValues(opSelectFirstN, resultPartial).Inc()
		logger.Error().
			Err(walkErr).
			Int("n", n).
			Int("selected", len(collected)).
			Int("pages", result.PagesFetched).
			Msg("Page walk failed - keeping partial selection")
		return fmt.Errorf("select first %d: %w", n, walkErr)
	}

	operationsTotal.WithLabelValues(opSelectFirstN, resultOK).Inc()
	logger.Info().
		Int("n", n).
		Int("selected", len(collected)).
		Int("pages", result.PagesFetched).
		Bool("exhausted", result.Exhausted).
		Int("cursor", st.Cursor).
		Msg("Selection replaced")
	return nil
}

func (c *Controller) nextTokenLocked() uint64 {
	c.seq++
	return c.seq
}

func (c *Controller) ownsView(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewOwner == token
}

func (c *Controller) ownsWalk(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewOwner == token && c.selectionOwner == token
}

func (c *Controller) discard(logger zerolog.Logger, op string, token uint64) error {
	operationsTotal.WithLabelValues(op, resultSuperseded).Inc()
	logger.Warn().Uint64("token", token).Msg("Discarding superseded response")
	return ErrSuperseded
}

func (c *Controller) opLogger(op string) zerolog.Logger {
	return c.logger.With().
		Str("op", op).
		Str("op_id", ulid.Make().String()).
		Logger()
}

// publishLocked bumps the version and returns a copy of the state.
func (c *Controller) publishLocked() State {
	c.version++
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	records := make([]catalog.Record, len(c.records))
	copy(records, c.records)
	return State{
		Cursor:     c.cursor,
		Records:    records,
		Selection:  c.selection.IDs(),
		TotalCount: c.snapshot.TotalCount,
		PageSize:   c.pageSize,
		PageCount:  c.snapshot.PageCount(),
		Loading:    c.loadingToken != 0,
		Version:    c.version,
		LastError:  c.lastErr,
	}
}

func (c *Controller) notify(st State) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if st.Version <= c.delivered {
		return
	}
	c.delivered = st.Version

	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
