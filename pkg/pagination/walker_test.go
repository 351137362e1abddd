package pagination

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-select/internal/testutil"
	"github.com/Sternrassler/catalog-select/internal/testutil/memcatalog"
	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectAll(ids *[]int64) VisitFunc {
	return func(page *catalog.Page) bool {
		*ids = append(*ids, page.IDs()...)
		return false
	}
}

func TestWalk_VisitsPagesInOrderUntilExhausted(t *testing.T) {
	cat := memcatalog.New(30)
	walker := NewWalker(cat, DefaultConfig(12))

	var ids []int64
	result, err := walker.Walk(context.Background(), collectAll(&ids))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, cat.Calls())
	assert.Equal(t, 3, result.PagesFetched)
	assert.True(t, result.Exhausted)
	assert.False(t, result.Satisfied)
	assert.Equal(t, testutil.FirstIDs(30), ids)
	require.NotNil(t, result.LastPage)
	assert.Equal(t, 2, result.LastPage.Index)
}

func TestWalk_ExactMultipleEndsOnEmptyPage(t *testing.T) {
	cat := memcatalog.New(24)
	walker := NewWalker(cat, DefaultConfig(12))

	var ids []int64
	result, err := walker.Walk(context.Background(), collectAll(&ids))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, cat.Calls())
	assert.True(t, result.Exhausted)
	assert.Len(t, ids, 24)
	assert.Empty(t, result.LastPage.Records)
}

func TestWalk_VisitorStops(t *testing.T) {
	cat := memcatalog.New(100)
	walker := NewWalker(cat, DefaultConfig(12))

	result, err := walker.Walk(context.Background(), func(page *catalog.Page) bool {
		return page.Index == 1
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, cat.Calls())
	assert.True(t, result.Satisfied)
	assert.False(t, result.Exhausted)
}

func TestWalk_FetchErrorKeepsProgress(t *testing.T) {
	cat := memcatalog.New(100)
	boom := &catalog.FetchError{Class: catalog.ErrorClassServer, StatusCode: 500, PageIndex: 2}
	cat.Fail(2, boom)
	walker := NewWalker(cat, DefaultConfig(12))

	var ids []int64
	result, err := walker.Walk(context.Background(), collectAll(&ids))

	require.Error(t, err)
	assert.True(t, catalog.IsFetchError(err))
	assert.Equal(t, 2, result.PagesFetched)
	assert.Len(t, ids, 24)
}

func TestWalk_ContinueStopsBeforeNextFetch(t *testing.T) {
	cat := memcatalog.New(100)
	var allowed atomic.Int32
	allowed.Store(2)

	cfg := DefaultConfig(12)
	cfg.Continue = func() bool {
		return allowed.Add(-1) > 0
	}
	walker := NewWalker(cat, cfg)

	result, err := walker.Walk(context.Background(), func(*catalog.Page) bool { return false })

	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, []int{0, 1}, cat.Calls())
	assert.Equal(t, 2, result.PagesFetched)
}

func TestWalk_FirstFetchIgnoresContinue(t *testing.T) {
	cat := memcatalog.New(5)
	cfg := DefaultConfig(12)
	cfg.Continue = func() bool { return false }
	walker := NewWalker(cat, cfg)

	result, err := walker.Walk(context.Background(), func(*catalog.Page) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesFetched)
	assert.True(t, result.Exhausted)
}

func TestWalk_MaxPages(t *testing.T) {
	cat := memcatalog.New(1000)
	cfg := DefaultConfig(10)
	cfg.MaxPages = 3
	walker := NewWalker(cat, cfg)

	result, err := walker.Walk(context.Background(), func(*catalog.Page) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 3, result.PagesFetched)
	assert.False(t, result.Exhausted)
	assert.False(t, result.Satisfied)
}

func TestWalk_InvalidPageSize(t *testing.T) {
	walker := NewWalker(memcatalog.New(10), Config{PageSize: 0})

	_, err := walker.Walk(context.Background(), func(*catalog.Page) bool { return false })
	assert.True(t, errors.Is(err, catalog.ErrInvalidPageRequest))
}

func TestWalk_CancelledContext(t *testing.T) {
	cat := memcatalog.New(100)
	walker := NewWalker(cat, DefaultConfig(12))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := walker.Walk(ctx, func(*catalog.Page) bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cat.Calls())
}

func TestWalk_PageTimeout(t *testing.T) {
	cat := memcatalog.New(100)
	release := cat.Hold(1)
	defer release()

	cfg := DefaultConfig(12)
	cfg.Timeout = 20 * time.Millisecond
	walker := NewWalker(cat, cfg)

	result, err := walker.Walk(context.Background(), func(*catalog.Page) bool { return false })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, catalog.IsFetchError(err))
	assert.Equal(t, 1, result.PagesFetched)
	assert.Equal(t, 0, result.LastPage.Index)
}
