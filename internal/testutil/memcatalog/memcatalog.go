// Package memcatalog is an in-memory catalog.PageFetcher for tests that need
// precise control over fetch ordering and failures.
package memcatalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/catalog-select/internal/testutil"
	"github.com/Sternrassler/catalog-select/pkg/catalog"
)

// Catalog serves total records with IDs testutil.IDAt(0..total-1).
type Catalog struct {
	mu       sync.Mutex
	total    int
	failures map[int]error
	gates    map[int]chan struct{}
	calls    []int
	started  chan int
}

// New creates a catalog of total records.
func New(total int) *Catalog {
	return &Catalog{
		total:    total,
		failures: make(map[int]error),
		gates:    make(map[int]chan struct{}),
		started:  make(chan int, 1024),
	}
}

// SetTotal changes the catalog size.
func (c *Catalog) SetTotal(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = total
}

// Fail makes fetches of page index return err.
func (c *Catalog) Fail(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[index] = err
}

// Hold blocks fetches of page index until the returned release is called.
func (c *Catalog) Hold(index int) (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.gates[index] = gate
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if c.gates[index] == gate {
				delete(c.gates, index)
			}
			c.mu.Unlock()
			close(gate)
		})
	}
}

// Started delivers the page index of every fetch as it begins.
func (c *Catalog) Started() <-chan int {
	return c.started
}

// Calls returns the page indexes fetched so far, in order.
func (c *Catalog) Calls() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.calls...)
}

// FetchPage implements catalog.PageFetcher.
func (c *Catalog) FetchPage(ctx context.Context, pageIndex, pageSize int) (*catalog.Page, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: page index %d, page size %d", catalog.ErrInvalidPageRequest, pageIndex, pageSize)
	}

	c.mu.Lock()
	c.calls = append(c.calls, pageIndex)
	gate := c.gates[pageIndex]
	c.mu.Unlock()

	select {
	case c.started <- pageIndex:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &catalog.FetchError{Class: catalog.ErrorClassNetwork, PageIndex: pageIndex, Message: "request failed", Err: ctx.Err()}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[pageIndex]; err != nil {
		return nil, err
	}

	page := &catalog.Page{Index: pageIndex, Size: pageSize, Total: c.total, Records: []catalog.Record{}}
	for pos := pageIndex * pageSize; pos < (pageIndex+1)*pageSize && pos < c.total; pos++ {
		page.Records = append(page.Records, catalog.Record{
			ID:    testutil.IDAt(pos),
			Title: fmt.Sprintf("Artwork %d", pos),
		})
	}
	return page, nil
}
