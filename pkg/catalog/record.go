package catalog

import "context"

// Record is a single catalog entry. Identity is ID; the display fields are
// carried through for presentation only.
type Record struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	ArtistDisplay  string   `json:"artist_display"`
	CategoryTitles []string `json:"category_titles"`
}

// Page is one page of the catalog as returned by a single listing request.
type Page struct {
	// Index is the zero-based page index.
	Index int

	// Size is the nominal page size the page was requested with.
	Size int

	// Records are the page's records in catalog order. The last page may
	// hold fewer than Size records.
	Records []Record

	// Total is the catalog total count reported by this response. It may
	// differ between calls.
	Total int
}

// IDs returns the record identifiers in page order.
func (p *Page) IDs() []int64 {
	ids := make([]int64, len(p.Records))
	for i, r := range p.Records {
		ids[i] = r.ID
	}
	return ids
}

// Short reports whether the page holds fewer records than its nominal size,
// which marks the end of the catalog.
func (p *Page) Short() bool {
	return len(p.Records) < p.Size
}

// Snapshot is the catalog shape derived from the most recent fetch.
type Snapshot struct {
	TotalCount int `json:"total_count"`
	PageSize   int `json:"page_size"`
}

// PageCount returns ceil(TotalCount / PageSize).
func (s Snapshot) PageCount() int {
	if s.PageSize <= 0 || s.TotalCount <= 0 {
		return 0
	}
	return (s.TotalCount + s.PageSize - 1) / s.PageSize
}

// ClampPage clamps index into [0, PageCount-1]. An empty catalog clamps
// every index to 0.
func (s Snapshot) ClampPage(index int) int {
	if index < 0 {
		return 0
	}
	if last := s.PageCount() - 1; last >= 0 && index > last {
		return last
	}
	if s.PageCount() == 0 {
		return 0
	}
	return index
}

// PageFetcher fetches a single page of the catalog.
type PageFetcher interface {
	// FetchPage fetches the zero-based page pageIndex with pageSize records
	// per page.
	FetchPage(ctx context.Context, pageIndex, pageSize int) (*Page, error)
}

// PageFetcherFunc adapts a function to the PageFetcher interface.
type PageFetcherFunc func(ctx context.Context, pageIndex, pageSize int) (*Page, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc) FetchPage(ctx context.Context, pageIndex, pageSize int) (*Page, error) {
	return f(ctx, pageIndex, pageSize)
}
