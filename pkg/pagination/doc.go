// Package pagination walks a paginated catalog forward from the first page.
//
// A walk fetches pages strictly one at a time: the next request is only
// issued after the previous one completed, so at most one request is
// outstanding and visit order equals catalog order.
//
// Example usage:
//
//	walker := pagination.NewWalker(client, pagination.DefaultConfig(12))
//	result, err := walker.Walk(ctx, func(page *catalog.Page) bool {
//		ids = append(ids, page.IDs()...)
//		return len(ids) >= n
//	})
//
// A walk ends when:
//   - the visitor returns true
//   - a page holds fewer records than the page size (catalog exhausted)
//   - Config.Continue reports false before the next fetch (superseded)
//   - Config.MaxPages pages were fetched
//   - a fetch fails (the error is returned with the pages visited so far)
package pagination
