// Package selection implements the selection controller that sits between a
// presentation layer and a remote paginated catalog.
//
// A Controller owns three pieces of state: the cursor (the page currently
// displayed), the records of that page with the catalog snapshot they came
// from, and the selection set of record IDs. Selection is independent of the
// cursor: navigating pages never changes it.
//
// SelectFirstN replaces the selection with the IDs of the first n records of
// the catalog. It always restarts from page 0 and walks forward one page at a
// time until n IDs are collected or a short page ends the catalog. A fetch
// error mid-walk keeps the IDs collected so far.
//
// Every operation is tagged with a sequence token. A response is committed
// only if its operation is still the newest owner of the state it writes, so
// a slow response can never overwrite the effects of a later request.
//
//	ctl, err := selection.New(client)
//	if err != nil {
//	    return err
//	}
//	unsubscribe := ctl.Subscribe(render)
//	defer unsubscribe()
//
//	if err := ctl.GoToPage(ctx, 0); err != nil {
//	    log.Warn().Err(err).Msg("load failed")
//	}
//	err = ctl.SelectFirstN(ctx, 15) // cursor moves to page 1
package selection
