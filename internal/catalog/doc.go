// Package catalog retrieves and filters the list of dataset endpoints the
// API publishes.
//
// The filtered list is persisted as endpoints.json next to the downloaded
// data and is the input of every scrape run.
//
// # Usage
//
//	endpoints, err := catalog.Fetch(ctx, client)
//	if err != nil {
//	    return err
//	}
//
//	endpoints, err = catalog.Filter{
//	    Assets: []string{"BTC", "ETH"},
//	    Tiers:  []int{1, 2},
//	    Path:   "/v1/metrics/market",
//	}.Apply(endpoints)
//
//	data, err := catalog.Encode(endpoints)
//
// # Filters
//
// Asset filtering also narrows each endpoint's asset list, so a later scrape
// only requests the chosen symbols. Path patterns are regular expressions
// anchored at the start of the path.
package catalog
