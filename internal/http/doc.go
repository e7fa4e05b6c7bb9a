// Package http provides the authenticated HTTP session used to talk to the
// metrics API.
//
// This package handles:
//   - Connection pooling shared by all fetch workers
//   - The x-api-key header on every request
//   - CSV export URLs ({host}{path}?a={symbol}[&i={resolution}]&f=csv)
//   - An optional global request rate cap
//   - Classifying failures as transport, protocol or timeout errors
//
// The client never retries on its own. Retry policy belongs to the caller,
// which decides per error class using [Classify].
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    Host:    "https://api.glassnode.com",
//	    APIKey:  key,
//	    Timeout: 5 * time.Minute,
//	})
//
//	body, err := client.FetchCSV(ctx, "/v1/metrics/market/price_usd_close", "BTC", "24h")
//	switch http.Classify(err) {
//	case http.ClassTimeout:   // transient, try again later
//	case http.ClassProtocol:  // non-2xx or malformed, replay would fail too
//	case http.ClassTransport: // connection-level failure
//	}
package http
