// Package fetcher downloads listing pages politely: per-host rate limiting
// that backs off on 429, retries for transient failures and a per-host
// circuit breaker.
package fetcher

import "context"

// Page is a fetched document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher defines the interface for downloading listing pages.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
