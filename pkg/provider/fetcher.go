/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fetcher.go
Description: Page fetching for catalog scraping. HTTPFetcher issues plain GET requests
with the configured User-Agent.
*/

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gvieralopez/goflowdroid/pkg/useragent"
)

// Page is a fetched catalog page
type Page struct {
	URL    string
	Status int
	Body   []byte
}

// OK reports whether the page was served with a 2xx status
func (p *Page) OK() bool {
	return p.Status >= 200 && p.Status < 300
}

// Fetcher retrieves catalog pages. HTTP error statuses are reported in
// Page.Status, not as errors.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher fetches pages with net/http
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher sending userAgent, bounded by timeout
func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Transport: useragent.RoundTripper(userAgent, http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return &Page{URL: url, Status: resp.StatusCode, Body: body}, nil
}
