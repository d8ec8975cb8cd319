/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: browser.go
Description: BrowserFetcher renders catalog pages in headless Chrome through chromedp,
for catalogs that build their listing with JavaScript. The page status is taken from
the main document response.
*/

package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher fetches pages with a shared headless browser
type BrowserFetcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	alloc   context.CancelFunc
	timeout time.Duration
}

// NewBrowserFetcher launches a headless browser sending userAgent. Each
// Fetch is bounded by timeout when it is positive.
func NewBrowserFetcher(ctx context.Context, userAgent string, timeout time.Duration) (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// the first Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &BrowserFetcher{
		ctx:     browserCtx,
		cancel:  browserCancel,
		alloc:   allocCancel,
		timeout: timeout,
	}, nil
}

// Fetch implements Fetcher. Every page is loaded in a fresh tab.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	defer cancel()
	if b.timeout > 0 {
		var timeoutCancel context.CancelFunc
		tabCtx, timeoutCancel = context.WithTimeout(tabCtx, b.timeout)
		defer timeoutCancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		mu     sync.Mutex
		status int64
	)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			mu.Lock()
			if status == 0 {
				status = e.Response.Status
			}
			mu.Unlock()
		}
	})

	var html string
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return &Page{URL: url, Status: int(status), Body: []byte(html)}, nil
}

// Close shuts the browser down
func (b *BrowserFetcher) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.alloc != nil {
		b.alloc()
	}
	return nil
}
