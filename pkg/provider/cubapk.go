/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cubapk.go
Description: Provider for cubapk.com. Walks the paginated store listing until the site
answers with an error status and scrapes each app card for its name and download link.
The catalog is fetched once per provider and reused afterwards.
*/

package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
)

const (
	// CubapkName is the registry name of the cubapk.com provider
	CubapkName = "cubapk.com"
	// CubapkBaseURL is the site the provider scrapes
	CubapkBaseURL = "https://cubapk.com"
)

// CubapkOption configures a CubapkProvider
type CubapkOption func(*CubapkProvider)

// WithBaseURL points the provider at another host
func WithBaseURL(base string) CubapkOption {
	return func(p *CubapkProvider) { p.baseURL = strings.TrimSuffix(base, "/") }
}

// WithMaxPages stops pagination after n pages. Zero means no limit.
func WithMaxPages(n int) CubapkOption {
	return func(p *CubapkProvider) { p.maxPages = n }
}

// CubapkProvider scrapes the cubapk.com store
type CubapkProvider struct {
	baseURL  string
	maxPages int
	fetcher  Fetcher
	logger   *logging.Logger

	mu     sync.Mutex
	cached []APK
}

// NewCubapkProvider creates the provider
func NewCubapkProvider(fetcher Fetcher, logger *logging.Logger, opts ...CubapkOption) *CubapkProvider {
	p := &CubapkProvider{
		baseURL: CubapkBaseURL,
		fetcher: fetcher,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider
func (p *CubapkProvider) Name() string {
	return CubapkName
}

// AvailableAPKs implements Provider. A successful listing is cached.
func (p *CubapkProvider) AvailableAPKs(ctx context.Context) ([]APK, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached == nil {
		apks, err := p.scrape(ctx)
		if err != nil {
			return nil, err
		}
		p.cached = apks
	}

	out := make([]APK, len(p.cached))
	copy(out, p.cached)
	return out, nil
}

func (p *CubapkProvider) scrape(ctx context.Context) ([]APK, error) {
	cat := newCatalog()
	page := 1
	for ; p.maxPages == 0 || page <= p.maxPages; page++ {
		url := fmt.Sprintf("%s/store/?page=%d", p.baseURL, page)
		resp, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			break
		}

		found, err := p.parsePage(resp.Body, cat)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", url, err)
		}
		p.logger.Debug("Parsed catalog page", map[string]interface{}{"page": page, "apps": found})
		if found == 0 {
			page++
			break
		}
	}

	p.logger.Info(fmt.Sprintf("Index of %s has %d pages", p.baseURL, page-1), map[string]interface{}{
		"apks": len(cat.apks),
	})
	return cat.list(), nil
}

// parsePage adds every app card on the page to cat and returns how many
// cards it found
func (p *CubapkProvider) parsePage(body []byte, cat *catalog) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	found := 0
	doc.Find("div.app-data").Each(func(_ int, card *goquery.Selection) {
		found++
		name := apkName(card.Find("div.app-title").First().Text())
		if name == "" {
			p.logger.Debug("App card without a usable title", nil)
			return
		}
		href, ok := card.Find("div.app-meta").First().Find("a").First().Attr("href")
		if !ok {
			p.logger.Debug("App card without download link", map[string]interface{}{"apk": name})
			return
		}
		cat.add(APK{Name: name, URL: p.baseURL + href})
	})
	return found, nil
}

// apkName keeps the letters and digits of an app title and appends ".apk".
// A title with neither yields "".
func apkName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString(".apk")
	return b.String()
}
