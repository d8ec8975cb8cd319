/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: provider_test.go
Description: Tests for catalog scraping, the provider registry and APK downloads
against a local store served by httptest.
*/

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(title, href string) string {
	link := ""
	if href != "" {
		link = fmt.Sprintf(`<a href="%s">Download</a>`, href)
	}
	return fmt.Sprintf(`<div class="app-data"><div class="app-title"> %s </div><div class="app-meta">%s</div></div>`, title, link)
}

var storePages = map[string]string{
	"1": "<html><body>" + card("Super Game! 2", "/dl/super-game/") + card("Chat App", "/dl/chat/") + "</body></html>",
	"2": "<html><body>" + card("Super-Game 2", "/dl/super-game-v2/") + card("Notes", "") + card("Maps Pro", "/dl/maps/") + "</body></html>",
}

// newStore serves the catalog pages and APK files, counting catalog hits
func newStore(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/store/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, config.DefaultUserAgent, r.Header.Get("User-Agent"))
		page, ok := storePages[r.URL.Query().Get("page")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, page)
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dl/maps/" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		io.WriteString(w, "apk:"+r.URL.Path)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &hits
}

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Level:   logging.LogLevelDebug,
		Format:  logging.LogFormatText,
		Console: io.Discard,
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

func newTestProvider(t *testing.T, base string, opts ...CubapkOption) *CubapkProvider {
	fetcher := NewHTTPFetcher(config.DefaultUserAgent, 5*time.Second)
	return NewCubapkProvider(fetcher, newTestLogger(t), append([]CubapkOption{WithBaseURL(base)}, opts...)...)
}

func TestCubapkAvailableAPKs(t *testing.T) {
	ts, hits := newStore(t)
	p := newTestProvider(t, ts.URL)

	apks, err := p.AvailableAPKs(context.Background())
	require.NoError(t, err)

	want := []APK{
		{Name: "SuperGame2.apk", URL: ts.URL + "/dl/super-game-v2/"},
		{Name: "ChatApp.apk", URL: ts.URL + "/dl/chat/"},
		{Name: "MapsPro.apk", URL: ts.URL + "/dl/maps/"},
	}
	if diff := cmp.Diff(want, apks); diff != "" {
		t.Errorf("AvailableAPKs() mismatch (-want +got):\n%s", diff)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(hits))

	// the listing is fetched once per provider
	again, err := p.AvailableAPKs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, again))
	assert.EqualValues(t, 3, atomic.LoadInt32(hits))
}

func TestCubapkMaxPages(t *testing.T) {
	ts, hits := newStore(t)
	p := newTestProvider(t, ts.URL, WithMaxPages(1))

	apks, err := p.AvailableAPKs(context.Background())
	require.NoError(t, err)
	assert.Len(t, apks, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestCubapkStopsOnEmptyPage(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.WriteString(w, "<html><body>nothing here</body></html>")
	}))
	defer ts.Close()

	apks, err := newTestProvider(t, ts.URL).AvailableAPKs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, apks)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestCubapkFetchErrorIsNotCached(t *testing.T) {
	ts, _ := newStore(t)
	p := newTestProvider(t, "http://127.0.0.1:1")

	_, err := p.AvailableAPKs(context.Background())
	require.Error(t, err)

	p.baseURL = ts.URL
	apks, err := p.AvailableAPKs(context.Background())
	require.NoError(t, err)
	assert.Len(t, apks, 3)
}

func TestAPKName(t *testing.T) {
	assert.Equal(t, "SuperGame2.apk", apkName("  Super Game! 2\n"))
	assert.Equal(t, "Café3D.apk", apkName("Café 3D"))
	assert.Equal(t, "", apkName("!!!"))
}

func TestParsePageSkipsUntitledCards(t *testing.T) {
	p := newTestProvider(t, "http://catalog")
	untitled := `<div class="app-data"><div class="app-meta"><a href="/dl/x/">Download</a></div></div>`
	page := "<html><body>" + untitled + card("!!!", "/dl/y/") + card("Chat App", "/dl/chat/") + "</body></html>"

	cat := newCatalog()
	found, err := p.parsePage([]byte(page), cat)
	require.NoError(t, err)
	assert.Equal(t, 3, found)
	assert.Empty(t, cmp.Diff([]APK{{Name: "ChatApp.apk", URL: "http://catalog/dl/chat/"}}, cat.list()))
}

func TestCatalogKeepsFirstPositionLatestURL(t *testing.T) {
	c := newCatalog()
	c.add(APK{Name: "a.apk", URL: "1"})
	c.add(APK{Name: "b.apk", URL: "2"})
	c.add(APK{Name: "a.apk", URL: "3"})

	want := []APK{{Name: "a.apk", URL: "3"}, {Name: "b.apk", URL: "2"}}
	assert.Empty(t, cmp.Diff(want, c.list()))
}

func TestGetFallsBackToDefault(t *testing.T) {
	logger := newTestLogger(t)
	fetcher := NewHTTPFetcher(config.DefaultUserAgent, time.Second)

	assert.Equal(t, CubapkName, Get(CubapkName, fetcher, logger, Options{}).Name())
	assert.Equal(t, config.DefaultProvider, Get("apkmirror.com", fetcher, logger, Options{MaxPages: 2}).Name())
	assert.Equal(t, []string{CubapkName}, Names())
}

// listProvider serves a fixed catalog
type listProvider []APK

func (l listProvider) Name() string { return "list" }

func (l listProvider) AvailableAPKs(context.Context) ([]APK, error) { return l, nil }

func TestDownloadAPKs(t *testing.T) {
	ts, _ := newStore(t)
	p := newTestProvider(t, ts.URL)
	d := NewDownloader(config.DefaultUserAgent, newTestLogger(t), false)
	dir := filepath.Join(t.TempDir(), "apks")

	tally, err := d.DownloadAPKs(context.Background(), p, 2, dir, true)
	require.NoError(t, err)
	assert.Equal(t, Tally{Downloaded: 2}, tally)

	data, err := os.ReadFile(filepath.Join(dir, "SuperGame2.apk"))
	require.NoError(t, err)
	assert.Equal(t, "apk:/dl/super-game-v2/", string(data))
	_, err = os.Stat(filepath.Join(dir, "MapsPro.apk"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadAPKsCatalogExhausted(t *testing.T) {
	ts, _ := newStore(t)
	p := newTestProvider(t, ts.URL)
	d := NewDownloader(config.DefaultUserAgent, newTestLogger(t), false)
	dir := t.TempDir()

	tally, err := d.DownloadAPKs(context.Background(), p, 10, dir, false)
	require.NoError(t, err)
	assert.Equal(t, Tally{Downloaded: 2, Failed: 1}, tally)
	assert.Equal(t, 2, tally.Available())

	// the HTTP error for MapsPro is logged, not fatal, and leaves no file
	_, err = os.Stat(filepath.Join(dir, "MapsPro.apk"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "ChatApp.apk"))
	assert.NoError(t, err)
}

func TestDownloadAPKsCountsOnlySavedFiles(t *testing.T) {
	ts, _ := newStore(t)
	d := NewDownloader(config.DefaultUserAgent, newTestLogger(t), false)
	dir := t.TempDir()

	refused := listProvider{
		{Name: "A.apk", URL: ts.URL + "/dl/maps/"},
		{Name: "B.apk", URL: ts.URL + "/dl/maps/"},
	}
	tally, err := d.DownloadAPKs(context.Background(), refused, 2, dir, false)
	require.NoError(t, err)
	assert.Equal(t, Tally{Failed: 2}, tally)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// a refused entry is replaced by the next one in the catalog
	mixed := listProvider{
		{Name: "MapsPro.apk", URL: ts.URL + "/dl/maps/"},
		{Name: "ChatApp.apk", URL: ts.URL + "/dl/chat/"},
		{Name: "Notes.apk", URL: ts.URL + "/dl/notes/"},
	}
	tally, err = d.DownloadAPKs(context.Background(), mixed, 1, dir, false)
	require.NoError(t, err)
	assert.Equal(t, Tally{Downloaded: 1, Failed: 1}, tally)
	_, err = os.Stat(filepath.Join(dir, "Notes.apk"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadAPKsCountsExistingFiles(t *testing.T) {
	ts, _ := newStore(t)
	d := NewDownloader(config.DefaultUserAgent, newTestLogger(t), false)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SuperGame2.apk"), []byte("old"), 0644))

	tally, err := d.DownloadAPKs(context.Background(), newTestProvider(t, ts.URL), 2, dir, false)
	require.NoError(t, err)
	assert.Equal(t, Tally{Downloaded: 1, Skipped: 1}, tally)
}

func TestDownloadAPKSkipsExisting(t *testing.T) {
	ts, _ := newStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "ChatApp.apk")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))
	apk := APK{Name: "ChatApp.apk", URL: ts.URL + "/dl/chat/"}

	d := NewDownloader(config.DefaultUserAgent, newTestLogger(t), false)
	outcome, err := d.DownloadAPK(context.Background(), apk, dir)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "old", string(data))

	d.ForceRedownload = true
	outcome, err = d.DownloadAPK(context.Background(), apk, dir)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
	data, _ = os.ReadFile(path)
	assert.Equal(t, "apk:/dl/chat/", string(data))

	outcome, err = d.DownloadAPK(context.Background(), APK{Name: "MapsPro.apk", URL: ts.URL + "/dl/maps/"}, dir)
	require.NoError(t, err)
	assert.Equal(t, Failed, outcome)
	assert.Equal(t, "failed", outcome.String())
}

func TestDownloadAPKRequiresFolder(t *testing.T) {
	d := NewDownloader(config.DefaultUserAgent, newTestLogger(t), false)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	for _, dir := range []string{file, filepath.Join(t.TempDir(), "missing")} {
		_, err := d.DownloadAPK(context.Background(), APK{Name: "x.apk", URL: "http://127.0.0.1:1/x"}, dir)
		assert.True(t, errors.Is(err, ErrNotAFolder), dir)
	}
}

func TestBrowserFetcher(t *testing.T) {
	found := false
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found || testing.Short() {
		t.Skip("no Chrome installation available")
	}

	ts, _ := newStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fetcher, err := NewBrowserFetcher(ctx, config.DefaultUserAgent, 10*time.Second)
	require.NoError(t, err)
	defer fetcher.Close()

	page, err := fetcher.Fetch(ctx, ts.URL+"/store/?page=1")
	require.NoError(t, err)
	assert.True(t, page.OK())
	assert.Contains(t, string(page.Body), "app-data")

	missing, err := fetcher.Fetch(ctx, ts.URL+"/store/?page=9")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missing.Status)
}
