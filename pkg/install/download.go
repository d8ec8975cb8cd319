/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: download.go
Description: HTTP downloads for installation resources. Streams a URL into a file,
logging human readable progress, and removes the partial file when anything fails.
*/

package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
)

// progressStep is how many bytes pass between progress lines when the total
// size is unknown
const progressStep = 10 * 1024 * 1024

// progressWriter counts bytes written through it and logs progress
type progressWriter struct {
	logger  *logging.Logger
	name    string
	total   int64
	written int64
	next    int64
}

func newProgressWriter(logger *logging.Logger, name string, total int64) *progressWriter {
	p := &progressWriter{logger: logger, name: name, total: total}
	p.next = p.step()
	return p
}

func (p *progressWriter) step() int64 {
	if p.total > 0 {
		if s := p.total / 10; s > 0 {
			return s
		}
		return 1
	}
	return progressStep
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	for p.written >= p.next {
		fields := map[string]interface{}{
			"file":       p.name,
			"downloaded": humanize.Bytes(uint64(p.written)),
		}
		if p.total > 0 {
			fields["total"] = humanize.Bytes(uint64(p.total))
			fields["percent"] = p.written * 100 / p.total
		}
		p.logger.Debug("Download progress", fields)
		p.next += p.step()
	}
	return len(b), nil
}

// downloadToPath creates (or truncates) path and writes the body at url into
// it. If any error occurs, the created file is removed.
func downloadToPath(ctx context.Context, client *http.Client, logger *logging.Logger, path, url string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, downloadErr := downloadToFile(ctx, client, logger, file, url)
	closeErr := file.Close()
	if downloadErr == nil {
		downloadErr = closeErr
	}
	if downloadErr != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			return 0, fmt.Errorf("%w\n%v", downloadErr, removeErr)
		}
		return 0, downloadErr
	}

	logger.Info("Download finished", map[string]interface{}{
		"path": path,
		"size": humanize.Bytes(uint64(n)),
	})
	return n, nil
}

// downloadToFile writes the body at url into dest without opening or
// closing it
func downloadToFile(ctx context.Context, client *http.Client, logger *logging.Logger, dest *os.File, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("http status %s", resp.Status)
	}

	progress := newProgressWriter(logger, dest.Name(), resp.ContentLength)
	return io.Copy(dest, io.TeeReader(resp.Body, progress))
}
