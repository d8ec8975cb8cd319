/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: downloader.go
Description: APK downloads from provider catalogs. Existing files are skipped unless a
redownload is forced; HTTP error statuses are logged and do not stop a batch.
*/

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/gvieralopez/goflowdroid/pkg/useragent"
)

// ErrNotAFolder is returned when the download target is not a folder
var ErrNotAFolder = errors.New("path does not point to a folder")

// Outcome is what a single APK download did
type Outcome int

const (
	// Downloaded means the APK was fetched and written
	Downloaded Outcome = iota
	// Skipped means the APK was already in the folder
	Skipped
	// Failed means the server answered with an error status
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Tally counts the outcomes of a batch download
type Tally struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Available is the number of requested APKs present in the folder
func (t Tally) Available() int {
	return t.Downloaded + t.Skipped
}

func (t *Tally) add(o Outcome) {
	switch o {
	case Downloaded:
		t.Downloaded++
	case Skipped:
		t.Skipped++
	default:
		t.Failed++
	}
}

// Downloader saves provider APKs into folders
type Downloader struct {
	// ForceRedownload overwrites APK files that already exist
	ForceRedownload bool

	client *http.Client
	logger *logging.Logger
}

// NewDownloader creates a downloader sending userAgent
func NewDownloader(userAgent string, logger *logging.Logger, force bool) *Downloader {
	return &Downloader{
		ForceRedownload: force,
		client:          useragent.Client(userAgent),
		logger:          logger,
	}
}

// DownloadAPK saves apk into dir and reports whether it was written,
// skipped because it exists, or refused by the server
func (d *Downloader) DownloadAPK(ctx context.Context, apk APK, dir string) (Outcome, error) {
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return Failed, fmt.Errorf("%w: %s", ErrNotAFolder, dir)
	}

	path := filepath.Join(dir, apk.Name)
	if _, err := os.Stat(path); err == nil && !d.ForceRedownload {
		d.logger.Info(fmt.Sprintf("%s already exists", apk.Name), nil)
		return Skipped, nil
	}

	d.logger.Info(fmt.Sprintf("Downloading %s from %s", apk.Name, apk.URL), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apk.URL, nil)
	if err != nil {
		return Failed, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Failed, fmt.Errorf("failed to download %s: %w", apk.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Error(fmt.Sprintf("Error downloading %s from %s", apk.Name, apk.URL), map[string]interface{}{
			"status": resp.StatusCode,
		})
		return Failed, nil
	}

	out, err := os.Create(path)
	if err != nil {
		return Failed, err
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return Failed, fmt.Errorf("failed to save %s: %w", apk.Name, err)
	}

	d.logger.LogDownload(apk.Name, apk.URL, n, nil)
	return Downloaded, nil
}

// DownloadAPKs walks p's catalog until amount APKs are in dir, downloaded
// now or already present. Entries the server refuses do not count and the
// next catalog entry is tried instead.
func (d *Downloader) DownloadAPKs(ctx context.Context, p Provider, amount int, dir string, createPath bool) (Tally, error) {
	var tally Tally
	if createPath {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return tally, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	apks, err := p.AvailableAPKs(ctx)
	if err != nil {
		return tally, fmt.Errorf("failed to list %s catalog: %w", p.Name(), err)
	}

	for _, apk := range apks {
		if tally.Available() >= amount {
			break
		}
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		outcome, err := d.DownloadAPK(ctx, apk, dir)
		if err != nil {
			return tally, err
		}
		tally.add(outcome)
	}

	fields := map[string]interface{}{
		"downloaded": tally.Downloaded,
		"skipped":    tally.Skipped,
		"failed":     tally.Failed,
	}
	if tally.Available() < amount {
		d.logger.Error(fmt.Sprintf("Got %d apks instead of %d. No more apks to download", tally.Available(), amount), fields)
		return tally, nil
	}
	d.logger.Info(fmt.Sprintf("Got %d apks", tally.Available()), fields)
	return tally, nil
}
