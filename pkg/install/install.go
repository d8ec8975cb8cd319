/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: install.go
Description: Installation of everything an analysis needs: the FlowDroid jar, the
Android platform stubs, the bundled sources and sinks files and the default APK
folder. Each step can run on its own or through InstallAll.
*/

package install

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/gvieralopez/goflowdroid/pkg/sourcesinks"
	"github.com/gvieralopez/goflowdroid/pkg/useragent"
)

// Installer fetches and lays out analysis resources under the configured home
type Installer struct {
	cfg    *config.Config
	logger *logging.Logger
	client *http.Client
}

// NewInstaller creates an Installer. Downloads use the configured User-Agent.
func NewInstaller(cfg *config.Config, logger *logging.Logger) *Installer {
	return &Installer{
		cfg:    cfg,
		logger: logger,
		client: useragent.Client(cfg.UserAgent),
	}
}

func (i *Installer) ensureHome() error {
	if err := os.MkdirAll(i.cfg.Home, 0755); err != nil {
		return fmt.Errorf("failed to create home %s: %w", i.cfg.Home, err)
	}
	return nil
}

// DownloadFlowDroid fetches the FlowDroid jar into the home directory
func (i *Installer) DownloadFlowDroid(ctx context.Context) error {
	if err := i.ensureHome(); err != nil {
		return err
	}

	path := i.cfg.FlowDroidPath()
	i.logger.Info("Downloading FlowDroid", map[string]interface{}{"url": i.cfg.FlowDroid.URL})
	if _, err := downloadToPath(ctx, i.client, i.logger, path, i.cfg.FlowDroid.URL); err != nil {
		return fmt.Errorf("failed to download FlowDroid: %w", err)
	}

	i.logger.LogInstall("flowdroid", path, nil)
	return nil
}

// DownloadAndroid fetches the Android platforms archive, extracts it into the
// home directory and removes the archive
func (i *Installer) DownloadAndroid(ctx context.Context) error {
	if err := i.ensureHome(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(i.cfg.Home, "android-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	archive := tmp.Name()
	tmp.Close()
	defer os.Remove(archive)

	i.logger.Info("Downloading Android platforms", map[string]interface{}{"url": i.cfg.Android.URL})
	if _, err := downloadToPath(ctx, i.client, i.logger, archive, i.cfg.Android.URL); err != nil {
		return fmt.Errorf("failed to download Android platforms: %w", err)
	}

	i.logger.Info("Extracting Android platforms", map[string]interface{}{"dest": i.cfg.Home})
	start := time.Now()
	files, err := extractZip(archive, i.cfg.Home)
	if err != nil {
		return fmt.Errorf("failed to extract Android platforms: %w", err)
	}

	i.logger.LogInstall("android", i.cfg.AndroidPath(), map[string]interface{}{
		"files":    files,
		"duration": time.Since(start),
	})
	return nil
}

// InstallSourcesSinks writes the bundled sources and sinks files
func (i *Installer) InstallSourcesSinks() error {
	paths, err := sourcesinks.Install(i.cfg.SourcesSinksDir())
	if err != nil {
		return fmt.Errorf("failed to install sources and sinks: %w", err)
	}
	i.logger.LogInstall("sources_sinks", i.cfg.SourcesSinksDir(), map[string]interface{}{"files": len(paths)})
	return nil
}

// CreateAPKFolder creates the default APK folder
func (i *Installer) CreateAPKFolder() error {
	i.logger.Info("Creating directories", map[string]interface{}{"path": i.cfg.APKDir})
	if err := os.MkdirAll(i.cfg.APKDir, 0755); err != nil {
		return fmt.Errorf("failed to create APK folder: %w", err)
	}
	return nil
}

// InstallAll runs every installation step in order
func (i *Installer) InstallAll(ctx context.Context) error {
	if err := i.DownloadFlowDroid(ctx); err != nil {
		return err
	}
	if err := i.DownloadAndroid(ctx); err != nil {
		return err
	}
	if err := i.InstallSourcesSinks(); err != nil {
		return err
	}
	if err := i.CreateAPKFolder(); err != nil {
		return err
	}

	i.logger.Info("Installation complete", map[string]interface{}{"home": i.cfg.Home})
	return nil
}
