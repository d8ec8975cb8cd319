/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: download.go
Description: The download command. Fetches APKs from a provider catalog into a folder.
*/

package commands

import (
	"fmt"
	"strconv"

	"github.com/gvieralopez/goflowdroid/pkg/provider"
	"github.com/spf13/cobra"
)

// RunDownload downloads <amount> APKs into <path> from [provider]
func RunDownload(cmd *cobra.Command, args []string) error {
	amount, err := strconv.Atoi(args[0])
	if err != nil || amount < 0 {
		return fmt.Errorf("invalid amount %q", args[0])
	}
	dir := args[1]

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	name := cfg.Provider
	if len(args) > 2 {
		name = args[2]
	}
	force, _ := cmd.Flags().GetBool("force")

	var fetcher provider.Fetcher = provider.NewHTTPFetcher(cfg.UserAgent, cfg.Scrape.Timeout)
	if cfg.Scrape.Browser {
		browser, err := provider.NewBrowserFetcher(cmd.Context(), cfg.UserAgent, cfg.Scrape.Timeout)
		if err != nil {
			return err
		}
		defer browser.Close()
		fetcher = browser
	}

	prv := provider.Get(name, fetcher, logger, provider.Options{MaxPages: cfg.Scrape.MaxPages})

	downloader := provider.NewDownloader(cfg.UserAgent, logger, force)
	tally, err := downloader.DownloadAPKs(cmd.Context(), prv, amount, dir, true)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d apks from %s (%d already present, %d failed)\n",
		tally.Downloaded, prv.Name(), tally.Skipped, tally.Failed)
	return nil
}
