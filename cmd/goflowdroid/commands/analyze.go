/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyze.go
Description: The analyze and parse-logs commands. Run FlowDroid over an APK or a folder
of APKs (or count leaks in saved logs) and print the leak report.
*/

package commands

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gvieralopez/goflowdroid/pkg/analysis"
	"github.com/gvieralopez/goflowdroid/pkg/report"
	"github.com/spf13/cobra"
)

// RunAnalyze analyzes the path given as argument, or the default APK folder
func RunAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	target := cfg.APKDir
	if len(args) > 0 {
		target = args[0]
	}

	sourcesSinks, _ := cmd.Flags().GetString("sources-sinks")
	saveLogs, _ := cmd.Flags().GetBool("save-logs")
	reportDir, _ := cmd.Flags().GetString("report-dir")

	run := report.NewRun(cfg, target, sourcesSinks)
	analyzer := analysis.NewAnalyzer(cfg, logger, nil)
	summary, err := analyzer.Analyze(cmd.Context(), target, analysis.Options{
		SourcesSinks: sourcesSinks,
		SaveLogs:     saveLogs,
	})
	if err != nil {
		return err
	}
	run.Finish(summary)

	text := report.Generate(summary)
	fmt.Fprint(cmd.OutOrStdout(), text)

	prefix := path.Join("runs", run.ID)
	var artifacts []string
	if reportDir != "" {
		paths, err := report.NewWriter(reportDir, logger).WriteAll(run)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, paths...)
	}
	artifacts = append(artifacts, logger.FilePath())
	archive(cmd.Context(), cfg, logger, prefix, "", artifacts)

	// Saved logs keep their folder layout under logs/
	var logs []string
	for _, r := range summary.Results {
		logs = append(logs, r.LogPath)
	}
	archive(cmd.Context(), cfg, logger, path.Join(prefix, "logs"), logRoot(target), logs)
	return nil
}

// logRoot is the folder saved logs are keyed against
func logRoot(target string) string {
	if stat, err := os.Stat(target); err == nil && stat.IsDir() {
		return target
	}
	return filepath.Dir(target)
}

// RunParseLogs counts leaks in the saved logs of a folder
func RunParseLogs(cmd *cobra.Command, args []string) error {
	_, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	summary, err := analysis.ParseLogDir(args[0])
	if err != nil {
		return err
	}
	logger.LogLeaks(summary.TotalApps, summary.TotalLeaks, len(summary.LeakyAPKs), map[string]interface{}{"dir": args[0]})

	fmt.Fprint(cmd.OutOrStdout(), report.Generate(summary))
	return nil
}
