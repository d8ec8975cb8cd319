/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analysis.go
Description: FlowDroid analysis of single APKs and APK folders. Builds the java
invocation, runs it through a CommandRunner, optionally saves the raw log next to
the APK and summarizes the leak counts. APKs are analyzed one at a time.
*/

package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/gvieralopez/goflowdroid/pkg/sourcesinks"
)

var (
	// ErrInvalidAPK is returned for paths that are not existing .apk files
	ErrInvalidAPK = errors.New("path does not point to a valid apk file")
	// ErrInvalidFolder is returned for paths that are not existing folders
	ErrInvalidFolder = errors.New("path does not point to a valid folder")
	// ErrNotFound is returned when the analysis target does not exist
	ErrNotFound = errors.New("path does not point to an existing location")
)

// Options control a single analysis call
type Options struct {
	// SourcesSinks is a file path, "small.txt", "large.txt" or empty
	SourcesSinks string
	// SaveLogs writes each raw log beside its APK with a .log suffix
	SaveLogs bool
}

// Analyzer runs FlowDroid over APKs
type Analyzer struct {
	cfg       *config.Config
	logger    *logging.Logger
	runner    CommandRunner
	inspector *Inspector
}

// NewAnalyzer creates an Analyzer. A nil runner uses an ExecRunner bounded
// by the configured timeout.
func NewAnalyzer(cfg *config.Config, logger *logging.Logger, runner CommandRunner) *Analyzer {
	if runner == nil {
		runner = NewExecRunner(cfg.Timeout)
	}
	return &Analyzer{
		cfg:       cfg,
		logger:    logger,
		runner:    runner,
		inspector: NewInspector(cfg.Aapt, runner),
	}
}

// BuildCommand returns the FlowDroid invocation for apk
func (a *Analyzer) BuildCommand(apk, sourcesSinks string) Command {
	return Command{
		Name: a.cfg.Java,
		Args: []string{
			"-jar", a.cfg.FlowDroidPath(),
			"-a", apk,
			"-p", a.cfg.AndroidPath(),
			"-s", sourcesSinks,
		},
	}
}

// resolveSourcesSinks picks the sources and sinks file and logs what it holds
func (a *Analyzer) resolveSourcesSinks(value string) (string, error) {
	path, err := sourcesinks.Resolve(a.cfg.SourcesSinksDir(), value)
	if err != nil {
		return "", err
	}

	fields := map[string]interface{}{"path": path}
	if defs, err := sourcesinks.ParseFile(path); err == nil {
		fields["sources"] = defs.Sources()
		fields["sinks"] = defs.Sinks()
		if len(defs.Invalid) > 0 {
			fields["invalid_lines"] = len(defs.Invalid)
		}
	}
	a.logger.Info("Using sources and sinks", fields)
	return path, nil
}

// AnalyzeAPK runs FlowDroid on a single APK and returns its raw log
func (a *Analyzer) AnalyzeAPK(ctx context.Context, path string, opts Options) (string, error) {
	sns, err := a.resolveSourcesSinks(opts.SourcesSinks)
	if err != nil {
		return "", err
	}
	result, err := a.analyzeAPK(ctx, path, sns, opts.SaveLogs)
	if err != nil {
		return "", err
	}
	return result.Log, nil
}

func (a *Analyzer) analyzeAPK(ctx context.Context, path, sns string, saveLogs bool) (*Result, error) {
	stat, err := os.Stat(path)
	if err != nil || !stat.Mode().IsRegular() || !strings.HasSuffix(path, ".apk") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAPK, path)
	}

	cmd := a.BuildCommand(path, sns)
	a.logger.Info(fmt.Sprintf("Analyzing '%s'", path), map[string]interface{}{"command": cmd.String()})

	start := time.Now()
	log, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", path, err)
	}

	result := &Result{
		APK:      path,
		Log:      log,
		Leaks:    CountLeaks(log),
		Duration: time.Since(start),
	}

	if saveLogs {
		result.LogPath = strings.TrimSuffix(path, ".apk") + ".log"
		if err := os.WriteFile(result.LogPath, []byte(log), 0644); err != nil {
			return nil, fmt.Errorf("failed to save log: %w", err)
		}
		a.logger.Info("FlowDroid logs saved", map[string]interface{}{"path": result.LogPath})
	}

	if a.inspector != nil {
		if info, err := a.inspector.Inspect(ctx, path); err == nil {
			result.Info = info
		} else {
			a.logger.Debug("APK metadata unavailable", map[string]interface{}{"apk": path, "error": err})
		}
	}

	a.logger.LogAnalysis(path, result.Duration, result.Leaks, nil)
	return result, nil
}

// findAPKs returns every regular .apk file below dir in lexical order
func findAPKs(dir string) ([]string, error) {
	var apks []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), ".apk") {
			apks = append(apks, path)
		}
		return nil
	})
	return apks, err
}

// AnalyzeFolder runs FlowDroid on every APK below dir and returns the raw
// logs keyed by APK path
func (a *Analyzer) AnalyzeFolder(ctx context.Context, dir string, opts Options) (map[string]string, error) {
	results, err := a.analyzeFolder(ctx, dir, opts)
	if err != nil {
		return nil, err
	}
	logs := make(map[string]string, len(results))
	for _, r := range results {
		logs[r.APK] = r.Log
	}
	return logs, nil
}

func (a *Analyzer) analyzeFolder(ctx context.Context, dir string, opts Options) ([]Result, error) {
	if filepath.Clean(dir) == filepath.Clean(a.cfg.APKDir) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	a.logger.Info(fmt.Sprintf("Analyzing '%s'", dir), nil)
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFolder, dir)
	}

	sns, err := a.resolveSourcesSinks(opts.SourcesSinks)
	if err != nil {
		return nil, err
	}

	apks, err := findAPKs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", dir, err)
	}
	a.logger.Info(fmt.Sprintf("Found %d apks in '%s'", len(apks), dir), nil)

	results := make([]Result, 0, len(apks))
	for _, apk := range apks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := a.analyzeAPK(ctx, apk, sns, opts.SaveLogs)
		if errors.Is(err, ErrTimeout) {
			a.logger.Error("Analysis timed out", map[string]interface{}{"apk": apk, "timeout": a.cfg.Timeout})
			results = append(results, Result{APK: apk})
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// Analyze runs FlowDroid on path, a single APK or a folder of APKs, and
// summarizes the leaks found
func (a *Analyzer) Analyze(ctx context.Context, path string, opts Options) (*Summary, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var results []Result
	if stat.IsDir() {
		results, err = a.analyzeFolder(ctx, path, opts)
		if err != nil {
			return nil, err
		}
	} else {
		sns, err := a.resolveSourcesSinks(opts.SourcesSinks)
		if err != nil {
			return nil, err
		}
		result, err := a.analyzeAPK(ctx, path, sns, opts.SaveLogs)
		if err != nil {
			return nil, err
		}
		results = []Result{*result}
	}

	summary := Summarize(results)
	a.logger.LogLeaks(summary.TotalApps, summary.TotalLeaks, len(summary.LeakyAPKs), nil)
	return summary, nil
}
