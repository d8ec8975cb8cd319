/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: check.go
Description: The check command. Validates that java, the FlowDroid jar, the Android
platforms and the sources and sinks files are in place before an analysis.
*/

package commands

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/gvieralopez/goflowdroid/pkg/sourcesinks"
	"github.com/spf13/cobra"
)

// minFreeSpace is the disk space an install needs under home
const minFreeSpace = 2 * 1024 * 1024 * 1024

type selfCheck struct {
	name     string
	function func(cfg *config.Config) error
	optional bool
}

var selfChecks = []selfCheck{
	{name: "Java Runtime", function: checkJava},
	{name: "FlowDroid Jar", function: checkFlowDroid},
	{name: "Android Platforms", function: checkAndroid},
	{name: "Sources and Sinks", function: checkSourcesSinks},
	{name: "APK Folder", function: checkAPKFolder},
	{name: "Disk Space", function: checkDiskSpace, optional: true},
	{name: "aapt (APK metadata)", function: checkAapt, optional: true},
	{name: "Log Directory", function: checkLogDir, optional: true},
}

// PerformSelfCheck validates the installation
func PerformSelfCheck(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	return runChecks(cmd.OutOrStdout(), cfg, selfChecks)
}

func runChecks(out io.Writer, cfg *config.Config, checks []selfCheck) error {
	fmt.Fprintln(out, "🔍 goflowdroid - System Self-Check")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	passed, required := 0, 0
	for _, check := range checks {
		if !check.optional {
			required++
		}
		fmt.Fprintf(out, "🔍 %s... ", check.name)
		if err := check.function(cfg); err != nil {
			if check.optional {
				fmt.Fprintf(out, "⚠️  SKIPPED: %v\n", err)
			} else {
				fmt.Fprintf(out, "❌ FAILED: %v\n", err)
			}
			continue
		}
		fmt.Fprintln(out, "✅ PASSED")
		if !check.optional {
			passed++
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "📊 Results: %d/%d required checks passed\n", passed, required)

	if passed == required {
		fmt.Fprintln(out, "✨ All checks passed! Ready to analyze.")
		return nil
	}
	fmt.Fprintln(out, "⚠️  Some checks failed. Run 'goflowdroid install' to fetch missing resources.")
	return fmt.Errorf("%d/%d checks failed", required-passed, required)
}

func checkJava(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.Java); err != nil {
		return fmt.Errorf("%s not found on PATH", cfg.Java)
	}
	return nil
}

func checkFlowDroid(cfg *config.Config) error {
	stat, err := os.Stat(cfg.FlowDroidPath())
	if err != nil || !stat.Mode().IsRegular() {
		return fmt.Errorf("missing %s", cfg.FlowDroidPath())
	}
	return nil
}

func checkAndroid(cfg *config.Config) error {
	stat, err := os.Stat(cfg.AndroidPath())
	if err != nil || !stat.IsDir() {
		return fmt.Errorf("missing %s", cfg.AndroidPath())
	}
	return nil
}

func checkSourcesSinks(cfg *config.Config) error {
	for _, name := range []string{sourcesinks.Small, sourcesinks.Large} {
		path := filepath.Join(cfg.SourcesSinksDir(), name)
		defs, err := sourcesinks.ParseFile(path)
		if err != nil {
			return fmt.Errorf("missing %s", path)
		}
		if defs.Sources() == 0 || defs.Sinks() == 0 {
			return fmt.Errorf("%s defines no sources or no sinks", path)
		}
	}
	return nil
}

func checkAPKFolder(cfg *config.Config) error {
	stat, err := os.Stat(cfg.APKDir)
	if err != nil || !stat.IsDir() {
		return fmt.Errorf("missing folder %s", cfg.APKDir)
	}
	f, err := os.CreateTemp(cfg.APKDir, ".goflowdroid-check-*")
	if err != nil {
		return fmt.Errorf("cannot write to %s: %w", cfg.APKDir, err)
	}
	f.Close()
	return os.Remove(f.Name())
}

func checkDiskSpace(cfg *config.Config) error {
	dir := cfg.Home
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("failed to check filesystem: %w", err)
	}
	available := stat.Bavail * uint64(stat.Bsize)
	if available < minFreeSpace {
		return fmt.Errorf("low disk space: %s available under %s", humanize.Bytes(available), dir)
	}
	return nil
}

func checkAapt(cfg *config.Config) error {
	if cfg.Aapt == "" {
		return fmt.Errorf("disabled")
	}
	if _, err := exec.LookPath(cfg.Aapt); err != nil {
		return fmt.Errorf("%s not found on PATH", cfg.Aapt)
	}
	return nil
}

func checkLogDir(cfg *config.Config) error {
	if cfg.Log.Dir == "" {
		return fmt.Errorf("file logging disabled")
	}
	stats, err := logging.NewLogManager(cfg.Log.Dir, cfg.Log.MaxFiles).GetLogStats()
	if err != nil {
		return err
	}
	if stats.TotalFiles > cfg.Log.MaxFiles {
		return fmt.Errorf("%d log files (%s) exceed the limit of %d", stats.TotalFiles, humanize.Bytes(uint64(stats.TotalSize)), cfg.Log.MaxFiles)
	}
	return nil
}
