/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: commands_test.go
Description: Tests for the self-check, analyze and parse-logs commands.
*/

package commands

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/sourcesinks"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func installedConfig(t *testing.T) *config.Config {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	cfg := config.Default()
	cfg.Home = t.TempDir()
	cfg.APKDir = filepath.Join(t.TempDir(), "apks")
	cfg.Java = "sh"

	require.NoError(t, os.WriteFile(cfg.FlowDroidPath(), []byte("jar"), 0644))
	require.NoError(t, os.MkdirAll(cfg.AndroidPath(), 0755))
	require.NoError(t, os.MkdirAll(cfg.APKDir, 0755))
	_, err := sourcesinks.Install(cfg.SourcesSinksDir())
	require.NoError(t, err)
	return cfg
}

func TestRunChecksPass(t *testing.T) {
	cfg := installedConfig(t)

	var out bytes.Buffer
	require.NoError(t, runChecks(&out, cfg, selfChecks))
	assert.Contains(t, out.String(), "required checks passed")
	assert.Contains(t, out.String(), "All checks passed")
}

func TestRunChecksReportsMissingResources(t *testing.T) {
	cfg := installedConfig(t)
	require.NoError(t, os.Remove(cfg.FlowDroidPath()))
	require.NoError(t, os.RemoveAll(cfg.SourcesSinksDir()))

	var out bytes.Buffer
	err := runChecks(&out, cfg, selfChecks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2/5")
	assert.Contains(t, out.String(), "FAILED: missing "+cfg.FlowDroidPath())
}

func TestOptionalChecksDoNotFail(t *testing.T) {
	cfg := installedConfig(t)
	cfg.Aapt = ""

	var out bytes.Buffer
	require.NoError(t, runChecks(&out, cfg, selfChecks))
	assert.Contains(t, out.String(), "SKIPPED: disabled")
}

func TestRunParseLogs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaky.log"), []byte("INFO - Found 2 leaks"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clean.log"), []byte("INFO - Found 0 leaks"), 0644))
	t.Setenv("GOFLOWDROID_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, RunParseLogs(cmd, []string{dir}))
	assert.Contains(t, out.String(), "Analyzed: 2\nLeaks found: 2\n\nLeaky apks:\n - leaky.apk\n")
}

// fakeFlowDroid writes a java stand-in reporting 3 leaks for APKs under
// vendorA and none elsewhere. The APK path is the fourth argument.
func fakeFlowDroid(t *testing.T) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "java")
	content := `#!/bin/sh
case "$4" in
*vendorA*) echo "INFO - Found 3 leaks" ;;
*) echo "INFO - Found 0 leaks" ;;
esac
`
	require.NoError(t, os.WriteFile(script, []byte(content), 0755))
	return script
}

func TestRunAnalyzeArchivesLogsAndReports(t *testing.T) {
	cfg := installedConfig(t)
	bucket := t.TempDir()
	reportDir := t.TempDir()

	target := t.TempDir()
	for _, vendor := range []string{"vendorA", "vendorB"} {
		require.NoError(t, os.MkdirAll(filepath.Join(target, vendor), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(target, vendor, "app.apk"), []byte("apk"), 0644))
	}

	t.Setenv("GOFLOWDROID_HOME", cfg.Home)
	t.Setenv("GOFLOWDROID_APK_DIR", cfg.APKDir)
	t.Setenv("GOFLOWDROID_JAVA", fakeFlowDroid(t))
	t.Setenv("GOFLOWDROID_AAPT", "goflowdroid-no-aapt")
	t.Setenv("GOFLOWDROID_STORE_BUCKET", "file://"+filepath.ToSlash(bucket))
	t.Setenv("GOFLOWDROID_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.Flags().String("sources-sinks", "", "")
	cmd.Flags().Bool("save-logs", true, "")
	cmd.Flags().String("report-dir", reportDir, "")
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())

	require.NoError(t, RunAnalyze(cmd, []string{target}))
	assert.Contains(t, out.String(), "Analyzed: 2\nLeaks found: 3\n")
	assert.Contains(t, out.String(), " - "+filepath.Join(target, "vendorA", "app.apk"))

	runs, err := filepath.Glob(filepath.Join(bucket, "runs", "*"))
	require.NoError(t, err)
	require.Len(t, runs, 1)

	data, err := os.ReadFile(filepath.Join(runs[0], "logs", "vendorA", "app.log"))
	require.NoError(t, err)
	assert.Equal(t, "INFO - Found 3 leaks", string(data))
	data, err = os.ReadFile(filepath.Join(runs[0], "logs", "vendorB", "app.log"))
	require.NoError(t, err)
	assert.Equal(t, "INFO - Found 0 leaks", string(data))

	reports, err := filepath.Glob(filepath.Join(runs[0], "*.json"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	reports, err = filepath.Glob(filepath.Join(runs[0], "*.html"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestLogRoot(t *testing.T) {
	dir := t.TempDir()
	apk := filepath.Join(dir, "app.apk")
	require.NoError(t, os.WriteFile(apk, []byte("apk"), 0644))

	assert.Equal(t, dir, logRoot(dir))
	assert.Equal(t, dir, logRoot(apk))
}
