/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analysis_test.go
Description: Tests for command construction, leak counting, folder analysis and
log parsing, using a fake command runner in place of java.
*/

package analysis

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/gvieralopez/goflowdroid/pkg/sourcesinks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner answers FlowDroid commands with canned logs keyed by APK base name
type fakeRunner struct {
	mu       sync.Mutex
	logs     map[string]string
	errs     map[string]error
	commands []Command
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)

	apk := ""
	for i, arg := range cmd.Args {
		if arg == "-a" && i+1 < len(cmd.Args) {
			apk = filepath.Base(cmd.Args[i+1])
		}
	}
	if err, ok := f.errs[apk]; ok {
		return "", err
	}
	return f.logs[apk], nil
}

func leakLog(n string) string {
	return "[main] INFO soot.jimple.infoflow.android.SetupApplication - Collecting callbacks\n" +
		"[main] INFO soot.jimple.infoflow.android.SetupApplication - Found " + n + " leaks"
}

func setup(t *testing.T, runner CommandRunner) (*Analyzer, *config.Config) {
	t.Helper()

	cfg := config.Default()
	cfg.Home = t.TempDir()
	cfg.APKDir = filepath.Join(t.TempDir(), "apks")
	cfg.Aapt = ""
	_, err := sourcesinks.Install(cfg.SourcesSinksDir())
	require.NoError(t, err)

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Level:   logging.LogLevelDebug,
		Format:  logging.LogFormatText,
		Console: io.Discard,
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	return NewAnalyzer(cfg, logger, runner), cfg
}

func writeAPK(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0644))
}

func TestCountLeaks(t *testing.T) {
	cases := []struct {
		name string
		log  string
		want int
	}{
		{"found leaks", leakLog("3"), 3},
		{"zero leaks", leakLog("0"), 0},
		{"trailing newline leaves an empty final line", leakLog("7") + "\n", 0},
		{"blank final line", leakLog("3") + "\n\n", 0},
		{"carriage return", leakLog("5") + "\r", 5},
		{"not a number", "Analysis finished without results", 0},
		{"negative", "Found -2 leaks", 0},
		{"single token", "done", 0},
		{"empty", "", 0},
		{"only last line counts", "Found 9 leaks\nsomething else entirely", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CountLeaks(tc.log))
		})
	}
}

func TestQuantifyLeaks(t *testing.T) {
	summary := QuantifyLeaks(map[string]string{
		"b.apk": leakLog("2"),
		"a.apk": leakLog("5"),
		"c.apk": "crashed",
	})

	assert.Equal(t, 3, summary.TotalApps)
	assert.Equal(t, 7, summary.TotalLeaks)
	assert.Equal(t, []string{"a.apk", "b.apk"}, summary.LeakyAPKs)

	empty := QuantifyLeaks(map[string]string{})
	assert.Equal(t, 0, empty.TotalApps)
	assert.Empty(t, empty.LeakyAPKs)
}

func TestBuildCommand(t *testing.T) {
	a, cfg := setup(t, &fakeRunner{})
	cmd := a.BuildCommand("apks/x.apk", "sns.txt")

	assert.Equal(t, "java", cmd.Name)
	assert.Equal(t, []string{
		"-jar", cfg.FlowDroidPath(),
		"-a", "apks/x.apk",
		"-p", cfg.AndroidPath(),
		"-s", "sns.txt",
	}, cmd.Args)
	assert.True(t, strings.HasPrefix(cmd.String(), "java -jar "))
}

func TestAnalyzeAPKSavesLog(t *testing.T) {
	runner := &fakeRunner{logs: map[string]string{"app.apk": leakLog("4")}}
	a, cfg := setup(t, runner)

	apk := filepath.Join(t.TempDir(), "app.apk")
	writeAPK(t, apk)

	log, err := a.AnalyzeAPK(context.Background(), apk, Options{SaveLogs: true})
	require.NoError(t, err)
	assert.Equal(t, leakLog("4"), log)

	saved, err := os.ReadFile(strings.TrimSuffix(apk, ".apk") + ".log")
	require.NoError(t, err)
	assert.Equal(t, log, string(saved))

	require.Len(t, runner.commands, 1)
	assert.Contains(t, runner.commands[0].Args, filepath.Join(cfg.SourcesSinksDir(), sourcesinks.Small))
}

func TestAnalyzeAPKRejectsInvalidPaths(t *testing.T) {
	a, _ := setup(t, &fakeRunner{})
	dir := t.TempDir()

	notAPK := filepath.Join(dir, "app.zip")
	writeAPK(t, notAPK)

	for _, path := range []string{filepath.Join(dir, "missing.apk"), notAPK, dir} {
		_, err := a.AnalyzeAPK(context.Background(), path, Options{})
		assert.True(t, errors.Is(err, ErrInvalidAPK), path)
	}
}

func TestAnalyzeAPKInvalidSourcesSinks(t *testing.T) {
	a, _ := setup(t, &fakeRunner{})
	apk := filepath.Join(t.TempDir(), "app.apk")
	writeAPK(t, apk)

	_, err := a.AnalyzeAPK(context.Background(), apk, Options{SourcesSinks: "medium.txt"})
	assert.True(t, errors.Is(err, sourcesinks.ErrInvalidSourcesSinks))
}

func TestAnalyzeFolder(t *testing.T) {
	runner := &fakeRunner{logs: map[string]string{
		"one.apk":   leakLog("1"),
		"two.apk":   leakLog("0"),
		"three.apk": leakLog("6"),
	}}
	a, _ := setup(t, runner)

	dir := t.TempDir()
	writeAPK(t, filepath.Join(dir, "one.apk"))
	writeAPK(t, filepath.Join(dir, "nested", "two.apk"))
	writeAPK(t, filepath.Join(dir, "nested", "deeper", "three.apk"))
	writeAPK(t, filepath.Join(dir, "notes.txt"))

	logs, err := a.AnalyzeFolder(context.Background(), dir, Options{SourcesSinks: sourcesinks.Large})
	require.NoError(t, err)
	assert.Len(t, logs, 3)
	assert.Equal(t, leakLog("6"), logs[filepath.Join(dir, "nested", "deeper", "three.apk")])

	_, err = os.Stat(filepath.Join(dir, "one.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestAnalyzeFolderCreatesDefaultFolder(t *testing.T) {
	a, cfg := setup(t, &fakeRunner{})

	logs, err := a.AnalyzeFolder(context.Background(), cfg.APKDir, Options{})
	require.NoError(t, err)
	assert.Empty(t, logs)

	stat, err := os.Stat(cfg.APKDir)
	require.NoError(t, err)
	assert.True(t, stat.IsDir())

	_, err = a.AnalyzeFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.True(t, errors.Is(err, ErrInvalidFolder))
}

func TestAnalyzeFolderContinuesAfterTimeout(t *testing.T) {
	runner := &fakeRunner{
		logs: map[string]string{"b.apk": leakLog("2")},
		errs: map[string]error{"a.apk": ErrTimeout},
	}
	a, _ := setup(t, runner)

	dir := t.TempDir()
	writeAPK(t, filepath.Join(dir, "a.apk"))
	writeAPK(t, filepath.Join(dir, "b.apk"))

	summary, err := a.Analyze(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalApps)
	assert.Equal(t, 2, summary.TotalLeaks)
	assert.Equal(t, []string{filepath.Join(dir, "b.apk")}, summary.LeakyAPKs)
}

func TestAnalyzeStopsOnRunnerFailure(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"a.apk": errors.New("java: not found")}}
	a, _ := setup(t, runner)

	dir := t.TempDir()
	writeAPK(t, filepath.Join(dir, "a.apk"))

	_, err := a.Analyze(context.Background(), dir, Options{})
	assert.Error(t, err)
}

func TestAnalyzeSingleAPKAndMissingPath(t *testing.T) {
	runner := &fakeRunner{logs: map[string]string{"solo.apk": leakLog("3")}}
	a, _ := setup(t, runner)

	apk := filepath.Join(t.TempDir(), "solo.apk")
	writeAPK(t, apk)

	summary, err := a.Analyze(context.Background(), apk, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalApps)
	assert.Equal(t, 3, summary.TotalLeaks)
	assert.Equal(t, []string{apk}, summary.LeakyAPKs)

	_, err = a.Analyze(context.Background(), filepath.Join(t.TempDir(), "ghost"), Options{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseLogDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.log"), []byte(leakLog("5")+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clean.log"), []byte(leakLog("0")), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.log"), []byte(leakLog("4")+"\n\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("Found 9 leaks"), 0644))

	summary, err := ParseLogDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalApps)
	assert.Equal(t, 5, summary.TotalLeaks)
	assert.Equal(t, []string{"game.apk"}, summary.LeakyAPKs)

	_, err = ParseLogDir(filepath.Join(dir, "game.log"))
	assert.True(t, errors.Is(err, ErrInvalidFolder))
}
