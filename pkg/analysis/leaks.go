/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: leaks.go
Description: Leak counting over FlowDroid logs. FlowDroid ends its output with a line
such as "... Found 3 leaks"; the count is the second-to-last token of that line.
*/

package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of analyzing one APK
type Result struct {
	APK      string        `json:"apk"`
	Leaks    int           `json:"leaks"`
	Duration time.Duration `json:"duration"`
	Info     *APKInfo      `json:"info,omitempty"`
	LogPath  string        `json:"log_path,omitempty"`
	Log      string        `json:"-"`
}

// Summary aggregates the results of an analysis run
type Summary struct {
	TotalApps  int      `json:"total_apps"`
	TotalLeaks int      `json:"total_leaks"`
	LeakyAPKs  []string `json:"leaky_apks"`
	Results    []Result `json:"results"`
}

// CountLeaks returns the leak count reported in the final line of log, or 0
// when that line does not carry one. A log ending in a newline has an empty
// final line; runner output already has its single trailing newline removed.
func CountLeaks(log string) int {
	last := log
	if i := strings.LastIndex(log, "\n"); i >= 0 {
		last = log[i+1:]
	}

	fields := strings.Fields(last)
	if len(fields) < 2 {
		return 0
	}

	token := fields[len(fields)-2]
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0
	}
	return n
}

// Summarize totals a list of results. Results keep their order; leaky APKs
// are listed in the same order.
func Summarize(results []Result) *Summary {
	s := &Summary{
		TotalApps: len(results),
		LeakyAPKs: []string{},
		Results:   results,
	}
	for _, r := range results {
		if r.Leaks != 0 {
			s.TotalLeaks += r.Leaks
			s.LeakyAPKs = append(s.LeakyAPKs, r.APK)
		}
	}
	return s
}

// QuantifyLeaks counts the leaks in each APK log, keyed by APK path
func QuantifyLeaks(logs map[string]string) *Summary {
	apks := make([]string, 0, len(logs))
	for apk := range logs {
		apks = append(apks, apk)
	}
	sort.Strings(apks)

	results := make([]Result, 0, len(apks))
	for _, apk := range apks {
		results = append(results, Result{APK: apk, Leaks: CountLeaks(logs[apk]), Log: logs[apk]})
	}
	return Summarize(results)
}

// ParseLogDir counts leaks in every saved .log file directly inside dir. The
// newline terminating a file's last line is not a line of its own.
func ParseLogDir(dir string) (*Summary, error) {
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFolder, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var results []Result
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		results = append(results, Result{
			APK:     strings.TrimSuffix(entry.Name(), ".log") + ".apk",
			Leaks:   CountLeaks(strings.TrimSuffix(string(data), "\n")),
			LogPath: path,
		})
	}
	return Summarize(results), nil
}
