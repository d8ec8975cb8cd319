/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report.go
Description: Analysis reports. Generate renders the plain text summary printed by the
analyze command; Run captures one analysis run (id, timing, settings and summary) for
the JSON and HTML report writers.
*/

package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gvieralopez/goflowdroid/pkg/analysis"
	"github.com/gvieralopez/goflowdroid/pkg/config"
)

// Title heads every report
const Title = "GOFLOWDROID REPORT"

const headerWidth = 50

// Header renders a centered title between two rules
func Header(title string) string {
	rule := strings.Repeat("=", headerWidth)
	pad := (headerWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	return rule + "\n" + strings.Repeat(" ", pad) + title + "\n" + rule + "\n"
}

// Generate renders the text report of a summary
func Generate(summary *analysis.Summary) string {
	var b strings.Builder
	b.WriteString(Header(Title))
	fmt.Fprintf(&b, "Analyzed: %d\n", summary.TotalApps)
	fmt.Fprintf(&b, "Leaks found: %d\n\n", summary.TotalLeaks)

	if len(summary.LeakyAPKs) > 0 {
		b.WriteString("Leaky apks:\n")
		for _, apk := range summary.LeakyAPKs {
			fmt.Fprintf(&b, " - %s\n", apk)
		}
	} else {
		b.WriteString("No leaky apks found\n")
	}
	return b.String()
}

// Settings records the configuration an analysis ran with
type Settings struct {
	Java         string        `json:"java"`
	FlowDroid    string        `json:"flowdroid"`
	Android      string        `json:"android"`
	SourcesSinks string        `json:"sources_sinks"`
	Timeout      time.Duration `json:"timeout"`
}

// Run is one analysis run
type Run struct {
	ID         string            `json:"id"`
	Target     string            `json:"target"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Settings   Settings          `json:"settings"`
	Summary    *analysis.Summary `json:"summary"`
}

// NewRun starts a run against target
func NewRun(cfg *config.Config, target, sourcesSinks string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: time.Now(),
		Settings: Settings{
			Java:         cfg.Java,
			FlowDroid:    cfg.FlowDroidPath(),
			Android:      cfg.AndroidPath(),
			SourcesSinks: sourcesSinks,
			Timeout:      cfg.Timeout,
		},
	}
}

// Finish records the summary and end time
func (r *Run) Finish(summary *analysis.Summary) {
	r.Summary = summary
	r.FinishedAt = time.Now()
}

// Duration is how long the run took
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
