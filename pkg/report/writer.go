/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: writer.go
Description: Writes runs as timestamped JSON and HTML reports into an output folder.
*/

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
)

// Writer creates report files in an output directory
type Writer struct {
	outputDir string
	logger    *logging.Logger
	templates *template.Template
}

// NewWriter creates a report writer for outputDir
func NewWriter(outputDir string, logger *logging.Logger) *Writer {
	funcs := template.FuncMap{
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"round": func(d time.Duration) time.Duration { return d.Round(time.Millisecond) },
		"stamp": func(t time.Time) string { return t.Format(time.RFC3339) },
	}
	return &Writer{
		outputDir: outputDir,
		logger:    logger,
		templates: template.Must(template.New("report").Funcs(funcs).Parse(reportTemplate)),
	}
}

// filename builds "2024-06-11_01-30-00_<id>.<ext>"
func (w *Writer) filename(run *Run, ext string) string {
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s.%s", run.StartedAt.Format("2006-01-02_15-04-05"), id, ext)
}

func (w *Writer) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(w.outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	w.logger.Info("Report written", map[string]interface{}{"path": path})
	return path, nil
}

// WriteJSON writes run as indented JSON and returns the file path
func (w *Writer) WriteJSON(run *Run) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return w.write(w.filename(run, "json"), data)
}

// WriteHTML renders run as an HTML page and returns the file path
func (w *Writer) WriteHTML(run *Run) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Title string
		*Run
	}{Title, run}
	if err := w.templates.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return w.write(w.filename(run, "html"), buf.Bytes())
}

// WriteAll writes both formats and returns their paths
func (w *Writer) WriteAll(run *Run) ([]string, error) {
	jsonPath, err := w.WriteJSON(run)
	if err != nil {
		return nil, err
	}
	htmlPath, err := w.WriteHTML(run)
	if err != nil {
		return nil, err
	}
	return []string{jsonPath, htmlPath}, nil
}
