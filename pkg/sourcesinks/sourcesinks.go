/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: sourcesinks.go
Description: Sources and sinks files for FlowDroid. Resolves the file an analysis
should use (a custom path or one of the bundled small.txt / large.txt), parses
the FlowDroid text format to report how many sources and sinks are in play, and
installs the bundled files into the resource directory.
*/

package sourcesinks

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// Small is the default bundled file
	Small = "small.txt"
	// Large is the extended bundled file
	Large = "large.txt"
)

// ErrInvalidSourcesSinks is returned when a value is neither an existing
// file nor the name of a bundled file
var ErrInvalidSourcesSinks = errors.New("invalid sources and sinks file path")

//go:embed data/*.txt
var bundled embed.FS

// Kind is the role a method plays in the taint analysis
type Kind string

const (
	KindSource Kind = "_SOURCE_"
	KindSink   Kind = "_SINK_"
	KindBoth   Kind = "_BOTH_"
	KindNone   Kind = "_NONE_"
)

// Method is one entry of a sources and sinks file
type Method struct {
	Signature   string   `json:"signature"`
	Permissions []string `json:"permissions,omitempty"`
	Kind        Kind     `json:"kind"`
}

// Definitions is a parsed sources and sinks file
type Definitions struct {
	Methods []Method `json:"methods"`
	Invalid []string `json:"invalid,omitempty"` // lines that could not be parsed
}

// Sources counts methods acting as sources
func (d *Definitions) Sources() int {
	return d.count(KindSource)
}

// Sinks counts methods acting as sinks
func (d *Definitions) Sinks() int {
	return d.count(KindSink)
}

func (d *Definitions) count(kind Kind) int {
	n := 0
	for _, m := range d.Methods {
		if m.Kind == kind || m.Kind == KindBoth {
			n++
		}
	}
	return n
}

// entryPattern matches "<class: ret name(args)> [permissions] [-> _KIND_]"
var entryPattern = regexp.MustCompile(`^(<[^\s:]+:\s*\S+\s+\S+\(.*?\)>)\s*(.*?)\s*(?:->\s*(_[A-Z]+_))?\s*$`)

// Parse reads the FlowDroid text format. Blank lines and lines starting
// with '%' are ignored. Entries without an explicit kind default to _NONE_.
func Parse(r io.Reader) (*Definitions, error) {
	defs := &Definitions{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}

		match := entryPattern.FindStringSubmatch(line)
		if match == nil {
			defs.Invalid = append(defs.Invalid, line)
			continue
		}

		method := Method{Signature: match[1], Kind: KindNone}
		if perms := strings.Fields(match[2]); len(perms) > 0 {
			method.Permissions = perms
		}
		switch Kind(match[3]) {
		case KindSource, KindSink, KindBoth, KindNone:
			method.Kind = Kind(match[3])
		case "":
		default:
			defs.Invalid = append(defs.Invalid, line)
			continue
		}
		defs.Methods = append(defs.Methods, method)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sources and sinks: %w", err)
	}

	return defs, nil
}

// ParseFile parses the sources and sinks file at path
func ParseFile(path string) (*Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Resolve picks the sources and sinks file for an analysis. A value naming
// an existing regular file is used as is; "large.txt" selects the bundled
// large file and "" or "small.txt" the bundled small one, both under dir.
func Resolve(dir string, value string) (string, error) {
	if value != "" {
		if stat, err := os.Stat(value); err == nil && stat.Mode().IsRegular() {
			return value, nil
		}
	}

	switch value {
	case Large:
		return filepath.Join(dir, Large), nil
	case Small, "":
		return filepath.Join(dir, Small), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidSourcesSinks, value)
	}
}

// Bundled returns the content of a bundled file
func Bundled(name string) ([]byte, error) {
	return bundled.ReadFile("data/" + name)
}

// Install writes the bundled files into dir and returns their paths
func Install(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var paths []string
	for _, name := range []string{Small, Large} {
		data, err := Bundled(name)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
