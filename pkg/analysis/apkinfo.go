/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: apkinfo.go
Description: APK metadata from "aapt dump badging": package name, version, label and
requested permissions. Reports attach it to each analyzed APK when aapt is installed.
*/

package analysis

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// APKInfo describes an APK as reported by aapt
type APKInfo struct {
	PackageName string   `json:"package_name"`
	VersionName string   `json:"version_name,omitempty"`
	VersionCode string   `json:"version_code,omitempty"`
	Label       string   `json:"label,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Inspector reads APK metadata
type Inspector struct {
	aapt   string
	runner CommandRunner
}

// NewInspector returns an Inspector using the aapt executable, or nil when
// aapt is empty or cannot be found
func NewInspector(aapt string, runner CommandRunner) *Inspector {
	if aapt == "" {
		return nil
	}
	path, err := exec.LookPath(aapt)
	if err != nil {
		return nil
	}
	return &Inspector{aapt: path, runner: runner}
}

// Inspect runs aapt on apk and parses its badging output
func (i *Inspector) Inspect(ctx context.Context, apk string) (*APKInfo, error) {
	out, err := i.runner.Run(ctx, Command{Name: i.aapt, Args: []string{"dump", "badging", apk}})
	if err != nil {
		return nil, fmt.Errorf("aapt failed: %w", err)
	}

	info := parseBadging(out)
	if info.PackageName == "" {
		return nil, fmt.Errorf("aapt reported no package for %s", apk)
	}
	return info, nil
}

// parseBadging extracts fields from "aapt dump badging" output
func parseBadging(output string) *APKInfo {
	info := &APKInfo{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "package: "):
			for _, f := range strings.Fields(line) {
				switch {
				case strings.HasPrefix(f, "name="):
					info.PackageName = unquote(f[5:])
				case strings.HasPrefix(f, "versionName="):
					info.VersionName = unquote(f[12:])
				case strings.HasPrefix(f, "versionCode="):
					info.VersionCode = unquote(f[12:])
				}
			}
		case strings.HasPrefix(line, "uses-permission: "):
			perm := strings.TrimPrefix(line, "uses-permission: ")
			perm = strings.TrimPrefix(perm, "name=")
			info.Permissions = append(info.Permissions, unquote(perm))
		case strings.HasPrefix(line, "application-label:"):
			info.Label = unquote(strings.TrimPrefix(line, "application-label:"))
		}
	}
	return info
}

func unquote(s string) string {
	return strings.Trim(s, "'\"")
}
