/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: archive.go
Description: Zip extraction for the Android platforms archive. Entries that would
land outside the destination directory are rejected.
*/

package install

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeArchivePath is returned for archive entries escaping the destination
var ErrUnsafeArchivePath = errors.New("archive entry escapes destination")

// extractZip extracts the archive at src into dest and returns the number of
// files written
func extractZip(src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return 0, fmt.Errorf("%w: %v", ErrUnsafeArchivePath, err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	root := filepath.Clean(dest)
	files := 0
	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("%w: %s", ErrUnsafeArchivePath, f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return files, err
			}
		case mode.IsRegular():
			if err := extractFile(f, target); err != nil {
				return files, err
			}
			files++
		default:
			// symlinks and devices are skipped
		}
	}
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
