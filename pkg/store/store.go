/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store.go
Description: Archival of analysis logs and reports to a gocloud blob bucket. Any bucket
URL gocloud understands works: file:// for local folders, s3:// and gs:// for cloud
storage.
*/

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/gvieralopez/goflowdroid/pkg/logging"
)

// Store writes objects under a base path of a bucket
type Store struct {
	bucket   string
	basePath string
	logger   *logging.Logger
}

type (
	Option interface{ set(*Store) }
	option func(*Store) // option implements Option.
)

func (o option) set(s *Store) { o(s) }

// BasePath sets the prefix of every key written by the store
func BasePath(base string) Option {
	return option(func(s *Store) { s.basePath = base })
}

// New creates a store for the bucket URL
func New(bucket string, logger *logging.Logger, options ...Option) *Store {
	s := &Store{
		bucket: bucket,
		logger: logger,
	}
	for _, o := range options {
		o.set(s)
	}
	return s
}

func (s *Store) String() string {
	return s.bucket + "/" + s.basePath
}

func (s *Store) key(name string) string {
	return path.Join(s.basePath, name)
}

func (s *Store) upload(ctx context.Context, key string, r io.Reader) error {
	bkt, err := blob.OpenBucket(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to open bucket %s: %w", s.bucket, err)
	}
	defer bkt.Close()

	uploadPath := s.key(key)
	s.logger.Info("Uploading to store", map[string]interface{}{
		"bucket": s.bucket,
		"path":   uploadPath,
	})

	w, err := bkt.NewWriter(ctx, uploadPath, nil)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Save writes data under key
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	return s.upload(ctx, key, bytes.NewReader(data))
}

// SaveFile copies the file at p under key
func (s *Store) SaveFile(ctx context.Context, key, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.upload(ctx, key, f)
}

// ErrDuplicateKey is returned when two archived files map to the same key
var ErrDuplicateKey = errors.New("duplicate archive key")

// archiveKey keys p by its slash-separated path relative to root. Files
// outside root, or any file when root is empty, are keyed by base name.
func archiveKey(root, p string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, p); err == nil && rel != "." && rel != ".." &&
			!strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(p)
}

// Archive saves every file in paths under prefix, keyed by its path relative
// to root. Nothing is uploaded when two files would share a key.
func (s *Store) Archive(ctx context.Context, prefix, root string, paths []string) error {
	keys := make(map[string]string, len(paths))
	var ordered []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		key := path.Join(prefix, archiveKey(root, p))
		if prev, ok := keys[key]; ok {
			return fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateKey, prev, p, key)
		}
		keys[key] = p
		ordered = append(ordered, key)
	}

	for _, key := range ordered {
		p := keys[key]
		if err := s.SaveFile(ctx, key, p); err != nil {
			return fmt.Errorf("failed to archive %s: %w", p, err)
		}
	}
	return nil
}
