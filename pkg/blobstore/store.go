// Package blobstore is a content-addressed file tree on local disk,
// grounded on the teacher's pkg/payload/store/fs block store: scratch
// files are written under a root-relative staging area and published
// to their final path by atomic rename.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/marmos91/byteserve/internal/logger"
)

// tempDirName is the scratch subdirectory under root. Object IDs never
// collide with it because UUIDs don't contain dots.
const tempDirName = ".temp"

// Store is a flat content-addressed blob tree: finalized blobs live at
// <root>/<bucketName>/<objectID>, scratch files at <root>/.temp/<name>.
type Store struct {
	root string
}

// New opens a Store rooted at root, creating it if necessary, and
// purges any scratch files left behind by a prior, non-graceful
// shutdown.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("blobstore: root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	s := &Store{root: root}
	if err := s.purgeTemp(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) purgeTemp() error {
	dir := filepath.Join(s.root, tempDirName)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("blobstore: read temp dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("blobstore: purge temp entry %s: %w", e.Name(), err)
		}
	}
	logger.Info("purged blob store scratch area", "count", len(entries))
	return nil
}

// ObjectPath returns the finalized blob path for objectID in bucketName.
func (s *Store) ObjectPath(bucketName, objectID string) string {
	return filepath.Join(s.root, bucketName, objectID)
}

// NewScratchFile creates a fresh, exclusively-owned temp file under
// .temp and returns its handle and path. Callers write to it and then
// either Publish or Discard it.
func (s *Store) NewScratchFile() (*os.File, string, error) {
	name := uuid.NewString()
	path := filepath.Join(s.root, tempDirName, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("blobstore: create scratch file: %w", err)
	}
	return f, path, nil
}

// ScratchPath returns the deterministic scratch path for a caller-
// chosen name (e.g. "multipart_<uploadID>" or "filereq_<id>"), used by
// upload flows that resume writes across multiple requests.
func (s *Store) ScratchPath(name string) string {
	return filepath.Join(s.root, tempDirName, name)
}

// Publish atomically renames the scratch file at tempPath to its final
// location for (bucketName, objectID). The rename is atomic within a
// single filesystem; tempPath and root must share a mount.
func (s *Store) Publish(ctx context.Context, bucketName, objectID, tempPath string) error {
	dest := s.ObjectPath(bucketName, objectID)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("blobstore: create bucket dir: %w", err)
	}
	if err := os.Rename(tempPath, dest); err != nil {
		return fmt.Errorf("blobstore: publish %s: %w", objectID, err)
	}
	return nil
}

// Discard removes a scratch file, e.g. after an aborted multipart
// upload or a failed metadata commit. Absence is not an error.
func (s *Store) Discard(tempPath string) error {
	if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blobstore: discard scratch file: %w", err)
	}
	return nil
}

// Open opens the finalized blob for reading.
func (s *Store) Open(bucketName, objectID string) (*os.File, error) {
	f, err := os.Open(s.ObjectPath(bucketName, objectID))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat returns the size in bytes of the finalized blob.
func (s *Store) Stat(bucketName, objectID string) (int64, error) {
	info, err := os.Stat(s.ObjectPath(bucketName, objectID))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Delete removes the finalized blob. Idempotent: a missing file is not
// an error, matching the spec's best-effort delete contract.
func (s *Store) Delete(bucketName, objectID string) error {
	err := os.Remove(s.ObjectPath(bucketName, objectID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blobstore: delete %s: %w", objectID, err)
	}
	return nil
}

// DeleteBucket removes every blob under bucketName, used when a bucket
// is deleted and its Objects cascade.
func (s *Store) DeleteBucket(bucketName string) error {
	err := os.RemoveAll(filepath.Join(s.root, bucketName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blobstore: delete bucket tree %s: %w", bucketName, err)
	}
	return nil
}

// CopyToScratch copies an existing blob into a fresh scratch file,
// used by the S3 copy-source (x-amz-copy-source) upload path.
func (s *Store) CopyToScratch(ctx context.Context, srcBucketName, srcObjectID string) (tempPath string, err error) {
	src, err := s.Open(srcBucketName, srcObjectID)
	if err != nil {
		return "", fmt.Errorf("blobstore: open copy source: %w", err)
	}
	defer src.Close()

	dst, path, err := s.NewScratchFile()
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = s.Discard(path)
		return "", fmt.Errorf("blobstore: copy source blob: %w", err)
	}
	return path, nil
}
