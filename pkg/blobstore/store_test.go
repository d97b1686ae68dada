package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPublishAndOpen(t *testing.T) {
	s := newTestStore(t)

	f, tempPath, err := s.NewScratchFile()
	require.NoError(t, err)
	_, err = f.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Publish(context.Background(), "my-bucket", "obj-1", tempPath))

	blob, err := s.Open("my-bucket", "obj-1")
	require.NoError(t, err)
	defer blob.Close()

	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	_, err = os.Stat(tempPath)
	require.True(t, os.IsNotExist(err), "publish must move, not copy, the scratch file")
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Delete("no-such-bucket", "no-such-object"))
}

func TestPurgeTempOnStart(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	f, _, err := s.NewScratchFile()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Reopening the same root must purge leftover scratch files.
	s2, err := New(root)
	require.NoError(t, err)
	dirEntries, err := os.ReadDir(s2.root + "/" + tempDirName)
	require.NoError(t, err)
	require.Empty(t, dirEntries)
}

func TestCopyToScratch(t *testing.T) {
	s := newTestStore(t)
	f, tempPath, err := s.NewScratchFile()
	require.NoError(t, err)
	_, err = f.Write(bytes.Repeat([]byte("x"), 128))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, s.Publish(context.Background(), "src-bucket", "src-obj", tempPath))

	copyPath, err := s.CopyToScratch(context.Background(), "src-bucket", "src-obj")
	require.NoError(t, err)
	data, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	require.Len(t, data, 128)
}
