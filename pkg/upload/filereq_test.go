package upload

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

func TestFileRequestFullLifecycle(t *testing.T) {
	engine, store, bucket, owner := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	session, err := engine.CreateFileRequestSession(ctx, bucket.ID, nil, "", false, owner.ID)
	require.NoError(t, err)
	require.False(t, session.FilenameFixed)

	_, err = engine.InitiateFileRequestUpload(ctx, session.ID, "report.json")
	require.NoError(t, err)

	loaded, err := engine.LoadFileRequestSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, "report.json", loaded.Filename)
	require.True(t, loaded.Initiated)

	size, err := engine.UploadFileRequestChunk(ctx, session.ID, bucket, owner, bytes.NewBufferString(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, int64(len(`{"a":1}`)), size)

	size, err = engine.UploadFileRequestChunk(ctx, session.ID, bucket, owner, bytes.NewBufferString(`{"b":2}`))
	require.NoError(t, err)
	require.Equal(t, int64(len(`{"a":1}{"b":2}`)), size)

	obj, err := engine.CompleteFileRequestUpload(ctx, bucket, owner, session.ID)
	require.NoError(t, err)
	require.Equal(t, "report.json", obj.Filename)
	require.Equal(t, int64(len(`{"a":1}{"b":2}`)), obj.Size)
	require.Equal(t, "application/json", obj.MimeType)

	_, err = store.FindObjectByID(ctx, bucket.ID, obj.ID)
	require.NoError(t, err)

	_, err = engine.LoadFileRequestSession(ctx, session.ID)
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestFileRequestFixedFilenameRejectsOverride(t *testing.T) {
	engine, _, bucket, owner := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	session, err := engine.CreateFileRequestSession(ctx, bucket.ID, nil, "fixed.bin", false, owner.ID)
	require.NoError(t, err)
	require.True(t, session.FilenameFixed)

	updated, err := engine.InitiateFileRequestUpload(ctx, session.ID, "ignored.bin")
	require.NoError(t, err)
	require.Equal(t, "fixed.bin", updated.Filename)
}

func TestFileRequestChunkOverQuotaEmptiesScratch(t *testing.T) {
	engine, _, bucket, owner := setup(t, metadata.Unlimited, 10)
	ctx := context.Background()

	session, err := engine.CreateFileRequestSession(ctx, bucket.ID, nil, "big.bin", false, owner.ID)
	require.NoError(t, err)
	_, err = engine.InitiateFileRequestUpload(ctx, session.ID, "")
	require.NoError(t, err)

	_, err = engine.UploadFileRequestChunk(ctx, session.ID, bucket, owner, bytes.NewBufferString("way too many bytes for this quota"))
	require.Error(t, err)
	require.Equal(t, apierr.QuotaExceeded, apierr.KindOf(err))

	loaded, err := engine.LoadFileRequestSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, loaded.Initiated)

	info, err := os.Stat(engine.blobs.ScratchPath("filereq_" + session.ID))
	require.NoError(t, err)
	require.Equal(t, int64(0), info.Size())
}

func TestFileRequestCancelDiscardsScratch(t *testing.T) {
	engine, _, bucket, owner := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	session, err := engine.CreateFileRequestSession(ctx, bucket.ID, nil, "x.bin", false, owner.ID)
	require.NoError(t, err)
	_, err = engine.InitiateFileRequestUpload(ctx, session.ID, "")
	require.NoError(t, err)
	_, err = engine.UploadFileRequestChunk(ctx, session.ID, bucket, owner, bytes.NewBufferString("data"))
	require.NoError(t, err)

	require.NoError(t, engine.CancelFileRequest(ctx, session.ID))

	_, err = engine.LoadFileRequestSession(ctx, session.ID)
	require.ErrorIs(t, err, apierr.ErrNotFound)

	// Canceling twice is a no-op, not an error.
	require.NoError(t, engine.CancelFileRequest(ctx, session.ID))
}
