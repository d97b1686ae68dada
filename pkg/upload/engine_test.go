package upload

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/blobstore"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
	"github.com/marmos91/byteserve/pkg/quota"
)

func setup(t *testing.T, ownerQuota, bucketQuota int64) (*Engine, metadata.Store, *metadata.Bucket, *metadata.User) {
	t.Helper()

	store := memory.New()
	ctx := context.Background()

	owner := &metadata.User{ID: uuid.NewString(), Username: "u", PasswordHash: "x", StorageQuota: ownerQuota}
	require.NoError(t, store.CreateUser(ctx, owner))
	bucket := &metadata.Bucket{ID: uuid.NewString(), Name: "bucket-" + uuid.NewString(), OwnerID: owner.ID, StorageQuota: bucketQuota}
	require.NoError(t, store.CreateBucket(ctx, bucket))

	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)

	cache, err := kvcache.New("")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	evaluator := quota.New(store)

	return New(store, blobs, cache, evaluator), store, bucket, owner
}

func TestPutObjectSingleShot(t *testing.T) {
	engine, store, bucket, owner := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	obj, err := engine.PutObject(ctx, bucket, owner, nil, "hello.txt", "text/plain", bytes.NewBufferString("hello world"))
	require.NoError(t, err)
	require.Equal(t, int64(len("hello world")), obj.Size)
	require.Equal(t, "text/plain", obj.MimeType)

	got, err := store.FindObjectByID(ctx, bucket.ID, obj.ID)
	require.NoError(t, err)
	require.Equal(t, obj.Size, got.Size)

	f, err := engine.blobs.Open(bucket.Name, obj.ID)
	require.NoError(t, err)
	defer f.Close()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestPutObjectGuessesMimeType(t *testing.T) {
	engine, _, bucket, owner := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	obj, err := engine.PutObject(ctx, bucket, owner, nil, "photo.png", "", bytes.NewBufferString("data"))
	require.NoError(t, err)
	require.Equal(t, "image/png", obj.MimeType)
}

func TestPutObjectRefusedOverBucketQuota(t *testing.T) {
	engine, _, bucket, owner := setup(t, metadata.Unlimited, 4)
	ctx := context.Background()

	_, err := engine.PutObject(ctx, bucket, owner, nil, "big.txt", "text/plain", bytes.NewBufferString("way too big"))
	require.Error(t, err)
	require.Equal(t, apierr.QuotaExceeded, apierr.KindOf(err))
}

func TestMultipartUploadLifecycle(t *testing.T) {
	engine, _, bucket, owner := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	uploadID, err := engine.InitiateMultipart(ctx, bucket.ID, nil, "movie.mp4", "")
	require.NoError(t, err)
	require.NotEmpty(t, uploadID)

	etag1, err := engine.UploadPart(ctx, uploadID, 1, bytes.NewBufferString("part-one-"))
	require.NoError(t, err)
	require.NotEmpty(t, etag1)

	etag2, err := engine.UploadPart(ctx, uploadID, 2, bytes.NewBufferString("part-two"))
	require.NoError(t, err)
	require.NotEqual(t, etag1, etag2)

	parts, truncated, err := engine.ListParts(ctx, uploadID, 0, 0)
	require.NoError(t, err)
	require.False(t, truncated)
	require.Len(t, parts, 2)
	require.Equal(t, 1, parts[0].PartNumber)
	require.Equal(t, 2, parts[1].PartNumber)

	obj, err := engine.CompleteMultipart(ctx, bucket, owner, uploadID)
	require.NoError(t, err)
	require.Equal(t, "movie.mp4", obj.Filename)
	require.Equal(t, int64(len("part-one-part-two")), obj.Size)

	f, err := engine.blobs.Open(bucket.Name, obj.ID)
	require.NoError(t, err)
	defer f.Close()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Equal(t, "part-one-part-two", string(data))

	_, err = engine.loadSession(ctx, uploadID)
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestUploadPartDuplicateNumberReplaces(t *testing.T) {
	engine, _, bucket, _ := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	uploadID, err := engine.InitiateMultipart(ctx, bucket.ID, nil, "f.bin", "")
	require.NoError(t, err)

	_, err = engine.UploadPart(ctx, uploadID, 1, bytes.NewBufferString("first-attempt"))
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, uploadID, 1, bytes.NewBufferString("retry"))
	require.NoError(t, err)

	parts, _, err := engine.ListParts(ctx, uploadID, 0, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.EqualValues(t, len("retry"), parts[0].Size)
}

func TestUploadPartRejectsNonPositivePartNumber(t *testing.T) {
	engine, _, bucket, _ := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	uploadID, err := engine.InitiateMultipart(ctx, bucket.ID, nil, "f.bin", "")
	require.NoError(t, err)

	_, err = engine.UploadPart(ctx, uploadID, 0, bytes.NewBufferString("x"))
	require.Error(t, err)
	require.Equal(t, apierr.BadRequest, apierr.KindOf(err))
}

func TestAbortMultipartDiscardsParts(t *testing.T) {
	engine, _, bucket, _ := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	uploadID, err := engine.InitiateMultipart(ctx, bucket.ID, nil, "f.bin", "")
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, uploadID, 1, bytes.NewBufferString("data"))
	require.NoError(t, err)

	require.NoError(t, engine.AbortMultipart(ctx, uploadID))
	require.NoError(t, engine.AbortMultipart(ctx, uploadID))

	_, err = engine.loadSession(ctx, uploadID)
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestCreateFolder(t *testing.T) {
	engine, _, bucket, _ := setup(t, metadata.Unlimited, metadata.Unlimited)
	ctx := context.Background()

	obj, err := engine.CreateFolder(ctx, bucket.ID, nil, "photos")
	require.NoError(t, err)
	require.True(t, obj.IsFolder())
}
