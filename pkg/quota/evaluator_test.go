package quota

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
)

func setup(t *testing.T, bucketQuota, ownerQuota int64) (*Evaluator, metadata.Store, *metadata.Bucket, *metadata.User) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	owner := &metadata.User{ID: uuid.NewString(), Username: "u", PasswordHash: "x", StorageQuota: ownerQuota}
	require.NoError(t, store.CreateUser(ctx, owner))
	bucket := &metadata.Bucket{ID: uuid.NewString(), Name: "b", OwnerID: owner.ID, StorageQuota: bucketQuota}
	require.NoError(t, store.CreateBucket(ctx, bucket))

	return New(store), store, bucket, owner
}

func TestUnlimitedAlwaysAllows(t *testing.T) {
	e, _, bucket, owner := setup(t, metadata.Unlimited, metadata.Unlimited)
	ok, err := e.Check(context.Background(), bucket, owner, 1<<40)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBucketQuotaRefusal(t *testing.T) {
	e, _, bucket, owner := setup(t, 5, metadata.Unlimited)
	ok, err := e.Check(context.Background(), bucket, owner, 6)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBucketQuotaAllowsExactFit(t *testing.T) {
	e, _, bucket, owner := setup(t, 5, metadata.Unlimited)
	ok, err := e.Check(context.Background(), bucket, owner, 5)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOwnerQuotaRefusal(t *testing.T) {
	e, store, bucket, owner := setup(t, metadata.Unlimited, 10)
	ctx := context.Background()

	_, err := store.CreateObject(ctx, bucket.ID, nil, "existing.bin", "application/octet-stream", 8)
	require.NoError(t, err)

	ok, err := e.Check(ctx, bucket, owner, 5)
	require.NoError(t, err)
	require.False(t, ok, "owner-wide usage must count toward the account quota")
}

func TestFoldersExcludedFromUsage(t *testing.T) {
	e, store, bucket, owner := setup(t, 0, metadata.Unlimited)
	ctx := context.Background()

	_, err := store.CreateObject(ctx, bucket.ID, nil, "dir", metadata.FolderMimeType, 0)
	require.NoError(t, err)

	ok, err := e.Check(ctx, bucket, owner, 0)
	require.NoError(t, err)
	require.True(t, ok)
}
