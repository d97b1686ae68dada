package pathresolver

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
)

func setup(t *testing.T) (*Resolver, metadata.Store, string) {
	t.Helper()
	store := memory.New()
	cache, err := kvcache.New("")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	ctx := context.Background()
	owner := &metadata.User{ID: uuid.NewString(), Username: "u", PasswordHash: "x", StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateUser(ctx, owner))
	bucket := &metadata.Bucket{ID: uuid.NewString(), Name: "b", OwnerID: owner.ID, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateBucket(ctx, bucket))

	return New(store, cache), store, bucket.ID
}

func TestResolveNestedFile(t *testing.T) {
	r, store, bucketID := setup(t)
	ctx := context.Background()

	folder, err := store.CreateObject(ctx, bucketID, nil, "docs", metadata.FolderMimeType, 0)
	require.NoError(t, err)
	file, err := store.CreateObject(ctx, bucketID, &folder.ID, "a.txt", "text/plain", 10)
	require.NoError(t, err)

	got, err := r.Resolve(ctx, bucketID, "b", []string{"docs", "a.txt"}, CacheOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, file.ID, got.ID)
}

func TestResolveMissingSegmentReturnsNil(t *testing.T) {
	r, _, bucketID := setup(t)
	got, err := r.Resolve(context.Background(), bucketID, "b", []string{"nope"}, CacheOptions{})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestResolveThroughNonFolderFails(t *testing.T) {
	r, store, bucketID := setup(t)
	ctx := context.Background()

	file, err := store.CreateObject(ctx, bucketID, nil, "a.txt", "text/plain", 10)
	require.NoError(t, err)
	_ = file

	got, err := r.Resolve(ctx, bucketID, "b", []string{"a.txt", "b.txt"}, CacheOptions{})
	require.NoError(t, err)
	require.Nil(t, got, "intermediate non-folder segment must fail the whole path")
}

func TestResolveUsesCacheOnHit(t *testing.T) {
	r, store, bucketID := setup(t)
	ctx := context.Background()

	file, err := store.CreateObject(ctx, bucketID, nil, "a.txt", "text/plain", 10)
	require.NoError(t, err)

	opts := CacheOptions{Enabled: true, TTL: time.Minute}
	got, err := r.Resolve(ctx, bucketID, "b", []string{"a.txt"}, opts)
	require.NoError(t, err)
	require.Equal(t, file.ID, got.ID)

	require.NoError(t, store.DeleteObject(ctx, bucketID, file.ID, false))

	stillCached, err := r.Resolve(ctx, bucketID, "b", []string{"a.txt"}, opts)
	require.NoError(t, err)
	require.NotNil(t, stillCached, "cached hit must tolerate staleness within ttl")
	require.Equal(t, file.ID, stillCached.ID)
}
