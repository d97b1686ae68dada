// Package storetest is a shared conformance suite run against every
// metadata.Store implementation, grounded on the teacher's pattern of
// a single Suite(t, store) entry point exercised by both the Postgres
// and in-memory backends in their own _test.go files.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

// Suite runs the full conformance suite against store. newStore is
// called to obtain a fresh, empty store before each subtest so the
// same suite can be reused across isolated backends (e.g. one
// Postgres schema per test vs. one in-memory Store per test).
func Suite(t *testing.T, newStore func(t *testing.T) metadata.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Buckets", func(t *testing.T) { testBuckets(t, newStore(t)) })
	t.Run("Objects", func(t *testing.T) { testObjects(t, newStore(t)) })
	t.Run("ObjectUniqueness", func(t *testing.T) { testObjectUniqueness(t, newStore(t)) })
	t.Run("ObjectKeyAndRecursiveList", func(t *testing.T) { testObjectKeyAndRecursiveList(t, newStore(t)) })
	t.Run("ClearEmptyParents", func(t *testing.T) { testClearEmptyParents(t, newStore(t)) })
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, newStore(t)) })
	t.Run("BucketConfig", func(t *testing.T) { testBucketConfig(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
}

func testUsers(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	u := &metadata.User{ID: uuid.NewString(), Username: "alice", PasswordHash: "hash", Enabled: true, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateUser(ctx, u))

	got, err := store.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got.StorageQuota = 1024
	require.NoError(t, store.UpdateUser(ctx, got))

	got2, err := store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1024, got2.StorageQuota)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = store.FindUserByID(ctx, u.ID)
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

func testBuckets(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)

	b := &metadata.Bucket{ID: uuid.NewString(), Name: "my-bucket", OwnerID: owner.ID, Access: metadata.AccessPrivate, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateBucket(ctx, b))

	got, err := store.FindBucketByName(ctx, "my-bucket")
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)

	list, err := store.ListBucketsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.DeleteBucket(ctx, b.ID))
	_, err = store.FindBucketByID(ctx, b.ID)
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

func testObjects(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)
	b := mustBucket(t, store, owner.ID)

	folder, err := store.CreateObject(ctx, b.ID, nil, "docs", metadata.FolderMimeType, 0)
	require.NoError(t, err)
	require.True(t, folder.IsFolder())

	file, err := store.CreateObject(ctx, b.ID, &folder.ID, "readme.txt", "text/plain", 42)
	require.NoError(t, err)
	require.False(t, file.IsFolder())

	children, _, err := store.ListChildren(ctx, b.ID, &folder.ID, metadata.ChildFilter{}, metadata.OrderByFilename, 0, "")
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, "readme.txt", children[0].Filename)

	usage, err := store.AggregateBucketUsage(ctx, b.ID)
	require.NoError(t, err)
	require.EqualValues(t, 42, usage)

	userUsage, err := store.AggregateUserUsage(ctx, owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 42, userUsage)

	file.Size = 100
	require.NoError(t, store.UpdateObject(ctx, file))
	refetched, err := store.FindObjectByID(ctx, b.ID, file.ID)
	require.NoError(t, err)
	require.EqualValues(t, 100, refetched.Size)

	require.NoError(t, store.DeleteObject(ctx, b.ID, file.ID, false))
	_, err = store.FindObjectByID(ctx, b.ID, file.ID)
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

// testObjectUniqueness asserts the (bucketID, parentID, filename)
// invariant: CreateObject is findOrCreate, not insert-or-fail.
func testObjectUniqueness(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)
	b := mustBucket(t, store, owner.ID)

	first, err := store.CreateObject(ctx, b.ID, nil, "same.txt", "text/plain", 10)
	require.NoError(t, err)

	second, err := store.CreateObject(ctx, b.ID, nil, "same.txt", "text/plain", 999)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.EqualValues(t, 10, second.Size, "findOrCreate must return the existing row, not overwrite it")

	// Root-level duplicates across distinct buckets must not collide.
	b2 := mustBucket(t, store, owner.ID)
	other, err := store.CreateObject(ctx, b2.ID, nil, "same.txt", "text/plain", 7)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func testObjectKeyAndRecursiveList(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)
	b := mustBucket(t, store, owner.ID)

	a, err := store.CreateObject(ctx, b.ID, nil, "a", metadata.FolderMimeType, 0)
	require.NoError(t, err)
	nested, err := store.CreateObject(ctx, b.ID, &a.ID, "b", metadata.FolderMimeType, 0)
	require.NoError(t, err)
	leaf, err := store.CreateObject(ctx, b.ID, &nested.ID, "c.txt", "text/plain", 5)
	require.NoError(t, err)

	key, err := store.ObjectKey(ctx, b.ID, leaf.ID)
	require.NoError(t, err)
	require.Equal(t, "a/b/c.txt", key)

	all, err := store.ListObjectsRecursively(ctx, b.ID, "a/b")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, leaf.ID, all[0].ID)

	none, err := store.ListObjectsRecursively(ctx, b.ID, "zzz")
	require.NoError(t, err)
	require.Empty(t, none)
}

// testClearEmptyParents asserts DeleteObject(clearEmptyParents=true)
// removes childless ancestors transitively up to (not including) the
// bucket root.
func testClearEmptyParents(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)
	b := mustBucket(t, store, owner.ID)

	a, err := store.CreateObject(ctx, b.ID, nil, "a", metadata.FolderMimeType, 0)
	require.NoError(t, err)
	nested, err := store.CreateObject(ctx, b.ID, &a.ID, "b", metadata.FolderMimeType, 0)
	require.NoError(t, err)
	leaf, err := store.CreateObject(ctx, b.ID, &nested.ID, "c.txt", "text/plain", 5)
	require.NoError(t, err)

	require.NoError(t, store.DeleteObject(ctx, b.ID, leaf.ID, true))

	_, err = store.FindObjectByID(ctx, b.ID, nested.ID)
	require.ErrorIs(t, err, apierr.ErrNotFound, "empty parent must be removed")
	_, err = store.FindObjectByID(ctx, b.ID, a.ID)
	require.ErrorIs(t, err, apierr.ErrNotFound, "emptiness must propagate to the grandparent")
}

func testCredentials(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)
	b := mustBucket(t, store, owner.ID)

	tok := &metadata.ApiToken{ID: uuid.NewString(), UserID: owner.ID, Token: "tok_abc", IsAPI: true}
	require.NoError(t, store.CreateAPIToken(ctx, tok))
	got, err := store.FindAPITokenByToken(ctx, "tok_abc")
	require.NoError(t, err)
	require.Equal(t, tok.ID, got.ID)
	require.False(t, got.Expired(time.Now()))

	cred := &metadata.S3Credential{
		ID: uuid.NewString(), UserID: owner.ID, AccessKey: "AKIDEXAMPLE", SecretKey: "secret",
		BucketAccess: map[string]struct{}{b.ID: {}},
	}
	require.NoError(t, store.CreateS3Credential(ctx, cred))
	gotCred, err := store.FindS3CredentialByAccessKey(ctx, "AKIDEXAMPLE")
	require.NoError(t, err)
	require.True(t, gotCred.AllowsBucket(b.ID))
	require.False(t, gotCred.AllowsBucket(uuid.NewString()))

	require.NoError(t, store.DeleteAPIToken(ctx, tok.ID))
	_, err = store.FindAPITokenByToken(ctx, "tok_abc")
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

func testBucketConfig(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)
	b := mustBucket(t, store, owner.ID)

	require.NoError(t, store.SetBucketConfig(ctx, b.ID, "max-upload-mb", "512", metadata.ConfigNumber))
	cfg, err := store.GetBucketConfig(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, cfg, 1)
	require.Equal(t, "512", cfg[0].Value)

	require.NoError(t, store.SetBucketConfig(ctx, b.ID, "max-upload-mb", "1024", metadata.ConfigNumber))
	cfg2, err := store.GetBucketConfig(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, cfg2, 1, "SetBucketConfig must upsert, not append")
	require.Equal(t, "1024", cfg2[0].Value)
}

func testStats(t *testing.T, store metadata.Store) {
	ctx := context.Background()
	owner := mustUser(t, store)
	b := mustBucket(t, store, owner.ID)
	day := "2026-07-30"

	require.NoError(t, store.FlushStats(ctx, []metadata.DayStats{
		{BucketID: b.ID, Day: day, APIRequests: 1, BytesServed: 100},
	}))
	require.NoError(t, store.FlushStats(ctx, []metadata.DayStats{
		{BucketID: b.ID, Day: day, APIRequests: 2, BytesServed: 50},
	}))

	got, err := store.GetStats(ctx, b.ID, day)
	require.NoError(t, err)
	require.EqualValues(t, 3, got.APIRequests, "FlushStats must add, not overwrite")
	require.EqualValues(t, 150, got.BytesServed)
}

func mustUser(t *testing.T, store metadata.Store) *metadata.User {
	t.Helper()
	u := &metadata.User{ID: uuid.NewString(), Username: "user-" + uuid.NewString(), PasswordHash: "x", Enabled: true, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func mustBucket(t *testing.T, store metadata.Store, ownerID string) *metadata.Bucket {
	t.Helper()
	b := &metadata.Bucket{ID: uuid.NewString(), Name: "bucket-" + uuid.NewString(), OwnerID: ownerID, Access: metadata.AccessPrivate, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateBucket(context.Background(), b))
	return b
}
