package statsagg

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
)

func TestRecordAccumulatesPerBucketPerDay(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	owner := &metadata.User{ID: uuid.NewString(), Username: "u", PasswordHash: "x", StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateUser(ctx, owner))
	bucket := &metadata.Bucket{ID: uuid.NewString(), Name: "b", OwnerID: owner.ID, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateBucket(ctx, bucket))

	agg := New(store, time.Hour)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	agg.record(Delta{BucketID: bucket.ID, APIRequests: 1, BytesServed: 100}, now)
	agg.record(Delta{BucketID: bucket.ID, APIRequests: 2, BytesServed: 50}, now)

	agg.flush()

	got, err := store.GetStats(ctx, bucket.ID, "2026-07-30")
	require.NoError(t, err)
	require.EqualValues(t, 3, got.APIRequests)
	require.EqualValues(t, 150, got.BytesServed)
}

func TestStartStopFlushesOnShutdown(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	owner := &metadata.User{ID: uuid.NewString(), Username: "u", PasswordHash: "x", StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateUser(ctx, owner))
	bucket := &metadata.Bucket{ID: uuid.NewString(), Name: "b", OwnerID: owner.ID, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateBucket(ctx, bucket))

	agg := New(store, time.Hour)
	agg.Record(Delta{BucketID: bucket.ID, S3Requests: 1})
	agg.Start(ctx)
	agg.Stop()

	day := time.Now().UTC().Format("2006-01-02")
	got, err := store.GetStats(ctx, bucket.ID, day)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.S3Requests)
}
