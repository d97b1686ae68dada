package bucketconfig

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
)

func TestLoadAppliesDefaults(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	bucketID := uuid.NewString()

	r, err := Load(ctx, store, bucketID)
	require.NoError(t, err)
	require.False(t, r.Bool(KeyImageTransformEnable))
	require.EqualValues(t, 300, r.Number(KeyPathCachingTTLSeconds))
	require.EqualValues(t, 10, r.Number(KeyImageTransformCacheMaxMB))
}

func TestLoadReflectsSetValues(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	bucketID := uuid.NewString()

	require.NoError(t, store.SetBucketConfig(ctx, bucketID, KeyImageTransformEnable, "true", metadata.ConfigBoolean))
	require.NoError(t, store.SetBucketConfig(ctx, bucketID, KeyImageTransformCacheMaxMB, "25", metadata.ConfigNumber))

	r, err := Load(ctx, store, bucketID)
	require.NoError(t, err)
	require.True(t, r.Bool(KeyImageTransformEnable))
	require.EqualValues(t, 25, r.Number(KeyImageTransformCacheMaxMB))
}
