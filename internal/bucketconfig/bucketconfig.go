// Package bucketconfig resolves the core's recognized per-bucket
// configuration keys (cache_path_caching_enable, files_image_transform_enable,
// etc.) against their documented defaults, sparing every caller from
// re-deriving type conversions and default values from raw
// metadata.BucketConfig rows.
package bucketconfig

import (
	"context"
	"strconv"

	"github.com/marmos91/byteserve/pkg/metadata"
)

// Recognized key names, matching the core's bucket-config table.
const (
	KeyPathCachingEnable         = "cache_path_caching_enable"
	KeyPathCachingTTLSeconds     = "cache_path_caching_ttl_seconds"
	KeySendFolderIndex           = "files_send_folder_index"
	KeyImageTransformEnable      = "files_image_transform_enable"
	KeyImageTransformCacheEnable = "files_image_transform_cache_enable"
	KeyImageTransformCacheTTL    = "files_image_transform_cache_ttl_seconds"
	KeyImageTransformCacheMaxMB  = "files_image_transform_cache_max_size"
	KeyClearEmptyParents         = "s3_clear_empty_parents"
)

var boolDefaults = map[string]bool{
	KeyPathCachingEnable:         false,
	KeySendFolderIndex:           false,
	KeyImageTransformEnable:      false,
	KeyImageTransformCacheEnable: false,
	KeyClearEmptyParents:         false,
}

var numberDefaults = map[string]int64{
	KeyPathCachingTTLSeconds:    300,
	KeyImageTransformCacheTTL:   300,
	KeyImageTransformCacheMaxMB: 10,
}

// Resolved is a bucket's full recognized-key configuration, loaded once
// per request path and consulted by value rather than re-querying the
// store per key.
type Resolved struct {
	values map[string]string
}

// Load fetches every configured key for bucketID and returns a
// Resolved view with defaults applied for anything unset.
func Load(ctx context.Context, store metadata.BucketConfigStore, bucketID string) (*Resolved, error) {
	rows, err := store.GetBucketConfig(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return &Resolved{values: values}, nil
}

func (r *Resolved) Bool(key string) bool {
	v, ok := r.values[key]
	if !ok {
		return boolDefaults[key]
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return boolDefaults[key]
	}
	return b
}

func (r *Resolved) Number(key string) int64 {
	v, ok := r.values[key]
	if !ok {
		return numberDefaults[key]
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return numberDefaults[key]
	}
	return n
}

func (r *Resolved) String(key string) string {
	return r.values[key]
}
