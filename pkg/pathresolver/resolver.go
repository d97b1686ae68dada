// Package pathresolver walks a bucket's object tree segment by
// segment, optionally fronted by a KV cache keyed on an md5
// fingerprint of the full path, grounded on the teacher's directory
// traversal helpers in pkg/metadata/directory.go adapted to
// ByteServe's flat Object tree and C3 cache.
package pathresolver

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
)

// CacheOptions controls whether and how long a resolved path is cached.
type CacheOptions struct {
	Enabled bool
	TTL     time.Duration
}

// Resolver resolves slash-joined paths within a bucket to Objects.
type Resolver struct {
	store metadata.Store
	cache *kvcache.Cache
}

// New returns a Resolver backed by store for tree traversal and cache
// for optional path-resolution caching.
func New(store metadata.Store, cache *kvcache.Cache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// cachedEntry is the payload stored at object-path-cache:<fingerprint>.
type cachedEntry struct {
	Object *metadata.Object `json:"object"`
}

// Fingerprint returns the md5 hex digest identifying (bucketName,
// segments) for cache lookups.
func Fingerprint(bucketName string, segments []string) string {
	sum := md5.Sum([]byte(bucketName + ":" + strings.Join(segments, "/")))
	return hex.EncodeToString(sum[:])
}

func cacheKey(fingerprint string) string {
	return "object-path-cache:" + fingerprint
}

// Resolve walks segments from the bucket root, returning the Object at
// the end of the path or nil if any segment is missing. Only Objects
// with mimeType "folder" may serve as an intermediate parent; if a
// non-terminal segment resolves to a non-folder, resolution fails
// entirely (not just truncates).
func (r *Resolver) Resolve(ctx context.Context, bucketID, bucketName string, segments []string, opts CacheOptions) (*metadata.Object, error) {
	if opts.Enabled && r.cache != nil {
		fp := Fingerprint(bucketName, segments)
		var entry cachedEntry
		if err := r.cache.GetJSON(ctx, cacheKey(fp), &entry); err == nil {
			return entry.Object, nil
		} else if !errors.Is(err, kvcache.ErrNotFound) {
			return nil, fmt.Errorf("pathresolver: cache lookup: %w", err)
		}
	}

	obj, err := r.walk(ctx, bucketID, segments)
	if err != nil {
		return nil, err
	}

	if opts.Enabled && r.cache != nil && obj != nil {
		fp := Fingerprint(bucketName, segments)
		if err := r.cache.SetJSON(ctx, cacheKey(fp), cachedEntry{Object: obj}, opts.TTL); err != nil {
			return nil, fmt.Errorf("pathresolver: cache store: %w", err)
		}
	}
	return obj, nil
}

func (r *Resolver) walk(ctx context.Context, bucketID string, segments []string) (*metadata.Object, error) {
	var parentID *string
	var current *metadata.Object

	for i, seg := range segments {
		obj, err := r.store.FindObjectInDir(ctx, bucketID, parentID, seg)
		if errors.Is(err, apierr.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pathresolver: lookup segment %q: %w", seg, err)
		}

		isLast := i == len(segments)-1
		if !isLast && !obj.IsFolder() {
			return nil, nil
		}

		current = obj
		id := obj.ID
		parentID = &id
	}
	return current, nil
}
