package objectapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/byteserve/internal/bucketconfig"
	"github.com/marmos91/byteserve/pkg/api"
	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/pathresolver"
)

// resolveBucket looks up the {bucket} chi route param.
func (s *Server) resolveBucket(ctx context.Context, r *http.Request) (*metadata.Bucket, error) {
	name := chi.URLParam(r, "bucket")
	bucket, err := s.store.FindBucketByName(ctx, name)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			return nil, apierr.New(apierr.NotFound, "no such bucket")
		}
		return nil, err
	}
	return bucket, nil
}

// pathSegments splits a chi wildcard path param into non-empty segments.
func pathSegments(raw string) []string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// resolveObject walks segments within bucket, honoring the bucket's
// configured path-cache settings.
func (s *Server) resolveObject(ctx context.Context, bucket *metadata.Bucket, segments []string, cfg *bucketconfig.Resolved) (*metadata.Object, error) {
	opts := pathresolver.CacheOptions{}
	if cfg.Bool(bucketconfig.KeyPathCachingEnable) {
		opts.Enabled = true
		opts.TTL = time.Duration(cfg.Number(bucketconfig.KeyPathCachingTTLSeconds)) * time.Second
	}
	return s.paths.Resolve(ctx, bucket.ID, bucket.Name, segments, opts)
}

// tokenFromRequest extracts a bearer credential from ?token= or the
// Authorization header, the two forms C10 and the public read path
// both accept for a private bucket.
func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return api.BearerToken(r)
}

// requireReadAccess gates a private bucket's reads behind an ApiToken
// whose owning user is the bucket's owner or an admin. Public-read and
// public-write buckets need no token at all.
func (s *Server) requireReadAccess(r *http.Request, bucket *metadata.Bucket) error {
	if bucket.Access != metadata.AccessPrivate {
		return nil
	}
	principal, err := api.AuthenticateBearer(r.Context(), s.store, s.store, tokenFromRequest(r))
	if err != nil {
		return err
	}
	if principal.User.ID != bucket.OwnerID && !principal.User.IsAdmin {
		return apierr.ErrForbidden
	}
	return nil
}
