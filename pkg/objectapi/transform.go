package objectapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/byteserve/internal/bucketconfig"
	"github.com/marmos91/byteserve/pkg/api"
	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/imagetransform"
	"github.com/marmos91/byteserve/pkg/statsagg"
)

// parseTransformParams reads width/height/format/quality/rotate from
// the query string, per SPEC_FULL.md §4.10.
func parseTransformParams(r *http.Request) imagetransform.Params {
	q := r.URL.Query()
	p := imagetransform.Params{
		Format: q.Get("format"),
		Rotate: q.Get("rotate") == "true" || q.Get("rotate") == "1",
	}
	if w, err := strconv.Atoi(q.Get("width")); err == nil && w > 0 {
		p.Width = w
	}
	if h, err := strconv.Atoi(q.Get("height")); err == nil && h > 0 {
		p.Height = h
	}
	if qv, err := strconv.Atoi(q.Get("quality")); err == nil {
		p.Quality = imagetransform.ClampQuality(qv)
	}
	return p
}

// handleTransform implements `GET /transform/<bucket>/<path>`.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket, err := s.resolveBucket(ctx, r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	cfg, err := bucketconfig.Load(ctx, s.store, bucket.ID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if !cfg.Bool(bucketconfig.KeyImageTransformEnable) {
		api.WriteError(w, r, apierr.New(apierr.NotFound, "image transform not enabled for this bucket"))
		return
	}

	if err := s.requireReadAccess(r, bucket); err != nil {
		api.WriteError(w, r, err)
		return
	}

	segments := pathSegments(chi.URLParam(r, "*"))
	obj, err := s.resolveObject(ctx, bucket, segments, cfg)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if obj == nil || obj.IsFolder() {
		api.WriteError(w, r, apierr.New(apierr.NotFound, "object not found"))
		return
	}
	if !imagetransform.AllowedSourceMimeTypes[obj.MimeType] {
		api.WriteError(w, r, apierr.New(apierr.BadRequest, "unsupported source mime type %q", obj.MimeType))
		return
	}

	params := parseTransformParams(r)
	cacheEnabled := cfg.Bool(bucketconfig.KeyImageTransformCacheEnable)
	cacheKey := imagetransform.CacheKey(obj.ID, params)

	if cacheEnabled {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			w.Header().Set("Content-Type", http.DetectContentType(cached))
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			s.stats.Record(statsagg.Delta{BucketID: bucket.ID, APIRequests: 1, RequestsCount: 1, BytesServed: int64(len(cached))})
			return
		}
	}

	src, err := s.blobs.Open(bucket.Name, obj.ID)
	if err != nil {
		api.WriteError(w, r, apierr.Wrap(apierr.Internal, err, "open blob"))
		return
	}
	defer src.Close()

	encoded, contentType, err := imagetransform.Transform(src, obj.MimeType, params)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	if cacheEnabled {
		maxBytes := cfg.Number(bucketconfig.KeyImageTransformCacheMaxMB) << 20
		if int64(len(encoded)) <= maxBytes {
			ttl := time.Duration(cfg.Number(bucketconfig.KeyImageTransformCacheTTL)) * time.Second
			_ = s.cache.Set(ctx, cacheKey, encoded, ttl)
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
	s.stats.Record(statsagg.Delta{BucketID: bucket.ID, APIRequests: 1, RequestsCount: 1, BytesServed: int64(len(encoded))})
}
