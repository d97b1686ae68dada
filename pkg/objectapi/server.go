// Package objectapi implements the public object API (C9's read path
// and the single-shot upload path exposed for public-write buckets)
// and the C10 image-transform surface. Both live in one package
// because they share the same bucket/path resolution and access-mode
// gating, laid out in the same handler-struct-with-injected-
// dependencies and chi-routing shape as pkg/s3api and pkg/fileserver.
package objectapi

import (
	"github.com/marmos91/byteserve/pkg/blobstore"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/pathresolver"
	"github.com/marmos91/byteserve/pkg/statsagg"
	"github.com/marmos91/byteserve/pkg/upload"
)

// Server implements the public object API and image-transform HTTP
// handlers.
type Server struct {
	store   metadata.Store
	blobs   *blobstore.Store
	paths   *pathresolver.Resolver
	uploads *upload.Engine
	cache   *kvcache.Cache
	stats   *statsagg.Aggregator
}

// New wires a Server to its collaborators.
func New(store metadata.Store, blobs *blobstore.Store, paths *pathresolver.Resolver, uploads *upload.Engine, cache *kvcache.Cache, stats *statsagg.Aggregator) *Server {
	return &Server{store: store, blobs: blobs, paths: paths, uploads: uploads, cache: cache, stats: stats}
}
