// Package s3api implements the S3-compatible dispatcher: bucket and
// object listing, single and multipart object upload, and batch
// delete, routed and authenticated the way a real S3-fronting proxy
// would be, grounded on the teacher's pkg/api router/handler split
// (pkg/api/router.go, pkg/api/handlers) generalized from dittofs'
// identity/share-mapping domain to S3 operations.
package s3api

import (
	"github.com/marmos91/byteserve/pkg/blobstore"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/quota"
	"github.com/marmos91/byteserve/pkg/statsagg"
	"github.com/marmos91/byteserve/pkg/upload"
)

// Server implements the C11 S3 dispatcher against the shared metadata
// store, blob store, and upload engine.
type Server struct {
	store   metadata.Store
	blobs   *blobstore.Store
	cache   *kvcache.Cache
	quotas  *quota.Evaluator
	uploads *upload.Engine
	stats   *statsagg.Aggregator
}

// New wires a Server to its collaborators.
func New(store metadata.Store, blobs *blobstore.Store, cache *kvcache.Cache, quotas *quota.Evaluator, uploads *upload.Engine, stats *statsagg.Aggregator) *Server {
	return &Server{store: store, blobs: blobs, cache: cache, quotas: quotas, uploads: uploads, stats: stats}
}
