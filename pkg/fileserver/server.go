// Package fileserver implements the C12 file-request protocol's HTTP
// surface: admin session creation, platform-specific upload-script
// generation, and the three-step chunked upload itself. The session
// and scratch-file mechanics it drives live in pkg/upload, grounded on
// that package's own note that "file-request's HTTP surface lives in
// pkg/fileserver". The handler-struct-with-injected-dependencies shape
// and chi routing follow the teacher's pkg/api/handlers pattern the
// same way pkg/s3api does.
package fileserver

import (
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/pathresolver"
	"github.com/marmos91/byteserve/pkg/upload"
)

// Server implements the C12 file-request admin and upload endpoints.
type Server struct {
	store   metadata.Store
	paths   *pathresolver.Resolver
	uploads *upload.Engine
	baseURL string
}

// New wires a Server to its collaborators. baseURL is the externally
// reachable address the generated upload scripts target.
func New(store metadata.Store, paths *pathresolver.Resolver, uploads *upload.Engine, baseURL string) *Server {
	return &Server{store: store, paths: paths, uploads: uploads, baseURL: baseURL}
}
