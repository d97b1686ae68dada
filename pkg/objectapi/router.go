package objectapi

import "github.com/go-chi/chi/v5"

// MountStorage attaches the public object API routes, matching §6's
// `GET|POST /api/storage/<bucket>/<path>` surface.
func (s *Server) MountStorage(r chi.Router) {
	r.Get("/{bucket}", s.handleStorageIndex)
	r.Get("/{bucket}/*", s.handleStorageGet)
	r.Head("/{bucket}/*", s.handleStorageGet)
	r.Post("/{bucket}", s.handleStorageUpload)
	r.Post("/{bucket}/*", s.handleStorageUpload)
}

// MountTransform attaches the image-transform route, matching §6's
// `GET /transform/<bucket>/<path>` surface.
func (s *Server) MountTransform(r chi.Router) {
	r.Get("/{bucket}/*", s.handleTransform)
}
