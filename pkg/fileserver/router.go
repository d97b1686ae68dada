package fileserver

import "github.com/go-chi/chi/v5"

// Mount attaches the file-request routes under the path the caller
// mounts this Server at (the public API surface mounts it at
// /api/filereq, per the spec's External Interfaces section).
func (s *Server) Mount(r chi.Router) {
	r.Post("/", s.handleCreate)
	r.Get("/{id}/sh", s.handleScript("sh"))
	r.Get("/{id}/ps1", s.handleScript("ps1"))
	r.Get("/{id}/bat", s.handleScript("bat"))
	r.Post("/{id}/upload", s.handleInitiate)
	r.Put("/{id}/upload", s.handleChunk)
	r.Post("/{id}/upload/complete", s.handleComplete)
	r.Delete("/{id}", s.handleCancel)
}
