package s3api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount attaches the full S3 routing table to r, matching the spec's
// "first match wins" table by dispatching on query parameters inside
// each method handler rather than registering one chi route per query
// shape (chi itself has no query-based routing).
func (s *Server) Mount(r chi.Router) {
	r.Get("/", s.handleListBuckets)

	r.Route("/{bucket}", func(r chi.Router) {
		r.Get("/", s.handleBucketGet)
		r.Post("/", s.handleBucketPost)

		r.Get("/*", s.handleObjectGet)
		r.Head("/*", s.handleObjectHead)
		r.Put("/*", s.handleObjectPut)
		r.Post("/*", s.handleObjectPost)
		r.Delete("/*", s.handleObjectDelete)
	})
}

func objectKeyParam(r *http.Request) string {
	return chi.URLParam(r, "*")
}
