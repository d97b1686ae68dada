// Package api hosts the HTTP server and the surface-agnostic plumbing
// shared by the S3, public object, and file-request wire surfaces:
// bearer-token principal resolution, the JSON error envelope, and the
// top-level chi router, grounded on the teacher's
// pkg/controlplane/api (same middleware stack, same Server
// Start/Stop/graceful-shutdown shape).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/marmos91/byteserve/internal/logger"
	"github.com/marmos91/byteserve/pkg/apierr"
)

// errorBody is the JSON envelope every non-S3 surface returns on failure.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// WriteError maps err's apierr.Kind to a status code and writes the
// surface-wide JSON error envelope. HEAD requests get only the status
// line, matching the spec's "empty for S3/HEAD" carve-out.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apierr.KindOf(err)
	status := kind.HTTPStatus()

	if kind == apierr.Internal {
		logger.Error("request failed", "path", r.URL.Path, "method", r.Method, "error", err)
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}

	body := errorBody{}
	body.Error.Message = publicMessage(kind, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// publicMessage returns a caller-facing message, substituting a fixed
// generic string for Internal errors so implementation detail never
// leaks onto the wire.
func publicMessage(kind apierr.Kind, err error) string {
	if kind == apierr.Internal {
		return "internal error"
	}
	return err.Error()
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
