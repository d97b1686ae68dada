package fileserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/byteserve/pkg/api"
	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/pathresolver"
	"github.com/marmos91/byteserve/pkg/upload"
)

// createRequest is the POST / (filereq create) body.
type createRequest struct {
	Bucket        string  `json:"bucket"`
	Parent        *string `json:"parent"`
	Filename      string  `json:"filename,omitempty"`
	RequireAPIKey bool    `json:"requireApiKey"`
}

type scriptURLs struct {
	Sh  string `json:"sh"`
	Ps1 string `json:"ps1"`
	Bat string `json:"bat"`
}

type sessionResponse struct {
	ID            string     `json:"id"`
	Bucket        string     `json:"bucket"`
	Filename      string     `json:"filename,omitempty"`
	RequireAPIKey bool       `json:"requireApiKey"`
	Scripts       scriptURLs `json:"scripts"`
}

func (s *Server) scriptURLsFor(id string) scriptURLs {
	return scriptURLs{
		Sh:  s.baseURL + "/api/filereq/" + id + "/sh",
		Ps1: s.baseURL + "/api/filereq/" + id + "/ps1",
		Bat: s.baseURL + "/api/filereq/" + id + "/bat",
	}
}

// handleCreate handles POST / : an authenticated bucket owner (or
// admin) opens a new upload slot.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, err := api.AuthenticateBearer(r.Context(), s.store, s.store, api.BearerToken(r))
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, r, apierr.Wrap(apierr.BadRequest, err, "decode request"))
		return
	}
	if req.Bucket == "" {
		api.WriteError(w, r, apierr.New(apierr.BadRequest, "bucket is required"))
		return
	}

	bucket, err := s.store.FindBucketByName(r.Context(), req.Bucket)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if bucket.OwnerID != principal.User.ID && !principal.User.IsAdmin {
		api.WriteError(w, r, apierr.ErrForbidden)
		return
	}

	var parentID *string
	if req.Parent != nil && strings.Trim(*req.Parent, "/") != "" {
		segments := strings.Split(strings.Trim(*req.Parent, "/"), "/")
		obj, err := s.paths.Resolve(r.Context(), bucket.ID, bucket.Name, segments, pathresolver.CacheOptions{})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		if obj == nil {
			api.WriteError(w, r, apierr.New(apierr.NotFound, "parent not found"))
			return
		}
		if !obj.IsFolder() {
			api.WriteError(w, r, apierr.New(apierr.BadRequest, "parent is not a folder"))
			return
		}
		parentID = &obj.ID
	}

	session, err := s.uploads.CreateFileRequestSession(r.Context(), bucket.ID, parentID, req.Filename, req.RequireAPIKey, principal.User.ID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, sessionResponse{
		ID:            session.ID,
		Bucket:        bucket.Name,
		Filename:      session.Filename,
		RequireAPIKey: session.RequireAPIKey,
		Scripts:       s.scriptURLsFor(session.ID),
	})
}

// handleScript returns a handler emitting the upload script for the
// given platform ("sh", "ps1", or "bat").
func (s *Server) handleScript(platform string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		session, err := s.uploads.LoadFileRequestSession(r.Context(), id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		script := generateScript(platform, s.baseURL, id, session.RequireAPIKey)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="upload.`+platform+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(script))
	}
}

// requireAPIKeyIfNeeded validates the X-Api-Key header against an
// IsAPI-flagged ApiToken when the session demands it; sessions created
// without requireApiKey skip this check entirely.
func (s *Server) requireAPIKeyIfNeeded(r *http.Request, session *upload.FileRequestSession) error {
	if !session.RequireAPIKey {
		return nil
	}
	token := r.Header.Get("X-Api-Key")
	principal, err := api.AuthenticateBearer(r.Context(), s.store, s.store, token)
	if err != nil {
		return err
	}
	if !principal.Token.IsAPI {
		return apierr.ErrForbidden
	}
	return nil
}

// handleInitiate handles step 1, POST /{id}/upload.
func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.uploads.LoadFileRequestSession(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if err := s.requireAPIKeyIfNeeded(r, session); err != nil {
		api.WriteError(w, r, err)
		return
	}

	if _, err := s.uploads.InitiateFileRequestUpload(r.Context(), id, r.Header.Get("X-Filename")); err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "initiated"})
}

// handleChunk handles step 2, PUT /{id}/upload.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.uploads.LoadFileRequestSession(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if err := s.requireAPIKeyIfNeeded(r, session); err != nil {
		api.WriteError(w, r, err)
		return
	}

	bucket, err := s.store.FindBucketByID(r.Context(), session.BucketID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	owner, err := s.store.FindUserByID(r.Context(), bucket.OwnerID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	size, err := s.uploads.UploadFileRequestChunk(r.Context(), id, bucket, owner, r.Body)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]int64{"size": size})
}

// handleComplete handles step 3, POST /{id}/upload/complete.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.uploads.LoadFileRequestSession(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if err := s.requireAPIKeyIfNeeded(r, session); err != nil {
		api.WriteError(w, r, err)
		return
	}

	bucket, err := s.store.FindBucketByID(r.Context(), session.BucketID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	owner, err := s.store.FindUserByID(r.Context(), bucket.OwnerID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	obj, err := s.uploads.CompleteFileRequestUpload(r.Context(), bucket, owner, id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"objectId": obj.ID,
		"filename": obj.Filename,
		"size":     obj.Size,
		"mimeType": obj.MimeType,
	})
}

// handleCancel handles DELETE /{id}: the creator or an admin cancels a
// pending session.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	principal, err := api.AuthenticateBearer(r.Context(), s.store, s.store, api.BearerToken(r))
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	session, err := s.uploads.LoadFileRequestSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		api.WriteError(w, r, err)
		return
	}
	if session.CreatedByUser != principal.User.ID && !principal.User.IsAdmin {
		api.WriteError(w, r, apierr.ErrForbidden)
		return
	}

	if err := s.uploads.CancelFileRequest(r.Context(), id); err != nil {
		api.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
