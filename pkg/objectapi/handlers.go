package objectapi

import (
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/byteserve/internal/bucketconfig"
	"github.com/marmos91/byteserve/pkg/api"
	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/readpath"
	"github.com/marmos91/byteserve/pkg/statsagg"
)

// bucketInfo is the {bucket:{name,access}} fragment of a folder listing.
type bucketInfo struct {
	Name   string `json:"name"`
	Access string `json:"access"`
}

// indexEntry is one row of a folder listing.
type indexEntry struct {
	Filename  string    `json:"filename"`
	IsFolder  bool      `json:"isFolder"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type folderIndex struct {
	Bucket      bucketInfo   `json:"bucket"`
	CurrentPath string       `json:"currentPath,omitempty"`
	Objects     []indexEntry `json:"objects"`
}

func (s *Server) handleStorageIndex(w http.ResponseWriter, r *http.Request) {
	s.serveStorage(w, r, nil)
}

func (s *Server) handleStorageGet(w http.ResponseWriter, r *http.Request) {
	s.serveStorage(w, r, pathSegments(chi.URLParam(r, "*")))
}

func (s *Server) serveStorage(w http.ResponseWriter, r *http.Request, segments []string) {
	ctx := r.Context()
	bucket, err := s.resolveBucket(ctx, r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if err := s.requireReadAccess(r, bucket); err != nil {
		api.WriteError(w, r, err)
		return
	}

	cfg, err := bucketconfig.Load(ctx, s.store, bucket.ID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	if len(segments) == 0 {
		s.serveFolderIndex(w, r, bucket, nil, cfg, "")
		return
	}

	obj, err := s.resolveObject(ctx, bucket, segments, cfg)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if obj == nil {
		api.WriteError(w, r, apierr.New(apierr.NotFound, "object not found"))
		return
	}
	if obj.IsFolder() {
		s.serveFolderIndex(w, r, bucket, &obj.ID, cfg, path.Join(segments...))
		return
	}

	s.serveObjectBytes(w, r, bucket, obj)
}

func (s *Server) serveFolderIndex(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket, folderID *string, cfg *bucketconfig.Resolved, currentPath string) {
	if !cfg.Bool(bucketconfig.KeySendFolderIndex) {
		api.WriteError(w, r, apierr.New(apierr.NotFound, "folder index not enabled for this bucket"))
		return
	}

	children, _, err := s.store.ListChildren(r.Context(), bucket.ID, folderID, metadata.ChildFilter{}, metadata.OrderByFilename, 0, "")
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	entries := make([]indexEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, indexEntry{
			Filename:  c.Filename,
			IsFolder:  c.IsFolder(),
			Size:      c.Size,
			MimeType:  c.MimeType,
			UpdatedAt: c.UpdatedAt,
		})
	}

	api.WriteJSON(w, http.StatusOK, folderIndex{
		Bucket:      bucketInfo{Name: bucket.Name, Access: string(bucket.Access)},
		CurrentPath: currentPath,
		Objects:     entries,
	})
	s.stats.Record(statsagg.Delta{BucketID: bucket.ID, APIRequests: 1, RequestsCount: 1})
}

func (s *Server) serveObjectBytes(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket, obj *metadata.Object) {
	f, err := s.blobs.Open(bucket.Name, obj.ID)
	if err != nil {
		api.WriteError(w, r, apierr.Wrap(apierr.Internal, err, "open blob"))
		return
	}
	defer f.Close()

	err = readpath.ServeBlob(w, r, f, readpath.Metadata{
		ObjectID:  obj.ID,
		Filename:  obj.Filename,
		MimeType:  obj.MimeType,
		Size:      obj.Size,
		UpdatedAt: obj.UpdatedAt,
	})
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	s.stats.Record(statsagg.Delta{BucketID: bucket.ID, APIRequests: 1, RequestsCount: 1, BytesServed: obj.Size})
}

// uploadFormField is the multipart form field name the public upload
// endpoint reads the file body from; the spec names no field, so this
// follows the same "file" convention the generated file-request
// scripts' --file flag already establishes for this API surface.
const uploadFormField = "file"

func (s *Server) handleStorageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket, err := s.resolveBucket(ctx, r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	if bucket.Access != metadata.AccessPublicWrite {
		api.WriteError(w, r, apierr.New(apierr.Forbidden, "bucket does not accept public uploads"))
		return
	}

	owner, err := s.store.FindUserByID(ctx, bucket.OwnerID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		api.WriteError(w, r, apierr.Wrap(apierr.BadRequest, err, "parse multipart form"))
		return
	}
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		api.WriteError(w, r, apierr.Wrap(apierr.BadRequest, err, "missing %q form field", uploadFormField))
		return
	}
	defer file.Close()

	cfg, err := bucketconfig.Load(ctx, s.store, bucket.ID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	segments := pathSegments(chi.URLParam(r, "*"))
	var parentID *string
	if len(segments) > 0 {
		parent, err := s.resolveObject(ctx, bucket, segments, cfg)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		if parent == nil || !parent.IsFolder() {
			api.WriteError(w, r, apierr.New(apierr.BadRequest, "destination folder not found"))
			return
		}
		parentID = &parent.ID
	}

	obj, err := s.uploads.PutObject(ctx, bucket, owner, parentID, header.Filename, "", file)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, indexEntry{
		Filename:  obj.Filename,
		IsFolder:  false,
		Size:      obj.Size,
		MimeType:  obj.MimeType,
		UpdatedAt: obj.UpdatedAt,
	})
	s.stats.Record(statsagg.Delta{BucketID: bucket.ID, APIRequests: 1, RequestsCount: 1})
}
