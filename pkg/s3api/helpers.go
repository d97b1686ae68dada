package s3api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/marmos91/byteserve/internal/bucketconfig"
	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/upload"
)

// ensureParentPath walks segments as folder names from the bucket
// root, creating any missing intermediate folder via the same
// find-or-create CreateObject path the upload engine uses, and fails
// only if an existing non-terminal segment is not a folder. This is
// what gives S3's flat key namespace (e.g. "a/b/c.txt") the
// pseudo-directory structure ByteServe's Object tree actually models.
func (s *Server) ensureParentPath(ctx context.Context, bucketID string, segments []string) (*string, error) {
	var parentID *string
	for _, seg := range segments {
		obj, err := s.store.FindObjectInDir(ctx, bucketID, parentID, seg)
		if errors.Is(err, apierr.ErrNotFound) {
			obj, err = s.store.CreateObject(ctx, bucketID, parentID, seg, metadata.FolderMimeType, 0)
			if err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		} else if !obj.IsFolder() {
			return nil, apierr.New(apierr.BadRequest, "%q is not a folder", seg)
		}
		id := obj.ID
		parentID = &id
	}
	return parentID, nil
}

// resolveKeyToObject walks key against the bucket tree, returning the
// terminal Object (nil on a miss, not an error) and whether deleting
// it should cascade-clear now-empty parent folders, per the bucket's
// s3_clear_empty_parents config.
func (s *Server) resolveKeyToObject(ctx context.Context, bucket *metadata.Bucket, key string) (*metadata.Object, bool, error) {
	segments := splitKey(key)

	var current *metadata.Object
	var parentID *string
	for i, seg := range segments {
		obj, err := s.store.FindObjectInDir(ctx, bucket.ID, parentID, seg)
		if errors.Is(err, apierr.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if i < len(segments)-1 && !obj.IsFolder() {
			return nil, false, nil
		}
		current = obj
		id := obj.ID
		parentID = &id
	}

	cfg, err := bucketconfig.Load(ctx, s.store, bucket.ID)
	if err != nil {
		return nil, false, err
	}
	return current, cfg.Bool(bucketconfig.KeyClearEmptyParents), nil
}

// multipartSessionView is the subset of upload.MultipartSession
// ListMultipartUploads needs, with the parent snapshot resolved to a
// path so sessions can be filtered/ordered by key the way S3 does.
type multipartSessionView struct {
	UploadID   string
	Filename   string
	ParentPath string
	CreatedAt  time.Time
}

// allMultipartSessions scans every "s3:multipartupload:" key in C3 and
// loads the ones belonging to bucketID. There is no per-bucket index,
// so ListMultipartUploads pays for a full prefix scan; acceptable
// since multipart sessions are inherently few and short-lived relative
// to published Objects.
func (s *Server) allMultipartSessions(ctx context.Context, bucketID string) ([]multipartSessionView, error) {
	keys, err := s.cache.ListKeysByPrefix(ctx, "s3:multipartupload:")
	if err != nil {
		return nil, err
	}

	var out []multipartSessionView
	for _, k := range keys {
		var sess upload.MultipartSession
		if err := s.cache.GetJSON(ctx, k, &sess); err != nil {
			continue
		}
		if sess.BucketID != bucketID {
			continue
		}
		parentPath := ""
		if sess.ParentID != nil {
			p, err := s.store.ObjectKey(ctx, bucketID, *sess.ParentID)
			if err == nil {
				parentPath = strings.TrimSuffix(p, "/")
			}
		}
		out = append(out, multipartSessionView{
			UploadID:   sess.UploadID,
			Filename:   sess.Filename,
			ParentPath: parentPath,
			CreatedAt:  sess.CreatedAt,
		})
	}
	return out, nil
}
