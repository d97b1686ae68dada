package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
)

// fileRequestSessionTTL is the spec's 1800 s session lifetime, renewed
// on every successful chunk.
const fileRequestSessionTTL = 30 * time.Minute

func fileRequestKey(id string) string { return "filereq:" + id }

// CreateFileRequestSession allocates a new file-request session. An
// empty filename means the uploader supplies one at initiate time (via
// X-Filename); a non-empty one fixes it at creation and the uploader
// may not override it.
func (e *Engine) CreateFileRequestSession(ctx context.Context, bucketID string, parentID *string, filename string, requireAPIKey bool, createdByUser string) (*FileRequestSession, error) {
	session := &FileRequestSession{
		ID:            uuid.NewString(),
		BucketID:      bucketID,
		ParentID:      parentID,
		Filename:      filename,
		FilenameFixed: filename != "",
		RequireAPIKey: requireAPIKey,
		CreatedByUser: createdByUser,
	}
	if err := e.cache.SetJSON(ctx, fileRequestKey(session.ID), session, fileRequestSessionTTL); err != nil {
		return nil, fmt.Errorf("upload: persist file-request session: %w", err)
	}
	return session, nil
}

// LoadFileRequestSession loads a session by id, translating a cache
// miss (including passive TTL expiry) into apierr.ErrNotFound.
func (e *Engine) LoadFileRequestSession(ctx context.Context, id string) (*FileRequestSession, error) {
	var session FileRequestSession
	if err := e.cache.GetJSON(ctx, fileRequestKey(id), &session); err != nil {
		if errors.Is(err, kvcache.ErrNotFound) {
			return nil, apierr.ErrNotFound
		}
		return nil, fmt.Errorf("upload: load file-request session: %w", err)
	}
	return &session, nil
}

// InitiateFileRequestUpload creates the session's scratch file,
// resolves the final filename (the caller's X-Filename header when the
// session didn't fix one at creation), and marks the session Initiated.
func (e *Engine) InitiateFileRequestUpload(ctx context.Context, id, filenameHeader string) (*FileRequestSession, error) {
	session, err := e.LoadFileRequestSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.FilenameFixed {
		if filenameHeader == "" {
			return nil, apierr.New(apierr.BadRequest, "X-Filename header required")
		}
		session.Filename = filenameHeader
	}

	scratchPath := e.blobs.ScratchPath("filereq_" + id)
	f, err := createScratchAt(scratchPath)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("upload: close scratch file: %w", err)
	}

	session.Initiated = true
	session.ScratchPath = scratchPath
	if err := e.cache.SetJSON(ctx, fileRequestKey(id), session, fileRequestSessionTTL); err != nil {
		return nil, fmt.Errorf("upload: persist file-request session: %w", err)
	}
	return session, nil
}

// UploadFileRequestChunk appends body to the session's scratch file and
// re-checks quota against the resulting total size. A quota failure
// empties the scratch file rather than rejecting the chunk in place —
// the session stays Initiated, but the caller must restart from byte
// zero — and does not extend the TTL; a successful chunk does.
func (e *Engine) UploadFileRequestChunk(ctx context.Context, id string, bucket *metadata.Bucket, owner *metadata.User, body io.Reader) (int64, error) {
	session, err := e.LoadFileRequestSession(ctx, id)
	if err != nil {
		return 0, err
	}
	if !session.Initiated {
		return 0, apierr.New(apierr.BadRequest, "upload not initiated")
	}

	f, err := os.OpenFile(session.ScratchPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("upload: open scratch file: %w", err)
	}
	_, copyErr := copyInChunks(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		return 0, fmt.Errorf("upload: append chunk: %w", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("upload: close scratch file: %w", closeErr)
	}

	info, err := os.Stat(session.ScratchPath)
	if err != nil {
		return 0, fmt.Errorf("upload: stat scratch file: %w", err)
	}
	size := info.Size()

	ok, err := e.quotas.Check(ctx, bucket, owner, size)
	if err != nil {
		return 0, err
	}
	if !ok {
		if err := os.Truncate(session.ScratchPath, 0); err != nil {
			return 0, fmt.Errorf("upload: truncate scratch file: %w", err)
		}
		return 0, apierr.New(apierr.QuotaExceeded, "quota exceeded")
	}

	if err := e.cache.Expire(ctx, fileRequestKey(id), fileRequestSessionTTL); err != nil {
		return 0, fmt.Errorf("upload: extend file-request session ttl: %w", err)
	}
	return size, nil
}

// CompleteFileRequestUpload re-checks quota against the assembled
// scratch file, publishes it as an Object, and deletes the session.
func (e *Engine) CompleteFileRequestUpload(ctx context.Context, bucket *metadata.Bucket, owner *metadata.User, id string) (*metadata.Object, error) {
	session, err := e.LoadFileRequestSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Initiated {
		return nil, apierr.New(apierr.BadRequest, "upload not initiated")
	}

	info, err := os.Stat(session.ScratchPath)
	if err != nil {
		return nil, fmt.Errorf("upload: stat scratch file: %w", err)
	}
	size := info.Size()

	ok, err := e.quotas.Check(ctx, bucket, owner, size)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.New(apierr.QuotaExceeded, "quota exceeded")
	}

	mimeType := MimeTypeForFilename(session.Filename)
	obj, err := e.store.CreateObject(ctx, bucket.ID, session.ParentID, session.Filename, mimeType, size)
	if err != nil {
		return nil, fmt.Errorf("upload: create object: %w", err)
	}

	if err := e.blobs.Publish(ctx, bucket.Name, obj.ID, session.ScratchPath); err != nil {
		_ = e.store.DeleteObject(ctx, bucket.ID, obj.ID, false)
		return nil, fmt.Errorf("upload: publish blob: %w", err)
	}

	if obj.Size != size {
		obj.Size = size
		if err := e.store.UpdateObject(ctx, obj); err != nil {
			return nil, fmt.Errorf("upload: update object size: %w", err)
		}
	}

	_ = e.cache.Delete(ctx, fileRequestKey(id))
	return obj, nil
}

// CancelFileRequest discards the scratch file (best-effort) and
// deletes the session. Canceling an already-expired or unknown id is
// not an error.
func (e *Engine) CancelFileRequest(ctx context.Context, id string) error {
	session, err := e.LoadFileRequestSession(ctx, id)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			return nil
		}
		return err
	}
	if session.ScratchPath != "" {
		_ = e.blobs.Discard(session.ScratchPath)
	}
	return e.cache.Delete(ctx, fileRequestKey(id))
}
