// Package upload implements the three upload state machines that
// share scratch files in the blob store's .temp area and publish
// identically: single-shot PUT, S3 multipart, and the file-request
// three-step flow (file-request's HTTP surface lives in
// pkg/fileserver; this package holds the shared multipart/single-shot
// mechanics grounded on the spec's single source of truth for how a
// scratch file becomes a published Object).
package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/blobstore"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/quota"
)

// chunkSize is the read/write buffer used when streaming request
// bodies to scratch files, per the spec's "stream the request body to
// a temp file in 1 MiB chunks".
const chunkSize = 1 << 20

const multipartSessionTTL = 24 * time.Hour

func multipartKey(uploadID string) string { return "s3:multipartupload:" + uploadID }

// Engine implements the upload state machines against a metadata
// store, blob store, KV cache, and quota evaluator.
type Engine struct {
	store  metadata.Store
	blobs  *blobstore.Store
	cache  *kvcache.Cache
	quotas *quota.Evaluator
}

// New returns an Engine wired to its collaborators.
func New(store metadata.Store, blobs *blobstore.Store, cache *kvcache.Cache, quotas *quota.Evaluator) *Engine {
	return &Engine{store: store, blobs: blobs, cache: cache, quotas: quotas}
}

// DefaultMimeType is used when neither an explicit mime type nor a
// recognized file extension is available.
const DefaultMimeType = "application/octet-stream"

// MimeTypeForFilename guesses a MIME type from filename's extension,
// falling back to DefaultMimeType.
func MimeTypeForFilename(filename string) string {
	if ext := filepath.Ext(filename); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return DefaultMimeType
}

// CreateFolder creates (or finds) a folder Object named filename under
// parentID.
func (e *Engine) CreateFolder(ctx context.Context, bucketID string, parentID *string, filename string) (*metadata.Object, error) {
	return e.store.CreateObject(ctx, bucketID, parentID, filename, metadata.FolderMimeType, 0)
}

// PutObject streams body to a scratch file, checks quota against the
// assembled size, and publishes it as filename under parentID. It
// implements the single-shot PUT path shared by the S3 PutObject
// handler and the public API's upload endpoint.
func (e *Engine) PutObject(ctx context.Context, bucket *metadata.Bucket, owner *metadata.User, parentID *string, filename, mimeType string, body io.Reader) (*metadata.Object, error) {
	f, tempPath, err := e.blobs.NewScratchFile()
	if err != nil {
		return nil, err
	}

	size, err := copyInChunks(f, body)
	closeErr := f.Close()
	if err != nil {
		_ = e.blobs.Discard(tempPath)
		return nil, fmt.Errorf("upload: stream body: %w", err)
	}
	if closeErr != nil {
		_ = e.blobs.Discard(tempPath)
		return nil, fmt.Errorf("upload: close scratch file: %w", closeErr)
	}

	ok, err := e.quotas.Check(ctx, bucket, owner, size)
	if err != nil {
		_ = e.blobs.Discard(tempPath)
		return nil, err
	}
	if !ok {
		_ = e.blobs.Discard(tempPath)
		return nil, apierr.New(apierr.QuotaExceeded, "quota exceeded")
	}

	if mimeType == "" {
		mimeType = MimeTypeForFilename(filename)
	}

	obj, err := e.store.CreateObject(ctx, bucket.ID, parentID, filename, mimeType, size)
	if err != nil {
		_ = e.blobs.Discard(tempPath)
		return nil, fmt.Errorf("upload: create object: %w", err)
	}

	if err := e.blobs.Publish(ctx, bucket.Name, obj.ID, tempPath); err != nil {
		// The metadata row must not survive without a blob: this is a
		// freshly created object, so deleting it is always safe (an
		// overwrite of a pre-existing object would instead need a retry,
		// but FindOrCreate already gave us back the stable id either way).
		_ = e.store.DeleteObject(ctx, bucket.ID, obj.ID, false)
		return nil, fmt.Errorf("upload: publish blob: %w", err)
	}

	if obj.Size != size || obj.MimeType != mimeType {
		obj.Size = size
		obj.MimeType = mimeType
		if err := e.store.UpdateObject(ctx, obj); err != nil {
			return nil, fmt.Errorf("upload: update object metadata: %w", err)
		}
	}

	return obj, nil
}

func copyInChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	return io.CopyBuffer(dst, src, buf)
}

// InitiateMultipart allocates a new multipart session.
func (e *Engine) InitiateMultipart(ctx context.Context, bucketID string, parentID *string, filename, mimeType string) (string, error) {
	uploadID := uuid.NewString()
	if mimeType == "" {
		mimeType = MimeTypeForFilename(filename)
	}
	session := MultipartSession{
		UploadID:  uploadID,
		BucketID:  bucketID,
		ParentID:  parentID,
		Filename:  filename,
		MimeType:  mimeType,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.cache.SetJSON(ctx, multipartKey(uploadID), session, multipartSessionTTL); err != nil {
		return "", fmt.Errorf("upload: persist multipart session: %w", err)
	}
	return uploadID, nil
}

func (e *Engine) loadSession(ctx context.Context, uploadID string) (*MultipartSession, error) {
	var session MultipartSession
	if err := e.cache.GetJSON(ctx, multipartKey(uploadID), &session); err != nil {
		if errors.Is(err, kvcache.ErrNotFound) {
			return nil, apierr.ErrNotFound
		}
		return nil, fmt.Errorf("upload: load multipart session: %w", err)
	}
	return &session, nil
}

func (e *Engine) partPath(uploadID string, partNumber int) string {
	return e.blobs.ScratchPath(fmt.Sprintf("multipart_%s_%d", uploadID, partNumber))
}

// newPartETag generates an opaque hex identifier for an uploaded part,
// matching the spec's "opaque hex id" reference behavior (random 16
// bytes) rather than an MD5 digest.
func newPartETag() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// UploadPart validates partNumber, streams body to its dedicated
// scratch file, and upserts the part record in the session.
func (e *Engine) UploadPart(ctx context.Context, uploadID string, partNumber int, body io.Reader) (etag string, err error) {
	if partNumber <= 0 {
		return "", apierr.New(apierr.BadRequest, "partNumber must be > 0")
	}

	session, err := e.loadSession(ctx, uploadID)
	if err != nil {
		return "", err
	}

	path := e.partPath(uploadID, partNumber)
	f, err := createScratchAt(path)
	if err != nil {
		return "", err
	}
	size, copyErr := copyInChunks(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		return "", fmt.Errorf("upload: stream part %d: %w", partNumber, copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("upload: close part file: %w", closeErr)
	}

	etag, err = newPartETag()
	if err != nil {
		return "", fmt.Errorf("upload: generate part etag: %w", err)
	}

	session.upsertPart(PartRecord{PartNumber: partNumber, Path: path, ETag: etag, Size: size})
	if err := e.cache.SetJSON(ctx, multipartKey(uploadID), session, multipartSessionTTL); err != nil {
		return "", fmt.Errorf("upload: persist part record: %w", err)
	}
	return etag, nil
}

// ListParts returns parts with partNum > marker, sorted ascending,
// truncated at maxParts.
func (e *Engine) ListParts(ctx context.Context, uploadID string, marker, maxParts int) ([]PartRecord, bool, error) {
	session, err := e.loadSession(ctx, uploadID)
	if err != nil {
		return nil, false, err
	}
	parts := append([]PartRecord(nil), session.Parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	var filtered []PartRecord
	for _, p := range parts {
		if p.PartNumber > marker {
			filtered = append(filtered, p)
		}
	}

	truncated := false
	if maxParts > 0 && len(filtered) > maxParts {
		filtered = filtered[:maxParts]
		truncated = true
	}
	return filtered, truncated, nil
}

// CompleteMultipart concatenates parts in partNum order into a single
// final scratch file, publishes it, and deletes the session.
func (e *Engine) CompleteMultipart(ctx context.Context, bucket *metadata.Bucket, owner *metadata.User, uploadID string) (*metadata.Object, error) {
	session, err := e.loadSession(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	parts := append([]PartRecord(nil), session.Parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	finalPath := e.blobs.ScratchPath("multipart_final_" + uploadID)
	final, err := createScratchAt(finalPath)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range parts {
		n, err := appendPart(final, p.Path)
		if err != nil {
			final.Close()
			return nil, fmt.Errorf("upload: append part %d: %w", p.PartNumber, err)
		}
		total += n
		_ = e.blobs.Discard(p.Path)
	}
	if err := final.Close(); err != nil {
		return nil, fmt.Errorf("upload: close final scratch file: %w", err)
	}

	ok, err := e.quotas.Check(ctx, bucket, owner, total)
	if err != nil {
		_ = e.blobs.Discard(finalPath)
		return nil, err
	}
	if !ok {
		_ = e.blobs.Discard(finalPath)
		return nil, apierr.New(apierr.QuotaExceeded, "quota exceeded")
	}

	obj, err := e.store.CreateObject(ctx, bucket.ID, session.ParentID, session.Filename, session.MimeType, total)
	if err != nil {
		_ = e.blobs.Discard(finalPath)
		return nil, fmt.Errorf("upload: create object: %w", err)
	}

	if err := e.blobs.Publish(ctx, bucket.Name, obj.ID, finalPath); err != nil {
		_ = e.store.DeleteObject(ctx, bucket.ID, obj.ID, false)
		return nil, fmt.Errorf("upload: publish blob: %w", err)
	}

	if obj.Size != total {
		obj.Size = total
		if err := e.store.UpdateObject(ctx, obj); err != nil {
			return nil, fmt.Errorf("upload: update object size: %w", err)
		}
	}

	_ = e.cache.Delete(ctx, multipartKey(uploadID))
	return obj, nil
}

// AbortMultipart discards all part scratch files and deletes the
// session.
func (e *Engine) AbortMultipart(ctx context.Context, uploadID string) error {
	session, err := e.loadSession(ctx, uploadID)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, p := range session.Parts {
		_ = e.blobs.Discard(p.Path)
	}
	return e.cache.Delete(ctx, multipartKey(uploadID))
}
