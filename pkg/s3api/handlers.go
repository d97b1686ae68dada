package s3api

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/readpath"
	"github.com/marmos91/byteserve/pkg/statsagg"
)

// --- ListBuckets ---

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	cred, err := s.requireSignature(r, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	buckets, err := s.store.ListBucketsByOwner(r.Context(), cred.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := listAllMyBucketsResult{}
	result.Owner.ID = cred.UserID
	for _, b := range buckets {
		result.Buckets.Bucket = append(result.Buckets.Bucket, s3Bucket{
			Name:         b.Name,
			CreationDate: b.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	writeXML(w, http.StatusOK, result)
	s.stats.Record(statsagg.Delta{BucketID: "", S3Requests: 1, RequestsCount: 1})
}

// --- Bucket-level GET: ListObjects (V1|V2) or ListMultipartUploads ---

func (s *Server) handleBucketGet(w http.ResponseWriter, r *http.Request) {
	bucket, err := s.resolveBucket(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.authorize(r, bucket, false); err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	if _, ok := q["uploads"]; ok {
		s.handleListMultipartUploads(w, r, bucket)
		return
	}
	if q.Get("list-type") == "2" {
		s.handleListObjectsV2(w, r, bucket)
		return
	}
	s.handleListObjectsV1(w, r, bucket)
}

func (s *Server) handleListObjectsV1(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	delimiter := q.Get("delimiter")
	marker := q.Get("marker")
	maxKeys := queryInt(q, "max-keys", 1000)

	entries, err := s.listBucketEntries(r.Context(), bucket.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	contents, commonPrefixes := groupByDelimiter(entries, prefix, delimiter)

	var page []keyedObject
	for _, e := range contents {
		if e.key > marker {
			page = append(page, e)
		}
	}

	truncated := false
	nextMarker := ""
	if len(page) > maxKeys {
		page = page[:maxKeys]
		truncated = true
		nextMarker = page[len(page)-1].key
	}

	result := listBucketResult{
		Name:        bucket.Name,
		Prefix:      prefix,
		Marker:      marker,
		NextMarker:  nextMarker,
		MaxKeys:     maxKeys,
		Delimiter:   delimiter,
		IsTruncated: truncated,
	}
	for _, e := range page {
		result.Contents = append(result.Contents, toS3Content(e))
	}
	for _, p := range commonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, s3CommonPrefix{Prefix: p})
	}
	writeXML(w, http.StatusOK, result)
}

func (s *Server) handleListObjectsV2(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	delimiter := q.Get("delimiter")
	startAfter := q.Get("start-after")
	continuationToken := q.Get("continuation-token")
	maxKeys := queryInt(q, "max-keys", 1000)

	after := startAfter
	if continuationToken != "" {
		after = continuationToken
	}

	entries, err := s.listBucketEntries(r.Context(), bucket.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	contents, commonPrefixes := groupByDelimiter(entries, prefix, delimiter)

	var page []keyedObject
	for _, e := range contents {
		if e.key > after {
			page = append(page, e)
		}
	}

	truncated := false
	nextToken := ""
	if len(page) > maxKeys {
		page = page[:maxKeys]
		truncated = true
		nextToken = page[len(page)-1].key
	}

	result := listBucketResultV2{
		Name:                  bucket.Name,
		Prefix:                prefix,
		StartAfter:            startAfter,
		ContinuationToken:     continuationToken,
		NextContinuationToken: nextToken,
		KeyCount:              len(page),
		MaxKeys:               maxKeys,
		Delimiter:             delimiter,
		IsTruncated:           truncated,
	}
	for _, e := range page {
		result.Contents = append(result.Contents, toS3Content(e))
	}
	for _, p := range commonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, s3CommonPrefix{Prefix: p})
	}
	writeXML(w, http.StatusOK, result)
}

func toS3Content(e keyedObject) s3Content {
	return s3Content{
		Key:          e.key,
		LastModified: e.obj.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		ETag:         `"` + e.obj.ID + `"`,
		Size:         e.obj.Size,
		StorageClass: "STANDARD",
	}
}

// --- ListMultipartUploads ---

func (s *Server) handleListMultipartUploads(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	keyMarker := q.Get("key-marker")
	maxUploads := queryInt(q, "max-uploads", 1000)

	sessions, err := s.allMultipartSessions(r.Context(), bucket.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var uploads []s3Upload
	for _, sess := range sessions {
		key := sessionKey(sess)
		if !strings.HasPrefix(key, prefix) || key <= keyMarker {
			continue
		}
		uploads = append(uploads, s3Upload{
			Key:       key,
			UploadID:  sess.UploadID,
			Initiated: sess.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	sort.Slice(uploads, func(i, j int) bool {
		if uploads[i].Key != uploads[j].Key {
			return uploads[i].Key < uploads[j].Key
		}
		return uploads[i].UploadID < uploads[j].UploadID
	})

	truncated := false
	if len(uploads) > maxUploads {
		uploads = uploads[:maxUploads]
		truncated = true
	}

	result := listMultipartUploadsResult{
		Bucket:      bucket.Name,
		KeyMarker:   keyMarker,
		MaxUploads:  maxUploads,
		IsTruncated: truncated,
		Upload:      uploads,
	}
	writeXML(w, http.StatusOK, result)
}

// sessionKey reconstructs a multipart session's full bucket-relative
// key from its parent snapshot and filename.
func sessionKey(sess multipartSessionView) string {
	if sess.ParentPath == "" {
		return sess.Filename
	}
	return sess.ParentPath + "/" + sess.Filename
}

// --- DeleteObjects (batch XML) ---

func (s *Server) handleBucketPost(w http.ResponseWriter, r *http.Request) {
	bucket, err := s.resolveBucket(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, ok := r.URL.Query()["delete"]; !ok {
		writeError(w, r, apierr.New(apierr.BadRequest, "unsupported bucket POST"))
		return
	}
	if _, err := s.authorize(r, bucket, true); err != nil {
		writeError(w, r, err)
		return
	}

	var req deleteRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierr.Wrap(apierr.BadRequest, err, "decode delete request"))
		return
	}

	var result deleteResult
	for _, obj := range req.Object {
		id, clearEmptyParents, err := s.resolveKeyToObject(r.Context(), bucket, obj.Key)
		if err != nil {
			result.Error = append(result.Error, deleteErrorEntry{Key: obj.Key, Code: s3Code(apierr.KindOf(err)), Message: err.Error()})
			continue
		}
		if id == nil {
			if !req.Quiet {
				result.Deleted = append(result.Deleted, deletedEntry{Key: obj.Key})
			}
			continue
		}
		if err := s.store.DeleteObject(r.Context(), bucket.ID, id.ID, clearEmptyParents); err != nil {
			result.Error = append(result.Error, deleteErrorEntry{Key: obj.Key, Code: s3Code(apierr.KindOf(err)), Message: err.Error()})
			continue
		}
		_ = s.blobs.Delete(bucket.Name, id.ID)
		if !req.Quiet {
			result.Deleted = append(result.Deleted, deletedEntry{Key: obj.Key})
		}
	}
	writeXML(w, http.StatusOK, result)
}

// --- Object-level GET: GetObject or ListParts ---

func (s *Server) handleObjectGet(w http.ResponseWriter, r *http.Request) {
	bucket, err := s.resolveBucket(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.authorize(r, bucket, false); err != nil {
		writeError(w, r, err)
		return
	}

	key := objectKeyParam(r)
	q := r.URL.Query()
	if uploadID := q.Get("uploadId"); uploadID != "" {
		s.handleListParts(w, r, bucket, key, uploadID)
		return
	}
	s.handleGetObject(w, r, bucket, key)
}

func (s *Server) handleObjectHead(w http.ResponseWriter, r *http.Request) {
	bucket, err := s.resolveBucket(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.authorize(r, bucket, false); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetObject(w, r, bucket, objectKeyParam(r))
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket, key string) {
	obj, _, err := s.resolveKeyToObject(r.Context(), bucket, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if obj == nil || obj.IsFolder() {
		writeError(w, r, apierr.New(apierr.NotFound, "no such key"))
		return
	}

	f, err := s.blobs.Open(bucket.Name, obj.ID)
	if err != nil {
		writeError(w, r, apierr.Wrap(apierr.NotFound, err, "open blob"))
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
		writeError(w, r, err)
		return
	}
	s.stats.Record(statsagg.Delta{BucketID: bucket.ID, S3Requests: 1, RequestsCount: 1, BytesServed: obj.Size})
}

// --- ListParts ---

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket, key, uploadID string) {
	q := r.URL.Query()
	marker := queryInt(q, "part-number-marker", 0)
	maxParts := queryInt(q, "max-parts", 1000)

	parts, truncated, err := s.uploads.ListParts(r.Context(), uploadID, marker, maxParts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := listPartsResult{
		Bucket:           bucket.Name,
		Key:              key,
		UploadID:         uploadID,
		PartNumberMarker: marker,
		MaxParts:         maxParts,
		IsTruncated:      truncated,
	}
	for _, p := range parts {
		result.Part = append(result.Part, s3Part{PartNumber: p.PartNumber, ETag: `"` + p.ETag + `"`, Size: p.Size})
		result.NextPartNumberMarker = p.PartNumber
	}
	writeXML(w, http.StatusOK, result)
}

// --- PUT: PutObject, CreateFolder, or UploadPart ---

func (s *Server) handleObjectPut(w http.ResponseWriter, r *http.Request) {
	bucket, err := s.resolveBucket(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.authorize(r, bucket, true); err != nil {
		writeError(w, r, err)
		return
	}

	key := objectKeyParam(r)
	q := r.URL.Query()
	partNumberStr := q.Get("partNumber")
	uploadID := q.Get("uploadId")
	if partNumberStr != "" && uploadID != "" {
		s.handleUploadPart(w, r, partNumberStr, uploadID)
		return
	}
	s.handlePutObject(w, r, bucket, key)
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket, key string) {
	owner, err := s.store.FindUserByID(r.Context(), bucket.OwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	segments := splitKey(key)
	if len(segments) == 0 {
		writeError(w, r, apierr.New(apierr.BadRequest, "empty key"))
		return
	}

	if strings.HasSuffix(key, "/") {
		folderName := segments[len(segments)-1]
		parentID, err := s.ensureParentPath(r.Context(), bucket.ID, segments[:len(segments)-1])
		if err != nil {
			writeError(w, r, err)
			return
		}
		if _, err := s.uploads.CreateFolder(r.Context(), bucket.ID, parentID, folderName); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	filename := segments[len(segments)-1]
	parentID, err := s.ensureParentPath(r.Context(), bucket.ID, segments[:len(segments)-1])
	if err != nil {
		writeError(w, r, err)
		return
	}

	mimeType := r.Header.Get("Content-Type")
	obj, err := s.uploads.PutObject(r.Context(), bucket, owner, parentID, filename, mimeType, r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("ETag", `"`+obj.ID+`"`)
	w.WriteHeader(http.StatusOK)
	s.stats.Record(statsagg.Delta{BucketID: bucket.ID, S3Requests: 1, RequestsCount: 1})
}

func (s *Server) handleUploadPart(w http.ResponseWriter, r *http.Request, partNumberStr, uploadID string) {
	partNumber, err := strconv.Atoi(partNumberStr)
	if err != nil {
		writeError(w, r, apierr.New(apierr.BadRequest, "invalid partNumber"))
		return
	}
	etag, err := s.uploads.UploadPart(r.Context(), uploadID, partNumber, r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+etag+`"`)
	w.WriteHeader(http.StatusOK)
}

// --- POST: InitiateMPU or CompleteMPU ---

func (s *Server) handleObjectPost(w http.ResponseWriter, r *http.Request) {
	bucket, err := s.resolveBucket(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.authorize(r, bucket, true); err != nil {
		writeError(w, r, err)
		return
	}

	key := objectKeyParam(r)
	q := r.URL.Query()
	if _, ok := q["uploads"]; ok {
		s.handleInitiateMultipart(w, r, bucket, key)
		return
	}
	if uploadID := q.Get("uploadId"); uploadID != "" {
		s.handleCompleteMultipart(w, r, bucket, key, uploadID)
		return
	}
	writeError(w, r, apierr.New(apierr.BadRequest, "unsupported object POST"))
}

func (s *Server) handleInitiateMultipart(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket, key string) {
	segments := splitKey(key)
	if len(segments) == 0 {
		writeError(w, r, apierr.New(apierr.BadRequest, "empty key"))
		return
	}
	filename := segments[len(segments)-1]
	parentID, err := s.ensureParentPath(r.Context(), bucket.ID, segments[:len(segments)-1])
	if err != nil {
		writeError(w, r, err)
		return
	}

	mimeType := r.Header.Get("Content-Type")
	uploadID, err := s.uploads.InitiateMultipart(r.Context(), bucket.ID, parentID, filename, mimeType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeXML(w, http.StatusOK, initiateMultipartUploadResult{Bucket: bucket.Name, Key: key, UploadID: uploadID})
}

func (s *Server) handleCompleteMultipart(w http.ResponseWriter, r *http.Request, bucket *metadata.Bucket, key, uploadID string) {
	owner, err := s.store.FindUserByID(r.Context(), bucket.OwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The request body names the part order the client believes it
	// uploaded; the server's own session state is authoritative (it was
	// built from UploadPart calls directly), so the body is read only
	// to validate it parses, not consulted for ordering.
	var req completeMultipartUpload
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, r, apierr.Wrap(apierr.BadRequest, err, "decode complete request"))
		return
	}

	obj, err := s.uploads.CompleteMultipart(r.Context(), bucket, owner, uploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeXML(w, http.StatusOK, completeMultipartUploadResult{
		Location: "/" + bucket.Name + "/" + key,
		Bucket:   bucket.Name,
		Key:      key,
		ETag:     `"` + obj.ID + `"`,
	})
	s.stats.Record(statsagg.Delta{BucketID: bucket.ID, S3Requests: 1, RequestsCount: 1})
}

// --- DELETE: AbortMPU or DeleteObject ---

func (s *Server) handleObjectDelete(w http.ResponseWriter, r *http.Request) {
	bucket, err := s.resolveBucket(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.authorize(r, bucket, true); err != nil {
		writeError(w, r, err)
		return
	}

	key := objectKeyParam(r)
	if uploadID := r.URL.Query().Get("uploadId"); uploadID != "" {
		if err := s.uploads.AbortMultipart(r.Context(), uploadID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	obj, clearEmptyParents, err := s.resolveKeyToObject(r.Context(), bucket, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if obj != nil {
		if err := s.store.DeleteObject(r.Context(), bucket.ID, obj.ID, clearEmptyParents); err != nil {
			writeError(w, r, err)
			return
		}
		_ = s.blobs.Delete(bucket.Name, obj.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func splitKey(key string) []string {
	key = strings.Trim(key, "/")
	if key == "" {
		return nil
	}
	return strings.Split(key, "/")
}

func queryInt(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}
