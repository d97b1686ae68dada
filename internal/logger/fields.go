package logger

import (
	"log/slog"
)

// Standard field keys for structured logging, shared across the S3, public,
// file-request, and transform wire surfaces.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeySurface   = "surface"   // s3, public, filereq, transform
	KeyOperation = "operation" // PutObject, GetObject, InitiateMPU, ...
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"
	KeyStatus    = "status"

	KeyBucket     = "bucket"
	KeyObjectID   = "object_id"
	KeyObjectKey  = "object_key"
	KeyUploadID   = "upload_id"
	KeyPartNumber = "part_number"
	KeyFileReqID  = "filereq_id"
	KeyAccessKey  = "access_key"
	KeyUserID     = "user_id"

	KeySize         = "size"
	KeyOffset       = "offset"
	KeyBytesWritten = "bytes_written"
	KeyDurationMs   = "duration_ms"
	KeyError        = "error"
	KeyCacheHit     = "cache_hit"
)

// Bucket returns a slog.Attr for the bucket name.
func Bucket(name string) slog.Attr { return slog.String(KeyBucket, name) }

// ObjectID returns a slog.Attr for the object UUID.
func ObjectID(id string) slog.Attr { return slog.String(KeyObjectID, id) }

// ObjectKey returns a slog.Attr for the slash-joined object key.
func ObjectKey(key string) slog.Attr { return slog.String(KeyObjectKey, key) }

// UploadID returns a slog.Attr for a multipart upload id.
func UploadID(id string) slog.Attr { return slog.String(KeyUploadID, id) }

// PartNumber returns a slog.Attr for a multipart part number.
func PartNumber(n int) slog.Attr { return slog.Int(KeyPartNumber, n) }

// FileReqID returns a slog.Attr for a file-request session id.
func FileReqID(id string) slog.Attr { return slog.String(KeyFileReqID, id) }

// AccessKey returns a slog.Attr for an S3 access key id.
func AccessKey(key string) slog.Attr { return slog.String(KeyAccessKey, key) }

// Size returns a slog.Attr for a byte size.
func Size(n int64) slog.Attr { return slog.Int64(KeySize, n) }

// Offset returns a slog.Attr for a byte offset.
func Offset(n int64) slog.Attr { return slog.Int64(KeyOffset, n) }

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// CacheHit returns a slog.Attr for a cache hit/miss indicator.
func CacheHit(hit bool) slog.Attr { return slog.Bool(KeyCacheHit, hit) }
