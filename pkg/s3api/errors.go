package s3api

import (
	"encoding/xml"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/byteserve/internal/logger"
	"github.com/marmos91/byteserve/pkg/apierr"
)

type s3ErrorBody struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}

// s3Code maps an apierr.Kind to the S3 error Code an AWS SDK client
// expects, so existing S3 tooling can classify our failures the same
// way it classifies a real bucket's.
func s3Code(kind apierr.Kind) string {
	switch kind {
	case apierr.NotFound:
		return "NoSuchKey"
	case apierr.Unauthorized:
		return "AccessDenied"
	case apierr.Forbidden:
		return "AccessDenied"
	case apierr.BadRequest:
		return "InvalidArgument"
	case apierr.Conflict:
		return "BucketAlreadyOwnedByYou"
	case apierr.RangeNotSatisfiable:
		return "InvalidRange"
	case apierr.QuotaExceeded:
		return "QuotaExceeded"
	default:
		return "InternalError"
	}
}

// writeError writes the S3 XML error envelope, mapping err's Kind to
// both the HTTP status and the Code an S3 client switches on. HEAD
// requests (HeadObject/HeadBucket) get only the status line: S3 never
// sends a body for a HEAD response, error or not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apierr.KindOf(err)
	status := kind.HTTPStatus()

	if kind == apierr.Internal {
		logger.Error("s3 request failed", "path", r.URL.Path, "method", r.Method, "error", err)
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}

	message := err.Error()
	if kind == apierr.Internal {
		message = "internal error"
	}

	body := s3ErrorBody{
		Code:      s3Code(kind),
		Message:   message,
		Resource:  r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(body)
}
