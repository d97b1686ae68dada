// Package readpath serves a blob through an HTTP response, parsing
// Range headers, emitting the required headers, and streaming in
// fixed-size chunks so a slow client naturally applies backpressure to
// the read loop instead of buffering an entire object in memory.
// Grounded on the teacher's pkg/payload range-serving handler, which
// uses the same parse-then-chunked-copy structure against its own
// content-addressed store.
package readpath

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/byteserve/internal/logger"
	"github.com/marmos91/byteserve/pkg/apierr"
)

// chunkSize is the read/write unit for streaming blob content, per the
// spec's "16 MiB reads from the computed range."
const chunkSize = 16 << 20

// Range is an inclusive byte range [Start, End] within a blob of size
// Size.
type Range struct {
	Start int64
	End   int64
	Size  int64
}

// Length returns the number of bytes the range covers.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ParseRange parses a "bytes=<start>-<end?>" header against an object
// of the given size. A zero-value header yields the full-object range
// with ok=true and partial=false. Returns ok=false (416) if start >=
// size, end >= size, or start > end.
func ParseRange(header string, size int64) (rng Range, partial bool, ok bool) {
	if header == "" {
		return Range{Start: 0, End: size - 1, Size: size}, false, true
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return Range{}, false, false
	}
	spec := strings.TrimPrefix(header, prefix)
	// Only the first range of a multi-range request is honored; the
	// spec scopes range serving to a single contiguous slice.
	if comma := strings.IndexByte(spec, ','); comma != -1 {
		spec = spec[:comma]
	}

	dash := strings.IndexByte(spec, '-')
	if dash == -1 {
		return Range{}, false, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	var start, end int64
	if startStr == "" {
		// Suffix range "-N": last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return Range{}, false, false
		}
		start = size - n
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		s, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || s < 0 {
			return Range{}, false, false
		}
		start = s
		if endStr == "" {
			end = size - 1
		} else {
			e, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil {
				return Range{}, false, false
			}
			end = e
		}
	}

	if start >= size || end >= size || start > end {
		return Range{}, false, false
	}
	return Range{Start: start, End: end, Size: size}, true, true
}

// Metadata is the subset of Object fields the read path needs to emit
// headers, decoupled from pkg/metadata to avoid an import cycle with
// callers that only need the header contract.
type Metadata struct {
	ObjectID  string
	Filename  string
	MimeType  string
	Size      int64
	UpdatedAt time.Time
}

// ServeBlob writes status, headers, and (for methods other than HEAD)
// a ranged or full body read from src to w. src must support io.Seeker
// to reposition to rng.Start before streaming.
func ServeBlob(w http.ResponseWriter, r *http.Request, src io.ReadSeeker, meta Metadata) error {
	header := w.Header()
	header.Set("Content-Type", meta.MimeType)
	header.Set("Content-Disposition", fmt.Sprintf(`inline; filename=%q`, meta.Filename))
	header.Set("Accept-Ranges", "bytes")
	header.Set("ETag", fmt.Sprintf("%q", meta.ObjectID))
	header.Set("Last-Modified", meta.UpdatedAt.UTC().Format(http.TimeFormat))

	rng, partial, ok := ParseRange(r.Header.Get("Range"), meta.Size)
	if !ok {
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", meta.Size))
		return apierr.New(apierr.RangeNotSatisfiable, "range not satisfiable")
	}

	header.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	status := http.StatusOK
	if partial {
		status = http.StatusPartialContent
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, rng.Size))
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}

	if _, err := src.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("readpath: seek to range start: %w", err)
	}
	return streamChunked(r.Context().Done(), w, src, rng.Length())
}

// flusher lets ServeBlob push each chunk to the client promptly;
// http.ResponseWriter implements it in net/http's default stack.
type flusher interface {
	Flush()
}

// streamChunked copies remaining bytes from src to w in chunkSize
// reads, stopping early if done fires (client disconnect). Each write
// blocks on the underlying connection's buffer, which is exactly the
// backpressure point the spec requires between reads.
func streamChunked(done <-chan struct{}, w io.Writer, src io.Reader, remaining int64) error {
	buf := make([]byte, chunkSize)
	for remaining > 0 {
		select {
		case <-done:
			return nil
		default:
		}

		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := src.Read(buf[:n])
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return werr
			}
			if f, ok := w.(flusher); ok {
				f.Flush()
			}
			remaining -= int64(read)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("readpath: read blob chunk: %w", err)
		}
	}
	return nil
}

// logReadFailure logs a best-effort diagnostic for a failed stream.
// It has no callers: handlers pass ServeBlob's error to their own
// error writer instead.
func logReadFailure(objectID string, err error) {
	logger.Error("read path stream failed", "object_id", objectID, "error", err)
}
