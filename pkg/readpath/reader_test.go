package readpath

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/apierr"
)

func TestParseRangeNoHeader(t *testing.T) {
	rng, partial, ok := ParseRange("", 100)
	require.True(t, ok)
	require.False(t, partial)
	require.Equal(t, Range{Start: 0, End: 99, Size: 100}, rng)
}

func TestParseRangeExplicit(t *testing.T) {
	rng, partial, ok := ParseRange("bytes=6-10", 11)
	require.True(t, ok)
	require.True(t, partial)
	require.Equal(t, int64(6), rng.Start)
	require.Equal(t, int64(10), rng.End)
	require.EqualValues(t, 5, rng.Length())
}

func TestParseRangeOpenEnded(t *testing.T) {
	rng, partial, ok := ParseRange("bytes=5-", 11)
	require.True(t, ok)
	require.True(t, partial)
	require.Equal(t, int64(5), rng.Start)
	require.Equal(t, int64(10), rng.End)
}

func TestParseRangeSuffix(t *testing.T) {
	rng, partial, ok := ParseRange("bytes=-3", 11)
	require.True(t, ok)
	require.True(t, partial)
	require.Equal(t, int64(8), rng.Start)
	require.Equal(t, int64(10), rng.End)
}

func TestParseRangeRejectsStartBeyondSize(t *testing.T) {
	_, _, ok := ParseRange("bytes=11-20", 11)
	require.False(t, ok)
}

func TestParseRangeRejectsInverted(t *testing.T) {
	_, _, ok := ParseRange("bytes=5-2", 11)
	require.False(t, ok)
}

func TestServeBlobFullBody(t *testing.T) {
	body := bytes.NewReader([]byte("hello world"))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	err := ServeBlob(rec, req, body, Metadata{
		ObjectID: "obj-1", Filename: "c.jpg", MimeType: "text/plain",
		Size: 11, UpdatedAt: time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "11", rec.Header().Get("Content-Length"))
	require.Equal(t, `"obj-1"`, rec.Header().Get("ETag"))
	require.Equal(t, "hello world", rec.Body.String())
}

func TestServeBlobRange(t *testing.T) {
	body := bytes.NewReader([]byte("hello world"))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Range", "bytes=6-10")
	rec := httptest.NewRecorder()

	err := ServeBlob(rec, req, body, Metadata{
		ObjectID: "obj-1", Filename: "c.jpg", MimeType: "text/plain",
		Size: 11, UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "bytes 6-10/11", rec.Header().Get("Content-Range"))
	require.Equal(t, "world", rec.Body.String())
}

func TestServeBlobRangeNotSatisfiable(t *testing.T) {
	body := bytes.NewReader([]byte("hello world"))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Range", "bytes=20-30")
	rec := httptest.NewRecorder()

	err := ServeBlob(rec, req, body, Metadata{
		ObjectID: "obj-1", Filename: "c.jpg", MimeType: "text/plain",
		Size: 11, UpdatedAt: time.Now(),
	})
	require.Error(t, err)
	require.Equal(t, apierr.RangeNotSatisfiable, apierr.KindOf(err))
	require.Equal(t, "bytes */11", rec.Header().Get("Content-Range"))
}

func TestServeBlobHeadOmitsBody(t *testing.T) {
	body := bytes.NewReader([]byte("hello world"))
	req := httptest.NewRequest(http.MethodHead, "/x", nil)
	rec := httptest.NewRecorder()

	err := ServeBlob(rec, req, body, Metadata{
		ObjectID: "obj-1", Filename: "c.jpg", MimeType: "text/plain",
		Size: 11, UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, "", rec.Body.String())
	require.Equal(t, "11", rec.Header().Get("Content-Length"))
}
