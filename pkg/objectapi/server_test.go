package objectapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/blobstore"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metadata/memory"
	"github.com/marmos91/byteserve/pkg/pathresolver"
	"github.com/marmos91/byteserve/pkg/quota"
	"github.com/marmos91/byteserve/pkg/statsagg"
	"github.com/marmos91/byteserve/pkg/upload"
)

type objectapiFixture struct {
	server *Server
	router chi.Router
	store  metadata.Store
	owner  *metadata.User
	bucket *metadata.Bucket
	token  string
}

func newObjectapiFixture(t *testing.T, access metadata.BucketAccess) *objectapiFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	owner := &metadata.User{ID: uuid.NewString(), Username: "owner", PasswordHash: "x", Enabled: true, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateUser(ctx, owner))

	bucket := &metadata.Bucket{ID: uuid.NewString(), Name: "bucket-" + uuid.NewString(), OwnerID: owner.ID, Access: access, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateBucket(ctx, bucket))
	require.NoError(t, store.SetBucketConfig(ctx, bucket.ID, "files_send_folder_index", "true", metadata.ConfigBoolean))

	token := &metadata.ApiToken{ID: uuid.NewString(), UserID: owner.ID, Token: uuid.NewString()}
	require.NoError(t, store.CreateAPIToken(ctx, token))

	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	cache, err := kvcache.New("")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	engine := upload.New(store, blobs, cache, quota.New(store))
	paths := pathresolver.New(store, cache)
	stats := statsagg.New(store, 0)

	srv := New(store, blobs, paths, engine, cache, stats)
	r := chi.NewRouter()
	r.Route("/api/storage", srv.MountStorage)
	r.Route("/transform", srv.MountTransform)

	return &objectapiFixture{server: srv, router: r, store: store, owner: owner, bucket: bucket, token: token.Token}
}

func (f *objectapiFixture) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *objectapiFixture) uploadMultipart(t *testing.T, path, filename string, content []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(uploadFormField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestPublicWriteBucketAcceptsUploadAndServesIt(t *testing.T) {
	f := newObjectapiFixture(t, metadata.AccessPublicWrite)

	rec := f.uploadMultipart(t, "/api/storage/"+f.bucket.Name, "hello.txt", []byte("hello world"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/storage/"+f.bucket.Name+"/hello.txt", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello world", rec.Body.String())
	require.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
}

func TestPrivateBucketUploadRejected(t *testing.T) {
	f := newObjectapiFixture(t, metadata.AccessPrivate)
	rec := f.uploadMultipart(t, "/api/storage/"+f.bucket.Name, "hello.txt", []byte("x"), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPrivateBucketReadRequiresToken(t *testing.T) {
	f := newObjectapiFixture(t, metadata.AccessPrivate)
	ctx := context.Background()

	obj, err := f.server.uploads.PutObject(ctx, f.bucket, f.owner, nil, "secret.txt", "", bytes.NewBufferString("top secret"))
	require.NoError(t, err)
	require.Equal(t, "secret.txt", obj.Filename)

	rec := f.do(http.MethodGet, "/api/storage/"+f.bucket.Name+"/secret.txt", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/storage/"+f.bucket.Name+"/secret.txt", nil, map[string]string{
		"Authorization": "Bearer " + f.token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "top secret", rec.Body.String())
}

func TestFolderIndexListing(t *testing.T) {
	f := newObjectapiFixture(t, metadata.AccessPublicRead)
	ctx := context.Background()

	_, err := f.server.uploads.PutObject(ctx, f.bucket, f.owner, nil, "a.txt", "", bytes.NewBufferString("aaa"))
	require.NoError(t, err)
	_, err = f.server.uploads.PutObject(ctx, f.bucket, f.owner, nil, "b.txt", "", bytes.NewBufferString("bb"))
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/storage/"+f.bucket.Name, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var idx folderIndex
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idx))
	require.Equal(t, f.bucket.Name, idx.Bucket.Name)
	require.Len(t, idx.Objects, 2)
}

func TestRangeRequest(t *testing.T) {
	f := newObjectapiFixture(t, metadata.AccessPublicRead)
	ctx := context.Background()
	_, err := f.server.uploads.PutObject(ctx, f.bucket, f.owner, nil, "range.txt", "", bytes.NewBufferString("0123456789"))
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/storage/"+f.bucket.Name+"/range.txt", nil, map[string]string{
		"Range": "bytes=2-4",
	})
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "234", rec.Body.String())
}
