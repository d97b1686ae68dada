package fileserver

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/marmos91/byteserve/pkg/upload"
)

type fixture struct {
	server *Server
	router chi.Router
	store  metadata.Store
	owner  *metadata.User
	bucket *metadata.Bucket
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	ctx := context.Background()

	owner := &metadata.User{ID: uuid.NewString(), Username: "owner", PasswordHash: "x", Enabled: true, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateUser(ctx, owner))

	bucket := &metadata.Bucket{ID: uuid.NewString(), Name: "bucket-" + uuid.NewString(), OwnerID: owner.ID, StorageQuota: metadata.Unlimited}
	require.NoError(t, store.CreateBucket(ctx, bucket))

	token := &metadata.ApiToken{ID: uuid.NewString(), UserID: owner.ID, Token: uuid.NewString()}
	require.NoError(t, store.CreateAPIToken(ctx, token))

	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	cache, err := kvcache.New("")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	engine := upload.New(store, blobs, cache, quota.New(store))
	paths := pathresolver.New(store, cache)

	srv := New(store, paths, engine, "https://store.example.com")
	r := chi.NewRouter()
	r.Route("/api/filereq", srv.Mount)

	return &fixture{server: srv, router: r, store: store, owner: owner, bucket: bucket, token: token.Token}
}

func (f *fixture) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateRequiresAuth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/filereq/", []byte(`{"bucket":"whatever"}`), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRejectsNonOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := &metadata.User{ID: uuid.NewString(), Username: "other", PasswordHash: "x", Enabled: true}
	require.NoError(t, f.store.CreateUser(ctx, other))
	otherToken := &metadata.ApiToken{ID: uuid.NewString(), UserID: other.ID, Token: uuid.NewString()}
	require.NoError(t, f.store.CreateAPIToken(ctx, otherToken))

	body, _ := json.Marshal(createRequest{Bucket: f.bucket.Name})
	rec := f.do(http.MethodPost, "/api/filereq/", body, map[string]string{
		"Authorization": "Bearer " + otherToken.Token,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFullUploadFlowThroughHandlers(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(createRequest{Bucket: f.bucket.Name, Filename: "doc.json"})
	rec := f.do(http.MethodPost, "/api/filereq/", body, map[string]string{
		"Authorization": "Bearer " + f.token,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "doc.json", created.Filename)
	require.Contains(t, created.Scripts.Sh, "/api/filereq/"+created.ID+"/sh")

	rec = f.do(http.MethodGet, "/api/filereq/"+created.ID+"/sh", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "#!/usr/bin/env bash")

	rec = f.do(http.MethodPost, "/api/filereq/"+created.ID+"/upload", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/api/filereq/"+created.ID+"/upload", []byte(`{"a":1}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/filereq/"+created.ID+"/upload/complete", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "doc.json", result["filename"])

	// Session is gone after completion.
	rec = f.do(http.MethodPost, "/api/filereq/"+created.ID+"/upload", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRequiresAPIKeyWhenFlagged(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(createRequest{Bucket: f.bucket.Name, Filename: "secret.bin", RequireAPIKey: true})
	rec := f.do(http.MethodPost, "/api/filereq/", body, map[string]string{
		"Authorization": "Bearer " + f.token,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// No API key: rejected.
	rec = f.do(http.MethodPost, "/api/filereq/"+created.ID+"/upload", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Regular (non-API) bearer token in X-Api-Key: still rejected.
	rec = f.do(http.MethodPost, "/api/filereq/"+created.ID+"/upload", nil, map[string]string{
		"X-Api-Key": f.token,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// A real API-flagged token succeeds.
	apiToken := &metadata.ApiToken{ID: uuid.NewString(), UserID: f.owner.ID, Token: uuid.NewString(), IsAPI: true}
	require.NoError(t, f.store.CreateAPIToken(context.Background(), apiToken))
	rec = f.do(http.MethodPost, "/api/filereq/"+created.ID+"/upload", nil, map[string]string{
		"X-Api-Key": apiToken.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCancelIsIdempotentAndCreatorScoped(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(createRequest{Bucket: f.bucket.Name, Filename: "x.bin"})
	rec := f.do(http.MethodPost, "/api/filereq/", body, map[string]string{
		"Authorization": "Bearer " + f.token,
	})
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	ctx := context.Background()
	other := &metadata.User{ID: uuid.NewString(), Username: "stranger", PasswordHash: "x", Enabled: true}
	require.NoError(t, f.store.CreateUser(ctx, other))
	otherToken := &metadata.ApiToken{ID: uuid.NewString(), UserID: other.ID, Token: uuid.NewString()}
	require.NoError(t, f.store.CreateAPIToken(ctx, otherToken))

	rec = f.do(http.MethodDelete, "/api/filereq/"+created.ID, nil, map[string]string{
		"Authorization": "Bearer " + otherToken.Token,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodDelete, "/api/filereq/"+created.ID, nil, map[string]string{
		"Authorization": "Bearer " + f.token,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Canceling again is a no-op, not an error, even for an unrelated caller.
	rec = f.do(http.MethodDelete, "/api/filereq/"+created.ID, nil, map[string]string{
		"Authorization": "Bearer " + otherToken.Token,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
}
