package kvcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))
	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))

	require.NoError(t, c.Delete(ctx, "k1"))
	_, err = c.Get(ctx, "k1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetNotFound(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetJSONGetJSON(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	type payload struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	require.NoError(t, c.SetJSON(ctx, "obj", payload{Name: "a", Size: 42}, time.Minute))

	var got payload
	require.NoError(t, c.GetJSON(ctx, "obj", &got))
	require.Equal(t, "a", got.Name)
	require.EqualValues(t, 42, got.Size)
}

func TestUpdateJSONFieldAndAppend(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.UpdateJSONField(ctx, "doc", time.Minute, func(doc map[string]any) {
		doc["filename"] = "first.txt"
	}))
	require.NoError(t, c.AppendJSONArray(ctx, "doc", "parts", time.Minute, 1))
	require.NoError(t, c.AppendJSONArray(ctx, "doc", "parts", time.Minute, 2))

	var doc map[string]any
	require.NoError(t, c.GetJSON(ctx, "doc", &doc))
	require.Equal(t, "first.txt", doc["filename"])
	require.Len(t, doc["parts"], 2)
}

func TestListKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "s3:multipartupload:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "s3:multipartupload:2", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "filereq:1", []byte("c"), time.Minute))

	keys, err := c.ListKeysByPrefix(ctx, "s3:multipartupload:")
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestPublishSubscribe(t *testing.T) {
	c := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Subscribe(ctx, "cert_update")
	c.Publish("cert_update", []byte("reload"))

	select {
	case msg := <-ch:
		require.Equal(t, "reload", string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, c.Expire(ctx, "k", time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuildFingerprint(t *testing.T) {
	require.Equal(t, "bucket:a/b/c", BuildFingerprint("bucket", "a/b/c"))
}
