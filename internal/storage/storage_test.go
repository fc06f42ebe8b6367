package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDisk(t *testing.T) {
	ctx := context.Background()
	d, err := NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)

	key := "products/cactus/abc/golden.png"
	require.NoError(t, d.Put(ctx, key, []byte("png-bytes"), "image/png"))

	ok, err := d.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := d.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)
	assert.Equal(t, "/media/products/cactus/abc/golden.png", d.URL(key))

	require.NoError(t, d.Delete(ctx, key))
	require.NoError(t, d.Delete(ctx, key))

	_, err = d.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotExist)
	ok, err = d.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDisk_RejectsEscapingKeys(t *testing.T) {
	d, err := NewLocal(t.TempDir(), "/media")
	require.NoError(t, err)
	assert.Error(t, d.Put(context.Background(), "../outside.png", []byte("x"), ""))
}

func TestS3Disk_PathStyleRequests(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			body, _ = io.ReadAll(r.Body)
		}
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewS3(context.Background(), S3Options{
		Bucket:   "plants",
		Region:   "us-east-1",
		Key:      "key",
		Secret:   "secret",
		Endpoint: srv.URL,
		BaseURL:  "https://cdn.example.com/",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Put(ctx, "products/succulent/x/aloe.png", []byte("png"), "image/png"))
	require.NoError(t, d.Delete(ctx, "products/succulent/x/aloe.png"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"PUT /plants/products/succulent/x/aloe.png",
		"DELETE /plants/products/succulent/x/aloe.png",
	}, seen)
	assert.Contains(t, string(body), "png")
	assert.Equal(t, "https://cdn.example.com/products/succulent/x/aloe.png", d.URL("products/succulent/x/aloe.png"))
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{})
	assert.Error(t, err)
}
