package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "")
	require.NoError(t, err)

	u, err := s.Put(context.Background(), "posts/u1/1700000000000_cat.png", strings.NewReader("png!"), 4, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))

	b, err := os.ReadFile(filepath.Join(dir, "posts", "u1", "1700000000000_cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "png!", string(b))
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "https://cdn.example.com/media")
	require.NoError(t, err)

	u, err := s.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err, "path is re-rooted under the store")
	assert.Equal(t, "https://cdn.example.com/media/etc/passwd", u)

	_, err = s.Put(context.Background(), "a.txt", strings.NewReader("xy"), 5, "text/plain")
	assert.Error(t, err)
}

func TestRESTStorePut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/uploads", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "photo.jpg", hdr.Filename)
		assert.Equal(t, "jpeg-bytes", string(body))
		assert.Equal(t, "avatars/u1/photo.jpg", r.FormValue("path"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/avatars/u1/photo.jpg"}`))
	}))
	defer srv.Close()

	s := NewRESTStore(resty.New().SetBaseURL(srv.URL))
	u, err := s.Put(context.Background(), "avatars/u1/photo.jpg", strings.NewReader("jpeg-bytes"), 10, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/u1/photo.jpg", u)
}

func TestRESTStoreError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	_, err := NewRESTStore(resty.New().SetBaseURL(srv.URL)).Put(context.Background(), "a.png", strings.NewReader("x"), 1, "image/png")
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "ftp"}, nil)
	assert.Error(t, err)

	s, err := New(context.Background(), Config{Driver: "local", LocalDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)
}
