package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes blobs under a directory. Used with the sqlite backend.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed. An empty baseURL yields file:// URLs.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory not set")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	clean := filepath.Clean("/" + key)
	target := filepath.Join(s.dir, filepath.FromSlash(clean))
	if !strings.HasPrefix(target, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid blob path %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}

	f, err := os.Create(target)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if size >= 0 && n != size {
		os.Remove(target)
		return "", fmt.Errorf("short write: got %d bytes, want %d", n, size)
	}

	if s.baseURL != "" {
		return publicURL(s.baseURL, strings.TrimPrefix(filepath.ToSlash(clean), "/")), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}
