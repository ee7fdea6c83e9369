package blob

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/go-resty/resty/v2"
	"github.com/studyhub/studyfeed/pkg/backend"
)

// UploadResponse is returned by POST /api/v1/uploads.
type UploadResponse struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// RESTStore uploads through the backend's multipart endpoint.
type RESTStore struct {
	http *resty.Client
}

func NewRESTStore(http *resty.Client) *RESTStore {
	return &RESTStore{http: http}
}

func (s *RESTStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	var out UploadResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetMultipartField("file", path.Base(key), contentType, r).
		SetFormData(map[string]string{"path": key}).
		SetResult(&out).
		Post("/api/v1/uploads")
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &backend.APIError{Code: "upload_failed", Message: string(resp.Body()), StatusCode: resp.StatusCode()}
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return out.URL, nil
}
