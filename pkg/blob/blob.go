// Package blob uploads media (post images, avatars, notes) and returns the
// public URL stored on the document.
package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/studyhub/studyfeed/pkg/backend"
)

// Config selects and configures the blob driver.
type Config struct {
	Driver    string // rest, minio, s3, local
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	PublicURL string
	LocalDir  string
}

// New builds the configured store. http is only used by the rest driver.
func New(ctx context.Context, cfg Config, http *resty.Client) (backend.BlobStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "rest":
		if http == nil {
			return nil, fmt.Errorf("rest blob store needs an HTTP client")
		}
		return NewRESTStore(http), nil
	case "minio":
		return NewMinioStore(cfg)
	case "s3":
		return NewS3Store(ctx, cfg)
	case "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func publicURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}
