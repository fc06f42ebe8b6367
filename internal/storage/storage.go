// Package storage keeps product image blobs on the local filesystem or in an
// S3-compatible bucket (AWS S3, MinIO, R2).
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/cactus_shop/internal/config"
)

var ErrNotExist = errors.New("storage: object does not exist")

// Disk is implemented by every storage driver. Keys use forward slashes.
type Disk interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete returns nil when the object did not exist.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the driver selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (Disk, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocal(cfg.StorageLocalRoot, cfg.StorageURL)
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Key:      cfg.S3.Key,
			Secret:   cfg.S3.Secret,
			Endpoint: cfg.S3.Endpoint,
			BaseURL:  cfg.S3.URL,
		})
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StorageDriver)
	}
}
