package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
)

// New builds the object storage selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "s3", "minio":
		return NewS3Client(cfg)
	case "gdrive", "drive":
		return NewDriveStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
