package storage

import (
	"context"
	"io"
	"mime"
	"path/filepath"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the reorder
// jobs need: pulling demand extracts and pushing decision exports.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	OpenObject(ctx context.Context, key string) (io.ReadCloser, error)
	UploadObject(ctx context.Context, key string, data []byte) error
}

func contentType(key string) string {
	switch filepath.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".jsonl":
		return "application/x-ndjson"
	}
	if t := mime.TypeByExtension(filepath.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
