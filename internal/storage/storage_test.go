package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
)

func TestNewS3Client_Validation(t *testing.T) {
	valid := config.StorageConfig{Endpoint: "s3.example.com", AccessKey: "ak", SecretKey: "sk", Bucket: "reorder", UseSSL: true}

	tests := []struct {
		name   string
		mutate func(c *config.StorageConfig)
		want   string
	}{
		{"missing endpoint", func(c *config.StorageConfig) { c.Endpoint = "" }, "endpoint"},
		{"missing secret", func(c *config.StorageConfig) { c.SecretKey = "" }, "credentials"},
		{"missing bucket", func(c *config.StorageConfig) { c.Bucket = "" }, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewS3Client(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	client, err := NewS3Client(valid)
	require.NoError(t, err)
	assert.Equal(t, "reorder", client.bucket)
}

func TestNormalizeEndpoint(t *testing.T) {
	base := config.StorageConfig{AccessKey: "ak", SecretKey: "sk", Bucket: "b"}

	cfg := base
	cfg.Endpoint = "http://localhost:9000/"
	cfg.UseSSL = true
	endpoint, secure, err := normalizeEndpoint(cfg)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", endpoint)
	assert.False(t, secure)

	cfg.Endpoint = "https://objects.example.com"
	cfg.UseSSL = false
	endpoint, secure, err = normalizeEndpoint(cfg)
	require.NoError(t, err)
	assert.Equal(t, "objects.example.com", endpoint)
	assert.True(t, secure)
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.UploadObject(ctx, "exports/b.csv", []byte("b")))
	require.NoError(t, store.UploadObject(ctx, "exports/a.csv", []byte("aa")))
	require.NoError(t, store.UploadObject(ctx, "input/weekly.csv", []byte("w")))

	objects, err := store.ListObjects(ctx, "exports/")
	require.NoError(t, err)
	assert.Equal(t, []ObjectInfo{{Key: "exports/a.csv", Size: 2}, {Key: "exports/b.csv", Size: 1}}, objects)

	rc, err := store.OpenObject(ctx, "exports/a.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "aa", string(data))

	require.NoError(t, store.UploadObject(ctx, "exports/a.csv", []byte("replaced")))
	rc, err = store.OpenObject(ctx, "exports/a.csv")
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))

	_, err = store.OpenObject(ctx, "missing")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a.csv"))
	assert.Equal(t, "application/x-ndjson", contentType("a.jsonl"))
	assert.Equal(t, "application/octet-stream", contentType("a.unknownext"))
}
