package store

import (
	"context"
	"path"
)

// BlobBackend is the subset of the blob client the store needs
type BlobBackend interface {
	Upload(ctx context.Context, blobName string, data []byte) error
	Download(ctx context.Context, blobName string) ([]byte, bool, error)
	Delete(ctx context.Context, blobName string) error
}

// BlobKV keeps each key in its own blob under a profile prefix
type BlobKV struct {
	blobs  BlobBackend
	prefix string
}

// NewBlobKV creates a backend storing keys as <prefix>/<key>.json
func NewBlobKV(blobs BlobBackend, prefix string) *BlobKV {
	if prefix == "" {
		prefix = "state"
	}
	return &BlobKV{blobs: blobs, prefix: prefix}
}

func (b *BlobKV) blobName(key string) string {
	return path.Join(b.prefix, key+".json")
}

func (b *BlobKV) Get(ctx context.Context, key string) (string, bool, error) {
	data, ok, err := b.blobs.Download(ctx, b.blobName(key))
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

func (b *BlobKV) Set(ctx context.Context, key, value string) error {
	return b.blobs.Upload(ctx, b.blobName(key), []byte(value))
}

func (b *BlobKV) Delete(ctx context.Context, key string) error {
	return b.blobs.Delete(ctx, b.blobName(key))
}

func (b *BlobKV) Close() error {
	return nil
}
