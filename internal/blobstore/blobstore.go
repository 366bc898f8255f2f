// Package blobstore archives rendered invoice documents to object
// storage. Uploads are best-effort; a failed archive never fails the
// invoice save.
package blobstore

import (
	"context"
	"io"
)

// Store is the blob storage surface consumed by the access layer.
type Store interface {
	Ping(ctx context.Context) error
	Put(ctx context.Context, key string, contentType string, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
