package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/resilience"
)

type gcsStore struct {
	client *storage.Client
	bucket string
	prefix string
	log    *zap.Logger
}

// NewGCSStore builds the Cloud Storage backed store. Returns nil when no
// bucket is configured; construction failures are logged rather than
// propagated so one missing dependency does not stop the process.
func NewGCSStore(cfg config.Config, log *zap.Logger) Store {
	if cfg.StorageBucket == "" {
		log.Info("storage bucket not configured, blob store disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := storage.NewClient(ctx)
	if err != nil {
		log.Warn("storage client construction failed, blob store disabled", zap.Error(err))
		return nil
	}
	return &gcsStore{
		client: client,
		bucket: cfg.StorageBucket,
		prefix: cfg.StoragePrefix,
		log:    log.Named("blobstore"),
	}
}

func (s *gcsStore) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, key))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return resilience.Permanent(err)
	}
	return resilience.Transient(err)
}

func (s *gcsStore) Ping(ctx context.Context) error {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	return translate(err)
}

func (s *gcsStore) Put(ctx context.Context, key string, contentType string, body io.Reader) error {
	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return translate(fmt.Errorf("upload %s: %w", key, err))
	}
	return translate(w.Close())
}

func (s *gcsStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	return translate(s.object(key).Delete(ctx))
}
