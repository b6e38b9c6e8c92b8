package storage

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig addresses an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBase overrides the URL prefix of public objects, e.g. a CDN.
	PublicBase string
}

// MinIO stores objects in an S3-compatible bucket.
type MinIO struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinIO connects and creates the bucket when it is missing.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, toError(err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, toError(err)
		}
	}

	base := strings.TrimRight(cfg.PublicBase, "/")
	if base == "" {
		base = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + cfg.Bucket
	}
	return &MinIO{client: client, bucket: cfg.Bucket, publicBase: base}, nil
}

// Upload refuses to write over an existing object unless opts.Overwrite is
// set. The existence check and the put are two requests; the random keys
// produced by the upload package make the window irrelevant in practice.
func (m *MinIO) Upload(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if !opts.Overwrite {
		_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return "", &Error{Name: ErrDuplicate.Name, Message: ErrDuplicate.Message}
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return "", toError(err)
		}
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return "", toError(err)
	}
	return key, nil
}

func (m *MinIO) PublicURL(path string) string {
	return m.publicBase + "/" + strings.TrimLeft(path, "/")
}

func (m *MinIO) Remove(ctx context.Context, path string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return toError(err)
	}
	return nil
}

func toError(err error) error {
	resp := minio.ToErrorResponse(err)
	name := resp.Code
	if name == "" {
		name = "StorageError"
	}
	msg := resp.Message
	if msg == "" {
		msg = err.Error()
	}
	return &Error{Name: name, Message: msg, Err: err}
}
