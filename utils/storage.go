package utils

import (
	"context"
	"fmt"
	"strings"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/storage"
)

// NewStorage builds the object storage selected by StorageDriver.
func NewStorage(ctx context.Context, cfg config.AppConfig) (storage.Storage, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case "local", "":
		return storage.NewLocal(cfg.UploadDir, cfg.UploadBaseURL), nil
	case "minio", "s3":
		return storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Bucket:     cfg.MinioBucket,
			UseSSL:     cfg.MinioUseSSL,
			PublicBase: cfg.MinioPublicBase,
		})
	case "memory":
		return storage.NewMemory(cfg.UploadBaseURL), nil
	}
	return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
}
