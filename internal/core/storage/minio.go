package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"chart-exporter/internal/infrastructure/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore MinIO 或其他 S3 相容服務
type MinIOStore struct {
	cfg config.StorageConfig

	mu     sync.Mutex
	client *minio.Client
}

// NewMinIOStore 創建 MinIO 儲存
func NewMinIOStore(cfg config.StorageConfig) *MinIOStore {
	return &MinIOStore{cfg: cfg}
}

func (s *MinIOStore) Name() string { return "minio" }

// hostEndpoint minio 客戶端只接受 host:port，去掉 scheme
func hostEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return u.Host, u.Scheme == "https", nil
}

func (s *MinIOStore) getClient() (*minio.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if s.cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if s.cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	endpoint, secure, err := hostEndpoint(s.cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.cfg.AccessKeyID, s.cfg.AccessKeySecret, ""),
		Secure: secure || s.cfg.UseSSL,
		Region: s.cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	s.client = client
	return client, nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (s *MinIOStore) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	client, err := s.getClient()
	if err != nil {
		return "", err
	}

	u, err := client.PresignedGetObject(ctx, s.cfg.Bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *MinIOStore) Check(ctx context.Context) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	exists, err := client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.cfg.Bucket)
	}
	return nil
}
