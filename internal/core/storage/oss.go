package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chart-exporter/internal/infrastructure/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSStore 阿里雲 OSS
type OSSStore struct {
	cfg config.StorageConfig

	mu     sync.Mutex
	client *oss.Client
}

// NewOSSStore 創建 OSS 儲存，客戶端於第一次使用時建立
func NewOSSStore(cfg config.StorageConfig) *OSSStore {
	return &OSSStore{cfg: cfg}
}

func (s *OSSStore) Name() string { return "oss" }

// Endpoint 未指定時由 region 推得，例如 oss-cn-hangzhou → https://oss-cn-hangzhou.aliyuncs.com
func (s *OSSStore) Endpoint() (string, error) {
	if s.cfg.Endpoint != "" {
		return s.cfg.Endpoint, nil
	}
	region := strings.TrimSpace(s.cfg.Region)
	if region == "" {
		return "", errors.New("oss region or endpoint is required")
	}
	if !strings.HasPrefix(region, "oss-") {
		region = "oss-" + region
	}
	return fmt.Sprintf("https://%s.aliyuncs.com", region), nil
}

func (s *OSSStore) getClient() (*oss.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	endpoint, err := s.Endpoint()
	if err != nil {
		return nil, err
	}
	client, err := oss.New(endpoint, s.cfg.AccessKeyID, s.cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create oss client: %w", err)
	}

	s.client = client
	return client, nil
}

func (s *OSSStore) bucket() (*oss.Bucket, error) {
	if s.cfg.Bucket == "" {
		return nil, errors.New("oss bucket is required")
	}
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}
	return client.Bucket(s.cfg.Bucket)
}

func (s *OSSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b, err := s.bucket()
	if err != nil {
		return err
	}
	if err := b.PutObject(key, bytes.NewReader(data), oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *OSSStore) SignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	b, err := s.bucket()
	if err != nil {
		return "", err
	}
	signed, err := b.SignURL(key, oss.HTTPGet, int64(ttl/time.Second))
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", key, err)
	}
	return signed, nil
}

func (s *OSSStore) Check(_ context.Context) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	exists, err := client.IsBucketExist(s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.cfg.Bucket)
	}
	return nil
}
