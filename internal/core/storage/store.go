package storage

import (
	"context"
	"fmt"
	"time"

	"chart-exporter/internal/infrastructure/config"
)

// DefaultSignedURLTTL 簽名網址有效期（三天）
const DefaultSignedURLTTL = 72 * time.Hour

// Store 物件儲存後端
type Store interface {
	// Name 後端名稱
	Name() string

	// Put 寫入物件
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// SignURL 產生限時 GET 網址
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Check 檢查後端可用（readiness 使用）
	Check(ctx context.Context) error
}

// NewStore 依設定建立儲存後端
// 憑證與 bucket 在此不驗證，缺漏會在上傳時以 UploadError 回報
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "oss":
		return NewOSSStore(cfg), nil
	case "s3":
		return NewS3Store(cfg), nil
	case "minio":
		return NewMinIOStore(cfg), nil
	case "memory":
		return NewMemoryStore(cfg.PublicBaseURL, cfg.SigningSecret)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
