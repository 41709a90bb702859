package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"chart-exporter/internal/infrastructure/config"
	"chart-exporter/internal/pkg/common"
)

// Store 渲染結果緩存
// Get 未命中時回傳 common.ErrCacheMiss
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// New 依設定建立緩存，未啟用時回傳 nil
func New(cfg config.CacheConfig) (Store, error) {
	if !cfg.Enabled {
		common.LogInfo("Cache disabled")
		return nil, nil
	}

	switch cfg.Backend {
	case "", "memory":
		return NewManager(cfg), nil
	case "redis":
		return NewService(cfg)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Key 以各部分的 SHA-256 組成緩存鍵
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}
