package cache

import (
	"context"
	"errors"
	"fmt"

	"chart-exporter/internal/infrastructure/config"
	"chart-exporter/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "chart:png:"

// Service Redis 緩存服務，多個實例共用渲染結果
type Service struct {
	client *redis.Client
	config config.CacheConfig
}

// NewService 創建緩存服務
func NewService(cfg config.CacheConfig) (*Service, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newServiceWithClient(client, cfg), nil
}

func newServiceWithClient(client *redis.Client, cfg config.CacheConfig) *Service {
	return &Service{
		client: client,
		config: cfg,
	}
}

// Get 獲取緩存
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	return data, nil
}

// Set 設置緩存
func (s *Service) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close 關閉連線
func (s *Service) Close() error {
	return s.client.Close()
}
