package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"chart-exporter/internal/core/image"
	"chart-exporter/internal/pkg/common"

	"go.uber.org/zap"
)

// UploadResult 上傳結果
type UploadResult struct {
	ObjectKey string
	URL       string
	ExpiresAt time.Time
	Duration  time.Duration
}

// Uploader 產生物件鍵、寫入後端並簽出限時網址
type Uploader struct {
	store  Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// NewUploader 創建上傳器
func NewUploader(store Store, prefix string, ttl time.Duration) *Uploader {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &Uploader{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
		newID:  common.GenerateOrderedID,
	}
}

// Store 底層儲存後端
func (u *Uploader) Store() Store {
	return u.store
}

// ObjectKey 組成 <prefix>/<YYYY-MM-DD>/<id>.png，日期以 UTC 計，prefix 為空時省略
func ObjectKey(prefix string, t time.Time, id string) string {
	day := t.UTC().Format("2006-01-02")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(day, id+".png")
	}
	return path.Join(prefix, day, id+".png")
}

// Upload 上傳 PNG，任何失敗皆包裝為 UploadError
func (u *Uploader) Upload(ctx context.Context, data []byte) (*UploadResult, error) {
	start := u.now()
	key := ObjectKey(u.prefix, start, u.newID())

	if err := u.store.Put(ctx, key, data, image.PNGContentType); err != nil {
		common.LogError("上傳圖片失敗",
			zap.String("backend", u.store.Name()),
			zap.String("object_key", key),
			zap.Error(err),
		)
		return nil, common.NewUploadError(err)
	}

	signed, err := u.store.SignURL(ctx, key, u.ttl)
	if err != nil {
		common.LogError("簽名網址失敗",
			zap.String("backend", u.store.Name()),
			zap.String("object_key", key),
			zap.Error(err),
		)
		return nil, common.NewUploadError(fmt.Errorf("failed to sign url: %w", err))
	}

	end := u.now()
	return &UploadResult{
		ObjectKey: key,
		URL:       signed,
		ExpiresAt: start.Add(u.ttl),
		Duration:  end.Sub(start),
	}, nil
}

// Check 檢查後端可用
func (u *Uploader) Check(ctx context.Context) error {
	return u.store.Check(ctx)
}
