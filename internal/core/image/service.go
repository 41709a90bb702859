package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// PNGContentType PNG 的 MIME 類型
const PNGContentType = "image/png"

const dataURIPrefix = "data:image/png;base64,"

// Info 圖片資訊
type Info struct {
	Format    string
	Width     int
	Height    int
	SizeBytes int
}

// Service 圖片處理服務
type Service struct {
	maxSizeBytes int64
}

// NewService 創建新的圖片處理服務，maxSizeBytes <= 0 表示不限制
func NewService(maxSizeBytes int64) *Service {
	return &Service{
		maxSizeBytes: maxSizeBytes,
	}
}

// Inspect 驗證資料為 PNG 並回傳尺寸
func (s *Service) Inspect(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}

	// 檢查文件大小
	if s.maxSizeBytes > 0 && int64(len(data)) > s.maxSizeBytes {
		return nil, fmt.Errorf("image size exceeds maximum limit of %d bytes", s.maxSizeBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// 檢查圖片格式
	if format != "png" {
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}

	return &Info{
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		SizeBytes: len(data),
	}, nil
}

// Decode 解碼完整 PNG
func (s *Service) Decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode png: %w", err)
	}
	return img, nil
}

// EncodeBase64 標準 base64，不含 data URI 前綴
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 解析 base64 或 data URI
func DecodeBase64(content string) ([]byte, error) {
	content = strings.TrimPrefix(strings.TrimSpace(content), dataURIPrefix)
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return data, nil
}

// DataURI 轉為 data URI
func DataURI(data []byte) string {
	return dataURIPrefix + EncodeBase64(data)
}
