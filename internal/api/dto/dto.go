package dto

import "time"

// Cost 各階段耗時（毫秒）
type Cost struct {
	Render int64  `json:"render"`
	Save   *int64 `json:"save,omitempty"`
}

// Image 內嵌圖片
type Image struct {
	// Content 標準 base64，不含 data URI 前綴
	Content string `json:"content"`
}

// ConvertResponse POST /convert 回應
type ConvertResponse struct {
	Image Image `json:"image"`
	Cost  Cost  `json:"cost"`
	Debug bool  `json:"debug"`
}

// SaveResponse POST /convertAndSave 回應
type SaveResponse struct {
	URL       string    `json:"url"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
	Cost      Cost      `json:"cost"`
	Debug     bool      `json:"debug"`
}

// ConvertRequest 請求體（客戶端使用；伺服器端以 map 解析以保留未知欄位）
type ConvertRequest struct {
	Width  any            `json:"width,omitempty"`
	Height any            `json:"height,omitempty"`
	Option map[string]any `json:"eChartOption"`
	Name   string         `json:"name,omitempty"`
}
