package render

import (
	"context"
	"fmt"
	"math"
	"time"

	"chart-exporter/internal/core/chart"
	"chart-exporter/internal/infrastructure/config"
)

// Canvas 畫布尺寸（CSS 像素）與裝置像素比
type Canvas struct {
	Width      int
	Height     int
	PixelRatio float64
}

// PixelSize 實際輸出的像素尺寸
func (c Canvas) PixelSize() (int, int) {
	ratio := c.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	return int(math.Round(float64(c.Width) * ratio)), int(math.Round(float64(c.Height) * ratio))
}

// Engine 渲染引擎
type Engine interface {
	// Name 引擎名稱
	Name() string

	// NewChart 在畫布上建立圖表實例，實例只屬於單一請求
	NewChart(ctx context.Context, canvas Canvas) (Chart, error)

	// Close 釋放引擎資源
	Close() error
}

// Chart 單一圖表實例
type Chart interface {
	// SetOption 套用樣式文件
	SetOption(ctx context.Context, opt chart.Option) error

	// PNG 取出點陣圖
	PNG(ctx context.Context) ([]byte, error)

	// Dispose 釋放實例，失敗不影響已取出的圖片
	Dispose() error
}

// NewEngine 依設定建立渲染引擎
func NewEngine(cfg config.RenderConfig, fonts *FontRegistry) (Engine, error) {
	switch cfg.Engine {
	case "", "gochart":
		return NewGoChartEngine(fonts), nil
	case "chromium":
		return NewChromiumEngine(ChromiumOptions{
			BinPath:    cfg.ChromiumPath,
			ScriptPath: cfg.EChartsScript,
			Timeout:    time.Duration(cfg.ChromiumTimeoutMS) * time.Millisecond,
		}, fonts)
	default:
		return nil, fmt.Errorf("unknown render engine %q", cfg.Engine)
	}
}
