package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"chart-exporter/internal/core/cache"
	"chart-exporter/internal/core/chart"
	"chart-exporter/internal/core/image"
	"chart-exporter/internal/core/queue"
	"chart-exporter/internal/pkg/common"

	"go.uber.org/zap"
)

// Variant 決定輸出的裝置像素比
type Variant int

const (
	// VariantInline 直接回傳 base64
	VariantInline Variant = iota
	// VariantUpload 上傳至物件儲存，使用較高的像素比
	VariantUpload
)

func (v Variant) String() string {
	if v == VariantUpload {
		return "upload"
	}
	return "inline"
}

// Options 管線設定
type Options struct {
	DefaultWidth     int
	DefaultHeight    int
	MaxWidth         int
	MaxHeight        int
	InlinePixelRatio float64
	UploadPixelRatio float64
	Normalizer       chart.Normalizer
	// Queue 限制同時渲染數，nil 表示不限制
	Queue *queue.Manager
}

// Result 渲染結果
type Result struct {
	PNG      []byte
	Width    int
	Height   int
	Duration time.Duration
	CacheHit bool
}

// Pipeline 解析尺寸、正規化 option、呼叫引擎並取出 PNG
type Pipeline struct {
	engine Engine
	cache  cache.Store
	images *image.Service
	opts   Options
	now    func() time.Time
}

// NewPipeline 創建渲染管線，store 可為 nil
func NewPipeline(engine Engine, store cache.Store, opts Options) *Pipeline {
	if opts.DefaultWidth <= 0 {
		opts.DefaultWidth = chart.DefaultWidth
	}
	if opts.DefaultHeight <= 0 {
		opts.DefaultHeight = chart.DefaultHeight
	}
	if opts.InlinePixelRatio <= 0 {
		opts.InlinePixelRatio = 1
	}
	if opts.UploadPixelRatio <= 0 {
		opts.UploadPixelRatio = 2.5
	}

	return &Pipeline{
		engine: engine,
		cache:  store,
		images: image.NewService(0),
		opts:   opts,
		now:    time.Now,
	}
}

// EngineName 使用中的引擎名稱
func (p *Pipeline) EngineName() string {
	return p.engine.Name()
}

// Canvas 解析請求尺寸
// 非數字或非正數為 RenderError，超過上限為 ValidationError
func (p *Pipeline) Canvas(req *chart.Request, variant Variant) (Canvas, error) {
	width, err := chart.Dimension(req.Width, p.opts.DefaultWidth)
	if err != nil {
		return Canvas{}, common.NewRenderError(fmt.Errorf("invalid width: %w", err))
	}
	height, err := chart.Dimension(req.Height, p.opts.DefaultHeight)
	if err != nil {
		return Canvas{}, common.NewRenderError(fmt.Errorf("invalid height: %w", err))
	}

	if width <= 0 || height <= 0 {
		return Canvas{}, common.NewRenderError(fmt.Errorf("invalid canvas size %dx%d", width, height))
	}
	if p.opts.MaxWidth > 0 && width > p.opts.MaxWidth {
		return Canvas{}, common.NewValidationError(fmt.Sprintf("width %d exceeds maximum %d", width, p.opts.MaxWidth))
	}
	if p.opts.MaxHeight > 0 && height > p.opts.MaxHeight {
		return Canvas{}, common.NewValidationError(fmt.Sprintf("height %d exceeds maximum %d", height, p.opts.MaxHeight))
	}

	ratio := p.opts.InlinePixelRatio
	if variant == VariantUpload {
		ratio = p.opts.UploadPixelRatio
	}
	return Canvas{Width: width, Height: height, PixelRatio: ratio}, nil
}

// Render 執行完整的渲染流程
// debugOn 由呼叫端在請求開始時讀取一次
func (p *Pipeline) Render(ctx context.Context, req *chart.Request, variant Variant, debugOn bool) (*Result, error) {
	if req == nil || req.Option == nil {
		return nil, common.NewValidationError("eChartOption is null")
	}

	canvas, err := p.Canvas(req, variant)
	if err != nil {
		return nil, err
	}

	opt := p.opts.Normalizer.Apply(req.Option)
	if debugOn {
		if pretty, err := common.ToIndentedJSON(opt); err == nil {
			common.LogInfo("渲染樣式",
				zap.String("variant", variant.String()),
				zap.String("option", pretty),
			)
		}
	}

	key := ""
	if p.cache != nil {
		key, err = p.cacheKey(canvas, opt)
		if err != nil {
			return nil, common.NewRenderError(err)
		}
		if data, err := p.cache.Get(ctx, key); err == nil {
			return &Result{PNG: data, Width: canvas.Width, Height: canvas.Height, CacheHit: true}, nil
		} else if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("讀取快取失敗", zap.Error(err))
		}
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	start := p.now()
	data, err := p.renderOnce(ctx, canvas, opt)
	duration := p.now().Sub(start)
	release()
	if err != nil {
		return nil, err
	}

	if _, err := p.images.Inspect(data); err != nil {
		return nil, common.NewRenderError(fmt.Errorf("engine returned invalid png: %w", err))
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, data); err != nil {
			common.LogWarn("寫入快取失敗", zap.Error(err))
		}
	}

	return &Result{
		PNG:      data,
		Width:    canvas.Width,
		Height:   canvas.Height,
		Duration: duration,
	}, nil
}

// acquire 取得渲染名額，隊列已滿時回應 503
func (p *Pipeline) acquire(ctx context.Context) (func(), error) {
	if p.opts.Queue == nil {
		return func() {}, nil
	}

	release, err := p.opts.Queue.Acquire(ctx)
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
		return nil, common.NewError(common.ErrCodeServiceUnavailable, err.Error(), http.StatusServiceUnavailable, err)
	default:
		return nil, common.NewRenderError(fmt.Errorf("waiting for render slot: %w", err))
	}
}

// QueueStatus 渲染隊列狀態，未設定隊列時為 nil
func (p *Pipeline) QueueStatus() *queue.Status {
	if p.opts.Queue == nil {
		return nil
	}
	return p.opts.Queue.GetQueueStatus()
}

func (p *Pipeline) renderOnce(ctx context.Context, canvas Canvas, opt chart.Option) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = common.NewRenderErrorWithStack(fmt.Errorf("render panic: %v", r), debug.Stack())
		}
	}()

	c, err := p.engine.NewChart(ctx, canvas)
	if err != nil {
		return nil, common.NewRenderError(fmt.Errorf("failed to create chart: %w", err))
	}
	defer p.dispose(c)

	if err := c.SetOption(ctx, opt); err != nil {
		return nil, common.NewRenderError(err)
	}

	data, err = c.PNG(ctx)
	if err != nil {
		return nil, common.NewRenderError(err)
	}
	return data, nil
}

// dispose 釋放失敗只記錄，不影響結果
func (p *Pipeline) dispose(c Chart) {
	defer func() {
		if r := recover(); r != nil {
			common.LogDebug("chart dispose panicked", zap.Any("panic", r))
		}
	}()

	if err := c.Dispose(); err != nil {
		common.LogDebug("chart dispose failed", zap.Error(err))
	}
}

func (p *Pipeline) cacheKey(canvas Canvas, opt chart.Option) (string, error) {
	raw, err := opt.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize option: %w", err)
	}
	return cache.Key(
		p.engine.Name(),
		strconv.Itoa(canvas.Width),
		strconv.Itoa(canvas.Height),
		strconv.FormatFloat(canvas.PixelRatio, 'f', -1, 64),
		string(raw),
	), nil
}
