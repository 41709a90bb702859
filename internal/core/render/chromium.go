package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"chart-exporter/internal/core/chart"
	"chart-exporter/internal/pkg/common"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const pngDataURLPrefix = "data:image/png;base64,"

const chartPageHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8">
<style>html,body{margin:0;padding:0;background:transparent}</style>
</head><body><div id="chart"></div></body></html>`

const initChartJS = `async (opt, width, height, ratio) => {
	if (document.fonts && document.fonts.ready) {
		await document.fonts.ready;
	}
	const dom = document.getElementById('chart');
	dom.style.width = width + 'px';
	dom.style.height = height + 'px';
	const instance = echarts.init(dom, null, {renderer: 'canvas', devicePixelRatio: ratio, width: width, height: height});
	window.__chart = instance;
	window.__ratio = ratio;
	instance.setOption(opt);
	return true;
}`

const extractPNGJS = `() => window.__chart.getDataURL({type: 'png', pixelRatio: window.__ratio})`

const disposeChartJS = `() => { if (window.__chart) { window.__chart.dispose(); window.__chart = null; } }`

// ChromiumOptions 無頭瀏覽器設定
type ChromiumOptions struct {
	BinPath    string
	ScriptPath string
	Timeout    time.Duration
}

// ChromiumEngine 在無頭 Chromium 中執行 ECharts，每個請求使用獨立分頁
type ChromiumEngine struct {
	opts   ChromiumOptions
	fonts  *FontRegistry
	script string

	mu      sync.Mutex
	browser *rod.Browser
}

// NewChromiumEngine 創建 Chromium 引擎，瀏覽器於第一次渲染時啟動
func NewChromiumEngine(opts ChromiumOptions, fonts *FontRegistry) (*ChromiumEngine, error) {
	if opts.ScriptPath == "" {
		return nil, errors.New("echarts script path is required for the chromium engine")
	}
	script, err := os.ReadFile(opts.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read echarts script: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &ChromiumEngine{
		opts:   opts,
		fonts:  fonts,
		script: string(script),
	}, nil
}

func (e *ChromiumEngine) Name() string { return "chromium" }

func (e *ChromiumEngine) getBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New()
	if e.opts.BinPath != "" {
		l = l.Bin(e.opts.BinPath)
	}
	l = l.Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Headless(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	common.LogInfo("Chromium 瀏覽器已啟動", zap.String("control_url", controlURL))
	e.browser = browser
	return browser, nil
}

// NewChart 開啟分頁並載入 echarts 與字型
func (e *ChromiumEngine) NewChart(ctx context.Context, canvas Canvas) (Chart, error) {
	browser, err := e.getBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	pageCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	c := &chromiumChart{page: page.Context(pageCtx), raw: page, cancel: cancel, canvas: canvas}

	if err := c.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             canvas.Width,
		Height:            canvas.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = c.Dispose()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := c.page.SetDocumentContent(chartPageHTML); err != nil {
		_ = c.Dispose()
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	if css := e.fontFaceCSS(); css != "" {
		if err := c.page.AddStyleTag("", css); err != nil {
			_ = c.Dispose()
			return nil, fmt.Errorf("failed to register fonts: %w", err)
		}
	}

	if err := c.page.AddScriptTag("", e.script); err != nil {
		_ = c.Dispose()
		return nil, fmt.Errorf("failed to load echarts: %w", err)
	}

	return c, nil
}

func (e *ChromiumEngine) fontFaceCSS() string {
	if e.fonts == nil {
		return ""
	}

	var b strings.Builder
	for _, family := range e.fonts.Families() {
		raw, ok := e.fonts.Raw(family)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "@font-face{font-family:'%s';src:url(data:font/ttf;base64,%s);}\n",
			family, base64.StdEncoding.EncodeToString(raw))
	}
	return b.String()
}

// Close 關閉瀏覽器
func (e *ChromiumEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}

type chromiumChart struct {
	page *rod.Page
	// raw 不綁定請求 context，逾時後仍可關閉分頁
	raw    *rod.Page
	cancel context.CancelFunc
	canvas Canvas
}

func (c *chromiumChart) SetOption(_ context.Context, opt chart.Option) error {
	if _, err := c.page.Eval(initChartJS, map[string]any(opt), c.canvas.Width, c.canvas.Height, c.canvas.PixelRatio); err != nil {
		return fmt.Errorf("setOption failed: %w", err)
	}
	return nil
}

func (c *chromiumChart) PNG(_ context.Context) ([]byte, error) {
	res, err := c.page.Eval(extractPNGJS)
	if err != nil {
		return nil, fmt.Errorf("getDataURL failed: %w", err)
	}

	dataURL := res.Value.Str()
	if !strings.HasPrefix(dataURL, pngDataURLPrefix) {
		return nil, fmt.Errorf("unexpected data url prefix %q", truncate(dataURL, 32))
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, pngDataURLPrefix))
}

// Dispose 釋放 echarts 實例並關閉分頁
func (c *chromiumChart) Dispose() error {
	defer c.cancel()

	_, evalErr := c.page.Eval(disposeChartJS)
	closeErr := c.raw.Close()
	return errors.Join(evalErr, closeErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
