package convert

import (
	"context"
	"errors"
	"io"
	"net/http"

	"chart-exporter/internal/api/dto"
	"chart-exporter/internal/core/chart"
	"chart-exporter/internal/core/debug"
	"chart-exporter/internal/core/image"
	"chart-exporter/internal/core/render"
	"chart-exporter/internal/core/storage"
	"chart-exporter/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// Renderer 渲染管線
type Renderer interface {
	Render(ctx context.Context, req *chart.Request, variant render.Variant, debugOn bool) (*render.Result, error)
}

// Uploader 物件上傳
type Uploader interface {
	Upload(ctx context.Context, data []byte) (*storage.UploadResult, error)
}

// Handler 圖表轉換處理器
type Handler struct {
	renderer Renderer
	uploader Uploader
	toggle   *debug.Toggle
}

// NewHandler 創建圖表轉換處理器
func NewHandler(renderer Renderer, uploader Uploader, toggle *debug.Toggle) *Handler {
	return &Handler{
		renderer: renderer,
		uploader: uploader,
		toggle:   toggle,
	}
}

// Convert 渲染並回傳 base64 PNG
func (h *Handler) Convert(c *gin.Context) {
	debugOn := h.toggle.Enabled()

	req, err := BindRequest(c)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	res, err := h.renderer.Render(c.Request.Context(), req, render.VariantInline, debugOn)
	if err != nil {
		h.logFailure(c, "圖表渲染失敗", err)
		common.WriteError(c, err)
		return
	}

	common.LogInfo("圖表轉換完成",
		zap.String("request_id", requestid.Get(c)),
		zap.Int("width", res.Width),
		zap.Int("height", res.Height),
		zap.Int("png_bytes", len(res.PNG)),
		zap.Duration("render", res.Duration),
		zap.Bool("cache_hit", res.CacheHit),
	)

	c.JSON(http.StatusOK, dto.ConvertResponse{
		Image: dto.Image{Content: image.EncodeBase64(res.PNG)},
		Cost:  dto.Cost{Render: res.Duration.Milliseconds()},
		Debug: debugOn,
	})
}

// ConvertAndSave 渲染、上傳並回傳簽名網址
func (h *Handler) ConvertAndSave(c *gin.Context) {
	debugOn := h.toggle.Enabled()

	req, err := BindRequest(c)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	res, err := h.renderer.Render(c.Request.Context(), req, render.VariantUpload, debugOn)
	if err != nil {
		h.logFailure(c, "圖表渲染失敗", err)
		common.WriteError(c, err)
		return
	}

	uploaded, err := h.uploader.Upload(c.Request.Context(), res.PNG)
	if err != nil {
		h.logFailure(c, "圖表上傳失敗", err)
		common.WriteError(c, err)
		return
	}

	common.LogInfo("圖表上傳完成",
		zap.String("request_id", requestid.Get(c)),
		zap.String("object_key", uploaded.ObjectKey),
		zap.Duration("render", res.Duration),
		zap.Duration("save", uploaded.Duration),
	)

	save := uploaded.Duration.Milliseconds()
	c.JSON(http.StatusOK, dto.SaveResponse{
		URL:       uploaded.URL,
		ObjectKey: uploaded.ObjectKey,
		ExpiresAt: uploaded.ExpiresAt,
		Cost:      dto.Cost{Render: res.Duration.Milliseconds(), Save: &save},
		Debug:     debugOn,
	})
}

func (h *Handler) logFailure(c *gin.Context, msg string, err error) {
	if common.IsValidationError(err) {
		return
	}
	common.LogError(msg,
		zap.String("request_id", requestid.Get(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
}

// BindRequest 解析 JSON 或 urlencoded 請求體
// urlencoded 時 option 欄位為 JSON 字串
func BindRequest(c *gin.Context) (*chart.Request, error) {
	body := map[string]any{}

	switch c.ContentType() {
	case binding.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, bodyError(err, "invalid form body")
		}
		for k, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				body[k] = vs[0]
			}
		}
		for _, field := range []string{chart.OptionField, chart.LegacyOptionField} {
			raw, ok := body[field].(string)
			if !ok {
				continue
			}
			var v any
			if err := common.ParseJSON(raw, &v); err != nil {
				return nil, common.NewValidationError(field + " is not valid JSON")
			}
			body[field] = v
		}
	default:
		if err := common.DecodeJSON(c.Request.Body, &body); err != nil && !errors.Is(err, io.EOF) {
			return nil, bodyError(err, "invalid JSON body")
		}
	}

	return chart.ParseRequest(body)
}

func bodyError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return common.NewError(common.ErrCodeRequestEntityTooLarge, "Request body too large", http.StatusRequestEntityTooLarge, err)
	}
	return common.NewValidationError(message + ": " + err.Error())
}
