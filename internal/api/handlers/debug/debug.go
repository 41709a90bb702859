package debug

import (
	"net/http"

	"chart-exporter/internal/core/debug"
	"chart-exporter/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	turnedOnMessage  = "debug switch turned on"
	turnedOffMessage = "debug switch turned off"
)

// Handler 除錯開關處理器
type Handler struct {
	toggle *debug.Toggle
}

// NewHandler 創建除錯開關處理器
func NewHandler(toggle *debug.Toggle) *Handler {
	return &Handler{toggle: toggle}
}

// On 開啟除錯
func (h *Handler) On(c *gin.Context) {
	h.toggle.Enable()
	common.LogInfo("除錯開關已開啟", zap.String("request_id", requestid.Get(c)))
	c.String(http.StatusOK, turnedOnMessage)
}

// Off 關閉除錯
func (h *Handler) Off(c *gin.Context) {
	h.toggle.Disable()
	common.LogInfo("除錯開關已關閉", zap.String("request_id", requestid.Get(c)))
	c.String(http.StatusOK, turnedOffMessage)
}

// Status 目前狀態
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"debug": h.toggle.Enabled()})
}
