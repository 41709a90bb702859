package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"chart-exporter/internal/core/debug"
	"chart-exporter/internal/core/queue"
	"chart-exporter/internal/infrastructure/config"
	"chart-exporter/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Engine    string                 `json:"engine"`
	Storage   string                 `json:"storage"`
	Debug     bool                   `json:"debug"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Runtime   map[string]interface{} `json:"runtime"`
}

// Checker 外部依賴檢查
type Checker interface {
	Check(ctx context.Context) error
}

// QueueReporter 回報渲染隊列狀態
type QueueReporter interface {
	QueueStatus() *queue.Status
}

// HealthCheck 健康檢查處理器
func HealthCheck(toggle *debug.Toggle, reporter QueueReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 獲取配置
		value, exists := c.Get("config")
		if !exists {
			common.LogError("Configuration not found in context")
			common.WriteError(c, common.NewError(common.ErrCodeInternalError, "Configuration not found", http.StatusInternalServerError, nil))
			return
		}
		cfg, ok := value.(*config.Config)
		if !ok {
			common.LogError("Invalid configuration type in context")
			common.WriteError(c, common.NewError(common.ErrCodeInternalError, "Invalid configuration type", http.StatusInternalServerError, nil))
			return
		}

		// 獲取運行時信息
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   cfg.App.Version,
			Engine:    cfg.Render.Engine,
			Storage:   cfg.Storage.Backend,
			Debug:     toggle.Enabled(),
			Queue:     reporter.QueueStatus(),
			Runtime: map[string]interface{}{
				"goroutines": runtime.NumGoroutine(),
				"memory": map[string]interface{}{
					"alloc":       m.Alloc,
					"total_alloc": m.TotalAlloc,
					"sys":         m.Sys,
					"num_gc":      m.NumGC,
				},
			},
		}

		common.LogDebug("Health check request",
			zap.String("client_ip", c.ClientIP()),
			zap.String("path", c.Request.URL.Path),
		)

		c.JSON(http.StatusOK, response)
	}
}

// ReadinessCheck 就緒檢查處理器，儲存後端不可用時回應 503
func ReadinessCheck(checker Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if err := checker.Check(ctx); err != nil {
			common.LogWarn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	}
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
