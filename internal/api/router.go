package api

import (
	"errors"
	"net/http"
	"time"

	"chart-exporter/internal/api/handlers/convert"
	debugHandler "chart-exporter/internal/api/handlers/debug"
	"chart-exporter/internal/api/handlers/health"
	"chart-exporter/internal/api/middleware"
	"chart-exporter/internal/core/debug"
	"chart-exporter/internal/core/render"
	"chart-exporter/internal/core/storage"
	"chart-exporter/internal/infrastructure/config"
	"chart-exporter/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 預設請求超時
	defaultTimeout = 120 * time.Second
	// 預設請求體大小限制 (10MB)
	defaultMaxBodySize = 10 << 20
)

// Dependencies 路由使用的服務
type Dependencies struct {
	Pipeline *render.Pipeline
	Uploader *storage.Uploader
	Toggle   *debug.Toggle
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Pipeline == nil || deps.Uploader == nil {
		return nil, errors.New("pipeline and uploader are required")
	}
	if deps.Toggle == nil {
		deps.Toggle = debug.NewToggle(false)
	}

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))
	router.Use(middleware.Timeout(timeout))
	router.Use(func(c *gin.Context) {
		c.Set("config", cfg)
		c.Next()
	})

	convertHandler := convert.NewHandler(deps.Pipeline, deps.Uploader, deps.Toggle)
	debugSwitch := debugHandler.NewHandler(deps.Toggle)

	// 健康檢查路由
	router.GET("/health", health.HealthCheck(deps.Toggle, deps.Pipeline))
	router.GET("/ready", health.ReadinessCheck(deps.Uploader))
	router.GET("/live", health.LivenessCheck)

	// 圖表轉換
	router.POST("/convert", convertHandler.Convert)
	router.POST("/convertAndSave", convertHandler.ConvertAndSave)

	// 除錯開關
	router.POST("/debug/on", debugSwitch.On)
	router.POST("/debug/off", debugSwitch.Off)
	router.GET("/debug", debugSwitch.Status)

	// 記憶體儲存自行提供簽名網址下載
	if h, ok := deps.Uploader.Store().(http.Handler); ok {
		router.GET("/objects/*key", gin.WrapH(http.StripPrefix("/objects", h)))
	}

	common.LogInfo("Router setup completed successfully",
		zap.String("engine", deps.Pipeline.EngineName()),
		zap.String("storage", deps.Uploader.Store().Name()),
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
