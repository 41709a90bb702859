package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chart-exporter/internal/api"
	"chart-exporter/internal/core/cache"
	"chart-exporter/internal/core/chart"
	"chart-exporter/internal/core/debug"
	"chart-exporter/internal/core/queue"
	"chart-exporter/internal/core/render"
	"chart-exporter/internal/core/storage"
	"chart-exporter/internal/infrastructure/config"
	"chart-exporter/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env 與啟動參數）
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogFile, cfg.App.Name); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("render_engine", cfg.Render.Engine),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("storage_region", cfg.Storage.Region),
		zap.String("storage_bucket", cfg.Storage.Bucket),
		zap.String("storage_access_key_id", config.MaskSecret(cfg.Storage.AccessKeyID)),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// 字型
	fonts := render.NewFontRegistry()
	if cfg.Render.FontPath != "" {
		if err := fonts.RegisterFile(cfg.Render.FontPath, cfg.Render.FontFamily); err != nil {
			common.LogFatal("Failed to load font", zap.String("path", cfg.Render.FontPath), zap.Error(err))
		}
	}

	// 渲染引擎
	engine, err := render.NewEngine(cfg.Render, fonts)
	if err != nil {
		common.LogFatal("Failed to initialize render engine", zap.Error(err))
	}
	defer engine.Close()

	// 初始化快取，未啟用時為 nil
	store, err := cache.New(cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	// 限制同時渲染數
	renderQueue := queue.NewManager(cfg.Render.MaxConcurrent, cfg.Render.MaxQueue)
	defer renderQueue.Close()

	pipeline := render.NewPipeline(engine, store, render.Options{
		DefaultWidth:     cfg.Render.DefaultWidth,
		DefaultHeight:    cfg.Render.DefaultHeight,
		MaxWidth:         cfg.Render.MaxWidth,
		MaxHeight:        cfg.Render.MaxHeight,
		InlinePixelRatio: cfg.Render.InlinePixelRatio,
		UploadPixelRatio: cfg.Render.UploadPixelRatio,
		Normalizer: chart.Normalizer{
			FontFamily:     cfg.Render.FontFamily,
			SplitLineColor: cfg.Render.SplitLineColor,
		},
		Queue: renderQueue,
	})

	// 物件儲存，憑證缺漏時在上傳時才會失敗
	objectStore, err := storage.NewStore(cfg.Storage)
	if err != nil {
		common.LogFatal("Failed to initialize object storage", zap.Error(err))
	}
	uploader := storage.NewUploader(objectStore, cfg.Storage.Prefix, cfg.Storage.SignedURLTTL)

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Pipeline: pipeline,
		Uploader: uploader,
		Toggle:   debug.NewToggle(false),
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.String("engine", pipeline.EngineName()),
			zap.String("storage", objectStore.Name()),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時，進行中的渲染需要時間完成
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}
