package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"chart-exporter/internal/pkg/common"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App      AppConfig     `mapstructure:"app"`
	Server   ServerConfig  `mapstructure:"server"`
	Render   RenderConfig  `mapstructure:"render"`
	Storage  StorageConfig `mapstructure:"storage"`
	Cache    CacheConfig   `mapstructure:"cache"`
	LogLevel string        `mapstructure:"log_level"`
	LogFile  string        `mapstructure:"log_file"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// RenderConfig 渲染設定
type RenderConfig struct {
	Engine            string  `mapstructure:"engine" validate:"oneof=gochart chromium"`
	FontFamily        string  `mapstructure:"font_family"`
	FontPath          string  `mapstructure:"font_path"`
	DefaultWidth      int     `mapstructure:"default_width" validate:"gt=0"`
	DefaultHeight     int     `mapstructure:"default_height" validate:"gt=0"`
	MaxWidth          int     `mapstructure:"max_width" validate:"gt=0"`
	MaxHeight         int     `mapstructure:"max_height" validate:"gt=0"`
	InlinePixelRatio  float64 `mapstructure:"inline_pixel_ratio" validate:"gt=0"`
	UploadPixelRatio  float64 `mapstructure:"upload_pixel_ratio" validate:"gt=0"`
	ChromiumPath      string  `mapstructure:"chromium_path"`
	EChartsScript     string  `mapstructure:"echarts_script"`
	SplitLineColor    string  `mapstructure:"split_line_color"`
	ChromiumTimeoutMS int     `mapstructure:"chromium_timeout_ms"`
	MaxConcurrent     int     `mapstructure:"max_concurrent" validate:"gte=0"`
	MaxQueue          int     `mapstructure:"max_queue" validate:"gte=0"`
}

// StorageConfig 物件儲存設定，啟動時不驗證，缺漏會在上傳時失敗
type StorageConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=oss s3 minio memory"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	AccessKeySecret string        `mapstructure:"access_key_secret"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	SignedURLTTL    time.Duration `mapstructure:"signed_url_ttl" validate:"gt=0"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	SigningSecret   string        `mapstructure:"signing_secret"`
}

// CacheConfig 渲染結果緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
}

// 啟動參數名稱與設定鍵的對應
var flagBindings = map[string]string{
	"port":                "server.port",
	"oss-region":          "storage.region",
	"oss-accessKeyId":     "storage.access_key_id",
	"oss-accessKeySecret": "storage.access_key_secret",
	"oss-bucket":          "storage.bucket",
	"oss-name-prefix":     "storage.prefix",
	"oss-endpoint":        "storage.endpoint",
	"storage-backend":     "storage.backend",
	"render-engine":       "render.engine",
	"log-level":           "log_level",
}

// NewFlagSet 建立啟動參數集合
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("oss-region", "", "object storage region (e.g. oss-cn-hangzhou)")
	fs.String("oss-accessKeyId", "", "object storage access key id")
	fs.String("oss-accessKeySecret", "", "object storage access key secret")
	fs.String("oss-bucket", "", "object storage bucket")
	fs.String("oss-name-prefix", "", "object key prefix")
	fs.String("oss-endpoint", "", "object storage endpoint override")
	fs.String("storage-backend", "oss", "storage backend: oss, s3, minio, memory")
	fs.String("render-engine", "gochart", "render engine: gochart, chromium")
	fs.String("log-level", "info", "log level")
	fs.String("config", "", "optional config file (yaml, toml, json)")
	return fs
}

// LoadConfig 載入設定：預設值 < 設定檔 < .env / 環境變數 < 啟動參數
func LoadConfig(args []string) (*Config, error) {
	// .env 不存在時略過
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("storage.access_key_id", "OSS_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.access_key_secret", "OSS_ACCESS_KEY_SECRET")
	_ = v.BindEnv("cache.redis_addr", "REDIS_ADDR")

	flags := NewFlagSet("chart-exporter")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}
	for name, key := range flagBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Storage.PublicBaseURL == "" {
		config.Storage.PublicBaseURL = fmt.Sprintf("http://localhost:%d/objects", config.Server.Port)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskSecret 遮罩密鑰，只顯示前後各 4 個字符
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "chart-exporter")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 10<<20) // 10MB

	// 渲染設定
	v.SetDefault("render.engine", "gochart")
	v.SetDefault("render.font_family", "Heiti")
	v.SetDefault("render.font_path", "")
	v.SetDefault("render.default_width", 600)
	v.SetDefault("render.default_height", 450)
	v.SetDefault("render.max_width", 4096)
	v.SetDefault("render.max_height", 4096)
	v.SetDefault("render.inline_pixel_ratio", 1.0)
	v.SetDefault("render.upload_pixel_ratio", 2.5)
	v.SetDefault("render.echarts_script", "assets/echarts.min.js")
	v.SetDefault("render.split_line_color", "#aaa")
	v.SetDefault("render.chromium_timeout_ms", 30000)
	v.SetDefault("render.max_concurrent", 4)
	v.SetDefault("render.max_queue", 64)

	// 儲存設定
	v.SetDefault("storage.backend", "oss")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.signed_url_ttl", "72h")
	v.SetDefault("storage.public_base_url", "") // 空值時依 server.port 推導

	// 快取設定
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 256)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.cleanup_interval", "1m")
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "logs/app.log")
}

// validateConfig 驗證設定
// 欄位範圍由 validate 標籤檢查，快取依後端另外驗證
func validateConfig(config *Config) error {
	if err := common.Validate(config); err != nil {
		return errors.New(common.ValidationMessage(err))
	}
	if config.Render.DefaultWidth > config.Render.MaxWidth || config.Render.DefaultHeight > config.Render.MaxHeight {
		return fmt.Errorf("default canvas size exceeds maximum")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		switch config.Cache.Backend {
		case "memory":
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return fmt.Errorf("invalid cache cleanup interval")
			}
		case "redis":
			if config.Cache.RedisAddr == "" {
				return fmt.Errorf("redis address is required")
			}
		default:
			return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	return nil
}
