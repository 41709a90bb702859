package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gochart", cfg.Render.Engine)
	assert.Equal(t, 600, cfg.Render.DefaultWidth)
	assert.Equal(t, 450, cfg.Render.DefaultHeight)
	assert.Equal(t, 1.0, cfg.Render.InlinePixelRatio)
	assert.Equal(t, 2.5, cfg.Render.UploadPixelRatio)
	assert.Equal(t, "Heiti", cfg.Render.FontFamily)
	assert.Equal(t, "#aaa", cfg.Render.SplitLineColor)
	assert.Equal(t, "oss", cfg.Storage.Backend)
	assert.Equal(t, 72*time.Hour, cfg.Storage.SignedURLTTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 4, cfg.Render.MaxConcurrent)
}

func TestLoadConfig_Flags(t *testing.T) {
	cfg, err := LoadConfig([]string{
		"--port=9090",
		"--oss-region=oss-cn-hangzhou",
		"--oss-accessKeyId=id",
		"--oss-accessKeySecret=secret",
		"--oss-bucket=charts",
		"--oss-name-prefix=reports",
		"--storage-backend=memory",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "oss-cn-hangzhou", cfg.Storage.Region)
	assert.Equal(t, "id", cfg.Storage.AccessKeyID)
	assert.Equal(t, "secret", cfg.Storage.AccessKeySecret)
	assert.Equal(t, "charts", cfg.Storage.Bucket)
	assert.Equal(t, "reports", cfg.Storage.Prefix)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoadConfig_PublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  string
		want string
	}{
		{name: "default port", want: "http://localhost:8080/objects"},
		{name: "port flag", args: []string{"--port=9090"}, want: "http://localhost:9090/objects"},
		{name: "explicit", args: []string{"--port=9090"}, env: "https://charts.example.com/objects", want: "https://charts.example.com/objects"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("APP_STORAGE_PUBLIC_BASE_URL", tt.env)
			}
			cfg, err := LoadConfig(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Storage.PublicBaseURL)
		})
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("OSS_ACCESS_KEY_ID", "from-env")
	t.Setenv("APP_RENDER_MAX_WIDTH", "1024")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Storage.AccessKeyID)
	assert.Equal(t, 1024, cfg.Render.MaxWidth)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  enabled: true\n  max_size: 16\nrender:\n  font_family: Noto Sans\n"), 0o644))

	cfg, err := LoadConfig([]string{"--config", path})
	require.NoError(t, err)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 16, cfg.Cache.MaxSize)
	assert.Equal(t, "Noto Sans", cfg.Render.FontFamily)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "port", args: []string{"--port=0"}, want: "port"},
		{name: "engine", args: []string{"--render-engine=svg"}, want: "engine"},
		{name: "backend", args: []string{"--storage-backend=ftp"}, want: "backend"},
		{name: "unknown flag", args: []string{"--nope"}, want: "failed to parse arguments"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(tc.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateConfig_Cache(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memcached"
	assert.ErrorContains(t, validateConfig(cfg), "unknown cache backend")

	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = ""
	assert.ErrorContains(t, validateConfig(cfg), "redis address")

	cfg.Cache.Backend = "memory"
	cfg.Cache.MaxSize = 0
	assert.ErrorContains(t, validateConfig(cfg), "max size")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "abcd...wxyz", MaskSecret("abcdefghwxyz"))
}
