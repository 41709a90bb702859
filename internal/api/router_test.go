package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"chart-exporter/internal/api/dto"
	"chart-exporter/internal/core/chart"
	"chart-exporter/internal/core/debug"
	"chart-exporter/internal/core/render"
	"chart-exporter/internal/core/storage"
	"chart-exporter/internal/infrastructure/config"
	"chart-exporter/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barOption = `{"xAxis":{"type":"category","data":["a","b","c"]},"yAxis":{"type":"value"},"series":[{"type":"bar","data":[5,20,36]}]}`

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Version: "test"},
		Server: config.ServerConfig{
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Render: config.RenderConfig{
			Engine:     "gochart",
			FontFamily: "Heiti",
		},
		Storage: config.StorageConfig{
			Backend:       "memory",
			Prefix:        "charts",
			PublicBaseURL: "http://chart.test/objects",
			SigningSecret: "test-secret",
			SignedURLTTL:  time.Hour,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *storage.MemoryStore, *debug.Toggle) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pipeline := render.NewPipeline(render.NewGoChartEngine(render.NewFontRegistry()), nil, render.Options{
		DefaultWidth:     600,
		DefaultHeight:    450,
		MaxWidth:         4096,
		MaxHeight:        4096,
		InlinePixelRatio: 1,
		UploadPixelRatio: 2.5,
		Normalizer:       chart.Normalizer{FontFamily: cfg.Render.FontFamily},
	})

	store, err := storage.NewMemoryStore(cfg.Storage.PublicBaseURL, cfg.Storage.SigningSecret)
	require.NoError(t, err)

	toggle := debug.NewToggle(false)
	router, err := SetupRouter(cfg, Dependencies{
		Pipeline: pipeline,
		Uploader: storage.NewUploader(store, cfg.Storage.Prefix, cfg.Storage.SignedURLTTL),
		Toggle:   toggle,
	})
	require.NoError(t, err)
	return router, store, toggle
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodePNG(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestConvert(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	tests := []struct {
		name       string
		body       string
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "explicit size",
			body:       `{"width":300,"height":200,"eChartOption":` + barOption + `}`,
			wantWidth:  300,
			wantHeight: 200,
		},
		{
			name:       "string size with legacy field",
			body:       `{"width":"320px","height":"240","echartOption":` + barOption + `}`,
			wantWidth:  320,
			wantHeight: 240,
		},
		{
			name:       "exponent width",
			body:       `{"width":1e3,"height":200,"eChartOption":` + barOption + `}`,
			wantWidth:  1000,
			wantHeight: 200,
		},
		{
			name:       "empty option",
			body:       `{"width":120,"height":90,"eChartOption":{}}`,
			wantWidth:  120,
			wantHeight: 90,
		},
		{
			name:       "single point line",
			body:       `{"width":120,"height":90,"eChartOption":{"series":[{"type":"line","data":[5]}]}}`,
			wantWidth:  120,
			wantHeight: 90,
		},
		{
			name:       "default size",
			body:       `{"eChartOption":` + barOption + `}`,
			wantWidth:  600,
			wantHeight: 450,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/convert", tc.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp dto.ConvertResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Debug)
			assert.GreaterOrEqual(t, resp.Cost.Render, int64(0))
			assert.Nil(t, resp.Cost.Save)
			assert.False(t, strings.HasPrefix(resp.Image.Content, "data:"))

			data, err := base64.StdEncoding.DecodeString(resp.Image.Content)
			require.NoError(t, err)
			width, height := decodePNG(t, data)
			assert.Equal(t, tc.wantWidth, width)
			assert.Equal(t, tc.wantHeight, height)
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	tests := []struct {
		name     string
		body     string
		status   int
		code     string
		message  string
		hasStack bool
	}{
		{name: "missing option", body: `{"width":100}`, status: http.StatusBadRequest, code: common.ErrCodeInvalidRequest, message: "eChartOption is null"},
		{name: "null option", body: `{"eChartOption":null}`, status: http.StatusBadRequest, code: common.ErrCodeInvalidRequest, message: "eChartOption is null"},
		{name: "empty body", body: ``, status: http.StatusBadRequest, code: common.ErrCodeInvalidRequest, message: "eChartOption is null"},
		{name: "malformed json", body: `{"eChartOption":`, status: http.StatusBadRequest, code: common.ErrCodeInvalidRequest},
		{name: "width over maximum", body: `{"width":5000,"eChartOption":` + barOption + `}`, status: http.StatusBadRequest, code: common.ErrCodeInvalidRequest},
		{name: "non numeric width", body: `{"width":"wide","eChartOption":` + barOption + `}`, status: http.StatusInternalServerError, code: common.ErrCodeRenderError, hasStack: true},
		{name: "unsupported series", body: `{"eChartOption":{"series":[{"type":"radar","data":[1]}]}}`, status: http.StatusInternalServerError, code: common.ErrCodeRenderError, hasStack: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/convert", tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())

			var resp common.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, resp.Message)
			}
			if tc.hasStack {
				assert.NotEmpty(t, resp.Details)
			}
		})
	}
}

func TestConvert_FormBody(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	form := url.Values{}
	form.Set("width", "200")
	form.Set("height", "100")
	form.Set("eChartOption", barOption)

	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.ConvertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, err := base64.StdEncoding.DecodeString(resp.Image.Content)
	require.NoError(t, err)
	width, height := decodePNG(t, data)
	assert.Equal(t, 200, width)
	assert.Equal(t, 100, height)
}

func TestConvert_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 64
	router, _, _ := newTestRouter(t, cfg)

	w := doJSON(router, http.MethodPost, "/convert", `{"eChartOption":`+barOption+`}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestConvert_RepeatedCallsNotThrottled(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	for i := 0; i < 30; i++ {
		path := "/convert"
		if i%2 == 1 {
			path = "/convertAndSave"
		}
		w := doJSON(router, http.MethodPost, path, `{"width":60,"height":40,"eChartOption":`+barOption+`}`)
		require.Equal(t, http.StatusOK, w.Code, "call %d to %s", i, path)
		assert.Empty(t, w.Header().Get("Retry-After"))
	}
}

func TestConvertAndSave(t *testing.T) {
	router, store, _ := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodPost, "/convertAndSave", `{"width":300,"height":200,"name":"ignored","eChartOption":`+barOption+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.SaveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Debug)
	require.NotNil(t, resp.Cost.Save)
	assert.True(t, strings.HasPrefix(resp.ObjectKey, "charts/"+time.Now().Format("2006-01-02")+"/") ||
		strings.HasPrefix(resp.ObjectKey, "charts/"+time.Now().Add(-time.Minute).Format("2006-01-02")+"/"))
	assert.NotContains(t, resp.ObjectKey, "ignored")
	assert.True(t, strings.HasPrefix(resp.URL, "http://chart.test/objects/"+resp.ObjectKey+"?"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	stored, contentType, ok := store.Get(resp.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
	width, height := decodePNG(t, stored)
	assert.Equal(t, 750, width)
	assert.Equal(t, 500, height)

	// 簽名網址可直接下載
	u, err := url.Parse(resp.URL)
	require.NoError(t, err)
	get := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, get)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stored, rec.Body.Bytes())

	// 竄改簽名
	tampered := strings.Replace(u.RequestURI(), "Signature=", "Signature=00", 1)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tampered, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConvertAndSave_DistinctKeys(t *testing.T) {
	router, store, _ := newTestRouter(t, testConfig())
	body := `{"width":100,"height":80,"eChartOption":` + barOption + `}`

	keys := map[string]bool{}
	for i := 0; i < 3; i++ {
		w := doJSON(router, http.MethodPost, "/convertAndSave", body)
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.SaveResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		keys[resp.ObjectKey] = true
	}
	assert.Len(t, keys, 3)
	assert.Equal(t, 3, store.Len())
}

func TestConvertAndSave_ValidationUploadsNothing(t *testing.T) {
	router, store, _ := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodPost, "/convertAndSave", `{"width":100}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.Len())
}

func TestDebugSwitch(t *testing.T) {
	router, _, toggle := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodPost, "/debug/on", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "debug switch turned on", w.Body.String())
	assert.True(t, toggle.Enabled())

	// 冪等
	w = doJSON(router, http.MethodPost, "/debug/on", "")
	assert.Equal(t, "debug switch turned on", w.Body.String())

	w = doJSON(router, http.MethodPost, "/convert", `{"width":100,"height":80,"eChartOption":`+barOption+`}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ConvertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Debug)

	w = doJSON(router, http.MethodPost, "/debug/off", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "debug switch turned off", w.Body.String())
	assert.False(t, toggle.Enabled())

	w = doJSON(router, http.MethodGet, "/debug", "")
	assert.JSONEq(t, `{"debug":false}`, w.Body.String())
}

func TestHealthRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "test", health["version"])
	assert.Equal(t, "memory", health["storage"])

	w = doJSON(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRouter_RequiresServices(t *testing.T) {
	_, err := SetupRouter(testConfig(), Dependencies{})
	assert.Error(t, err)
}
