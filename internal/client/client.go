package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chart-exporter/internal/api/dto"
	"chart-exporter/internal/core/image"
	"chart-exporter/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

// APIError 服務回傳的非 2xx 錯誤
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("chart service returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("chart service returned %d: %s", e.Status, e.Message)
}

// Client 圖表轉換服務客戶端
type Client struct {
	http *resty.Client
}

// New 創建客戶端
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "chartctl")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c}
}

// Convert 取得 base64 PNG 並解碼
func (c *Client) Convert(ctx context.Context, req dto.ConvertRequest) (*dto.ConvertResponse, []byte, error) {
	var out dto.ConvertResponse
	if err := c.post(ctx, "/convert", req, &out); err != nil {
		return nil, nil, err
	}

	data, err := image.DecodeBase64(out.Image.Content)
	if err != nil {
		return nil, nil, err
	}
	return &out, data, nil
}

// ConvertAndSave 上傳並取得簽名網址
func (c *Client) ConvertAndSave(ctx context.Context, req dto.ConvertRequest) (*dto.SaveResponse, error) {
	var out dto.SaveResponse
	if err := c.post(ctx, "/convertAndSave", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetDebug 切換除錯開關，回傳伺服器訊息
func (c *Client) SetDebug(ctx context.Context, on bool) (string, error) {
	path := "/debug/off"
	if on {
		path = "/debug/on"
	}

	resp, err := c.http.R().SetContext(ctx).Post(path)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return "", toAPIError(resp)
	}
	return resp.String(), nil
}

// Download 下載簽名網址內容
func (c *Client) Download(ctx context.Context, signedURL string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(signedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", signedURL, err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp)
	}
	return resp.Body(), nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	if resp.IsError() {
		return toAPIError(resp)
	}

	if err := common.ParseJSONBytes(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}

func toAPIError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}

	var body common.ErrorResponse
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else if s := strings.TrimSpace(resp.String()); s != "" {
		apiErr.Message = s
	}
	return apiErr
}
