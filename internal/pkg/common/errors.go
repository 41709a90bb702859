package common

import (
	"errors"
	"net/http"
	"runtime/debug"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（堆疊）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ValidationError 表示驗證錯誤，回應 400
type ValidationError struct {
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RenderError 渲染引擎失敗（格式錯誤的 option、不支援的圖表類型、尺寸解析失敗）
type RenderError struct {
	Err   error
	Stack string
}

func (e *RenderError) Error() string {
	return e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// NewRenderError 包裝渲染錯誤並記錄當下的堆疊
func NewRenderError(err error) error {
	return &RenderError{
		Err:   err,
		Stack: string(debug.Stack()),
	}
}

// NewRenderErrorWithStack 使用既有堆疊（例如 recover 時取得的）包裝渲染錯誤
func NewRenderErrorWithStack(err error, stack []byte) error {
	return &RenderError{
		Err:   err,
		Stack: string(stack),
	}
}

// UploadError 物件儲存失敗（認證、網路、配額）
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return e.Err.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// NewUploadError 包裝上傳錯誤
func NewUploadError(err error) error {
	return &UploadError{Err: err}
}

// 預定義錯誤代碼
const (
	ErrCodeInvalidRequest        = "INVALID_REQUEST"          // 400
	ErrCodeForbidden             = "FORBIDDEN"                // 403
	ErrCodeNotFound              = "NOT_FOUND"                // 404
	ErrCodeRequestEntityTooLarge = "REQUEST_ENTITY_TOO_LARGE" // 413

	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeRenderError        = "RENDER_ERROR"        // 500
	ErrCodeUploadError        = "UPLOAD_ERROR"        // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeRequestTimeout     = "REQUEST_TIMEOUT"     // 504
)

// ToErrorResponse 將錯誤轉換為 HTTP 狀態碼與響應體
func ToErrorResponse(err error) (int, ErrorResponse) {
	var (
		ve *ValidationError
		re *RenderError
		ue *UploadError
		ce *CustomError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeInvalidRequest,
			Message: ve.Error(),
		}
	case errors.As(err, &re):
		return http.StatusInternalServerError, ErrorResponse{
			Code:    ErrCodeRenderError,
			Message: re.Error(),
			Details: re.Stack,
		}
	case errors.As(err, &ue):
		return http.StatusInternalServerError, ErrorResponse{
			Code:    ErrCodeUploadError,
			Message: ue.Error(),
		}
	case errors.As(err, &ce):
		return ce.Status, ErrorResponse{
			Code:    ce.Code,
			Message: ce.Message,
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Code:    ErrCodeInternalError,
			Message: err.Error(),
		}
	}
}

// ErrCacheMiss 快取未命中
var ErrCacheMiss = NewError("CACHE_MISS", "緩存未命中", http.StatusNotFound, nil)
