package common

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateOrderedID 生成依時間排序的 UUID (v7)
func GenerateOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// 只在隨機來源失效時發生
		return uuid.New().String()
	}
	return id.String()
}

// WriteError 依錯誤類型寫入 JSON 錯誤響應
func WriteError(c *gin.Context, err error) {
	status, body := ToErrorResponse(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// WriteErrorResponse 寫入錯誤響應（非 gin 的 http.Handler 使用）
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
