package debug

import "sync/atomic"

// Toggle 行程層級的除錯開關，預設關閉，不持久化
// 只影響是否記錄輸入的 option，不影響渲染結果
type Toggle struct {
	on atomic.Bool
}

// NewToggle 創建除錯開關
func NewToggle(initial bool) *Toggle {
	t := &Toggle{}
	t.on.Store(initial)
	return t
}

// Enable 開啟除錯（冪等）
func (t *Toggle) Enable() {
	t.on.Store(true)
}

// Disable 關閉除錯（冪等）
func (t *Toggle) Disable() {
	t.on.Store(false)
}

// Enabled 讀取目前狀態
func (t *Toggle) Enabled() bool {
	return t.on.Load()
}
