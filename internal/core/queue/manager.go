package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"chart-exporter/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrQueueFull 等待中的渲染數已達上限
var ErrQueueFull = errors.New("render queue is full")

// ErrClosed 管理器已關閉
var ErrClosed = errors.New("render queue is closed")

// Status 隊列狀態
type Status struct {
	Running        int   `json:"running"`
	Waiting        int   `json:"waiting"`
	ProcessedCount int64 `json:"processed_count"`
	RejectedCount  int64 `json:"rejected_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 限制同時進行的渲染數量，超出的請求排隊等待
type Manager struct {
	slots     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	workers   int
	maxQueue  int
	waiting   atomic.Int64
	processed atomic.Int64
	rejected  atomic.Int64
}

// NewManager 創建隊列管理器
// workers <= 0 時不限制並行數，maxQueue <= 0 時不限制等待數
func NewManager(workers, maxQueue int) *Manager {
	m := &Manager{
		done:     make(chan struct{}),
		workers:  workers,
		maxQueue: maxQueue,
	}
	if workers > 0 {
		m.slots = make(chan struct{}, workers)
	}
	return m
}

// Acquire 取得執行名額，回傳的 release 必須呼叫一次
func (m *Manager) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	if m.slots == nil {
		return m.releaser(nil), nil
	}

	// 有空位時直接執行
	select {
	case m.slots <- struct{}{}:
		return m.releaser(m.slots), nil
	default:
	}

	waiting := m.waiting.Add(1)
	defer m.waiting.Add(-1)
	if m.maxQueue > 0 && waiting > int64(m.maxQueue) {
		m.rejected.Add(1)
		common.LogWarn("Render queue is full",
			zap.Int64("waiting", waiting-1),
			zap.Int("max_queue_size", m.maxQueue),
		)
		return nil, ErrQueueFull
	}

	select {
	case m.slots <- struct{}{}:
		return m.releaser(m.slots), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

func (m *Manager) releaser(slots chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.processed.Add(1)
			if slots != nil {
				<-slots
			}
		})
	}
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		Running:        len(m.slots),
		Waiting:        int(m.waiting.Load()),
		ProcessedCount: m.processed.Load(),
		RejectedCount:  m.rejected.Load(),
		MaxQueueSize:   m.maxQueue,
		Workers:        m.workers,
	}
}

// Close 關閉隊列管理器，等待中的請求會收到 ErrClosed
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}
