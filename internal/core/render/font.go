package render

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
)

// FontRegistry 字型家族名稱 → TrueType 字型
type FontRegistry struct {
	mu    sync.RWMutex
	fonts map[string]*registeredFont
}

type registeredFont struct {
	family string
	font   *truetype.Font
	raw    []byte
}

// NewFontRegistry 創建字型註冊表
func NewFontRegistry() *FontRegistry {
	return &FontRegistry{
		fonts: make(map[string]*registeredFont),
	}
}

// RegisterFile 從檔案註冊字型（只支援單一 TrueType，不支援 .ttc 集合）
func (r *FontRegistry) RegisterFile(path, family string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read font %s: %w", path, err)
	}
	return r.Register(family, data)
}

// Register 註冊字型資料
func (r *FontRegistry) Register(family string, data []byte) error {
	if strings.TrimSpace(family) == "" {
		return fmt.Errorf("font family is required")
	}

	f, err := truetype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font %s: %w", family, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fonts[normalizeFamily(family)] = &registeredFont{
		family: family,
		font:   f,
		raw:    data,
	}
	return nil
}

// Lookup 依 CSS font-family 清單找出第一個已註冊的字型
func (r *FontRegistry) Lookup(families string) (*truetype.Font, bool) {
	rf, ok := r.lookup(families)
	if !ok {
		return nil, false
	}
	return rf.font, true
}

// Raw 取得字型原始資料（瀏覽器 @font-face 使用）
func (r *FontRegistry) Raw(family string) ([]byte, bool) {
	rf, ok := r.lookup(family)
	if !ok {
		return nil, false
	}
	return rf.raw, true
}

// Families 已註冊的家族名稱
func (r *FontRegistry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.fonts))
	for _, rf := range r.fonts {
		out = append(out, rf.family)
	}
	sort.Strings(out)
	return out
}

func (r *FontRegistry) lookup(families string) (*registeredFont, bool) {
	if r == nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range strings.Split(families, ",") {
		if rf, ok := r.fonts[normalizeFamily(name)]; ok {
			return rf, true
		}
	}
	return nil, false
}

func normalizeFamily(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	return strings.ToLower(name)
}
