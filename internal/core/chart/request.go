package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"chart-exporter/internal/pkg/common"
)

const (
	// OptionField 目前使用的欄位名稱
	OptionField = "eChartOption"
	// LegacyOptionField 向下相容的欄位名稱
	LegacyOptionField = "echartOption"

	DefaultWidth  = 600
	DefaultHeight = 450
)

// Request 渲染請求
// Width / Height 保留原始值，於渲染時才解析
type Request struct {
	Width  any
	Height any
	Option Option
	// Name 呼叫端提供的名稱，不會用於物件鍵
	Name string
}

// ParseRequest 從請求體解析渲染請求
// 兩個欄位都缺少（或為 null）時回傳 ValidationError
func ParseRequest(body map[string]any) (*Request, error) {
	raw, ok := ResolveOption(body)
	if !ok {
		return nil, common.NewValidationError("eChartOption is null")
	}

	opt, ok := AsMap(raw)
	if !ok {
		return nil, common.NewRenderError(fmt.Errorf("eChartOption must be an object, got %T", raw))
	}

	req := &Request{
		Width:  body["width"],
		Height: body["height"],
		Option: Option(opt),
	}
	if name, ok := AsString(body["name"]); ok {
		req.Name = name
	}
	return req, nil
}

// ResolveOption 依別名取得 option，eChartOption 優先
func ResolveOption(body map[string]any) (any, bool) {
	if v, ok := body[OptionField]; ok && v != nil {
		return v, true
	}
	if v, ok := body[LegacyOptionField]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// Dimension 解析寬高，缺少時回傳預設值
// 數字取整數部分（1e3 → 1000，300.7 → 300），字串採整數前綴解析（"300px" → 300）
func Dimension(v any, def int) (int, error) {
	if v == nil {
		return def, nil
	}

	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid dimension %q: %w", t.String(), err)
		}
		return truncate(f)
	case float64:
		return truncate(t)
	case int:
		return t, nil
	case string:
		return parseIntPrefix(t)
	default:
		return 0, fmt.Errorf("invalid dimension of type %T", v)
	}
}

// truncate 捨去小數，超出 int32 範圍時夾到邊界，交由上限檢查回報
func truncate(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid dimension %v", f)
	}
	f = math.Trunc(f)
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32, nil
	case f < math.MinInt32:
		return math.MinInt32, nil
	}
	return int(f), nil
}

func parseIntPrefix(raw string) (int, error) {
	s := strings.TrimSpace(raw)

	i := 0
	negative := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		negative = s[i] == '-'
		i++
	}

	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, fmt.Errorf("cannot parse %q as integer", raw)
	}

	n, err := strconv.Atoi(s[start:i])
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as integer: %w", raw, err)
	}
	if negative {
		n = -n
	}
	return n, nil
}
