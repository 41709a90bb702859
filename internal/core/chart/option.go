package chart

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Option 圖表樣式文件（ECharts option）
// 結構由渲染引擎定義，這裡只讀寫少數頂層欄位，其餘欄位原樣保留
type Option map[string]any

// Clone 深拷貝 option，正規化只修改副本
func (o Option) Clone() Option {
	if o == nil {
		return nil
	}
	return cloneValue(map[string]any(o)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Option:
		return Option(cloneValue(map[string]any(t)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		// string / json.Number / float64 / bool / nil 皆為值型別
		return t
	}
}

// Map 取得子物件
func (o Option) Map(key string) (map[string]any, bool) {
	return AsMap(o[key])
}

// Has 判斷欄位存在且不為 null
func (o Option) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// JSON 序列化（鍵已排序，可用於快取鍵）
func (o Option) JSON() ([]byte, error) {
	return json.Marshal(map[string]any(o))
}

// AsMap 將任意值轉為物件
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Option:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

// AsSlice 將任意值轉為陣列
func AsSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// AsString 將任意值轉為字串
func AsString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// AsBool 讀取布林值，缺少時使用預設值
func AsBool(v any, def bool) bool {
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// AsNumber 將數值或數字字串轉為 float64
func AsNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FirstMap 取得物件或物件陣列中的第一個物件（如 title、xAxis 可為陣列）
func FirstMap(v any) (map[string]any, bool) {
	if m, ok := AsMap(v); ok {
		return m, true
	}
	if s, ok := AsSlice(v); ok {
		for _, item := range s {
			if m, ok := AsMap(item); ok {
				return m, true
			}
		}
	}
	return nil, false
}
