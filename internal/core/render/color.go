package render

import (
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/colornames"
)

// ECharts 5 預設色盤
var defaultPalette = []string{
	"#5470c6", "#91cc75", "#fac858", "#ee6666", "#73c0de",
	"#3ba272", "#fc8452", "#9a60b4", "#ea7ccc",
}

// parseColor 解析 #rgb / #rrggbb / #rrggbbaa / rgb() / rgba() / CSS 色名
func parseColor(s string) (drawing.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" {
		return drawing.Color{}, true
	}
	if c, ok := colornames.Map[s]; ok {
		return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}, true
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}

	if strings.HasPrefix(s, "rgb") {
		open := strings.Index(s, "(")
		end := strings.LastIndex(s, ")")
		if open < 0 || end <= open {
			return drawing.Color{}, false
		}
		parts := strings.Split(s[open+1:end], ",")
		if len(parts) != 3 && len(parts) != 4 {
			return drawing.Color{}, false
		}

		var channels [3]uint8
		for i := 0; i < 3; i++ {
			n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil || n < 0 || n > 255 {
				return drawing.Color{}, false
			}
			channels[i] = uint8(n)
		}

		alpha := uint8(255)
		if len(parts) == 4 {
			a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil || a < 0 || a > 1 {
				return drawing.Color{}, false
			}
			alpha = uint8(a*255 + 0.5)
		}
		return drawing.Color{R: channels[0], G: channels[1], B: channels[2], A: alpha}, true
	}

	return drawing.Color{}, false
}

func parseHex(h string) (drawing.Color, bool) {
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6, 8:
	default:
		return drawing.Color{}, false
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return drawing.Color{}, false
	}

	if len(h) == 6 {
		return drawing.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
	}
	return drawing.Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

// colorValue 讀取 ECharts 顏色欄位（字串或字串陣列的第一個）
func colorValue(v any) (drawing.Color, bool) {
	switch t := v.(type) {
	case string:
		return parseColor(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return parseColor(s)
			}
		}
	}
	return drawing.Color{}, false
}
