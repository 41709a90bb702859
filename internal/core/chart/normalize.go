package chart

// DefaultSplitLineColor 伺服器端預設格線顏色
const DefaultSplitLineColor = "#aaa"

// Normalizer 在渲染前套用的預設樣式
type Normalizer struct {
	FontFamily     string
	SplitLineColor string
}

// Apply 回傳正規化後的副本，原始 option 不變
func (n Normalizer) Apply(opt Option) Option {
	out := opt.Clone()
	if out == nil {
		out = Option{}
	}

	DisableAnimation(out)
	ForceFontFamily(out, n.FontFamily)

	color := n.SplitLineColor
	if color == "" {
		color = DefaultSplitLineColor
	}
	InjectSplitLine(out, color)

	return out
}

// DisableAnimation 關閉動畫，點陣輸出只有第一格
func DisableAnimation(opt Option) {
	opt["animation"] = false
}

// ForceFontFamily 強制使用已註冊的 CJK 字型
func ForceFontFamily(opt Option, family string) {
	if family == "" {
		return
	}
	textStyle, ok := opt.Map("textStyle")
	if !ok {
		textStyle = map[string]any{}
		opt["textStyle"] = textStyle
	}
	textStyle["fontFamily"] = family
}

// InjectSplitLine 伺服器端不會預設繪製 y 軸格線，補上預設樣式
// yAxis 可為物件或物件陣列；已設定 splitLine 者不變
func InjectSplitLine(opt Option, color string) {
	switch axis := opt["yAxis"].(type) {
	case map[string]any:
		injectAxisSplitLine(axis, color)
	case Option:
		injectAxisSplitLine(axis, color)
	case []any:
		for _, item := range axis {
			if m, ok := AsMap(item); ok {
				injectAxisSplitLine(m, color)
			}
		}
	}
}

func injectAxisSplitLine(axis map[string]any, color string) {
	if v, ok := axis["splitLine"]; ok && v != nil {
		return
	}
	axis["splitLine"] = DefaultSplitLine(color)
}

// DefaultSplitLine 預設格線樣式：顯示、淺灰
func DefaultSplitLine(color string) map[string]any {
	return map[string]any{
		"show": true,
		"lineStyle": map[string]any{
			"color": []any{color},
		},
	}
}
