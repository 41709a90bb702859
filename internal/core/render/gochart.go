package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"chart-exporter/internal/core/chart"

	"github.com/golang/freetype/truetype"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrUnsupportedOption 純 Go 引擎無法表達的樣式
var ErrUnsupportedOption = errors.New("option is not supported by the gochart engine")

// renderable go-chart 各圖表型別共用的輸出介面
type renderable interface {
	Render(rp gochart.RendererProvider, w io.Writer) error
}

// GoChartEngine 以 go-chart 繪製常見的 ECharts 圖表型別
// 支援 line、bar（含 stack）、scatter、pie，其餘型別回傳 ErrUnsupportedOption
type GoChartEngine struct {
	fonts *FontRegistry
}

// NewGoChartEngine 創建 go-chart 引擎
func NewGoChartEngine(fonts *FontRegistry) *GoChartEngine {
	return &GoChartEngine{fonts: fonts}
}

func (e *GoChartEngine) Name() string { return "gochart" }

func (e *GoChartEngine) Close() error { return nil }

// NewChart 建立圖表實例
func (e *GoChartEngine) NewChart(_ context.Context, canvas Canvas) (Chart, error) {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", canvas.Width, canvas.Height)
	}
	return &goChart{canvas: canvas, fonts: e.fonts}, nil
}

type goChart struct {
	canvas Canvas
	fonts  *FontRegistry
	target renderable
}

func (c *goChart) SetOption(_ context.Context, opt chart.Option) error {
	target, err := buildChart(opt, c.canvas, c.fonts)
	if err != nil {
		return err
	}
	c.target = target
	return nil
}

func (c *goChart) PNG(_ context.Context) ([]byte, error) {
	if c.target == nil {
		return nil, errors.New("option has not been set")
	}

	var buf bytes.Buffer
	if err := c.target.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("go-chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *goChart) Dispose() error {
	c.target = nil
	return nil
}

// chartSpec 從 option 讀出的共用欄位
type chartSpec struct {
	width      int
	height     int
	dpi        float64
	title      string
	categories []string
	palette    []drawing.Color
	background gochart.Style
	font       *truetype.Font
	grid       gochart.Style
	legend     bool
	series     []seriesSpec
}

type seriesSpec struct {
	kind   string
	name   string
	stack  string
	color  drawing.Color
	points []point
	values []gochart.Value
}

type point struct {
	x, y float64
}

func buildChart(opt chart.Option, canvas Canvas, fonts *FontRegistry) (renderable, error) {
	spec, err := readSpec(opt, canvas, fonts)
	if err != nil {
		return nil, err
	}

	if !spec.drawable() {
		return blankChart{spec: spec}, nil
	}

	kinds := map[string]int{}
	for _, s := range spec.series {
		kinds[s.kind]++
	}

	switch {
	case kinds["pie"] > 0 && len(kinds) == 1:
		return pieChart(spec), nil
	case kinds["bar"] > 0 && len(kinds) == 1:
		return barChart(spec)
	case len(kinds) == countKinds(kinds, "line", "scatter"):
		return lineChart(spec), nil
	default:
		return nil, fmt.Errorf("%w: mixed series types %v", ErrUnsupportedOption, keys(kinds))
	}
}

func countKinds(kinds map[string]int, allowed ...string) int {
	n := 0
	for _, k := range allowed {
		if kinds[k] > 0 {
			n++
		}
	}
	return n
}

func keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func readSpec(opt chart.Option, canvas Canvas, fonts *FontRegistry) (*chartSpec, error) {
	width, height := canvas.PixelSize()
	ratio := canvas.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}

	spec := &chartSpec{
		width:  width,
		height: height,
		dpi:    gochart.DefaultDPI * ratio,
		background: gochart.Style{
			FillColor: drawing.ColorWhite,
			Padding:   gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		grid: gochart.Style{Hidden: true},
	}

	if title, ok := chart.FirstMap(opt["title"]); ok && chart.AsBool(title["show"], true) {
		spec.title, _ = chart.AsString(title["text"])
	}

	if xAxis, ok := chart.FirstMap(opt["xAxis"]); ok {
		if data, ok := chart.AsSlice(xAxis["data"]); ok {
			for _, item := range data {
				spec.categories = append(spec.categories, categoryLabel(item))
			}
		}
	}

	if yAxis, ok := chart.FirstMap(opt["yAxis"]); ok {
		if splitLine, ok := chart.AsMap(yAxis["splitLine"]); ok && chart.AsBool(splitLine["show"], true) {
			gridColor, _ := parseColor(chart.DefaultSplitLineColor)
			spec.grid = gochart.Style{StrokeColor: gridColor, StrokeWidth: 1}
			if lineStyle, ok := chart.AsMap(splitLine["lineStyle"]); ok {
				if c, ok := colorValue(lineStyle["color"]); ok {
					spec.grid.StrokeColor = c
				}
			}
		}
	}

	for _, raw := range paletteStrings(opt["color"]) {
		if c, ok := parseColor(raw); ok {
			spec.palette = append(spec.palette, c)
		}
	}
	if len(spec.palette) == 0 {
		for _, raw := range defaultPalette {
			c, _ := parseColor(raw)
			spec.palette = append(spec.palette, c)
		}
	}

	if bg, ok := colorValue(opt["backgroundColor"]); ok {
		spec.background.FillColor = bg
	}

	if textStyle, ok := opt.Map("textStyle"); ok {
		if family, ok := chart.AsString(textStyle["fontFamily"]); ok {
			// 未註冊的字型改用 go-chart 內建字型
			spec.font, _ = fonts.Lookup(family)
		}
	}

	if legend, ok := chart.FirstMap(opt["legend"]); ok {
		spec.legend = chart.AsBool(legend["show"], true)
	}

	series, err := readSeries(opt["series"], spec)
	if err != nil {
		return nil, err
	}
	spec.series = series
	return spec, nil
}

func readSeries(raw any, spec *chartSpec) ([]seriesSpec, error) {
	var items []any
	switch t := raw.(type) {
	case []any:
		items = t
	case nil:
	default:
		items = []any{t}
	}

	var out []seriesSpec
	for i, item := range items {
		m, ok := chart.AsMap(item)
		if !ok {
			continue
		}

		s := seriesSpec{kind: "line"}
		if kind, ok := chart.AsString(m["type"]); ok && kind != "" {
			s.kind = kind
		}
		switch s.kind {
		case "line", "bar", "scatter", "pie":
		default:
			return nil, fmt.Errorf("%w: series type %q", ErrUnsupportedOption, s.kind)
		}

		s.name, _ = chart.AsString(m["name"])
		s.stack, _ = chart.AsString(m["stack"])
		s.color = spec.palette[i%len(spec.palette)]
		if itemStyle, ok := chart.AsMap(m["itemStyle"]); ok {
			if c, ok := colorValue(itemStyle["color"]); ok {
				s.color = c
			}
		}

		data, _ := chart.AsSlice(m["data"])
		for j, d := range data {
			if s.kind == "pie" {
				if v, ok := pieValue(d, j, spec); ok {
					s.values = append(s.values, v)
				}
				continue
			}
			if p, ok := dataPoint(d, j); ok {
				s.points = append(s.points, p)
			}
		}
		out = append(out, s)
	}

	return out, nil
}

// dataPoint 支援 number、[x, y]、{value: ...}；"-" 與 null 視為缺值
func dataPoint(d any, index int) (point, bool) {
	if m, ok := chart.AsMap(d); ok {
		return dataPoint(m["value"], index)
	}
	if pair, ok := chart.AsSlice(d); ok {
		if len(pair) == 0 {
			return point{}, false
		}
		y, ok := chart.AsNumber(pair[len(pair)-1])
		if !ok {
			return point{}, false
		}
		x := float64(index)
		if len(pair) >= 2 {
			if v, ok := chart.AsNumber(pair[0]); ok {
				x = v
			}
		}
		return point{x: x, y: y}, true
	}
	y, ok := chart.AsNumber(d)
	if !ok {
		return point{}, false
	}
	return point{x: float64(index), y: y}, true
}

func pieValue(d any, index int, spec *chartSpec) (gochart.Value, bool) {
	v := gochart.Value{
		Style: gochart.Style{
			FillColor:   spec.palette[index%len(spec.palette)],
			StrokeColor: drawing.ColorWhite,
			StrokeWidth: 1,
		},
	}

	if m, ok := chart.AsMap(d); ok {
		n, ok := chart.AsNumber(m["value"])
		if !ok {
			return v, false
		}
		v.Value = n
		v.Label, _ = chart.AsString(m["name"])
		if itemStyle, ok := chart.AsMap(m["itemStyle"]); ok {
			if c, ok := colorValue(itemStyle["color"]); ok {
				v.Style.FillColor = c
			}
		}
		return v, true
	}

	n, ok := chart.AsNumber(d)
	if !ok {
		return v, false
	}
	v.Value = n
	if index < len(spec.categories) {
		v.Label = spec.categories[index]
	}
	return v, true
}

func categoryLabel(v any) string {
	if m, ok := chart.AsMap(v); ok {
		return categoryLabel(m["value"])
	}
	if s, ok := chart.AsString(v); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func paletteStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func lineChart(spec *chartSpec) *gochart.Chart {
	c := &gochart.Chart{
		Title:      spec.title,
		Width:      spec.width,
		Height:     spec.height,
		DPI:        spec.dpi,
		Font:       spec.font,
		Background: spec.background,
		YAxis: gochart.YAxis{
			GridMajorStyle: spec.grid,
			GridMinorStyle: gochart.Style{Hidden: true},
		},
	}

	if len(spec.categories) > 0 {
		ticks := make([]gochart.Tick, 0, len(spec.categories))
		for i, label := range spec.categories {
			ticks = append(ticks, gochart.Tick{Value: float64(i), Label: label})
		}
		c.XAxis.Ticks = ticks
	}

	for _, s := range spec.series {
		cs := gochart.ContinuousSeries{Name: s.name}
		for _, p := range s.points {
			cs.XValues = append(cs.XValues, p.x)
			cs.YValues = append(cs.YValues, p.y)
		}

		if s.kind == "scatter" {
			cs.Style = gochart.Style{
				StrokeWidth: gochart.Disabled,
				DotWidth:    3,
				DotColor:    s.color,
			}
		} else {
			cs.Style = gochart.Style{
				StrokeColor: s.color,
				StrokeWidth: 2,
			}
		}
		c.Series = append(c.Series, cs)
	}

	padSinglePoint(c)

	if spec.legend {
		c.Elements = []gochart.Renderable{gochart.Legend(c)}
	}
	return c
}

// padSinglePoint go-chart 需要非零的座標範圍，單一 x 或單一 y 值時向兩側展開
func padSinglePoint(c *gochart.Chart) {
	xlo, xhi := math.Inf(1), math.Inf(-1)
	ylo, yhi := math.Inf(1), math.Inf(-1)
	for _, s := range c.Series {
		cs, ok := s.(gochart.ContinuousSeries)
		if !ok {
			continue
		}
		for i := range cs.XValues {
			xlo, xhi = math.Min(xlo, cs.XValues[i]), math.Max(xhi, cs.XValues[i])
			ylo, yhi = math.Min(ylo, cs.YValues[i]), math.Max(yhi, cs.YValues[i])
		}
	}

	if len(c.XAxis.Ticks) > 0 {
		xlo, xhi = math.Inf(1), math.Inf(-1)
		for _, t := range c.XAxis.Ticks {
			xlo, xhi = math.Min(xlo, t.Value), math.Max(xhi, t.Value)
		}
	}
	if xlo == xhi {
		c.XAxis.Range = &gochart.ContinuousRange{Min: xlo - 1, Max: xhi + 1}
		if len(c.XAxis.Ticks) > 0 {
			ticks := []gochart.Tick{{Value: xlo - 1}}
			ticks = append(ticks, c.XAxis.Ticks...)
			c.XAxis.Ticks = append(ticks, gochart.Tick{Value: xhi + 1})
		}
	}

	if ylo == yhi {
		lo, hi := math.Min(0, ylo), math.Max(0, yhi)
		if lo == hi {
			hi = lo + 1
		}
		c.YAxis.Range = &gochart.ContinuousRange{Min: lo, Max: hi}
	}
}

// drawable 至少一個系列有資料
func (s *chartSpec) drawable() bool {
	for _, series := range s.series {
		if len(series.points) > 0 || len(series.values) > 0 {
			return true
		}
	}
	return false
}

// blankChart 沒有可繪製的系列時只輸出背景與標題
type blankChart struct {
	spec *chartSpec
}

func (b blankChart) Render(rp gochart.RendererProvider, w io.Writer) error {
	r, err := rp(b.spec.width, b.spec.height)
	if err != nil {
		return err
	}
	r.SetDPI(b.spec.dpi)

	fill := b.spec.background.FillColor
	gochart.Draw.Box(r, gochart.NewBox(0, 0, b.spec.width, b.spec.height), gochart.Style{
		FillColor:   fill,
		StrokeColor: fill,
		StrokeWidth: 1,
	})

	if b.spec.title != "" {
		font := b.spec.font
		if font == nil {
			if font, err = gochart.GetDefaultFont(); err != nil {
				return err
			}
		}
		r.SetFont(font)
		r.SetFontColor(gochart.DefaultTextColor)
		r.SetFontSize(gochart.DefaultTitleFontSize)
		box := r.MeasureText(b.spec.title)
		r.Text(b.spec.title, (b.spec.width>>1)-(box.Width()>>1), gochart.DefaultTitleTop+box.Height())
	}

	return r.Save(w)
}

func barChart(spec *chartSpec) (renderable, error) {
	if len(spec.series) == 1 {
		s := spec.series[0]
		bars := make([]gochart.Value, 0, len(s.points))
		for i, p := range s.points {
			bars = append(bars, gochart.Value{
				Label: labelAt(spec.categories, i),
				Value: p.y,
				Style: gochart.Style{FillColor: s.color, StrokeColor: s.color},
			})
		}
		if len(bars) == 0 {
			return nil, errors.New("bar series has no data")
		}

		barWidth, spacing := barLayout(spec.width, len(bars))
		return &gochart.BarChart{
			Title:      spec.title,
			Width:      spec.width,
			Height:     spec.height,
			DPI:        spec.dpi,
			Font:       spec.font,
			Background: spec.background,
			BarWidth:   barWidth,
			BarSpacing: spacing,
			YAxis: gochart.YAxis{
				Range:          zeroBasedRange(bars),
				GridMajorStyle: spec.grid,
				GridMinorStyle: gochart.Style{Hidden: true},
			},
			Bars: bars,
		}, nil
	}

	for _, s := range spec.series {
		if s.stack == "" {
			return nil, fmt.Errorf("%w: multiple bar series without stack", ErrUnsupportedOption)
		}
	}

	count := 0
	for _, s := range spec.series {
		if len(s.points) > count {
			count = len(s.points)
		}
	}
	if count == 0 {
		return nil, errors.New("bar series has no data")
	}

	barWidth, spacing := barLayout(spec.width, count)
	stacked := make([]gochart.StackedBar, 0, count)
	for i := 0; i < count; i++ {
		sb := gochart.StackedBar{Name: labelAt(spec.categories, i), Width: barWidth}
		for _, s := range spec.series {
			if i >= len(s.points) {
				continue
			}
			sb.Values = append(sb.Values, gochart.Value{
				Label: s.name,
				Value: s.points[i].y,
				Style: gochart.Style{FillColor: s.color, StrokeColor: s.color},
			})
		}
		stacked = append(stacked, sb)
	}

	return &gochart.StackedBarChart{
		Title:      spec.title,
		Width:      spec.width,
		Height:     spec.height,
		DPI:        spec.dpi,
		Font:       spec.font,
		Background: spec.background,
		BarSpacing: spacing,
		Bars:       stacked,
	}, nil
}

func pieChart(spec *chartSpec) *gochart.PieChart {
	var values []gochart.Value
	for _, s := range spec.series {
		if len(s.values) > 0 {
			values = s.values
			break
		}
	}

	return &gochart.PieChart{
		Title:      spec.title,
		Width:      spec.width,
		Height:     spec.height,
		DPI:        spec.dpi,
		Font:       spec.font,
		Background: spec.background,
		Values:     values,
	}
}

// zeroBasedRange 長條圖的值軸從 0 起算
func zeroBasedRange(bars []gochart.Value) *gochart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	if lo == hi {
		hi = lo + 1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}

// barLayout 讓所有長條落在畫布內
func barLayout(width, count int) (int, int) {
	usable := width - 120
	if usable < count*2 {
		usable = count * 2
	}
	slot := usable / count
	barWidth := slot * 2 / 3
	if barWidth < 1 {
		barWidth = 1
	}
	spacing := slot - barWidth
	if spacing < 1 {
		spacing = 1
	}
	return barWidth, spacing
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return fmt.Sprint(i + 1)
}
