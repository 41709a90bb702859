package chart

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"chart-exporter/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, common.ParseJSON(raw, &body))
	return body
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		validation bool
		wantTitle  string
	}{
		{
			name:      "preferred field",
			body:      `{"eChartOption":{"title":{"text":"a"}}}`,
			wantTitle: "a",
		},
		{
			name:      "legacy field",
			body:      `{"echartOption":{"title":{"text":"b"}}}`,
			wantTitle: "b",
		},
		{
			name:      "both present prefers eChartOption",
			body:      `{"echartOption":{"title":{"text":"legacy"}},"eChartOption":{"title":{"text":"current"}}}`,
			wantTitle: "current",
		},
		{
			name:      "null preferred falls back to legacy",
			body:      `{"eChartOption":null,"echartOption":{"title":{"text":"legacy"}}}`,
			wantTitle: "legacy",
		},
		{
			name:       "missing option",
			body:       `{"width":100}`,
			wantErr:    true,
			validation: true,
		},
		{
			name:       "both null",
			body:       `{"eChartOption":null,"echartOption":null}`,
			wantErr:    true,
			validation: true,
		},
		{
			name:    "option not an object",
			body:    `{"eChartOption":[1,2]}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := ParseRequest(decode(t, tc.body))
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.validation, common.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			title, ok := req.Option.Map("title")
			require.True(t, ok)
			assert.Equal(t, tc.wantTitle, title["text"])
		})
	}
}

func TestParseRequest_KeepsName(t *testing.T) {
	req, err := ParseRequest(decode(t, `{"eChartOption":{},"name":"custom"}`))
	require.NoError(t, err)
	assert.Equal(t, "custom", req.Name)
}

func TestDimension(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int
		wantErr bool
	}{
		{name: "absent uses default", in: nil, want: 600},
		{name: "json number", in: json.Number("300"), want: 300},
		{name: "fractional number truncates", in: json.Number("300.7"), want: 300},
		{name: "exponent number", in: json.Number("1e3"), want: 1000},
		{name: "negative fractional number", in: json.Number("-2.5"), want: -2},
		{name: "huge number clamps", in: json.Number("1e12"), want: math.MaxInt32},
		{name: "numeric string", in: "200", want: 200},
		{name: "string with unit", in: "320px", want: 320},
		{name: "leading whitespace", in: "  42", want: 42},
		{name: "negative", in: "-5", want: -5},
		{name: "float64", in: 12.9, want: 12},
		{name: "float64 nan", in: math.NaN(), wantErr: true},
		{name: "non numeric", in: "abc", wantErr: true},
		{name: "empty string", in: "", wantErr: true},
		{name: "bool", in: true, wantErr: true},
		{name: "object", in: map[string]any{}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Dimension(tc.in, 600)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizer_Apply(t *testing.T) {
	n := Normalizer{FontFamily: "Heiti", SplitLineColor: "#aaa"}

	t.Run("disables animation and forces font", func(t *testing.T) {
		opt := Option(decode(t, `{"animation":true,"textStyle":{"fontFamily":"Arial","fontSize":14}}`))
		out := n.Apply(opt)

		assert.Equal(t, false, out["animation"])
		textStyle, ok := out.Map("textStyle")
		require.True(t, ok)
		assert.Equal(t, "Heiti", textStyle["fontFamily"])
		assert.Equal(t, json.Number("14"), textStyle["fontSize"])
	})

	t.Run("creates text style when absent", func(t *testing.T) {
		out := n.Apply(Option{})
		textStyle, ok := out.Map("textStyle")
		require.True(t, ok)
		assert.Equal(t, "Heiti", textStyle["fontFamily"])
	})

	t.Run("injects split line into y axis", func(t *testing.T) {
		out := n.Apply(Option(decode(t, `{"yAxis":{"type":"value"}}`)))
		yAxis, ok := out.Map("yAxis")
		require.True(t, ok)
		assert.Equal(t, DefaultSplitLine("#aaa"), yAxis["splitLine"])
	})

	t.Run("keeps existing split line", func(t *testing.T) {
		out := n.Apply(Option(decode(t, `{"yAxis":{"splitLine":{"show":false}}}`)))
		yAxis, _ := out.Map("yAxis")
		assert.Equal(t, map[string]any{"show": false}, yAxis["splitLine"])
	})

	t.Run("injects into each y axis of an array", func(t *testing.T) {
		out := n.Apply(Option(decode(t, `{"yAxis":[{},{"splitLine":{"show":false}}]}`)))
		axes, ok := AsSlice(out["yAxis"])
		require.True(t, ok)
		first, _ := AsMap(axes[0])
		second, _ := AsMap(axes[1])
		assert.Equal(t, DefaultSplitLine("#aaa"), first["splitLine"])
		assert.Equal(t, map[string]any{"show": false}, second["splitLine"])
	})

	t.Run("no y axis means no injection", func(t *testing.T) {
		out := n.Apply(Option(decode(t, `{"xAxis":{}}`)))
		assert.False(t, out.Has("yAxis"))
		xAxis, _ := out.Map("xAxis")
		assert.NotContains(t, xAxis, "splitLine")
	})

	t.Run("does not mutate input", func(t *testing.T) {
		raw := `{"yAxis":{},"series":[{"type":"bar","data":[1,2,3]}]}`
		opt := Option(decode(t, raw))
		_ = n.Apply(opt)

		data, err := opt.JSON()
		require.NoError(t, err)
		assert.NotContains(t, string(data), "splitLine")
		assert.NotContains(t, string(data), "animation")
		assert.False(t, strings.Contains(string(data), "Heiti"))
	})

	t.Run("preserves unknown fields", func(t *testing.T) {
		out := n.Apply(Option(decode(t, `{"dataZoom":[{"type":"inside"}],"grid":{"left":10}}`)))
		assert.True(t, out.Has("dataZoom"))
		grid, _ := out.Map("grid")
		assert.Equal(t, json.Number("10"), grid["left"])
	})
}

func TestAsNumber(t *testing.T) {
	f, ok := AsNumber(json.Number("1.5"))
	assert.True(t, ok)
	assert.InDelta(t, 1.5, f, 1e-9)

	f, ok = AsNumber("2")
	assert.True(t, ok)
	assert.InDelta(t, 2.0, f, 1e-9)

	_, ok = AsNumber("-")
	assert.False(t, ok)
}
