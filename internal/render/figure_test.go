package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/droview/server/internal/data/dro"
	"github.com/droview/server/internal/view"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatalf("output is not a PNG")
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestRenderHeatmap(t *testing.T) {
	r := NewRenderer(Config{DefaultColormap: "viridis"})

	g := dro.NewGrid(8, 6)
	for i := range g.V {
		g.V[i] = float64(i)
	}
	g.Set(3, 3, math.NaN()) // sentinel cells must render, not panic

	data, err := r.RenderHeatmap(g, view.ColorBounds{Lo: 0, Hi: 40}, "plasma", 320, 240)
	if err != nil {
		t.Fatalf("RenderHeatmap: %v", err)
	}
	if w, h := decodeSize(t, data); w != 320 || h != 240 {
		t.Errorf("size = %dx%d, want 320x240", w, h)
	}

	// Unknown colormap falls back to the default instead of failing.
	if _, err := r.RenderHeatmap(g, view.ColorBounds{Lo: 0, Hi: 40}, "nope", 64, 64); err != nil {
		t.Errorf("fallback colormap: %v", err)
	}

	if _, err := r.RenderHeatmap(g, view.ColorBounds{}, "plasma", 0, 240); err == nil {
		t.Error("non-positive size must be rejected")
	}
}

func TestRenderCategoryMap(t *testing.T) {
	r := NewRenderer(Config{DefaultColormap: "viridis"})
	g := &view.CategoryGrid{NX: 4, NY: 4, V: make([]int, 16)}
	g.V[0] = view.Undefined
	g.V[5] = 3

	data, err := r.RenderCategoryMap(g, 128, 128)
	if err != nil {
		t.Fatalf("RenderCategoryMap: %v", err)
	}
	if w, h := decodeSize(t, data); w != 128 || h != 128 {
		t.Errorf("size = %dx%d", w, h)
	}
}

func TestRenderCurves(t *testing.T) {
	r := NewRenderer(Config{DefaultColormap: "viridis"})

	bundle := &view.CurveBundle{
		Time:     []float64{0, 0.5, 1, 1.5, 2},
		Observed: []float64{0, 0.2, 0.3, 0.35, 0.4},
		YLo:      0,
		YHi:      0.44,
		Curves: []view.ModelCurve{
			{Model: "tofts", Values: []float64{0, 0.21, 0.29, 0.36, 0.41}},
			{Model: "ctum", Skipped: true},
			// Values beyond YHi clip visually instead of erroring.
			{Model: "2cxm", Values: []float64{0, 0.5, 0.9, 1.2, 1.4}},
		},
	}

	data, err := r.RenderCurves(bundle, 400, 300)
	if err != nil {
		t.Fatalf("RenderCurves: %v", err)
	}
	if w, h := decodeSize(t, data); w != 400 || h != 300 {
		t.Errorf("size = %dx%d", w, h)
	}

	if _, err := r.RenderCurves(&view.CurveBundle{}, 100, 100); err == nil {
		t.Error("empty time grid must be rejected")
	}
}
