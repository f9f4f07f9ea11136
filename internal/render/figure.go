// Package render rasterizes resolved maps and curve bundles to PNG using
// fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/droview/server/internal/data/dro"
	"github.com/droview/server/internal/view"
	"github.com/droview/server/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	DefaultColormap string
}

// Renderer paints figures. Figure dimensions come from the selection, so
// contexts are created per call; only encode buffers are pooled.
type Renderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	return &Renderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

var invalidCell = color.RGBA{255, 255, 255, 255}

// RenderHeatmap paints a continuous map with the given color bounds.
// NaN cells render white. Row y=0 is drawn at the top of the image.
func (r *Renderer) RenderHeatmap(g *dro.Grid, bounds view.ColorBounds, cmapName string, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid figure size %dx%d", w, h)
	}
	cmap, ok := colormap.ByName(cmapName)
	if !ok {
		cmap, _ = colormap.ByName(r.config.DefaultColormap)
		if cmap == nil {
			cmap = colormap.Viridis
		}
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	cellW := float64(w) / float64(g.NX)
	cellH := float64(h) / float64(g.NY)
	for x := 0; x < g.NX; x++ {
		for y := 0; y < g.NY; y++ {
			v := g.At(x, y)
			if math.IsNaN(v) {
				dc.SetColor(invalidCell)
			} else {
				dc.SetColor(cmap.At(colormap.Normalize(v, bounds.Lo, bounds.Hi)))
			}
			px := float64(x) * cellW
			py := float64(y) * cellH
			dc.DrawRectangle(px, py, cellW, cellH)
			dc.Fill()
		}
	}

	return r.encodeContext(dc)
}

// RenderCategoryMap paints a categorical map with the model palette;
// undefined categories use the dedicated undefined color.
func (r *Renderer) RenderCategoryMap(g *view.CategoryGrid, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid figure size %dx%d", w, h)
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	cellW := float64(w) / float64(g.NX)
	cellH := float64(h) / float64(g.NY)
	for x := 0; x < g.NX; x++ {
		for y := 0; y < g.NY; y++ {
			dc.SetColor(colormap.Models.AtIndex(g.At(x, y)))
			dc.DrawRectangle(float64(x)*cellW, float64(y)*cellH, cellW, cellH)
			dc.Fill()
		}
	}

	return r.encodeContext(dc)
}

const curveMargin = 40.0

// RenderCurves paints the observed series as points and each available
// fitted curve as a line, colored by its position in the bundle. The y-axis
// follows the bundle's recommended bounds; fitted values outside it clip.
func (r *Renderer) RenderCurves(bundle *view.CurveBundle, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid figure size %dx%d", w, h)
	}
	if len(bundle.Time) == 0 {
		return nil, fmt.Errorf("empty time grid")
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	tLo := bundle.Time[0]
	tHi := bundle.Time[len(bundle.Time)-1]
	yLo, yHi := bundle.YLo, bundle.YHi
	if yHi <= yLo {
		yHi = yLo + 1
	}

	plotW := float64(w) - 2*curveMargin
	plotH := float64(h) - 2*curveMargin
	toPx := func(t, v float64) (float64, float64) {
		px := curveMargin + plotW*(t-tLo)/(tHi-tLo)
		vv := math.Min(math.Max(v, yLo), yHi)
		py := curveMargin + plotH*(1-(vv-yLo)/(yHi-yLo))
		return px, py
	}

	// Axes
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawLine(curveMargin, curveMargin, curveMargin, curveMargin+plotH)
	dc.DrawLine(curveMargin, curveMargin+plotH, curveMargin+plotW, curveMargin+plotH)
	dc.Stroke()

	// Fitted curves in selection order.
	for i, c := range bundle.Curves {
		if c.Skipped || c.EvalErr != nil || len(c.Values) == 0 {
			continue
		}
		dc.SetColor(colormap.Models.AtIndex(i))
		dc.SetLineWidth(2)
		for j, v := range c.Values {
			px, py := toPx(bundle.Time[j], v)
			if j == 0 {
				dc.MoveTo(px, py)
			} else {
				dc.LineTo(px, py)
			}
		}
		dc.Stroke()
	}

	// Observed on top.
	dc.SetColor(color.Black)
	for j, v := range bundle.Observed {
		px, py := toPx(bundle.Time[j], v)
		dc.DrawCircle(px, py, 2.5)
		dc.Fill()
	}

	return r.encodeContext(dc)
}

func (r *Renderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
