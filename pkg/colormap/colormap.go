// Package colormap provides color schemes for map rendering.
package colormap

import (
	"fmt"
	"image/color"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
}

// Linear interpolates between a fixed set of control colors.
type Linear struct {
	colors []color.RGBA
}

// At returns the color at position t (0-1).
func (c Linear) At(t float64) color.Color {
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return lerp(c.colors[lower], c.colors[upper], frac)
}

func lerp(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// Normalize maps v into [0,1] against [lo, hi], clamping at both ends.
func Normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	t := (v - lo) / (hi - lo)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Viridis colormap (matplotlib viridis)
var Viridis = Linear{
	colors: []color.RGBA{
		{68, 1, 84, 255},
		{72, 35, 116, 255},
		{64, 67, 135, 255},
		{52, 94, 141, 255},
		{41, 120, 142, 255},
		{32, 144, 140, 255},
		{34, 167, 132, 255},
		{68, 190, 112, 255},
		{121, 209, 81, 255},
		{189, 222, 38, 255},
		{253, 231, 37, 255},
	},
}

// Plasma colormap
var Plasma = Linear{
	colors: []color.RGBA{
		{13, 8, 135, 255},
		{75, 3, 161, 255},
		{125, 3, 168, 255},
		{168, 34, 150, 255},
		{203, 70, 121, 255},
		{229, 107, 93, 255},
		{248, 148, 65, 255},
		{253, 195, 40, 255},
		{240, 249, 33, 255},
	},
}

// Inferno colormap
var Inferno = Linear{
	colors: []color.RGBA{
		{0, 0, 4, 255},
		{40, 11, 84, 255},
		{101, 21, 110, 255},
		{159, 42, 99, 255},
		{212, 72, 66, 255},
		{245, 125, 21, 255},
		{250, 193, 39, 255},
		{252, 255, 164, 255},
	},
}

// Gray is a plain grayscale ramp, the conventional choice for RSS panels.
var Gray = Linear{
	colors: []color.RGBA{
		{0, 0, 0, 255},
		{255, 255, 255, 255},
	},
}

// ByName resolves a colormap by its lowercase name.
func ByName(name string) (Colormap, bool) {
	switch name {
	case "viridis":
		return Viridis, true
	case "plasma":
		return Plasma, true
	case "inferno":
		return Inferno, true
	case "gray", "grey":
		return Gray, true
	default:
		return nil, false
	}
}

// Categorical assigns distinct colors to small integer categories.
// Negative categories get Undefined.
type Categorical struct {
	colors    []color.RGBA
	undefined color.RGBA
}

// AtIndex returns the color for category i (wraps around); negative i
// returns the undefined color.
func (c Categorical) AtIndex(i int) color.Color {
	if i < 0 {
		return c.undefined
	}
	return c.colors[i%len(c.colors)]
}

// Undefined returns the color used for undefined categories.
func (c Categorical) Undefined() color.Color {
	return c.undefined
}

// HexAtIndex returns the category color as a #rrggbb string, for legends.
func (c Categorical) HexAtIndex(i int) string {
	var rgba color.RGBA
	if i < 0 {
		rgba = c.undefined
	} else {
		rgba = c.colors[i%len(c.colors)]
	}
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}

// Models is the categorical palette for per-model maps. The first ten
// entries match the conventional tab10 cycle so model colors agree between
// the best-model map and the curve plot.
var Models = Categorical{
	colors: []color.RGBA{
		{31, 119, 180, 255},  // Blue
		{255, 127, 14, 255},  // Orange
		{44, 160, 44, 255},   // Green
		{214, 39, 40, 255},   // Red
		{148, 103, 189, 255}, // Purple
		{140, 86, 75, 255},   // Brown
		{227, 119, 194, 255}, // Pink
		{127, 127, 127, 255}, // Gray
		{188, 189, 34, 255},  // Olive
		{23, 190, 207, 255},  // Cyan
	},
	undefined: color.RGBA{230, 230, 230, 255},
}
