package view

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/droview/server/internal/data/dro"
)

// ColorBounds is the display range for a continuous map.
type ColorBounds struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// boundsQuantile is the robust upper color bound: the 90th percentile of
// the finite map values, so a handful of outlier fits cannot compress the
// colormap.
const boundsQuantile = 0.90

// ResolveParameterMap derives the displayable map for (model, param): a
// copy of the stored map with the crosshair mask burned in at (x, y), plus
// robust color bounds. The stored map is never mutated. Row 0 is the top of
// the rendered image; orientation is the renderer's concern.
func ResolveParameterMap(ds *dro.Dataset, model, param string, x, y int) (*dro.Grid, ColorBounds, error) {
	g, err := ds.ParameterMap(model, param)
	if err != nil {
		return nil, ColorBounds{}, err
	}

	bounds, err := MapColorBounds(g)
	if err != nil {
		return nil, ColorBounds{}, &EmptyDistributionError{Model: model, Param: param}
	}

	masked := g.Clone()
	applyCrosshair(masked, x, y)
	return masked, bounds, nil
}

// MapColorBounds computes (0, P90 of finite entries). NaN sentinels are
// excluded entirely; a map with no finite entries yields an error.
func MapColorBounds(g *dro.Grid) (ColorBounds, error) {
	finite := make([]float64, 0, len(g.V))
	for _, v := range g.V {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return ColorBounds{}, &EmptyDistributionError{}
	}
	sort.Float64s(finite)
	return ColorBounds{Lo: 0, Hi: stat.Quantile(boundsQuantile, stat.Empirical, finite, nil)}, nil
}

// applyCrosshair zeroes four short segments around (x, y), leaving a
// one-pixel gap next to the center so the cross reads as open. Segments
// falling outside the grid are silently clipped: the mask is cosmetic.
func applyCrosshair(g *dro.Grid, x, y int) {
	set := func(cx, cy int) {
		if cx < 0 || cx >= g.NX || cy < 0 || cy >= g.NY {
			return
		}
		g.Set(cx, cy, 0)
	}
	for _, dx := range []int{-3, -2, 2, 3} {
		set(x+dx, y)
	}
	for _, dy := range []int{-3, -2, 2, 3} {
		set(x, y+dy)
	}
}

// Undefined is the category emitted where every model's RSS is the invalid
// sentinel. It is distinct from every model index, so "no fit anywhere"
// never masquerades as the first model winning.
const Undefined = -1

// CategoryGrid is a 2D array of small integer categories.
type CategoryGrid struct {
	NX, NY int
	V      []int
}

// At returns the category at voxel (x, y).
func (g *CategoryGrid) At(x, y int) int { return g.V[x*g.NY+y] }

// ResolveBestModelMap stacks each model's RSS map in the given canonical
// order and emits, per voxel, the index of the minimum. NaN ranks as +Inf
// when at least one model is valid; an all-NaN voxel emits Undefined. Ties
// go to the earlier model in canonical order. The order is the registry's
// canonical one, independent of the analyst's selection.
func ResolveBestModelMap(ds *dro.Dataset, order []string) (*CategoryGrid, error) {
	maps := make([]*dro.Grid, len(order))
	for i, m := range order {
		g, err := ds.ResidualMap(m)
		if err != nil {
			return nil, err
		}
		maps[i] = g
	}

	out := &CategoryGrid{NX: ds.NX, NY: ds.NY, V: make([]int, ds.NX*ds.NY)}
	for i := range out.V {
		best := Undefined
		bestRSS := math.Inf(1)
		for k, g := range maps {
			v := g.V[i]
			if math.IsNaN(v) {
				continue
			}
			if v < bestRSS {
				bestRSS = v
				best = k
			}
		}
		out.V[i] = best
	}
	return out, nil
}

// CategoryCounts tallies voxels per category in out, keyed by canonical
// index; Undefined voxels are keyed by Undefined. Used for the legend.
func CategoryCounts(g *CategoryGrid, nCategories int) map[int]int {
	counts := make(map[int]int, nCategories+1)
	for _, c := range g.V {
		counts[c]++
	}
	return counts
}
