// Package dro holds the in-memory representation of a Digital Reference
// Object study: the time grid, arterial input function, measured
// concentration volume, and per-model fitted parameter and residual maps.
package dro

import (
	"fmt"
	"math"
)

// Grid is a 2D array over the spatial voxel grid, indexed (x, y).
type Grid struct {
	NX, NY int
	V      []float64
}

// NewGrid allocates a zero-filled grid.
func NewGrid(nx, ny int) *Grid {
	return &Grid{NX: nx, NY: ny, V: make([]float64, nx*ny)}
}

// At returns the value at voxel (x, y). Callers must bounds-check first.
func (g *Grid) At(x, y int) float64 { return g.V[x*g.NY+y] }

// Set stores v at voxel (x, y).
func (g *Grid) Set(x, y int, v float64) { g.V[x*g.NY+y] = v }

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{NX: g.NX, NY: g.NY, V: make([]float64, len(g.V))}
	copy(out.V, g.V)
	return out
}

// ModelSpec declares one model's name and its ordered parameter list.
type ModelSpec struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
}

// Dataset is the immutable loaded study. Constructed once at startup and
// never mutated; resolvers treat it as read-only.
type Dataset struct {
	Name string

	NX, NY, NT int

	time []float64
	aif  []float64
	conc []float64 // (x*NY+y)*NT + t

	models []ModelSpec
	params map[string]map[string]*Grid
	rss    map[string]*Grid
}

// Components carries the raw arrays handed to NewDataset. The loader fills
// it from disk; tests fill it directly.
type Components struct {
	Name          string
	NX, NY, NT    int
	Time          []float64
	AIF           []float64
	Concentration []float64
	Models        []ModelSpec
	Params        map[string]map[string]*Grid
	RSS           map[string]*Grid
}

// NewDataset validates the components and assembles the dataset. Any shape
// disagreement aborts construction: a partially consistent dataset is never
// usable.
func NewDataset(c Components) (*Dataset, error) {
	if c.NX <= 0 || c.NY <= 0 || c.NT <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", c.NX, c.NY, c.NT)
	}
	if len(c.Time) != c.NT {
		return nil, &ShapeMismatchError{Array: "time_minutes", Got: len(c.Time), Want: c.NT}
	}
	if len(c.AIF) != c.NT {
		return nil, &ShapeMismatchError{Array: "aif", Got: len(c.AIF), Want: c.NT}
	}
	for i := 1; i < c.NT; i++ {
		if !(c.Time[i] > c.Time[i-1]) {
			return nil, fmt.Errorf("time grid not monotonic at index %d", i)
		}
	}
	if len(c.Concentration) != c.NX*c.NY*c.NT {
		return nil, &ShapeMismatchError{Array: "concentration", Got: len(c.Concentration), Want: c.NX * c.NY * c.NT}
	}
	if len(c.Models) == 0 {
		return nil, fmt.Errorf("study declares no models")
	}

	nSpatial := c.NX * c.NY
	for _, m := range c.Models {
		if len(m.Parameters) == 0 {
			return nil, fmt.Errorf("model %s declares no parameters", m.Name)
		}
		maps, ok := c.Params[m.Name]
		if !ok {
			return nil, fmt.Errorf("model %s has no parameter maps", m.Name)
		}
		for _, p := range m.Parameters {
			g, ok := maps[p]
			if !ok {
				return nil, fmt.Errorf("model %s missing map for parameter %s", m.Name, p)
			}
			if g.NX != c.NX || g.NY != c.NY || len(g.V) != nSpatial {
				return nil, &ShapeMismatchError{Array: m.Name + "/" + p, Got: len(g.V), Want: nSpatial}
			}
		}
		r, ok := c.RSS[m.Name]
		if !ok {
			return nil, fmt.Errorf("model %s has no residual map", m.Name)
		}
		if r.NX != c.NX || r.NY != c.NY || len(r.V) != nSpatial {
			return nil, &ShapeMismatchError{Array: m.Name + "/rss", Got: len(r.V), Want: nSpatial}
		}
		for _, v := range r.V {
			if !math.IsNaN(v) && v < 0 {
				return nil, fmt.Errorf("model %s has negative RSS %g", m.Name, v)
			}
		}
	}

	return &Dataset{
		Name:   c.Name,
		NX:     c.NX,
		NY:     c.NY,
		NT:     c.NT,
		time:   c.Time,
		aif:    c.AIF,
		conc:   c.Concentration,
		models: c.Models,
		params: c.Params,
		rss:    c.RSS,
	}, nil
}

// Time returns the acquisition time grid in minutes.
func (d *Dataset) Time() []float64 { return d.time }

// AIF returns the arterial input function, aligned with Time.
func (d *Dataset) AIF() []float64 { return d.aif }

// Models returns the study's model specs in declaration order.
func (d *Dataset) Models() []ModelSpec { return d.models }

// ModelSpecFor returns the spec for a named model.
func (d *Dataset) ModelSpecFor(model string) (ModelSpec, error) {
	for _, m := range d.models {
		if m.Name == model {
			return m, nil
		}
	}
	return ModelSpec{}, &UnknownModelError{Model: model}
}

// TimeSeriesAt returns a copy of the measured concentration curve at a voxel.
func (d *Dataset) TimeSeriesAt(x, y int) ([]float64, error) {
	if x < 0 || x >= d.NX || y < 0 || y >= d.NY {
		return nil, &OutOfRangeError{X: x, Y: y, NX: d.NX, NY: d.NY}
	}
	base := (x*d.NY + y) * d.NT
	out := make([]float64, d.NT)
	copy(out, d.conc[base:base+d.NT])
	return out, nil
}

// ParameterMap returns the fitted map for (model, param). The returned grid
// is the stored one: callers must not mutate it.
func (d *Dataset) ParameterMap(model, param string) (*Grid, error) {
	spec, err := d.ModelSpecFor(model)
	if err != nil {
		return nil, err
	}
	for _, p := range spec.Parameters {
		if p == param {
			return d.params[model][param], nil
		}
	}
	return nil, &UnknownParameterError{Model: model, Param: param}
}

// ResidualMap returns the RSS map for a model.
func (d *Dataset) ResidualMap(model string) (*Grid, error) {
	if _, err := d.ModelSpecFor(model); err != nil {
		return nil, err
	}
	return d.rss[model], nil
}

// ParametersAt reads every parameter of a model at one voxel, in spec order.
func (d *Dataset) ParametersAt(model string, x, y int) ([]float64, error) {
	spec, err := d.ModelSpecFor(model)
	if err != nil {
		return nil, err
	}
	if x < 0 || x >= d.NX || y < 0 || y >= d.NY {
		return nil, &OutOfRangeError{X: x, Y: y, NX: d.NX, NY: d.NY}
	}
	out := make([]float64, len(spec.Parameters))
	for i, p := range spec.Parameters {
		out[i] = d.params[model][p].At(x, y)
	}
	return out, nil
}
