// Package view derives everything the renderer draws from an immutable
// (Dataset, Selection) snapshot: the masked parameter map with its color
// bounds, the best-model categorical map, and the observed/fitted curve
// bundle. Every function here is pure; nothing retains state between calls.
package view

import (
	"fmt"

	"github.com/droview/server/internal/data/dro"
)

// EdgeMargin keeps the selected voxel far enough from the image edge for
// the crosshair mask. Valid coordinates are [EdgeMargin, dim-EdgeMargin).
const EdgeMargin = 3

// Selection is the analyst's current choice set. It is produced by the UI
// boundary and read-only to the resolvers. The first model is privileged as
// the primary one: the parameter-map view shows its parameter.
type Selection struct {
	Models    []string `json:"models"`
	Param     string   `json:"param"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	FigWidth  int      `json:"fig_width"`
	FigHeight int      `json:"fig_height"`
}

// DefaultSelection is the startup state: the middle voxel, every study
// model in declaration order, and the last parameter of the primary model.
func DefaultSelection(ds *dro.Dataset, figW, figH int) Selection {
	models := ds.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	params := models[0].Parameters
	return Selection{
		Models:    names,
		Param:     params[len(params)-1],
		X:         ds.NX / 2,
		Y:         ds.NY / 2,
		FigWidth:  figW,
		FigHeight: figH,
	}
}

// Validate checks the selection against the dataset's invariants.
func (s Selection) Validate(ds *dro.Dataset) error {
	if len(s.Models) == 0 {
		return fmt.Errorf("selection has no models")
	}
	for _, m := range s.Models {
		if _, err := ds.ModelSpecFor(m); err != nil {
			return err
		}
	}
	primary, _ := ds.ModelSpecFor(s.Models[0])
	if s.Param != "" {
		found := false
		for _, p := range primary.Parameters {
			if p == s.Param {
				found = true
				break
			}
		}
		if !found {
			return &dro.UnknownParameterError{Model: primary.Name, Param: s.Param}
		}
	}
	if err := CheckVoxel(ds, s.X, s.Y); err != nil {
		return err
	}
	if s.FigWidth <= 0 || s.FigHeight <= 0 {
		return fmt.Errorf("figure dimensions must be positive, got %dx%d", s.FigWidth, s.FigHeight)
	}
	return nil
}

// CheckVoxel enforces the [EdgeMargin, dim-EdgeMargin) coordinate range.
func CheckVoxel(ds *dro.Dataset, x, y int) error {
	if x < EdgeMargin || x >= ds.NX-EdgeMargin || y < EdgeMargin || y >= ds.NY-EdgeMargin {
		return &dro.OutOfRangeError{X: x, Y: y, NX: ds.NX, NY: ds.NY}
	}
	return nil
}
