// Package service wires the resolvers, renderer, and caches into the
// operations the API exposes.
package service

import (
	"encoding/json"
	"sync"

	"github.com/droview/server/internal/cache"
	"github.com/droview/server/internal/data/dro"
	"github.com/droview/server/internal/pk"
	"github.com/droview/server/internal/render"
	"github.com/droview/server/internal/view"
	"github.com/droview/server/pkg/colormap"
)

// ViewerServiceConfig contains viewer service configuration.
type ViewerServiceConfig struct {
	Dataset         *dro.Dataset
	Registry        *pk.Registry
	Cache           *cache.Manager
	Renderer        *render.Renderer
	FigureWidth     int
	FigureHeight    int
	DefaultColormap string
}

// ViewerService handles figure rendering and serving for one study.
type ViewerService struct {
	ds       *dro.Dataset
	registry *pk.Registry
	cache    *cache.Manager
	renderer *render.Renderer

	figW, figH int
	cmap       string

	// The best-model map depends only on the dataset; compute it once.
	bestOnce sync.Once
	best     *view.CategoryGrid
	bestErr  error
}

// NewViewerService creates a viewer service.
func NewViewerService(cfg ViewerServiceConfig) *ViewerService {
	return &ViewerService{
		ds:       cfg.Dataset,
		registry: cfg.Registry,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
		figW:     cfg.FigureWidth,
		figH:     cfg.FigureHeight,
		cmap:     cfg.DefaultColormap,
	}
}

// Dataset returns the loaded study.
func (s *ViewerService) Dataset() *dro.Dataset { return s.ds }

// Registry returns the model registry.
func (s *ViewerService) Registry() *pk.Registry { return s.registry }

// DefaultSelection returns the startup selection state.
func (s *ViewerService) DefaultSelection() view.Selection {
	return view.DefaultSelection(s.ds, s.figW, s.figH)
}

func (s *ViewerService) figure(w, h int) (int, int) {
	if w <= 0 {
		w = s.figW
	}
	if h <= 0 {
		h = s.figH
	}
	return w, h
}

func (s *ViewerService) colormapName(name string) string {
	if name == "" {
		return s.cmap
	}
	return name
}

// ParameterMapPNG renders the crosshair-masked parameter map for the
// primary model at the selected voxel.
func (s *ViewerService) ParameterMapPNG(model, param string, x, y, w, h int, cmapName string) ([]byte, error) {
	w, h = s.figure(w, h)
	cmapName = s.colormapName(cmapName)

	key := cache.ParameterMapKey(model, param, x, y, w, h, cmapName)
	if data, ok := s.cache.GetImage(key); ok {
		return data, nil
	}

	if err := view.CheckVoxel(s.ds, x, y); err != nil {
		return nil, err
	}
	masked, bounds, err := view.ResolveParameterMap(s.ds, model, param, x, y)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.RenderHeatmap(masked, bounds, cmapName, w, h)
	if err != nil {
		return nil, err
	}
	s.cache.SetImage(key, data)
	return data, nil
}

// ParameterBounds returns the robust color bounds for a parameter map. The
// result goes through the derived cache: bounds are per-map constants.
func (s *ViewerService) ParameterBounds(model, param string) (view.ColorBounds, error) {
	key := "bounds:" + model + "/" + param
	if data, ok := s.cache.GetDerived(key); ok {
		var b view.ColorBounds
		if err := json.Unmarshal(data, &b); err == nil {
			return b, nil
		}
	}

	g, err := s.ds.ParameterMap(model, param)
	if err != nil {
		return view.ColorBounds{}, err
	}
	b, err := view.MapColorBounds(g)
	if err != nil {
		return view.ColorBounds{}, &view.EmptyDistributionError{Model: model, Param: param}
	}
	if data, err := json.Marshal(b); err == nil {
		s.cache.SetDerived(key, data)
	}
	return b, nil
}

// ResidualMapPNG renders one model's RSS panel. No crosshair: the RSS
// panel is a fixed overview, not tied to the selected voxel.
func (s *ViewerService) ResidualMapPNG(model string, w, h int, cmapName string) ([]byte, error) {
	w, h = s.figure(w, h)
	cmapName = s.colormapName(cmapName)

	key := cache.ResidualMapKey(model, w, h, cmapName)
	if data, ok := s.cache.GetImage(key); ok {
		return data, nil
	}

	g, err := s.ds.ResidualMap(model)
	if err != nil {
		return nil, err
	}
	bounds, err := view.MapColorBounds(g)
	if err != nil {
		return nil, &view.EmptyDistributionError{Model: model, Param: "rss"}
	}

	data, err := s.renderer.RenderHeatmap(g, bounds, cmapName, w, h)
	if err != nil {
		return nil, err
	}
	s.cache.SetImage(key, data)
	return data, nil
}

func (s *ViewerService) bestModelMap() (*view.CategoryGrid, error) {
	s.bestOnce.Do(func() {
		s.best, s.bestErr = view.ResolveBestModelMap(s.ds, s.registry.CanonicalOrder())
	})
	return s.best, s.bestErr
}

// BestModelPNG renders the categorical lowest-RSS map. It always compares
// the full canonical registry, independent of the analyst's selection.
func (s *ViewerService) BestModelPNG(w, h int) ([]byte, error) {
	w, h = s.figure(w, h)

	key := cache.BestModelKey(w, h)
	if data, ok := s.cache.GetImage(key); ok {
		return data, nil
	}

	best, err := s.bestModelMap()
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.RenderCategoryMap(best, w, h)
	if err != nil {
		return nil, err
	}
	s.cache.SetImage(key, data)
	return data, nil
}

// BestSummaryItem is one legend entry of the best-model map.
type BestSummaryItem struct {
	Model  string `json:"model"`
	Index  int    `json:"index"`
	Color  string `json:"color"`
	Voxels int    `json:"voxels"`
}

// BestSummary returns per-category voxel counts for the best-model map,
// including the undefined category.
func (s *ViewerService) BestSummary() ([]BestSummaryItem, error) {
	best, err := s.bestModelMap()
	if err != nil {
		return nil, err
	}

	order := s.registry.CanonicalOrder()
	counts := view.CategoryCounts(best, len(order))

	out := make([]BestSummaryItem, 0, len(order)+1)
	for i, name := range order {
		out = append(out, BestSummaryItem{
			Model:  name,
			Index:  i,
			Color:  colormap.Models.HexAtIndex(i),
			Voxels: counts[i],
		})
	}
	out = append(out, BestSummaryItem{
		Model:  "undefined",
		Index:  view.Undefined,
		Color:  colormap.Models.HexAtIndex(view.Undefined),
		Voxels: counts[view.Undefined],
	})
	return out, nil
}

// Curves composes the observed and fitted curve bundle at a voxel. An
// empty model list means every study model in declaration order.
func (s *ViewerService) Curves(x, y int, models []string) (*view.CurveBundle, error) {
	if err := view.CheckVoxel(s.ds, x, y); err != nil {
		return nil, err
	}
	if len(models) == 0 {
		for _, m := range s.ds.Models() {
			models = append(models, m.Name)
		}
	}
	return view.ComposeCurves(s.ds, s.registry, models, x, y)
}

// CurvesPNG renders the curve bundle as a figure.
func (s *ViewerService) CurvesPNG(x, y int, models []string, w, h int) ([]byte, error) {
	w, h = s.figure(w, h)

	key := cache.CurveKey(x, y, models, w, h)
	if data, ok := s.cache.GetImage(key); ok {
		return data, nil
	}

	bundle, err := s.Curves(x, y, models)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.RenderCurves(bundle, w, h)
	if err != nil {
		return nil, err
	}
	s.cache.SetImage(key, data)
	return data, nil
}

// Metadata describes the study and default selection for the UI.
type Metadata struct {
	Name             string          `json:"name"`
	NX               int             `json:"nx"`
	NY               int             `json:"ny"`
	NT               int             `json:"nt"`
	VoxelMin         int             `json:"voxel_min"`
	VoxelMaxX        int             `json:"voxel_max_x"`
	VoxelMaxY        int             `json:"voxel_max_y"`
	Models           []dro.ModelSpec `json:"models"`
	CanonicalOrder   []string        `json:"canonical_order"`
	DefaultSelection view.Selection  `json:"default_selection"`
}

// Metadata returns the study description.
func (s *ViewerService) Metadata() Metadata {
	return Metadata{
		Name:             s.ds.Name,
		NX:               s.ds.NX,
		NY:               s.ds.NY,
		NT:               s.ds.NT,
		VoxelMin:         view.EdgeMargin,
		VoxelMaxX:        s.ds.NX - view.EdgeMargin,
		VoxelMaxY:        s.ds.NY - view.EdgeMargin,
		Models:           s.ds.Models(),
		CanonicalOrder:   s.registry.CanonicalOrder(),
		DefaultSelection: s.DefaultSelection(),
	}
}

// MetadataJSON returns the metadata serialized once through the derived
// cache, since it never changes after load.
func (s *ViewerService) MetadataJSON() ([]byte, error) {
	if data, ok := s.cache.GetDerived("metadata"); ok {
		return data, nil
	}
	data, err := json.Marshal(s.Metadata())
	if err != nil {
		return nil, err
	}
	s.cache.SetDerived("metadata", data)
	return data, nil
}
