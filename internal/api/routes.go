// Package api provides HTTP handlers for the DRO viewer server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/droview/server/internal/data/dro"
	"github.com/droview/server/internal/service"
	"github.com/droview/server/internal/view"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Viewer      *service.ViewerService
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	svc := cfg.Viewer

	r.Route("/api", func(r chi.Router) {
		r.Get("/metadata", metadataHandler(svc))
		r.Get("/models", modelsHandler(svc))
		r.Get("/parameter_bounds/{model}/{param}", parameterBoundsHandler(svc))
		r.Get("/best_summary", bestSummaryHandler(svc))
		r.Get("/curves", curvesHandler(svc))
	})

	r.Route("/maps", func(r chi.Router) {
		// NOTE: chi treats '.' as a param delimiter when the route pattern is
		// `{param}.png`, so also register routes that capture the full
		// segment and strip the extension in the handler.
		r.Get("/parameter/{model}/{param}.png", parameterMapHandler(svc))
		r.Get("/parameter/{model}/{param}", parameterMapHandler(svc))
		r.Get("/rss/{model}.png", residualMapHandler(svc))
		r.Get("/rss/{model}", residualMapHandler(svc))
		r.Get("/best.png", bestModelMapHandler(svc))
	})

	r.Get("/curves.png", curvesFigureHandler(svc))

	return r
}

// writeError maps the viewer error taxonomy onto HTTP status codes:
// bad coordinates are the client's fault, unknown names are missing
// resources, and an all-sentinel map is unprocessable.
func writeError(w http.ResponseWriter, err error) {
	var (
		oor   *dro.OutOfRangeError
		um    *dro.UnknownModelError
		up    *dro.UnknownParameterError
		empty *view.EmptyDistributionError
	)
	switch {
	case errors.As(err, &oor):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &um), errors.As(err, &up):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &empty):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// parseVoxel reads the required x and y query parameters.
func parseVoxel(query url.Values) (int, int, error) {
	x, err := strconv.Atoi(strings.TrimSpace(query.Get("x")))
	if err != nil {
		return 0, 0, errors.New("missing or invalid query param: x")
	}
	y, err := strconv.Atoi(strings.TrimSpace(query.Get("y")))
	if err != nil {
		return 0, 0, errors.New("missing or invalid query param: y")
	}
	return x, y, nil
}

// parseFigureSize reads the optional w and h query parameters. Zero means
// "use the configured default"; the service resolves that.
func parseFigureSize(query url.Values) (int, int, error) {
	w, h := 0, 0
	if s := strings.TrimSpace(query.Get("w")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return 0, 0, errors.New("invalid query param: w")
		}
		w = v
	}
	if s := strings.TrimSpace(query.Get("h")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return 0, 0, errors.New("invalid query param: h")
		}
		h = v
	}
	return w, h, nil
}

// parseModels reads the optional comma-separated models query parameter.
// Empty means every study model.
func parseModels(query url.Values) []string {
	raw := strings.TrimSpace(query.Get("models"))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func metadataHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.MetadataJSON()
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func modelsHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"models":          svc.Dataset().Models(),
			"canonical_order": svc.Registry().CanonicalOrder(),
		})
	}
}

func parameterMapHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := chi.URLParam(r, "model")
		param := strings.TrimSuffix(chi.URLParam(r, "param"), ".png")

		x, y, err := parseVoxel(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fw, fh, err := parseFigureSize(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmap := strings.TrimSpace(r.URL.Query().Get("cmap"))

		data, err := svc.ParameterMapPNG(model, param, x, y, fw, fh, cmap)
		if err != nil {
			writeError(w, err)
			return
		}
		writePNG(w, data)
	}
}

func parameterBoundsHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := chi.URLParam(r, "model")
		param := chi.URLParam(r, "param")

		bounds, err := svc.ParameterBounds(model, param)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{
			"model":  model,
			"param":  param,
			"bounds": bounds,
		})
	}
}

func residualMapHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := strings.TrimSuffix(chi.URLParam(r, "model"), ".png")

		fw, fh, err := parseFigureSize(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmap := strings.TrimSpace(r.URL.Query().Get("cmap"))

		data, err := svc.ResidualMapPNG(model, fw, fh, cmap)
		if err != nil {
			writeError(w, err)
			return
		}
		writePNG(w, data)
	}
}

func bestModelMapHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fw, fh, err := parseFigureSize(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, err := svc.BestModelPNG(fw, fh)
		if err != nil {
			writeError(w, err)
			return
		}
		writePNG(w, data)
	}
}

func bestSummaryHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.BestSummary()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{"items": items})
	}
}

// curveItem is one model's entry in the curves JSON response. Evaluation
// failures ride along as an error string instead of failing the request.
type curveItem struct {
	Model   string    `json:"model"`
	Skipped bool      `json:"skipped"`
	Values  []float64 `json:"values,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func curvesHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		x, y, err := parseVoxel(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		models := parseModels(r.URL.Query())

		bundle, err := svc.Curves(x, y, models)
		if err != nil {
			writeError(w, err)
			return
		}

		items := make([]curveItem, len(bundle.Curves))
		for i, c := range bundle.Curves {
			items[i] = curveItem{
				Model:   c.Model,
				Skipped: c.Skipped,
				Values:  c.Values,
			}
			if c.EvalErr != nil {
				items[i].Error = c.EvalErr.Error()
			}
		}

		writeJSON(w, map[string]interface{}{
			"x":        x,
			"y":        y,
			"time":     bundle.Time,
			"observed": bundle.Observed,
			"curves":   items,
		})
	}
}

func curvesFigureHandler(svc *service.ViewerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		x, y, err := parseVoxel(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fw, fh, err := parseFigureSize(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		models := parseModels(r.URL.Query())

		data, err := svc.CurvesPNG(x, y, models, fw, fh)
		if err != nil {
			writeError(w, err)
			return
		}
		writePNG(w, data)
	}
}
