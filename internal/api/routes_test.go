package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/droview/server/internal/cache"
	"github.com/droview/server/internal/data/dro"
	"github.com/droview/server/internal/pk"
	"github.com/droview/server/internal/render"
	"github.com/droview/server/internal/service"
)

// setupTestServer builds a router around a small synthetic study.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	nx, ny, nt := 12, 10, 6
	conc := make([]float64, nx*ny*nt)
	for i := range conc {
		conc[i] = 0.05 * float64(i%nt)
	}

	reg := pk.NewRegistry()
	specs := make([]dro.ModelSpec, 0, 4)
	params := make(map[string]map[string]*dro.Grid)
	rss := make(map[string]*dro.Grid)
	defaults := map[string]float64{"fp": 0.4, "ps": 0.1, "ve": 0.3, "vp": 0.08, "ktrans": 0.25}

	for mi, m := range reg.Models() {
		specs = append(specs, dro.ModelSpec{Name: m.Name, Parameters: m.Parameters})
		maps := make(map[string]*dro.Grid)
		for _, p := range m.Parameters {
			g := dro.NewGrid(nx, ny)
			for i := range g.V {
				g.V[i] = defaults[p]
			}
			maps[p] = g
		}
		params[m.Name] = maps

		r := dro.NewGrid(nx, ny)
		for i := range r.V {
			r.V[i] = 0.1 * float64(mi+1)
		}
		rss[m.Name] = r
	}

	// ctum's fp fit failed at (5,5): its curve must be skipped there.
	params["ctum"]["fp"].Set(5, 5, math.NaN())

	ds, err := dro.NewDataset(dro.Components{
		Name:          "api-study",
		NX:            nx,
		NY:            ny,
		NT:            nt,
		Time:          []float64{0, 0.5, 1, 1.5, 2, 2.5},
		AIF:           []float64{0, 1.2, 0.9, 0.7, 0.6, 0.5},
		Concentration: conc,
		Models:        specs,
		Params:        params,
		RSS:           rss,
	})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}

	cm, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: 8,
		ImageTTL:         time.Minute,
		DerivedCacheSize: 32,
	})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(func() { cm.Close() })

	viewer := service.NewViewerService(service.ViewerServiceConfig{
		Dataset:         ds,
		Registry:        reg,
		Cache:           cm,
		Renderer:        render.NewRenderer(render.Config{DefaultColormap: "viridis"}),
		FigureWidth:     320,
		FigureHeight:    240,
		DefaultColormap: "viridis",
	})

	router := NewRouter(RouterConfig{
		Viewer:      viewer,
		CORSOrigins: []string{"http://localhost:3000"},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, server *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func assertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

func assertPNG(t *testing.T, body []byte) {
	t.Helper()
	if !bytes.HasPrefix(body, []byte{0x89, 'P', 'N', 'G'}) {
		t.Error("response body is not a PNG")
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(t)
	resp, body := get(t, server, "/health")
	assertStatusCode(t, resp, http.StatusOK)
	if string(body) != "OK" {
		t.Errorf("body = %q", body)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	server := setupTestServer(t)
	resp, body := get(t, server, "/api/metadata")
	assertStatusCode(t, resp, http.StatusOK)

	var md struct {
		Name           string   `json:"name"`
		NX             int      `json:"nx"`
		NY             int      `json:"ny"`
		CanonicalOrder []string `json:"canonical_order"`
	}
	if err := json.Unmarshal(body, &md); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if md.Name != "api-study" || md.NX != 12 || md.NY != 10 {
		t.Errorf("metadata = %+v", md)
	}
	want := []string{"2cxm", "etm", "ctum", "tofts"}
	if fmt.Sprint(md.CanonicalOrder) != fmt.Sprint(want) {
		t.Errorf("canonical_order = %v, want %v", md.CanonicalOrder, want)
	}
}

func TestModelsEndpoint(t *testing.T) {
	server := setupTestServer(t)
	resp, body := get(t, server, "/api/models")
	assertStatusCode(t, resp, http.StatusOK)

	var out struct {
		Models []dro.ModelSpec `json:"models"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Models) != 4 {
		t.Errorf("models = %d, want 4", len(out.Models))
	}
}

func TestParameterMapEndpoint(t *testing.T) {
	server := setupTestServer(t)

	resp, body := get(t, server, "/maps/parameter/tofts/ktrans.png?x=5&y=5")
	assertStatusCode(t, resp, http.StatusOK)
	assertPNG(t, body)

	t.Run("edgeVoxelRejected", func(t *testing.T) {
		resp, _ := get(t, server, "/maps/parameter/tofts/ktrans.png?x=0&y=5")
		assertStatusCode(t, resp, http.StatusBadRequest)
	})

	t.Run("missingVoxelRejected", func(t *testing.T) {
		resp, _ := get(t, server, "/maps/parameter/tofts/ktrans.png")
		assertStatusCode(t, resp, http.StatusBadRequest)
	})

	t.Run("unknownModel", func(t *testing.T) {
		resp, _ := get(t, server, "/maps/parameter/patlak/ktrans.png?x=5&y=5")
		assertStatusCode(t, resp, http.StatusNotFound)
	})

	t.Run("unknownParameter", func(t *testing.T) {
		resp, _ := get(t, server, "/maps/parameter/tofts/fp.png?x=5&y=5")
		assertStatusCode(t, resp, http.StatusNotFound)
	})

	t.Run("customSizeAndColormap", func(t *testing.T) {
		resp, body := get(t, server, "/maps/parameter/tofts/ktrans.png?x=5&y=5&w=200&h=150&cmap=plasma")
		assertStatusCode(t, resp, http.StatusOK)
		assertPNG(t, body)
	})
}

func TestParameterBoundsEndpoint(t *testing.T) {
	server := setupTestServer(t)
	resp, body := get(t, server, "/api/parameter_bounds/etm/ktrans")
	assertStatusCode(t, resp, http.StatusOK)

	var out struct {
		Bounds struct {
			Lo float64 `json:"lo"`
			Hi float64 `json:"hi"`
		} `json:"bounds"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Bounds.Hi != 0.25 {
		t.Errorf("hi = %g, want 0.25", out.Bounds.Hi)
	}

	resp, _ = get(t, server, "/api/parameter_bounds/patlak/ktrans")
	assertStatusCode(t, resp, http.StatusNotFound)
}

func TestResidualAndBestMapEndpoints(t *testing.T) {
	server := setupTestServer(t)

	resp, body := get(t, server, "/maps/rss/2cxm.png?cmap=gray")
	assertStatusCode(t, resp, http.StatusOK)
	assertPNG(t, body)

	resp, body = get(t, server, "/maps/best.png")
	assertStatusCode(t, resp, http.StatusOK)
	assertPNG(t, body)

	resp, _ = get(t, server, "/maps/rss/patlak.png")
	assertStatusCode(t, resp, http.StatusNotFound)
}

func TestBestSummaryEndpoint(t *testing.T) {
	server := setupTestServer(t)
	resp, body := get(t, server, "/api/best_summary")
	assertStatusCode(t, resp, http.StatusOK)

	var out struct {
		Items []struct {
			Model  string `json:"model"`
			Voxels int    `json:"voxels"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 5 {
		t.Fatalf("items = %d, want 4 models + undefined", len(out.Items))
	}
	total := 0
	for _, it := range out.Items {
		total += it.Voxels
	}
	if total != 12*10 {
		t.Errorf("voxel counts sum to %d, want %d", total, 12*10)
	}
}

func TestCurvesEndpoint(t *testing.T) {
	server := setupTestServer(t)

	resp, body := get(t, server, "/api/curves?x=5&y=5")
	assertStatusCode(t, resp, http.StatusOK)

	var out struct {
		Time     []float64 `json:"time"`
		Observed []float64 `json:"observed"`
		Curves   []struct {
			Model   string    `json:"model"`
			Skipped bool      `json:"skipped"`
			Values  []float64 `json:"values"`
			Error   string    `json:"error"`
		} `json:"curves"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Time) != 6 || len(out.Observed) != 6 {
		t.Errorf("time/observed lengths = %d/%d", len(out.Time), len(out.Observed))
	}
	if len(out.Curves) != 4 {
		t.Fatalf("curves = %d, want all 4 study models", len(out.Curves))
	}
	for _, c := range out.Curves {
		if c.Model == "ctum" {
			if !c.Skipped || len(c.Values) != 0 {
				t.Errorf("ctum must be skipped at (5,5): %+v", c)
			}
		} else if c.Skipped || len(c.Values) != 6 {
			t.Errorf("%s must carry a fitted curve: %+v", c.Model, c)
		}
	}

	t.Run("modelSubset", func(t *testing.T) {
		resp, body := get(t, server, "/api/curves?x=5&y=5&models=tofts,etm")
		assertStatusCode(t, resp, http.StatusOK)
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(out.Curves) != 2 || out.Curves[0].Model != "tofts" || out.Curves[1].Model != "etm" {
			t.Errorf("subset/order not honored: %+v", out.Curves)
		}
	})

	t.Run("unknownModel", func(t *testing.T) {
		resp, _ := get(t, server, "/api/curves?x=5&y=5&models=patlak")
		assertStatusCode(t, resp, http.StatusNotFound)
	})

	t.Run("edgeVoxel", func(t *testing.T) {
		resp, _ := get(t, server, "/api/curves?x=1&y=5")
		assertStatusCode(t, resp, http.StatusBadRequest)
	})
}

func TestCurvesFigureEndpoint(t *testing.T) {
	server := setupTestServer(t)
	resp, body := get(t, server, "/curves.png?x=5&y=5&models=tofts&w=400&h=300")
	assertStatusCode(t, resp, http.StatusOK)
	assertPNG(t, body)
}
