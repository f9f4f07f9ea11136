package dro

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeStudy materializes a small on-disk study from components.
func writeStudy(t *testing.T, dir string, c Components) {
	t.Helper()

	meta := studyMeta{
		Name:        c.Name,
		NX:          c.NX,
		NY:          c.NY,
		NT:          c.NT,
		TimeMinutes: c.Time,
		AIF:         c.AIF,
		Conc:        "concentration.f64.zst",
	}
	if err := WriteArray(filepath.Join(dir, meta.Conc), c.Concentration); err != nil {
		t.Fatal(err)
	}

	for _, m := range c.Models {
		mm := modelMeta{
			Name:       m.Name,
			Parameters: m.Parameters,
			ParamFiles: map[string]string{},
			RSSFile:    m.Name + "_rss.f64.zst",
		}
		for _, p := range m.Parameters {
			file := m.Name + "_" + p + ".f64.zst"
			mm.ParamFiles[p] = file
			if err := WriteArray(filepath.Join(dir, file), c.Params[m.Name][p].V); err != nil {
				t.Fatal(err)
			}
		}
		if err := WriteArray(filepath.Join(dir, mm.RSSFile), c.RSS[m.Name].V); err != nil {
			t.Fatal(err)
		}
		meta.Models = append(meta.Models, mm)
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "study.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := testComponents()
	c.Params["tofts"]["ktrans"].Set(2, 1, math.NaN())
	writeStudy(t, dir, c)

	ds, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Name != "synthetic" || ds.NX != 4 || ds.NY != 3 || ds.NT != 5 {
		t.Errorf("metadata mismatch: %s %dx%dx%d", ds.Name, ds.NX, ds.NY, ds.NT)
	}

	g, err := ds.ParameterMap("tofts", "ktrans")
	if err != nil {
		t.Fatalf("ParameterMap: %v", err)
	}
	if !math.IsNaN(g.At(2, 1)) {
		t.Errorf("NaN sentinel lost in round trip: %v", g.At(2, 1))
	}
	if g.At(0, 0) != 0.2 {
		t.Errorf("ktrans(0,0) = %v, want 0.2", g.At(0, 0))
	}

	series, err := ds.TimeSeriesAt(1, 2)
	if err != nil {
		t.Fatalf("TimeSeriesAt: %v", err)
	}
	base := (1*ds.NY + 2) * ds.NT
	if series[3] != float64(base+3)*0.01 {
		t.Errorf("series[3] = %v", series[3])
	}
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestLoadMissingArrayFile(t *testing.T) {
	dir := t.TempDir()
	writeStudy(t, dir, testComponents())
	if err := os.Remove(filepath.Join(dir, "tofts_ve.f64.zst")); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestLoadShapeMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	c := testComponents()
	writeStudy(t, dir, c)

	// Truncate one map on disk so the element count disagrees.
	if err := WriteArray(filepath.Join(dir, "tofts_ve.f64.zst"), c.Params["tofts"]["ve"].V[:5]); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	var sm *ShapeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
}
