package dro

import (
	"errors"
	"math"
	"testing"
)

func testComponents() Components {
	nx, ny, nt := 4, 3, 5
	conc := make([]float64, nx*ny*nt)
	for i := range conc {
		conc[i] = float64(i) * 0.01
	}

	kt := NewGrid(nx, ny)
	ve := NewGrid(nx, ny)
	rss := NewGrid(nx, ny)
	for i := range kt.V {
		kt.V[i] = 0.2
		ve.V[i] = 0.3
		rss.V[i] = 0.05
	}

	return Components{
		Name:          "synthetic",
		NX:            nx,
		NY:            ny,
		NT:            nt,
		Time:          []float64{0, 0.5, 1, 1.5, 2},
		AIF:           []float64{0, 1, 0.8, 0.6, 0.5},
		Concentration: conc,
		Models:        []ModelSpec{{Name: "tofts", Parameters: []string{"ktrans", "ve"}}},
		Params:        map[string]map[string]*Grid{"tofts": {"ktrans": kt, "ve": ve}},
		RSS:           map[string]*Grid{"tofts": rss},
	}
}

func TestTimeSeriesAt(t *testing.T) {
	ds, err := NewDataset(testComponents())
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}

	series, err := ds.TimeSeriesAt(2, 1)
	if err != nil {
		t.Fatalf("TimeSeriesAt: %v", err)
	}
	if len(series) != ds.NT {
		t.Fatalf("series length = %d, want %d", len(series), ds.NT)
	}
	base := (2*ds.NY + 1) * ds.NT
	if series[0] != float64(base)*0.01 {
		t.Errorf("series[0] = %v, want %v", series[0], float64(base)*0.01)
	}

	// The returned series is a copy, not a view.
	series[0] = -999
	again, _ := ds.TimeSeriesAt(2, 1)
	if again[0] == -999 {
		t.Errorf("TimeSeriesAt must return a copy")
	}
}

func TestTimeSeriesAtOutOfRange(t *testing.T) {
	ds, _ := NewDataset(testComponents())
	for _, c := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 3}} {
		_, err := ds.TimeSeriesAt(c[0], c[1])
		var oor *OutOfRangeError
		if !errors.As(err, &oor) {
			t.Errorf("(%d,%d): expected OutOfRangeError, got %v", c[0], c[1], err)
		}
	}
}

func TestMapLookupErrors(t *testing.T) {
	ds, _ := NewDataset(testComponents())

	if _, err := ds.ParameterMap("tofts", "ktrans"); err != nil {
		t.Errorf("valid lookup failed: %v", err)
	}

	var um *UnknownModelError
	if _, err := ds.ParameterMap("2cxm", "fp"); !errors.As(err, &um) {
		t.Errorf("expected UnknownModelError, got %v", err)
	}
	if _, err := ds.ResidualMap("2cxm"); !errors.As(err, &um) {
		t.Errorf("expected UnknownModelError, got %v", err)
	}

	var up *UnknownParameterError
	if _, err := ds.ParameterMap("tofts", "vp"); !errors.As(err, &up) {
		t.Errorf("expected UnknownParameterError, got %v", err)
	}
}

func TestNewDatasetShapeMismatch(t *testing.T) {
	c := testComponents()
	c.Params["tofts"]["ve"] = NewGrid(2, 2)

	_, err := NewDataset(c)
	var sm *ShapeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
}

func TestNewDatasetRejectsNegativeRSS(t *testing.T) {
	c := testComponents()
	c.RSS["tofts"].V[3] = -0.1
	if _, err := NewDataset(c); err == nil {
		t.Fatal("expected error for negative RSS")
	}

	// NaN residuals are the invalid sentinel, not a violation.
	c.RSS["tofts"].V[3] = math.NaN()
	if _, err := NewDataset(c); err != nil {
		t.Fatalf("NaN residual should be allowed: %v", err)
	}
}

func TestNewDatasetRejectsNonMonotonicTime(t *testing.T) {
	c := testComponents()
	c.Time[2] = c.Time[1]
	if _, err := NewDataset(c); err == nil {
		t.Fatal("expected error for non-monotonic time grid")
	}
}

func TestParametersAt(t *testing.T) {
	ds, _ := NewDataset(testComponents())
	got, err := ds.ParametersAt("tofts", 1, 1)
	if err != nil {
		t.Fatalf("ParametersAt: %v", err)
	}
	if len(got) != 2 || got[0] != 0.2 || got[1] != 0.3 {
		t.Errorf("ParametersAt = %v, want [0.2 0.3]", got)
	}
}
