//go:build tiledb

package tdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/droview/server/internal/data/dro"
)

// Reader loads a study from TileDB dense arrays. The group layout is one
// float64 array per component: "concentration" (nx*ny*nt, flattened),
// "<model>_<param>" and "<model>_rss" (nx*ny), plus study.json for the
// scalar metadata.
type Reader struct {
	studyURI string
	ctx      *tiledb.Context
}

func NewReader(path string) (*Reader, error) {
	uri, err := ResolveStudyURI(path)
	if err != nil {
		return nil, err
	}

	ctx, err := tiledb.NewContext(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create TileDB context: %w", err)
	}

	return &Reader{studyURI: uri, ctx: ctx}, nil
}

func (r *Reader) Supported() bool { return true }

func (r *Reader) StudyURI() string { return r.studyURI }

type studyMeta struct {
	Name        string          `json:"name"`
	NX          int             `json:"nx"`
	NY          int             `json:"ny"`
	NT          int             `json:"nt"`
	TimeMinutes []float64       `json:"time_minutes"`
	AIF         []float64       `json:"aif"`
	Models      []dro.ModelSpec `json:"models"`
}

// Load reads the full study into a Dataset.
func (r *Reader) Load() (*dro.Dataset, error) {
	raw, err := os.ReadFile(filepath.Join(r.studyURI, "study.json"))
	if err != nil {
		return nil, &dro.LoadError{Path: r.studyURI, Err: err}
	}
	var meta studyMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &dro.LoadError{Path: r.studyURI, Err: fmt.Errorf("parse study.json: %w", err)}
	}

	conc, err := r.readDense("concentration", meta.NX*meta.NY*meta.NT)
	if err != nil {
		return nil, &dro.LoadError{Path: r.studyURI, Err: err}
	}

	nSpatial := meta.NX * meta.NY
	params := make(map[string]map[string]*dro.Grid, len(meta.Models))
	rss := make(map[string]*dro.Grid, len(meta.Models))
	for _, m := range meta.Models {
		maps := make(map[string]*dro.Grid, len(m.Parameters))
		for _, p := range m.Parameters {
			v, err := r.readDense(m.Name+"_"+p, nSpatial)
			if err != nil {
				return nil, &dro.LoadError{Path: r.studyURI, Err: err}
			}
			maps[p] = &dro.Grid{NX: meta.NX, NY: meta.NY, V: v}
		}
		params[m.Name] = maps

		v, err := r.readDense(m.Name+"_rss", nSpatial)
		if err != nil {
			return nil, &dro.LoadError{Path: r.studyURI, Err: err}
		}
		rss[m.Name] = &dro.Grid{NX: meta.NX, NY: meta.NY, V: v}
	}

	return dro.NewDataset(dro.Components{
		Name:          meta.Name,
		NX:            meta.NX,
		NY:            meta.NY,
		NT:            meta.NT,
		Time:          meta.TimeMinutes,
		AIF:           meta.AIF,
		Concentration: conc,
		Models:        meta.Models,
		Params:        params,
		RSS:           rss,
	})
}

// readDense reads an entire 1D float64 dense array.
func (r *Reader) readDense(name string, n int) ([]float64, error) {
	uri := r.studyURI + "/" + name

	arr, err := tiledb.NewArray(r.ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open array %s: %w", name, err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return nil, fmt.Errorf("failed to open array %s for read: %w", name, err)
	}
	defer arr.Close()

	sub, err := arr.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("failed to create subarray for %s: %w", name, err)
	}
	defer sub.Free()
	if err := sub.AddRangeByName("i", tiledb.MakeRange[int64](0, int64(n-1))); err != nil {
		return nil, fmt.Errorf("failed to add range for %s: %w", name, err)
	}

	q, err := tiledb.NewQuery(r.ctx, arr)
	if err != nil {
		return nil, fmt.Errorf("failed to create query for %s: %w", name, err)
	}
	defer q.Free()

	if err := q.SetSubarray(sub); err != nil {
		return nil, fmt.Errorf("failed to set subarray for %s: %w", name, err)
	}
	_ = q.SetLayout(tiledb.TILEDB_ROW_MAJOR)

	out := make([]float64, n)
	if _, err := q.SetDataBuffer("v", out); err != nil {
		return nil, fmt.Errorf("failed to set buffer for %s: %w", name, err)
	}

	if err := q.Submit(); err != nil {
		return nil, fmt.Errorf("query failed for %s: %w", name, err)
	}

	status, err := q.Status()
	if err != nil {
		return nil, fmt.Errorf("query status for %s: %w", name, err)
	}
	if status != tiledb.TILEDB_COMPLETED {
		return nil, fmt.Errorf("query for %s did not complete: %v", name, status)
	}

	return out, nil
}
