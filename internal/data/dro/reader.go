package dro

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// A study directory holds study.json plus one zstd-compressed array file per
// entry: float64 little-endian, concentration in (x,y,t) order, maps in
// (x,y) order.

type studyMeta struct {
	Name        string      `json:"name"`
	NX          int         `json:"nx"`
	NY          int         `json:"ny"`
	NT          int         `json:"nt"`
	TimeMinutes []float64   `json:"time_minutes"`
	AIF         []float64   `json:"aif"`
	Conc        string      `json:"concentration"`
	Models      []modelMeta `json:"models"`
}

type modelMeta struct {
	Name       string            `json:"name"`
	Parameters []string          `json:"parameters"`
	ParamFiles map[string]string `json:"parameter_files"`
	RSSFile    string            `json:"rss_file"`
}

// Load reads a study directory into a validated Dataset. Any missing key,
// unreadable array, or shape mismatch aborts the load.
func Load(dir string) (*Dataset, error) {
	metaPath := filepath.Join(dir, "study.json")
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	var meta studyMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &LoadError{Path: dir, Err: fmt.Errorf("parse study.json: %w", err)}
	}
	if meta.Conc == "" {
		return nil, &LoadError{Path: dir, Err: fmt.Errorf("study.json missing concentration file")}
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}
	defer dec.Close()

	conc, err := readArray(dec, filepath.Join(dir, meta.Conc))
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	params := make(map[string]map[string]*Grid, len(meta.Models))
	rss := make(map[string]*Grid, len(meta.Models))
	specs := make([]ModelSpec, 0, len(meta.Models))
	for _, m := range meta.Models {
		specs = append(specs, ModelSpec{Name: m.Name, Parameters: m.Parameters})

		maps := make(map[string]*Grid, len(m.Parameters))
		for _, p := range m.Parameters {
			file, ok := m.ParamFiles[p]
			if !ok {
				return nil, &LoadError{Path: dir, Err: fmt.Errorf("model %s: no file for parameter %s", m.Name, p)}
			}
			v, err := readArray(dec, filepath.Join(dir, file))
			if err != nil {
				return nil, &LoadError{Path: dir, Err: fmt.Errorf("model %s parameter %s: %w", m.Name, p, err)}
			}
			maps[p] = &Grid{NX: meta.NX, NY: meta.NY, V: v}
		}
		params[m.Name] = maps

		if m.RSSFile == "" {
			return nil, &LoadError{Path: dir, Err: fmt.Errorf("model %s: no rss_file", m.Name)}
		}
		v, err := readArray(dec, filepath.Join(dir, m.RSSFile))
		if err != nil {
			return nil, &LoadError{Path: dir, Err: fmt.Errorf("model %s rss: %w", m.Name, err)}
		}
		rss[m.Name] = &Grid{NX: meta.NX, NY: meta.NY, V: v}
	}

	ds, err := NewDataset(Components{
		Name:          meta.Name,
		NX:            meta.NX,
		NY:            meta.NY,
		NT:            meta.NT,
		Time:          meta.TimeMinutes,
		AIF:           meta.AIF,
		Concentration: conc,
		Models:        specs,
		Params:        params,
		RSS:           rss,
	})
	if err != nil {
		// Shape errors keep their type so callers can distinguish them
		// from I/O failures.
		if _, ok := err.(*ShapeMismatchError); ok {
			return nil, err
		}
		return nil, &LoadError{Path: dir, Err: err}
	}
	return ds, nil
}

func readArray(dec *zstd.Decoder, path string) ([]float64, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress %s: %w", filepath.Base(path), err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("array %s has %d bytes, not a float64 multiple", filepath.Base(path), len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}

// WriteArray zstd-compresses float64 values to path. Used by study
// converters and tests; the server itself only reads.
func WriteArray(path string, values []float64) error {
	raw := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, compressed, 0o644)
}
