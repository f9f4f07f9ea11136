package view

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/droview/server/internal/data/dro"
	"github.com/droview/server/internal/pk"
)

// yAxisHeadroom scales the observed range into the recommended y-axis
// bounds. Fitted curves exceeding it are clipped visually, not an error.
const yAxisHeadroom = 1.1

// ModelCurve is one selected model's reconstruction at the voxel.
type ModelCurve struct {
	Model   string    `json:"model"`
	Skipped bool      `json:"skipped"`
	Values  []float64 `json:"values,omitempty"`

	// EvalErr records a per-model evaluator failure. The bundle is still
	// usable: only this curve is missing.
	EvalErr error `json:"-"`
}

// CurveBundle is everything the time-series view draws.
type CurveBundle struct {
	Time     []float64    `json:"time_minutes"`
	Observed []float64    `json:"observed"`
	YLo, YHi float64      `json:"-"`
	Curves   []ModelCurve `json:"curves"`
}

// ComposeCurves reads the measured curve at the voxel and reconstructs one
// fitted curve per selected model, in selection order. A model whose first
// parameter is the invalid sentinel is marked skipped (a fit-convergence
// signal, not an error); an evaluator failure is recorded on that curve as
// a ModelEvaluationError and the remaining models still compose.
func ComposeCurves(ds *dro.Dataset, reg *pk.Registry, models []string, x, y int) (*CurveBundle, error) {
	observed, err := ds.TimeSeriesAt(x, y)
	if err != nil {
		return nil, err
	}

	bundle := &CurveBundle{
		Time:     ds.Time(),
		Observed: observed,
		Curves:   make([]ModelCurve, 0, len(models)),
	}
	if len(observed) > 0 {
		bundle.YLo = yAxisHeadroom * floats.Min(observed)
		bundle.YHi = yAxisHeadroom * floats.Max(observed)
	}

	for _, name := range models {
		params, err := ds.ParametersAt(name, x, y)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(params[0]) {
			bundle.Curves = append(bundle.Curves, ModelCurve{Model: name, Skipped: true})
			continue
		}

		model, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		values, evalErr := model.Evaluate(ds.Time(), ds.AIF(), params)
		if evalErr != nil {
			bundle.Curves = append(bundle.Curves, ModelCurve{
				Model:   name,
				EvalErr: &ModelEvaluationError{Model: name, Err: evalErr},
			})
			continue
		}
		bundle.Curves = append(bundle.Curves, ModelCurve{Model: name, Values: values})
	}

	return bundle, nil
}
