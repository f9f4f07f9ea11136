// Package pk implements the pharmacokinetic model registry: the four
// candidate models of the DRO (2CXM, extended Tofts, compartmental tissue
// uptake, standard Tofts), each reconstructing a tissue concentration curve
// from an arterial input function and fitted parameters.
package pk

import (
	"fmt"
	"math"

	"github.com/droview/server/internal/data/dro"
)

// EvalFunc reconstructs a concentration curve on the time grid t (minutes)
// from the AIF and a parameter record in the model's declared order.
type EvalFunc func(t, aif, params []float64) ([]float64, error)

// Model is one registry entry: a name, an ordered parameter list, and an
// evaluator.
type Model struct {
	Name       string
	Parameters []string
	Evaluate   EvalFunc
}

// Registry is the closed set of known models in canonical order. The
// canonical order is fixed at construction and used for stacking and
// tie-breaking in the best-model map, independent of any analyst selection.
type Registry struct {
	order  []string
	models map[string]Model
}

// NewRegistry builds the standard four-model registry.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]Model)}
	r.register(Model{Name: "2cxm", Parameters: []string{"fp", "ps", "ve", "vp"}, Evaluate: TwoCXM})
	r.register(Model{Name: "etm", Parameters: []string{"ktrans", "ve", "vp"}, Evaluate: ExtendedTofts})
	r.register(Model{Name: "ctum", Parameters: []string{"fp", "ps", "vp"}, Evaluate: TissueUptake})
	r.register(Model{Name: "tofts", Parameters: []string{"ktrans", "ve"}, Evaluate: Tofts})
	return r
}

func (r *Registry) register(m Model) {
	r.order = append(r.order, m.Name)
	r.models[m.Name] = m
}

// Lookup resolves a model by name.
func (r *Registry) Lookup(name string) (Model, error) {
	m, ok := r.models[name]
	if !ok {
		return Model{}, &dro.UnknownModelError{Model: name}
	}
	return m, nil
}

// CanonicalOrder returns the registry's fixed model ordering.
func (r *Registry) CanonicalOrder() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Models returns all entries in canonical order.
func (r *Registry) Models() []Model {
	out := make([]Model, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

func checkInputs(name string, t, aif, params []float64, want int) error {
	if len(t) == 0 || len(t) != len(aif) {
		return fmt.Errorf("%s: time grid (%d) and aif (%d) must be non-empty and aligned", name, len(t), len(aif))
	}
	if len(params) != want {
		return fmt.Errorf("%s: expected %d parameters, got %d", name, want, len(params))
	}
	for i, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%s: parameter %d is not finite", name, i)
		}
	}
	return nil
}

func checkOutput(name string, ct []float64) ([]float64, error) {
	for _, v := range ct {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: evaluation produced non-finite values", name)
		}
	}
	return ct, nil
}

// Tofts is the standard Tofts model: params [ktrans, ve].
// Ct = ktrans * (Ca conv exp(-(ktrans/ve) t)).
func Tofts(t, aif, params []float64) ([]float64, error) {
	if err := checkInputs("tofts", t, aif, params, 2); err != nil {
		return nil, err
	}
	ktrans, ve := params[0], params[1]
	if ve <= 0 {
		return nil, fmt.Errorf("tofts: ve must be positive, got %g", ve)
	}
	kep := ktrans / ve

	ct := convolve(t, aif, func(s float64) float64 {
		return ktrans * math.Exp(-kep*s)
	})
	return checkOutput("tofts", ct)
}

// ExtendedTofts adds a vascular term: params [ktrans, ve, vp].
// Ct = vp*Ca + ktrans * (Ca conv exp(-(ktrans/ve) t)).
func ExtendedTofts(t, aif, params []float64) ([]float64, error) {
	if err := checkInputs("etm", t, aif, params, 3); err != nil {
		return nil, err
	}
	ktrans, ve, vp := params[0], params[1], params[2]
	if ve <= 0 {
		return nil, fmt.Errorf("etm: ve must be positive, got %g", ve)
	}
	kep := ktrans / ve

	ct := convolve(t, aif, func(s float64) float64 {
		return ktrans * math.Exp(-kep*s)
	})
	for i := range ct {
		ct[i] += vp * aif[i]
	}
	return checkOutput("etm", ct)
}

// TissueUptake is the compartmental tissue uptake model: params [fp, ps, vp].
// With E = ps/(fp+ps) and Tp = vp/(fp+ps), the impulse response is
// R(t) = (1-E) exp(-t/Tp) + E and Ct = fp * (Ca conv R).
func TissueUptake(t, aif, params []float64) ([]float64, error) {
	if err := checkInputs("ctum", t, aif, params, 3); err != nil {
		return nil, err
	}
	fp, ps, vp := params[0], params[1], params[2]
	if fp+ps <= 0 {
		return nil, fmt.Errorf("ctum: fp+ps must be positive, got %g", fp+ps)
	}
	if vp <= 0 {
		return nil, fmt.Errorf("ctum: vp must be positive, got %g", vp)
	}
	e := ps / (fp + ps)
	tp := vp / (fp + ps)

	ct := convolve(t, aif, func(s float64) float64 {
		return fp * ((1-e)*math.Exp(-s/tp) + e)
	})
	return checkOutput("ctum", ct)
}

// TwoCXM is the two-compartment exchange model: params [fp, ps, ve, vp].
// The impulse response is the biexponential solution of the coupled
// plasma/EES system; Ct = Ca conv R with R(0) = fp.
func TwoCXM(t, aif, params []float64) ([]float64, error) {
	if err := checkInputs("2cxm", t, aif, params, 4); err != nil {
		return nil, err
	}
	fp, ps, ve, vp := params[0], params[1], params[2], params[3]
	if vp <= 0 || ve <= 0 {
		return nil, fmt.Errorf("2cxm: ve and vp must be positive, got ve=%g vp=%g", ve, vp)
	}
	if fp <= 0 {
		return nil, fmt.Errorf("2cxm: fp must be positive, got %g", fp)
	}

	kp := (fp + ps) / vp
	ke := ps / ve
	sum := kp + ke
	disc := sum*sum - 4*fp*ps/(vp*ve)
	if disc < 0 {
		disc = 0
	}
	root := math.Sqrt(disc)
	l1 := (sum + root) / 2
	l2 := (sum - root) / 2
	if l1-l2 < 1e-12 {
		// Degenerate eigenvalues collapse to the uptake form.
		return TissueUptake(t, aif, []float64{fp, ps, vp})
	}

	a1 := (fp / vp) * (l1 - ke) / (l1 - l2)
	a2 := fp/vp - a1
	c1 := a1 * vp
	c2 := a2 * vp
	if d := ke - l1; d != 0 {
		c1 += ps * a1 / d
	}
	if d := ke - l2; d != 0 {
		c2 += ps * a2 / d
	}

	ct := convolve(t, aif, func(s float64) float64 {
		return c1*math.Exp(-l1*s) + c2*math.Exp(-l2*s)
	})
	return checkOutput("2cxm", ct)
}
