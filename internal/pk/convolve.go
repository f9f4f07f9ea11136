package pk

import (
	"gonum.org/v1/gonum/integrate"
)

// convolve evaluates (aif * resp)(t_i) = integral over [0, t_i] of
// aif(tau) * resp(t_i - tau) dtau on the sample grid. resp is the model's
// analytic impulse response, so the integrand can be evaluated exactly at
// every grid offset; the integral itself uses the trapezoidal rule, which
// also handles non-uniform time grids.
func convolve(t, aif []float64, resp func(float64) float64) []float64 {
	n := len(t)
	out := make([]float64, n)
	integrand := make([]float64, n)
	for i := 1; i < n; i++ {
		for j := 0; j <= i; j++ {
			integrand[j] = aif[j] * resp(t[i]-t[j])
		}
		out[i] = integrate.Trapezoidal(t[:i+1], integrand[:i+1])
	}
	return out
}
