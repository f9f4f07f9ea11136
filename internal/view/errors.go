package view

import "fmt"

// EmptyDistributionError means a parameter map holds no finite values, so
// no color scale can be derived. The caller should report "no valid fits"
// instead of rendering.
type EmptyDistributionError struct {
	Model string
	Param string
}

func (e *EmptyDistributionError) Error() string {
	return fmt.Sprintf("map %s/%s has no finite values", e.Model, e.Param)
}

// ModelEvaluationError tags an evaluator failure with its model. Non-fatal:
// the caller drops that one curve and renders the rest.
type ModelEvaluationError struct {
	Model string
	Err   error
}

func (e *ModelEvaluationError) Error() string {
	return fmt.Sprintf("model %s: evaluation failed: %v", e.Model, e.Err)
}

func (e *ModelEvaluationError) Unwrap() error { return e.Err }
