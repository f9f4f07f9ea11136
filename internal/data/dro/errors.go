package dro

import "fmt"

// OutOfRangeError reports a voxel coordinate outside the spatial grid.
type OutOfRangeError struct {
	X, Y   int
	NX, NY int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("voxel (%d,%d) out of range [0,%d)x[0,%d)", e.X, e.Y, e.NX, e.NY)
}

// UnknownModelError reports a lookup for a model the study does not declare.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model: %s", e.Model)
}

// UnknownParameterError reports a parameter not in the model's spec.
type UnknownParameterError struct {
	Model string
	Param string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("model %s has no parameter %s", e.Model, e.Param)
}

// ShapeMismatchError reports an array whose dimensions disagree with the
// concentration volume. It is fatal at load time: no partial dataset is
// ever exposed.
type ShapeMismatchError struct {
	Array  string
	Got    int
	Want   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("array %s has %d elements, want %d", e.Array, e.Got, e.Want)
}

// LoadError wraps any failure while parsing a study source.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load study %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
