package utils

import "errors"

// Sentinel errors shared by every package of the engine. Errors returned by
// the core are either one of these or wrap one of them with
// fmt.Errorf("context: %w", ErrX); match them with errors.Is.
var (
	// ErrShapeMismatch is returned when source array lengths disagree at lazy
	// array construction, or when operand dimensions are incompatible at map
	// evaluation (e.g. a matrix operand and a vector of the wrong length).
	ErrShapeMismatch = errors.New("cellfield: shape mismatch")

	// ErrDomainMismatch is returned when a cell field and a cell datum live in
	// different domains and no conversion between them is available.
	ErrDomainMismatch = errors.New("cellfield: domain mismatch")

	// ErrOutOfBounds is returned for an index outside [0, length) of a
	// virtual array, and for a zero or out-of-range signed index.
	ErrOutOfBounds = errors.New("cellfield: index out of bounds")

	// ErrSingularJacobian is returned when a geometric map Jacobian cannot be
	// inverted (degenerate cell).
	ErrSingularJacobian = errors.New("cellfield: singular jacobian")

	// ErrNotDifferentiable is returned when the gradient of a field without
	// an analytic gradient is requested.
	ErrNotDifferentiable = errors.New("cellfield: field has no gradient")

	// ErrUnsupportedArgument is returned when a map is evaluated on an
	// argument kind it has no rule for.
	ErrUnsupportedArgument = errors.New("cellfield: unsupported argument")

	// ErrNotConverged is returned when an iterative inversion of a cell map
	// does not reach its tolerance.
	ErrNotConverged = errors.New("cellfield: iteration did not converge")
)
