// Package field holds the point-level primitives of the engine: point
// values, the Map abstraction (an evaluable operation that owns a reusable
// work buffer) and Fields, the Maps whose only argument is a set of points.
package field

import (
	"fmt"
	"reflect"

	"github.com/notargets/cellfield/utils"
)

// Map is an evaluable operation with a reusable cache.
//
// NewCache builds the work buffer for the given sample arguments; it is
// called once per traversal and the cache is then threaded through every
// Evaluate call. Evaluate accepts a cache it did not create (or nil) and
// then allocates a transient one, which is correct but slower. Results may
// live in the cache, so they are only valid until the next Evaluate call on
// the same cache.
type Map interface {
	NewCache(args ...any) any
	Evaluate(cache any, args ...any) (any, error)
}

// Field is a Map whose single argument is a *Values block of points with
// dims [P] and item [D]. A single field returns dims [P]; an array of K
// fields (a basis) returns dims [P,K].
type Field interface {
	Map
	// Gradient returns the analytic gradient field, or an error wrapping
	// utils.ErrNotDifferentiable.
	Gradient() (Field, error)
}

// Evaluate runs m once with a freshly built cache.
func Evaluate(m Map, args ...any) (any, error) {
	return m.Evaluate(m.NewCache(args...), args...)
}

// EvaluateAt evaluates f at the points and returns the result block.
func EvaluateAt(f Field, pts ...Point) (*Values, error) {
	x := NewPoints(pts)
	out, err := Evaluate(f, x)
	if err != nil {
		return nil, err
	}
	return out.(*Values), nil
}

// EvaluateMap evaluates a Field (first argument) at a points block (second
// argument).
type EvaluateMap struct{}

type evaluateCache struct {
	field Field
	inner any
}

func (EvaluateMap) NewCache(args ...any) any {
	if len(args) != 2 {
		return nil
	}
	f, ok := args[0].(Field)
	if !ok {
		return nil
	}
	return &evaluateCache{field: f, inner: f.NewCache(args[1])}
}

func (EvaluateMap) Evaluate(cache any, args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("evaluate takes (field, points), got %d args: %w",
			len(args), utils.ErrUnsupportedArgument)
	}
	f, ok := args[0].(Field)
	if !ok {
		return nil, fmt.Errorf("evaluate: %T is not a Field: %w", args[0], utils.ErrUnsupportedArgument)
	}
	c, ok := cache.(*evaluateCache)
	if !ok {
		c = &evaluateCache{field: f, inner: f.NewCache(args[1])}
	} else if reflect.TypeOf(c.field) != reflect.TypeOf(f) {
		// per-cell operands of a different kind get their own buffer
		c.field, c.inner = f, f.NewCache(args[1])
	}
	return f.Evaluate(c.inner, args[1])
}

// GradientMap maps a Field to its gradient Field.
type GradientMap struct{}

func (GradientMap) NewCache(args ...any) any { return nil }

func (GradientMap) Evaluate(_ any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("gradient takes one field, got %d args: %w",
			len(args), utils.ErrUnsupportedArgument)
	}
	f, ok := args[0].(Field)
	if !ok {
		return nil, fmt.Errorf("gradient: %T is not a Field: %w", args[0], utils.ErrUnsupportedArgument)
	}
	return f.Gradient()
}

func notDifferentiable(f any) error {
	return fmt.Errorf("%T: %w", f, utils.ErrNotDifferentiable)
}

func pointsArg(args []any) (*Values, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("field evaluation takes one points argument, got %d: %w",
			len(args), utils.ErrUnsupportedArgument)
	}
	x, ok := args[0].(*Values)
	if !ok {
		return nil, fmt.Errorf("field evaluation: %T is not a points block: %w",
			args[0], utils.ErrUnsupportedArgument)
	}
	if len(x.Dims) != 1 || len(x.Item) != 1 {
		return nil, fmt.Errorf("points block must have dims [P] and item [D], got %v: %w",
			x, utils.ErrShapeMismatch)
	}
	return x, nil
}
