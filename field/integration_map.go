package field

import (
	"fmt"
	"math"

	"github.com/notargets/cellfield/utils"
	"gonum.org/v1/gonum/floats"
)

// IntegrationMap reduces an integrand sampled at Q quadrature points:
//
//	out[...] = sum_q f[q,...] w[q] |det J(q)|
//
// Arguments are (f, w) or (f, w, jac). f is a *Values with dims [Q,...], w
// the reference weights ([]float64 or *Values of dims [Q]) and jac either the
// Jacobians (dims [Q], item [d,d]) or precomputed measures (dims [Q], scalar
// item). Without jac the measure is 1.
type IntegrationMap struct{}

type integrationCache struct {
	weights Values
	out     Values
}

func (IntegrationMap) NewCache(args ...any) any { return &integrationCache{} }

func (IntegrationMap) Evaluate(cache any, args ...any) (any, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("integration takes (f, w[, jac]), got %d args: %w", len(args), utils.ErrUnsupportedArgument)
	}
	f, ok := args[0].(*Values)
	if !ok {
		return nil, fmt.Errorf("integrand %T: %w", args[0], utils.ErrUnsupportedArgument)
	}
	c, ok := cache.(*integrationCache)
	if !ok {
		c = &integrationCache{}
	}
	w, err := valuesInto(args[1], &c.weights)
	if err != nil {
		return nil, fmt.Errorf("quadrature weights: %w", err)
	}
	if len(f.Dims) == 0 || len(w.Dims) != 1 || f.Dims[0] != w.Dims[0] {
		return nil, fmt.Errorf("integrand %v against %d weights: %w", f, w.Len(), utils.ErrShapeMismatch)
	}
	q := f.Dims[0]
	var jac *Values
	if len(args) == 3 && args[2] != nil {
		if jac, ok = args[2].(*Values); !ok {
			return nil, fmt.Errorf("jacobian %T: %w", args[2], utils.ErrUnsupportedArgument)
		}
		if len(jac.Dims) != 1 || jac.Dims[0] != q {
			return nil, fmt.Errorf("jacobian %v at %d quadrature points: %w", jac, q, utils.ErrShapeMismatch)
		}
		if len(jac.Item) != 0 && (len(jac.Item) != 2 || jac.Item[0] != jac.Item[1]) {
			return nil, fmt.Errorf("jacobian item %v is not square: %w", jac.Item, utils.ErrShapeMismatch)
		}
	}

	out := &c.out
	out.Resize(f.Dims[1:], f.Item)
	out.Zero()
	stride := len(out.Data)
	for p := 0; p < q; p++ {
		dx := w.Data[p]
		if jac != nil {
			if len(jac.Item) == 0 {
				dx *= jac.Data[p]
			} else {
				dx *= math.Abs(determinant(jac.Item[0], jac.Entry(p)))
			}
		}
		floats.AddScaled(out.Data, dx, f.Data[p*stride:(p+1)*stride])
	}
	return out, nil
}
