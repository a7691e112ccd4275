package assembly

import (
	"context"

	"github.com/notargets/cellfield/cellfield"
	"github.com/notargets/cellfield/fespace"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/integration"
	"github.com/notargets/cellfield/lazy"
	"github.com/rs/zerolog/log"
)

// Poisson is -lap(u) = Source in the domain with u = Dirichlet on the fixed
// dofs of Space.
type Poisson struct {
	Space     *fespace.Space
	Source    field.Field // nil for the Laplace equation
	Dirichlet field.Field
	// Degree of the quadrature; 0 picks twice the element order.
	Degree int
}

// Solution is the discrete solution of a Poisson problem.
type Solution struct {
	U        *fespace.FEFunction
	System   *System
	Residual float64
}

// Forms builds the per-cell stiffness blocks integral grad(v).grad(u) and,
// with a source, the load blocks integral f v.
func (p *Poisson) Forms() (*integration.Measure, lazy.Array, lazy.Array, error) {
	trian := p.Space.Triangulation()
	degree := p.Degree
	if degree <= 0 {
		degree = 2 * trian.Reference().GetProperties().Order
	}
	dOmega, err := integration.NewMeasure(trian, degree)
	if err != nil {
		return nil, nil, nil, err
	}
	v := p.Space.TestBasis()
	u, err := p.Space.TrialBasis()
	if err != nil {
		return nil, nil, nil, err
	}
	gv, err := cellfield.Gradient(v)
	if err != nil {
		return nil, nil, nil, err
	}
	gu, err := cellfield.Gradient(u)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := cellfield.Inner(gv, gu)
	if err != nil {
		return nil, nil, nil, err
	}
	matrix, err := dOmega.Integrate(a)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.Source == nil {
		return dOmega, matrix, nil, nil
	}
	fv, err := cellfield.Mul(cellfield.FromField(trian, p.Source), v)
	if err != nil {
		return nil, nil, nil, err
	}
	vector, err := dOmega.Integrate(fv)
	if err != nil {
		return nil, nil, nil, err
	}
	return dOmega, matrix, vector, nil
}

// SolvePoisson assembles and solves p.
func SolvePoisson(ctx context.Context, p Poisson, cfg Config) (*Solution, error) {
	ctx, span := tracer.Start(ctx, "poisson")
	defer span.End()

	fixed, err := p.Space.InterpolateDirichlet(p.Dirichlet)
	if err != nil {
		return nil, err
	}
	_, matrix, vector, err := p.Forms()
	if err != nil {
		return nil, err
	}
	asm, err := NewAssembler(p.Space, cfg)
	if err != nil {
		return nil, err
	}
	sys, err := asm.Assemble(ctx, matrix, vector, fixed)
	if err != nil {
		return nil, err
	}
	free, res, err := sys.Solve(ctx)
	if err != nil {
		return nil, err
	}
	uh, err := p.Space.NewFEFunction(free, fixed)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("free", len(free)).Int("fixed", len(fixed)).Float64("residual", res).Msg("poisson solved")
	return &Solution{U: uh, System: sys, Residual: res}, nil
}
