package assembly

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notargets/cellfield/utils"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNotPositiveDefinite is returned when the assembled matrix cannot be
// Cholesky factorized, typically because no dof is fixed.
var ErrNotPositiveDefinite = errors.New("assembly: matrix is not symmetric positive definite")

// Solve factorizes the matrix densely with Cholesky and returns the free dof
// values together with the residual norm |b - A u|.
func (s *System) Solve(ctx context.Context) ([]float64, float64, error) {
	_, span := tracer.Start(ctx, "solve")
	defer span.End()
	start := time.Now()
	defer func() { solveDuration.Observe(time.Since(start).Seconds()) }()

	n := len(s.RHS)
	if n == 0 {
		return []float64{}, 0, nil
	}
	a := mat.NewSymDense(n, nil)
	s.Matrix.DoNonZero(func(i, j int, v float64) {
		if i <= j {
			a.SetSym(i, j, v)
		}
	})
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		span.RecordError(ErrNotPositiveDefinite)
		return nil, 0, fmt.Errorf("%d x %d system: %w", n, n, ErrNotPositiveDefinite)
	}
	b := mat.NewVecDense(n, append([]float64(nil), s.RHS...))
	u := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(u, b); err != nil {
		return nil, 0, fmt.Errorf("cholesky solve: %w", err)
	}
	res, err := s.Residual(u.RawVector().Data)
	if err != nil {
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int("rows", n), attribute.Float64("residual", res))
	log.Debug().Int("rows", n).Float64("residual", res).Dur("took", time.Since(start)).Msg("system solved")
	return u.RawVector().Data, res, nil
}

// Residual returns |b - A u| in the 2-norm.
func (s *System) Residual(u []float64) (float64, error) {
	n := len(s.RHS)
	if len(u) != n {
		return 0, fmt.Errorf("%d values for %d rows: %w", len(u), n, utils.ErrShapeMismatch)
	}
	r := append([]float64(nil), s.RHS...)
	s.Matrix.DoNonZero(func(i, j int, v float64) {
		r[i] -= v * u[j]
	})
	return floats.Norm(r, 2), nil
}
