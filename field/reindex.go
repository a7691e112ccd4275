package field

import (
	"fmt"

	"github.com/notargets/cellfield/utils"
)

// Reindex looks entries up in Table. An int argument returns one entry; an
// []int argument gathers the entries into a slice owned by the cache.
type Reindex[T any] struct {
	Table []T
}

func (r Reindex[T]) NewCache(args ...any) any { return &[]T{} }

func (r Reindex[T]) Evaluate(cache any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("reindex takes one index argument, got %d: %w", len(args), utils.ErrUnsupportedArgument)
	}
	switch idx := args[0].(type) {
	case int:
		return r.at(idx)
	case []int:
		buf, ok := cache.(*[]T)
		if !ok {
			buf = &[]T{}
		}
		*buf = (*buf)[:0]
		for _, i := range idx {
			v, err := r.at(i)
			if err != nil {
				return nil, err
			}
			*buf = append(*buf, v)
		}
		return *buf, nil
	}
	return nil, fmt.Errorf("reindex by %T: %w", args[0], utils.ErrUnsupportedArgument)
}

func (r Reindex[T]) at(i int) (T, error) {
	if i < 0 || i >= len(r.Table) {
		var zero T
		return zero, fmt.Errorf("index %d of %d: %w", i, len(r.Table), utils.ErrOutOfBounds)
	}
	return r.Table[i], nil
}

// PosNegReindex looks up signed, 1-based ids: i > 0 selects Pos[i-1] and
// i < 0 selects Neg[-i-1]. Zero is never a valid id. Used for dof ids where
// negative ids mark constrained (Dirichlet) dofs.
type PosNegReindex[T any] struct {
	Pos []T
	Neg []T
}

func (r PosNegReindex[T]) NewCache(args ...any) any { return &[]T{} }

func (r PosNegReindex[T]) Evaluate(cache any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("signed reindex takes one index argument, got %d: %w", len(args), utils.ErrUnsupportedArgument)
	}
	switch idx := args[0].(type) {
	case int:
		return r.at(idx)
	case []int:
		buf, ok := cache.(*[]T)
		if !ok {
			buf = &[]T{}
		}
		*buf = (*buf)[:0]
		for _, i := range idx {
			v, err := r.at(i)
			if err != nil {
				return nil, err
			}
			*buf = append(*buf, v)
		}
		return *buf, nil
	}
	return nil, fmt.Errorf("signed reindex by %T: %w", args[0], utils.ErrUnsupportedArgument)
}

func (r PosNegReindex[T]) at(i int) (T, error) {
	var zero T
	switch {
	case i > 0 && i <= len(r.Pos):
		return r.Pos[i-1], nil
	case i < 0 && -i <= len(r.Neg):
		return r.Neg[-i-1], nil
	}
	return zero, fmt.Errorf("signed id %d (pos %d, neg %d): %w", i, len(r.Pos), len(r.Neg), utils.ErrOutOfBounds)
}
