package lazy

import (
	"fmt"
	"reflect"

	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/utils"
	"github.com/rs/zerolog/log"
)

// LazyArray is the expression node out[i] = Op[i](Sources[0][i], ...).
// Op is an Array of field.Map values, a Fill when one operation serves every
// index.
type LazyArray struct {
	Op      Array
	Sources []Array
}

type lazyCache struct {
	owner   *LazyArray
	op      any
	sources []any
	args    []any
	maps    map[reflect.Type]any

	index  int
	result any
	valid  bool
}

func (a *LazyArray) Len() int { return a.Op.Len() }

func (a *LazyArray) NewCache() any {
	cachesBuilt.Inc()
	c := &lazyCache{
		owner:   a,
		op:      a.Op.NewCache(),
		sources: make([]any, len(a.Sources)),
		args:    make([]any, len(a.Sources)),
		maps:    make(map[reflect.Type]any, 1),
	}
	for j, s := range a.Sources {
		c.sources[j] = s.NewCache()
	}
	return c
}

func (a *LazyArray) Get(cache any, i int) (any, error) {
	if err := checkIndex(i, a.Len()); err != nil {
		return nil, err
	}
	c, ok := cache.(*lazyCache)
	if !ok || c.owner != a {
		transientCaches.Inc()
		c = a.NewCache().(*lazyCache)
	}
	if c.valid && c.index == i {
		return c.result, nil
	}
	c.valid = false

	o, err := a.Op.Get(c.op, i)
	if err != nil {
		return nil, err
	}
	m, ok := o.(field.Map)
	if !ok {
		return nil, fmt.Errorf("operation at %d is %T: %w", i, o, utils.ErrUnsupportedArgument)
	}
	for j, s := range a.Sources {
		if c.args[j], err = s.Get(c.sources[j], i); err != nil {
			return nil, err
		}
	}
	t := reflect.TypeOf(m)
	mc, ok := c.maps[t]
	if !ok {
		// built on first use, from the first index's arguments
		mc = m.NewCache(c.args...)
		c.maps[t] = mc
	}
	res, err := m.Evaluate(mc, c.args...)
	if err != nil {
		return nil, fmt.Errorf("evaluating entry %d: %w", i, err)
	}
	entriesComputed.Inc()
	c.index, c.result, c.valid = i, res, true
	return res, nil
}

// constantOp returns the single operation of a uniform op array.
func (a *LazyArray) constantOp() (field.Map, bool) {
	f, ok := a.Op.(*Fill)
	if !ok {
		return nil, false
	}
	m, ok := f.Value.(field.Map)
	return m, ok
}

// LazyMap builds the array whose entry i is op applied to entry i of every
// source. op is a field.Map (the same operation at every index) or an Array
// of them (one per index). Nothing is evaluated except where every input is
// uniform, in which case the single result is computed now and returned as a
// Fill.
//
// Field-level expressions are simplified here, before any evaluation:
//
//	evaluate(lincomb(c, basis), x)  -> lincomb_values(c, evaluate(basis, x))
//	evaluate(operation(o, f...), x) -> broadcast(o, evaluate(f, x)...)
//	evaluate(compose(f, g), x)      -> evaluate(f, evaluate(g, x))
//	evaluate(trial(b), x)           -> trial_values(evaluate(b, x))
//	gradient(lincomb(c, basis))     -> lincomb(c, gradient(basis))
//	gradient(operation(+/-, f...))  -> operation(+/-, gradient(f)...)
//	gradient(operation(*, f, g))    -> operation(grad(*), f, gradient(f), g, gradient(g))
//
// so a basis shared through a Fill is evaluated once for all cells.
func LazyMap(op any, sources ...Array) (Array, error) {
	var ops Array
	switch o := op.(type) {
	case Array:
		ops = o
	case field.Map:
		if len(sources) == 0 {
			return nil, fmt.Errorf("lazy map of %T needs a source: %w", op, utils.ErrUnsupportedArgument)
		}
		ops = NewFill(o, sources[0].Len())
	default:
		return nil, fmt.Errorf("lazy map operation %T: %w", op, utils.ErrUnsupportedArgument)
	}
	n := ops.Len()
	for j, s := range sources {
		if s.Len() != n {
			return nil, fmt.Errorf("source %d has length %d, want %d: %w", j, s.Len(), n, utils.ErrShapeMismatch)
		}
	}

	if f, ok := ops.(*Fill); ok {
		if m, ok := f.Value.(field.Map); ok {
			if out, ok, err := rewrite(m, n, sources); ok || err != nil {
				return out, err
			}
			if allFill(sources) {
				return evaluateUniform(m, n, sources)
			}
		}
	}
	return &LazyArray{Op: ops, Sources: sources}, nil
}

func allFill(sources []Array) bool {
	for _, s := range sources {
		if _, ok := s.(*Fill); !ok {
			return false
		}
	}
	return true
}

func evaluateUniform(m field.Map, n int, sources []Array) (Array, error) {
	args := make([]any, len(sources))
	for j, s := range sources {
		args[j] = s.(*Fill).Value
	}
	v, err := field.Evaluate(m, args...)
	if err != nil {
		return nil, err
	}
	fillShortcuts.Inc()
	log.Debug().Type("map", m).Int("len", n).Msg("uniform inputs, evaluated once")
	// the result lives in a cache nobody else holds
	return NewFill(v, n), nil
}

func rewrite(m field.Map, n int, sources []Array) (Array, bool, error) {
	switch m.(type) {
	case field.EvaluateMap:
		if len(sources) != 2 {
			return nil, false, nil
		}
		node, ok := sources[0].(*LazyArray)
		if !ok {
			return nil, false, nil
		}
		inner, ok := node.constantOp()
		if !ok {
			return nil, false, nil
		}
		return rewriteEvaluate(inner, node.Sources, sources[1])
	case field.GradientMap:
		if len(sources) != 1 {
			return nil, false, nil
		}
		node, ok := sources[0].(*LazyArray)
		if !ok {
			return nil, false, nil
		}
		inner, ok := node.constantOp()
		if !ok {
			return nil, false, nil
		}
		return rewriteGradient(inner, node.Sources)
	}
	return nil, false, nil
}

func rewriteEvaluate(inner field.Map, args []Array, x Array) (Array, bool, error) {
	switch op := inner.(type) {
	case field.LinearCombination:
		applied("evaluate_lincomb")
		vals, err := LazyMap(field.EvaluateMap{}, args[1], x)
		if err != nil {
			return nil, true, err
		}
		out, err := LazyMap(field.LinearCombinationMap{}, args[0], vals)
		return out, true, err
	case field.Operation:
		applied("evaluate_operation")
		vals := make([]Array, len(args))
		for j, s := range args {
			var ev field.Map = evaluateArg{}
			if producesFields(s) {
				ev = field.EvaluateMap{}
			}
			v, err := LazyMap(ev, s, x)
			if err != nil {
				return nil, true, err
			}
			vals[j] = v
		}
		out, err := LazyMap(field.Broadcasting{Op: op.Op}, vals...)
		return out, true, err
	case field.ComposeMap:
		applied("evaluate_compose")
		y, err := LazyMap(field.EvaluateMap{}, args[1], x)
		if err != nil {
			return nil, true, err
		}
		out, err := LazyMap(field.EvaluateMap{}, args[0], y)
		return out, true, err
	case field.TrialMap:
		applied("evaluate_trial")
		vals, err := LazyMap(field.EvaluateMap{}, args[0], x)
		if err != nil {
			return nil, true, err
		}
		out, err := LazyMap(field.TrialValuesMap{}, vals)
		return out, true, err
	}
	return nil, false, nil
}

func rewriteGradient(inner field.Map, args []Array) (Array, bool, error) {
	switch op := inner.(type) {
	case field.LinearCombination:
		applied("gradient_lincomb")
		g, err := LazyMap(field.GradientMap{}, args[1])
		if err != nil {
			return nil, true, err
		}
		out, err := LazyMap(field.LinearCombination{}, args[0], g)
		return out, true, err
	case field.Operation:
		rule, bilinear := field.ProductRule(op.Op)
		if op.Op != field.Add && op.Op != field.Sub && !(bilinear && len(args) == 2) {
			return nil, false, nil
		}
		for _, s := range args {
			// promoted constants are differentiated per cell
			if f, ok := s.(*Fill); ok {
				if _, isField := f.Value.(field.Field); !isField {
					return nil, false, nil
				}
			}
		}
		grads := make([]Array, len(args))
		for j, s := range args {
			g, err := LazyMap(field.GradientMap{}, s)
			if err != nil {
				return nil, true, err
			}
			grads[j] = g
		}
		if bilinear {
			applied("gradient_product")
			out, err := LazyMap(field.Operation{Op: rule}, args[0], grads[0], args[1], grads[1])
			return out, true, err
		}
		applied("gradient_operation")
		out, err := LazyMap(op, grads...)
		return out, true, err
	}
	return nil, false, nil
}

// producesFields reports whether every entry of s is known to be a Field,
// so evaluating it can go through the rewrite rules.
func producesFields(s Array) bool {
	switch a := s.(type) {
	case *Fill:
		_, ok := a.Value.(field.Field)
		return ok
	case *LazyArray:
		m, ok := a.constantOp()
		if !ok {
			return false
		}
		switch m.(type) {
		case field.LinearCombination, field.Operation, field.ComposeMap, field.TrialMap, field.GradientMap:
			return true
		}
	}
	return false
}

// evaluateArg evaluates Field arguments at the points and passes other
// values (constants promoted by an Operation) through unchanged.
type evaluateArg struct{}

func (evaluateArg) NewCache(args ...any) any {
	if len(args) == 2 {
		if _, ok := args[0].(field.Field); ok {
			return field.EvaluateMap{}.NewCache(args...)
		}
	}
	return nil
}

func (evaluateArg) Evaluate(cache any, args ...any) (any, error) {
	if len(args) == 2 {
		if _, ok := args[0].(field.Field); !ok {
			return args[0], nil
		}
	}
	return field.EvaluateMap{}.Evaluate(cache, args...)
}
