// Package lazy provides index-addressable arrays whose entries are computed
// on demand. A LazyArray is an expression node (an operation plus source
// arrays); nothing is evaluated until an entry is requested, and the caches
// that make repeated access cheap are explicit values threaded through Get.
package lazy

import (
	"fmt"

	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/utils"
)

// Array is a read-only, fixed-length sequence.
//
// NewCache returns the per-traversal scratch state; Get accepts only caches
// built by the same array (or nil, which costs a transient cache). Entries
// returned by Get may live in the cache and are valid until the next Get on
// it.
type Array interface {
	Len() int
	NewCache() any
	Get(cache any, i int) (any, error)
}

// Get indexes a with a transient cache.
func Get(a Array, i int) (any, error) {
	transientCaches.Inc()
	return a.Get(a.NewCache(), i)
}

// Collect evaluates every entry with one shared cache and returns copies that
// do not alias any cache.
func Collect(a Array) ([]any, error) {
	c := a.NewCache()
	out := make([]any, a.Len())
	for i := range out {
		v, err := a.Get(c, i)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[i] = detach(v)
	}
	return out, nil
}

// Each visits every entry in order with one shared cache. The entry passed to
// fn is only valid for the duration of the call.
func Each(a Array, fn func(i int, v any) error) error {
	c := a.NewCache()
	for i := 0; i < a.Len(); i++ {
		v, err := a.Get(c, i)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if err := fn(i, v); err != nil {
			return err
		}
	}
	return nil
}

func detach(v any) any {
	switch x := v.(type) {
	case *field.Values:
		return x.Clone()
	case []float64:
		return append([]float64(nil), x...)
	case []int:
		return append([]int(nil), x...)
	case []field.Point:
		return append([]field.Point(nil), x...)
	}
	return v
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("index %d of %d: %w", i, n, utils.ErrOutOfBounds)
	}
	return nil
}

// Fill is the uniform array: one value at every index, O(1) storage.
type Fill struct {
	Value any
	N     int
}

// NewFill returns a uniform array of length n holding v.
func NewFill(v any, n int) *Fill { return &Fill{Value: v, N: n} }

func (f *Fill) Len() int      { return f.N }
func (f *Fill) NewCache() any { return nil }

func (f *Fill) Get(_ any, i int) (any, error) {
	if err := checkIndex(i, f.N); err != nil {
		return nil, err
	}
	return f.Value, nil
}

// Slice adapts a Go slice to an Array.
type Slice[T any] struct {
	Items []T
}

// FromSlice wraps items without copying.
func FromSlice[T any](items []T) *Slice[T] { return &Slice[T]{Items: items} }

func (s *Slice[T]) Len() int      { return len(s.Items) }
func (s *Slice[T]) NewCache() any { return nil }

func (s *Slice[T]) Get(_ any, i int) (any, error) {
	if err := checkIndex(i, len(s.Items)); err != nil {
		return nil, err
	}
	return s.Items[i], nil
}
