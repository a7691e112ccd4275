package field

import (
	"fmt"

	"github.com/notargets/cellfield/utils"
)

// Point is a coordinate tuple in D-dimensional space. Points handed to the
// engine are never mutated by it.
type Point []float64

// Values is a dense, row-major block of point values.
//
// Dims indexes the entries, e.g. [P] for one field at P points or [P,K] for
// K basis functions at P points. Item is the shape of every entry: empty for
// scalars, [D] for vectors and [D,D] for tensors. Data holds
// prod(Dims)*prod(Item) numbers, entry by entry.
type Values struct {
	Dims []int
	Item []int
	Data []float64
}

// NewValues allocates a zeroed block with the given entry dims and item shape.
func NewValues(dims, item []int) *Values {
	v := &Values{}
	v.Resize(dims, item)
	return v
}

// NewScalars wraps a slice of scalars as a Values block of dims [len(s)].
func NewScalars(s []float64) *Values {
	return &Values{Dims: []int{len(s)}, Item: []int{}, Data: s}
}

// NewPoints copies a slice of points of equal dimension into a Values block
// of dims [len(pts)] and item [D].
func NewPoints(pts []Point) *Values {
	d := 0
	if len(pts) > 0 {
		d = len(pts[0])
	}
	v := NewValues([]int{len(pts)}, []int{d})
	for i, p := range pts {
		copy(v.Data[i*d:(i+1)*d], p)
	}
	return v
}

// Len returns the number of entries.
func (v *Values) Len() int { return prod(v.Dims) }

// ItemSize returns the number of floats per entry.
func (v *Values) ItemSize() int { return prod(v.Item) }

// Entry returns the flat entry i as a sub-slice of Data.
func (v *Values) Entry(i int) []float64 {
	n := v.ItemSize()
	return v.Data[i*n : (i+1)*n]
}

// At returns the entry at the multi-index idx (one index per dim).
func (v *Values) At(idx ...int) []float64 {
	return v.Entry(flatIndex(v.Dims, idx))
}

// Point returns entry i viewed as a Point.
func (v *Values) Point(i int) Point { return Point(v.Entry(i)) }

// Resize reshapes v in place, reusing the capacity of Data when it suffices.
// Contents are not preserved.
func (v *Values) Resize(dims, item []int) {
	v.Dims = append(v.Dims[:0], dims...)
	v.Item = append(v.Item[:0], item...)
	if v.Item == nil {
		v.Item = []int{}
	}
	n := prod(dims) * prod(item)
	if cap(v.Data) < n {
		v.Data = make([]float64, n)
		return
	}
	v.Data = v.Data[:n]
}

// Zero sets every number in the block to zero.
func (v *Values) Zero() {
	for i := range v.Data {
		v.Data[i] = 0
	}
}

// Clone returns a deep copy that does not alias v.
func (v *Values) Clone() *Values {
	c := NewValues(v.Dims, v.Item)
	copy(c.Data, v.Data)
	return c
}

// SameShape reports whether v and o have identical dims and item shapes.
func (v *Values) SameShape(o *Values) bool {
	return sameInts(v.Dims, o.Dims) && sameInts(v.Item, o.Item)
}

func (v *Values) String() string {
	return fmt.Sprintf("Values{dims=%v item=%v}", v.Dims, v.Item)
}

// asValues normalises the value kinds accepted as array arguments.
func asValues(arg any) (*Values, error) {
	return valuesInto(arg, nil)
}

// valuesInto is asValues copying the plain kinds (float64, []float64,
// []Point) into buf. A nil buf allocates.
func valuesInto(arg any, buf *Values) (*Values, error) {
	if buf == nil {
		buf = &Values{}
	}
	switch a := arg.(type) {
	case *Values:
		return a, nil
	case float64:
		buf.Resize(nil, nil)
		if buf.Dims == nil {
			buf.Dims = []int{}
		}
		buf.Data[0] = a
		return buf, nil
	case []float64:
		buf.Resize([]int{len(a)}, nil)
		copy(buf.Data, a)
		return buf, nil
	case []Point:
		d := 0
		if len(a) > 0 {
			d = len(a[0])
		}
		buf.Resize([]int{len(a)}, []int{d})
		for i, p := range a {
			copy(buf.Data[i*d:(i+1)*d], p)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%T is not an array value: %w", arg, utils.ErrUnsupportedArgument)
	}
}

func prod(s []int) int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flatIndex(dims, idx []int) int {
	k := 0
	for i, d := range dims {
		k = k*d + idx[i]
	}
	return k
}
