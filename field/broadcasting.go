package field

import (
	"fmt"

	"github.com/notargets/cellfield/utils"
)

// Broadcasting applies Op entry-wise across array arguments.
//
// Entry dims are aligned from the left and singleton (or missing trailing)
// dims are expanded, so a [P] block combines with a [P,K] block into a
// [P,K] result: the [P] entry p is reused for every k. Arguments may be
// *Values, []float64, []Point or a float64 constant.
type Broadcasting struct {
	Op Operator
}

type broadcastCache struct {
	out     *Values
	vals    []*Values
	bufs    []*Values
	items   [][]int
	strides [][]int
	counter []int
	entries [][]float64
}

func (b Broadcasting) NewCache(args ...any) any {
	return &broadcastCache{out: &Values{}}
}

func (b Broadcasting) Evaluate(cache any, args ...any) (any, error) {
	c, ok := cache.(*broadcastCache)
	if !ok {
		c = &broadcastCache{out: &Values{}}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("broadcasting %s with no arguments: %w", b.Op.Name(), utils.ErrUnsupportedArgument)
	}
	c.vals = c.vals[:0]
	c.items = c.items[:0]
	for len(c.bufs) < len(args) {
		c.bufs = append(c.bufs, &Values{})
	}
	for j, a := range args {
		v, err := valuesInto(a, c.bufs[j])
		if err != nil {
			return nil, fmt.Errorf("broadcasting %s: %w", b.Op.Name(), err)
		}
		c.vals = append(c.vals, v)
		c.items = append(c.items, v.Item)
	}
	item, err := b.Op.ResultItem(c.items...)
	if err != nil {
		return nil, err
	}
	dims, err := broadcastDims(c.vals)
	if err != nil {
		return nil, fmt.Errorf("broadcasting %s: %w", b.Op.Name(), err)
	}
	c.out.Resize(dims, item)
	c.prepare(dims)

	n := prod(dims)
	for e := 0; e < n; e++ {
		for j, v := range c.vals {
			c.entries[j] = v.Entry(offset(c.strides[j], c.counter))
		}
		if err := b.Op.Apply(c.out.Entry(e), c.items, c.entries...); err != nil {
			return nil, fmt.Errorf("%s at entry %d: %w", b.Op.Name(), e, err)
		}
		increment(c.counter, dims)
	}
	return c.out, nil
}

// prepare computes per-argument entry strides over the result dims, with a
// zero stride on every broadcast dim.
func (c *broadcastCache) prepare(dims []int) {
	if cap(c.counter) < len(dims) {
		c.counter = make([]int, len(dims))
	}
	c.counter = c.counter[:len(dims)]
	for i := range c.counter {
		c.counter[i] = 0
	}
	for len(c.strides) < len(c.vals) {
		c.strides = append(c.strides, nil)
	}
	c.strides = c.strides[:len(c.vals)]
	for j, v := range c.vals {
		st := c.strides[j]
		if cap(st) < len(dims) {
			st = make([]int, len(dims))
		}
		st = st[:len(dims)]
		stride := 1
		for d := len(dims) - 1; d >= 0; d-- {
			st[d] = 0
			if d < len(v.Dims) && v.Dims[d] != 1 {
				st[d] = stride
				stride *= v.Dims[d]
			}
		}
		c.strides[j] = st
	}
	if cap(c.entries) < len(c.vals) {
		c.entries = make([][]float64, len(c.vals))
	}
	c.entries = c.entries[:len(c.vals)]
}

func broadcastDims(vals []*Values) ([]int, error) {
	rank := 0
	for _, v := range vals {
		if len(v.Dims) > rank {
			rank = len(v.Dims)
		}
	}
	dims := make([]int, rank)
	for i := range dims {
		dims[i] = 1
	}
	for _, v := range vals {
		for d, n := range v.Dims {
			switch {
			case n == dims[d] || n == 1:
			case dims[d] == 1:
				dims[d] = n
			default:
				return nil, fmt.Errorf("cannot broadcast dims %v against %v: %w", v.Dims, dims, utils.ErrShapeMismatch)
			}
		}
	}
	return dims, nil
}

func offset(strides, counter []int) int {
	k := 0
	for i, s := range strides {
		k += s * counter[i]
	}
	return k
}

func increment(counter, dims []int) {
	for d := len(dims) - 1; d >= 0; d-- {
		counter[d]++
		if counter[d] < dims[d] {
			return
		}
		counter[d] = 0
	}
}
