package assembly

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/james-bowman/sparse"
	"github.com/notargets/cellfield/utils"
)

// Snapshot is the CBOR record of an assembled system and its solution.
// The matrix is stored as coordinate triplets.
type Snapshot struct {
	Rows  int       `cbor:"rows"`
	I     []int     `cbor:"i"`
	J     []int     `cbor:"j"`
	V     []float64 `cbor:"v"`
	RHS   []float64 `cbor:"rhs"`
	Free  []float64 `cbor:"free,omitempty"`
	Fixed []float64 `cbor:"fixed,omitempty"`
}

// NewSnapshot records sys and, when given, the dof values.
func NewSnapshot(sys *System, free, fixed []float64) *Snapshot {
	s := &Snapshot{Rows: len(sys.RHS), RHS: sys.RHS, Free: free, Fixed: fixed}
	sys.Matrix.DoNonZero(func(i, j int, v float64) {
		s.I = append(s.I, i)
		s.J = append(s.J, j)
		s.V = append(s.V, v)
	})
	return s
}

// System rebuilds the assembled system.
func (s *Snapshot) System() (*System, error) {
	if len(s.I) != len(s.V) || len(s.J) != len(s.V) || len(s.RHS) != s.Rows {
		return nil, fmt.Errorf("snapshot with %d rows, %d/%d/%d triplets and %d rhs: %w",
			s.Rows, len(s.I), len(s.J), len(s.V), len(s.RHS), utils.ErrShapeMismatch)
	}
	dok := sparse.NewDOK(s.Rows, s.Rows)
	for k, v := range s.V {
		i, j := s.I[k], s.J[k]
		if i < 0 || i >= s.Rows || j < 0 || j >= s.Rows {
			return nil, fmt.Errorf("triplet (%d,%d) in %d rows: %w", i, j, s.Rows, utils.ErrOutOfBounds)
		}
		dok.Set(i, j, dok.At(i, j)+v)
	}
	return &System{Matrix: dok.ToCSR(), RHS: s.RHS}, nil
}

// WriteSnapshot encodes s as CBOR.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	return cbor.NewEncoder(w).Encode(s)
}

// ReadSnapshot decodes a CBOR snapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}
