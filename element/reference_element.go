package element

import "fmt"

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D elements (points)
	D1                       // 1D elements (lines, edges)
	D2                       // 2D elements (quadrilaterals)
	D3                       // 3D elements (hexahedra)
)

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name       string          // Full descriptive name (e.g., "Lagrange Rectangle Order 2")
	ShortName  string          // Abbreviated name (e.g., "Rect2")
	Type       ElementGeometry // Element shape
	Order      int             // Polynomial order per coordinate
	Np         int             // Total number of nodes in element
	NVp        int             // Number of vertex nodes (equals number of vertices)
	NIp        int             // Number of strictly interior nodes
	NFaces     int             // Number of faces in each element
	Dimensions Dimensionality  // Spatial dimension (1D, 2D, or 3D)
}

func (p ElementProperties) String() string {
	return fmt.Sprintf("%s: Np=%d, NVp=%d, NIp=%d, NFaces=%d", p.Name, p.Np, p.NVp, p.NIp, p.NFaces)
}
