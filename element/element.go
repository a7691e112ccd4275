package element

import (
	"github.com/notargets/cellfield/field"
)

type ElementGeometry uint8

const (
	Line ElementGeometry = iota
	Rectangle
	Hex
)

func (g ElementGeometry) String() string {
	switch g {
	case Line:
		return "Line"
	case Rectangle:
		return "Rectangle"
	case Hex:
		return "Hex"
	}
	return "Unknown"
}

// GeometryFor returns the n-cube geometry of the given dimension.
func GeometryFor(d Dimensionality) ElementGeometry {
	switch d {
	case D1:
		return Line
	case D2:
		return Rectangle
	}
	return Hex
}

// Element is a reference cell with a nodal shape-function basis.
type Element interface {
	GetProperties() ElementProperties

	// Nodes are the reference coordinates of the Np nodes, in basis order.
	Nodes() []field.Point
	VertexPoints() []int
	// BoundaryPoints are the nodes on the boundary of the reference cell.
	BoundaryPoints() []int

	// Basis is the Field of the Np shape functions: evaluated at P points it
	// returns dims [P,Np].
	Basis() field.Field

	// Quadrature returns a rule exact for polynomials of the given degree in
	// each coordinate.
	Quadrature(degree int) (*Quadrature, error)
}
