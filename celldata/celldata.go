// Package celldata holds per-cell collections of quantities tagged with the
// coordinate domain they live in.
package celldata

import (
	"fmt"

	"github.com/notargets/cellfield/element"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/utils"
	"github.com/rs/zerolog/log"
)

// DomainStyle says whether cell quantities are expressed in the reference
// cell coordinates or in physical mesh coordinates.
type DomainStyle uint8

const (
	ReferenceDomain DomainStyle = iota
	PhysicalDomain
)

func (d DomainStyle) String() string {
	switch d {
	case ReferenceDomain:
		return "Reference"
	case PhysicalDomain:
		return "Physical"
	}
	return fmt.Sprintf("DomainStyle(%d)", uint8(d))
}

// CellDatum is a per-cell virtual array with a fixed domain.
type CellDatum interface {
	CellData() lazy.Array
	DomainStyle() DomainStyle
}

// Datum is the plain CellDatum: an array and its domain.
type Datum struct {
	Data   lazy.Array
	Domain DomainStyle
}

func (d Datum) CellData() lazy.Array     { return d.Data }
func (d Datum) DomainStyle() DomainStyle { return d.Domain }

// CellPoint is a per-cell array of point blocks (*field.Values with dims [P]
// and item [D]).
type CellPoint struct {
	points lazy.Array
	domain DomainStyle
	trian  *geometry.Triangulation
}

// NewCellPoint tags points with a domain. trian may be nil, in which case
// the points cannot change domain.
func NewCellPoint(points lazy.Array, domain DomainStyle, trian *geometry.Triangulation) *CellPoint {
	return &CellPoint{points: points, domain: domain, trian: trian}
}

func (c *CellPoint) CellData() lazy.Array                   { return c.points }
func (c *CellPoint) DomainStyle() DomainStyle               { return c.domain }
func (c *CellPoint) Triangulation() *geometry.Triangulation { return c.trian }

// ChangeDomain maps the points through the cell maps (Reference to
// Physical) or their inverses (Physical to Reference).
func (c *CellPoint) ChangeDomain(target DomainStyle) (*CellPoint, error) {
	if target == c.domain {
		return c, nil
	}
	if c.trian == nil {
		return nil, fmt.Errorf("points from %s to %s without a triangulation: %w", c.domain, target, utils.ErrDomainMismatch)
	}
	if c.points.Len() != c.trian.NumCells() {
		return nil, fmt.Errorf("%d point sets on %d cells: %w", c.points.Len(), c.trian.NumCells(), utils.ErrShapeMismatch)
	}
	var maps lazy.Array
	switch target {
	case PhysicalDomain:
		maps = c.trian.CellMaps()
	case ReferenceDomain:
		maps = c.trian.InverseMaps()
	default:
		return nil, fmt.Errorf("domain %s: %w", target, utils.ErrDomainMismatch)
	}
	pts, err := lazy.LazyMap(field.EvaluateMap{}, maps, c.points)
	if err != nil {
		return nil, err
	}
	return &CellPoint{points: pts, domain: target, trian: c.trian}, nil
}

// CellQuadrature is one reference quadrature rule shared by every cell.
type CellQuadrature struct {
	Rule  *element.Quadrature
	trian *geometry.Triangulation

	points  lazy.Array
	weights lazy.Array
}

// NewCellQuadrature builds the rule of the reference element that integrates
// polynomials of the given degree exactly.
func NewCellQuadrature(trian *geometry.Triangulation, degree int) (*CellQuadrature, error) {
	rule, err := trian.Reference().Quadrature(degree)
	if err != nil {
		return nil, err
	}
	n := trian.NumCells()
	log.Debug().Int("degree", degree).Int("points", rule.Len()).Msg("cell quadrature")
	return &CellQuadrature{
		Rule:    rule,
		trian:   trian,
		points:  lazy.NewFill(rule.PointValues(), n),
		weights: lazy.NewFill(rule.Weights, n),
	}, nil
}

// CellData is the per-cell block of reference quadrature points.
func (q *CellQuadrature) CellData() lazy.Array                   { return q.points }
func (q *CellQuadrature) DomainStyle() DomainStyle               { return ReferenceDomain }
func (q *CellQuadrature) Triangulation() *geometry.Triangulation { return q.trian }
func (q *CellQuadrature) Weights() lazy.Array                    { return q.weights }

// CellPoint returns the quadrature points as a CellPoint.
func (q *CellQuadrature) CellPoint() *CellPoint {
	return NewCellPoint(q.points, ReferenceDomain, q.trian)
}

// Jacobians is the per-cell transposed Jacobian at the quadrature points.
func (q *CellQuadrature) Jacobians() (lazy.Array, error) {
	return lazy.LazyMap(field.EvaluateMap{}, q.trian.CellJacobians(), q.points)
}
