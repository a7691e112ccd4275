// Package assembly scatters per-cell contributions into a global system
// and solves it.
//
// Cells are split into partitions that are traversed concurrently. Every
// goroutine acquires its own caches on the shared lazy arrays; the arrays
// themselves are only read.
package assembly

import (
	"context"
	"fmt"
	"runtime"

	"github.com/james-bowman/sparse"
	"github.com/notargets/cellfield/fespace"
	"github.com/notargets/cellfield/field"
	"github.com/notargets/cellfield/lazy"
	"github.com/notargets/cellfield/partitions"
	"github.com/notargets/cellfield/utils"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/notargets/cellfield/assembly")

// Config controls the parallel traversal.
type Config struct {
	// Partitions is the number of cell groups; 0 means one per worker.
	Partitions int `yaml:"partitions"`
	// Strategy is "block" or "round-robin".
	Strategy string `yaml:"strategy"`
	// Workers bounds the concurrent partitions; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DefaultConfig uses one block partition per available CPU.
func DefaultConfig() Config {
	return Config{Strategy: "block"}
}

// Assembler scatters cell contributions of one FE space.
type Assembler struct {
	space  *fespace.Space
	cfg    Config
	layout *partitions.PartitionLayout
}

func NewAssembler(space *fespace.Space, cfg Config) (*Assembler, error) {
	strategy, err := partitions.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = cfg.Workers
	}
	pb := &partitions.PartitionBuilder{
		NumCells:      space.Triangulation().NumCells(),
		NumPartitions: cfg.Partitions,
		Strategy:      strategy,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, err
	}
	stats := layout.PartitionStatistics()
	log.Debug().Int("partitions", stats.NumPartitions).Int("workers", cfg.Workers).
		Float64("imbalance", stats.Imbalance).Str("strategy", strategy.String()).Msg("assembler ready")
	return &Assembler{space: space, cfg: cfg, layout: layout}, nil
}

func (a *Assembler) Layout() *partitions.PartitionLayout { return a.layout }

// System is the assembled free-dof system A u = b.
type System struct {
	Matrix *sparse.CSR
	RHS    []float64
}

type triplet struct {
	i, j int
	v    float64
}

// partial is what one partition contributes.
type partial struct {
	entries []triplet
	rhs     []float64
}

// Assemble builds the free-dof system from per-cell matrix contributions
// (entries [K,K], test index first) and optional vector contributions
// (entries [K]). Columns of fixed dofs are moved to the right-hand side
// using the fixed values.
func (a *Assembler) Assemble(ctx context.Context, matrix, vector lazy.Array, fixed []float64) (*System, error) {
	ctx, span := tracer.Start(ctx, "assemble")
	defer span.End()
	n := a.space.NumFreeDofs()
	if len(fixed) != a.space.NumFixedDofs() {
		return nil, fmt.Errorf("%d fixed values for %d fixed dofs: %w", len(fixed), a.space.NumFixedDofs(), utils.ErrShapeMismatch)
	}
	dofs := a.space.CellDofIDs()
	for _, arr := range []lazy.Array{matrix, vector} {
		if arr != nil && arr.Len() != dofs.Len() {
			return nil, fmt.Errorf("%d contributions for %d cells: %w", arr.Len(), dofs.Len(), utils.ErrShapeMismatch)
		}
	}
	span.SetAttributes(attribute.Int("cells", dofs.Len()), attribute.Int("free_dofs", n))
	assemblyPasses.Inc()

	parts := make([]partial, a.layout.NumPartitions)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for _, p := range a.layout.Partitions {
		g.Go(func() error {
			out, err := a.assemblePartition(gctx, p, matrix, vector, fixed)
			if err != nil {
				return fmt.Errorf("partition %d: %w", p.ID, err)
			}
			parts[p.ID] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	dok := sparse.NewDOK(n, n)
	rhs := make([]float64, n)
	for _, p := range parts {
		for _, t := range p.entries {
			dok.Set(t.i, t.j, dok.At(t.i, t.j)+t.v)
		}
		for i, v := range p.rhs {
			rhs[i] += v
		}
	}
	sys := &System{Matrix: dok.ToCSR(), RHS: rhs}
	log.Debug().Int("rows", n).Int("nnz", sys.Matrix.NNZ()).Msg("system assembled")
	return sys, nil
}

func (a *Assembler) assemblePartition(ctx context.Context, p partitions.Partition, matrix, vector lazy.Array, fixed []float64) (partial, error) {
	_, span := tracer.Start(ctx, "assemble.partition",
		trace.WithAttributes(attribute.Int("partition", p.ID), attribute.Int("cells", p.NumCells)))
	defer span.End()

	out := partial{rhs: make([]float64, a.space.NumFreeDofs())}
	dofs := a.space.CellDofIDs()
	dc := dofs.NewCache()
	var mc, vc any
	if matrix != nil {
		mc = matrix.NewCache()
	}
	if vector != nil {
		vc = vector.NewCache()
	}
	for _, c := range p.Cells {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		d, err := dofs.Get(dc, c)
		if err != nil {
			return out, err
		}
		ids := d.([]int)
		if vector != nil {
			v, err := vector.Get(vc, c)
			if err != nil {
				return out, err
			}
			if err := scatterVector(out.rhs, ids, v); err != nil {
				return out, fmt.Errorf("cell %d: %w", c, err)
			}
		}
		if matrix != nil {
			m, err := matrix.Get(mc, c)
			if err != nil {
				return out, err
			}
			if err := out.scatterMatrix(ids, m, fixed); err != nil {
				return out, fmt.Errorf("cell %d: %w", c, err)
			}
		}
		cellsAssembled.Inc()
	}
	return out, nil
}

func cellBlock(v any, dims ...int) (*field.Values, error) {
	vals, ok := v.(*field.Values)
	if !ok {
		return nil, fmt.Errorf("contribution %T: %w", v, utils.ErrUnsupportedArgument)
	}
	if vals.ItemSize() != 1 || len(vals.Dims) != len(dims) {
		return nil, fmt.Errorf("contribution %v, want dims %v: %w", vals, dims, utils.ErrShapeMismatch)
	}
	for i, n := range dims {
		if vals.Dims[i] != n {
			return nil, fmt.Errorf("contribution %v, want dims %v: %w", vals, dims, utils.ErrShapeMismatch)
		}
	}
	return vals, nil
}

func scatterVector(rhs []float64, ids []int, v any) error {
	vals, err := cellBlock(v, len(ids))
	if err != nil {
		return err
	}
	for k, id := range ids {
		if id > 0 {
			rhs[id-1] += vals.Data[k]
		}
	}
	return nil
}

func (p *partial) scatterMatrix(ids []int, m any, fixed []float64) error {
	k := len(ids)
	vals, err := cellBlock(m, k, k)
	if err != nil {
		return err
	}
	for r, row := range ids {
		if row < 0 {
			continue
		}
		for c, col := range ids {
			v := vals.Data[r*k+c]
			if v == 0 {
				continue
			}
			if col > 0 {
				p.entries = append(p.entries, triplet{row - 1, col - 1, v})
			} else {
				p.rhs[row-1] -= v * fixed[-col-1]
			}
		}
	}
	return nil
}
