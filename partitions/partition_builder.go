package partitions

import (
	"fmt"
	"math"
)

// PartitionStrategy defines how cells are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive cells
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy maps "block" and "round-robin" to a strategy.
func ParseStrategy(s string) (PartitionStrategy, error) {
	switch s {
	case "", "block":
		return BlockPartition, nil
	case "round-robin", "roundrobin":
		return RoundRobin, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", s)
}

// PartitionBuilder splits NumCells cells into NumPartitions partitions.
type PartitionBuilder struct {
	NumCells      int
	NumPartitions int
	Strategy      PartitionStrategy
}

// BuildPartitions creates a partition layout. More partitions than cells
// are clamped to one cell per partition.
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumCells < 1 {
		return nil, fmt.Errorf("cannot partition %d cells", pb.NumCells)
	}
	numPartitions := pb.NumPartitions
	if numPartitions < 1 {
		numPartitions = 1
	}
	if numPartitions > pb.NumCells {
		numPartitions = pb.NumCells
	}

	cToP := pb.partitionCells(numPartitions)
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i].ID = i
	}
	for c, p := range cToP {
		partitions[p].Cells = append(partitions[p].Cells, c)
		partitions[p].NumCells++
	}
	kpartMax := 0
	for _, p := range partitions {
		if p.NumCells > kpartMax {
			kpartMax = p.NumCells
		}
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalCells:    pb.NumCells,
		NumPartitions: numPartitions,
		CToP:          cToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

func (pb *PartitionBuilder) partitionCells(numPartitions int) []int {
	cToP := make([]int, pb.NumCells)
	switch pb.Strategy {
	case RoundRobin:
		for i := range cToP {
			cToP[i] = i % numPartitions
		}
	default:
		perPartition := int(math.Ceil(float64(pb.NumCells) / float64(numPartitions)))
		for i := range cToP {
			cToP[i] = i / perPartition
			if cToP[i] >= numPartitions {
				cToP[i] = numPartitions - 1
			}
		}
	}
	return cToP
}
