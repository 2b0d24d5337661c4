package partition

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/tuneinsight/partition-noise-analyzer/dag"
)

// PartitionIndex identifies a class of cryptographic parameters.
type PartitionIndex = int

// ErrTooManyCuts is returned when more than one precision cut is given.
var ErrTooManyCuts = errors.New("multi-parameter can only be used with 0 or 1 precision cut")

// PrecisionCut splits the Luts into partitions according to the
// precision of their input: a Lut whose input has at most PCut[i] bits
// belongs to the first such partition i, otherwise to len(PCut).
type PrecisionCut struct {
	PCut []dag.Precision
}

// Validate returns ErrTooManyCuts if p has more than one threshold.
func (p PrecisionCut) Validate() error {
	if len(p.PCut) > 1 {
		return fmt.Errorf("invalid precision cut %v: %w", p.PCut, ErrTooManyCuts)
	}
	return nil
}

// NbPartitions returns the number of partitions p defines before unused
// ones are removed.
func (p PrecisionCut) NbPartitions() int {
	return len(p.PCut) + 1
}

// PartitionOf returns the partition of the operator op if it is a Lut.
func (p PrecisionCut) PartitionOf(d *dag.OperationDag, op dag.OperatorIndex) (PartitionIndex, bool) {

	lut, ok := d.Operators[op].(dag.Lut)
	if !ok {
		return 0, false
	}

	precision := d.OutPrecisions[lut.Input]
	for partition, cut := range p.PCut {
		if precision <= cut {
			return partition, true
		}
	}

	return len(p.PCut), true
}

// InstructionPartition is the partition of one operator: its home
// Partition, where it is computed, and the Alternatives in which a
// converted copy of its output must be materialized for its consumers.
type InstructionPartition struct {
	Partition    PartitionIndex
	Alternatives []PartitionIndex
}

// NewInstructionPartition returns an InstructionPartition without alternative.
func NewInstructionPartition(partition PartitionIndex) InstructionPartition {
	return InstructionPartition{Partition: partition}
}

// AddAlternative inserts q in the sorted set of alternatives.
func (ip *InstructionPartition) AddAlternative(q PartitionIndex) {
	i, found := slices.BinarySearch(ip.Alternatives, q)
	if !found {
		ip.Alternatives = slices.Insert(ip.Alternatives, i, q)
	}
}

func (ip InstructionPartition) HasAlternative(q PartitionIndex) bool {
	_, found := slices.BinarySearch(ip.Alternatives, q)
	return found
}

// Materialized reports whether the output is available in partition q,
// either natively or converted.
func (ip InstructionPartition) Materialized(q PartitionIndex) bool {
	return ip.Partition == q || ip.HasAlternative(q)
}

func (ip InstructionPartition) String() string {
	if len(ip.Alternatives) == 0 {
		return fmt.Sprintf("%d", ip.Partition)
	}
	return fmt.Sprintf("%d -> %v", ip.Partition, ip.Alternatives)
}

// Partitions is the result of the partition assignment of a DAG.
type Partitions struct {
	NbPartitions    int
	InstrsPartition []InstructionPartition
}
