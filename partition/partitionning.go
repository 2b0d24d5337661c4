package partition

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/utils"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/tuneinsight/partition-noise-analyzer/dag"
)

// blocks is a union-find over operator indexes. Two operators are in the
// same levelled block when their outputs are combined without bootstrap.
type blocks struct {
	parent []int
}

func newBlocks(n int) *blocks {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &blocks{parent: parent}
}

func (b *blocks) find(i int) int {
	for b.parent[i] != i {
		b.parent[i] = b.parent[b.parent[i]]
		i = b.parent[i]
	}
	return i
}

func (b *blocks) union(i, j int) {
	ri, rj := b.find(i), b.find(j)
	if ri == rj {
		return
	}
	// the smallest index is the representative
	if ri < rj {
		b.parent[rj] = ri
	} else {
		b.parent[ri] = rj
	}
}

// extractLevelledBlocks merges every non Lut operator with its operands.
func extractLevelledBlocks(d *dag.OperationDag) *blocks {
	b := newBlocks(d.Len())
	for i, op := range d.Operators {
		if _, ok := op.(dag.Lut); ok {
			continue
		}
		for _, in := range op.Operands() {
			b.union(i, in)
		}
	}
	return b
}

// PartitionningWithPreferred assigns every operator of the normalized DAG d
// to a partition.
//
// Luts are computed in the partition given by the precision cut of their
// input. The operators of a levelled block share the partition of the Luts
// consuming the block (preferred if it is one of them, the highest
// otherwise), else of the Luts producing into it, else preferred. A Lut
// whose block lives in another partition materializes its output there.
// Unused partitions are finally removed.
func PartitionningWithPreferred(d *dag.OperationDag, pCut PrecisionCut, preferred PartitionIndex) (p Partitions, err error) {

	if err = pCut.Validate(); err != nil {
		return
	}

	nbPartitions := pCut.NbPartitions()

	if preferred < 0 || preferred >= nbPartitions {
		return p, fmt.Errorf("invalid preferred partition %d: must be in [0, %d)", preferred, nbPartitions)
	}

	if d.HasRound() {
		return p, fmt.Errorf("cannot assign partitions: the dag contains a Round, it must be expanded first")
	}

	n := d.Len()

	if len(pCut.PCut) == 0 {
		p.NbPartitions = 1
		p.InstrsPartition = make([]InstructionPartition, n)
		return
	}

	b := extractLevelledBlocks(d)

	lutPartition := make(map[dag.OperatorIndex]PartitionIndex)
	consumed := make(map[int][]PartitionIndex)
	produced := make(map[int][]PartitionIndex)

	for i := range d.Operators {
		partition, isLut := pCut.PartitionOf(d, i)
		if !isLut {
			continue
		}
		lutPartition[i] = partition
		produced[b.find(i)] = append(produced[b.find(i)], partition)
	}

	for i, consumers := range d.Consumers() {
		root := b.find(i)
		for _, c := range consumers {
			if partition, isLut := lutPartition[c]; isLut {
				consumed[root] = append(consumed[root], partition)
			}
		}
	}

	choose := func(partitions []PartitionIndex) PartitionIndex {
		if utils.IsInSlice(preferred, partitions) {
			return preferred
		}
		highest := partitions[0]
		for _, q := range partitions[1:] {
			highest = utils.Max(highest, q)
		}
		return highest
	}

	blockPartition := func(root int) PartitionIndex {
		if partitions := utils.GetDistincts(consumed[root]); len(partitions) > 0 {
			return choose(partitions)
		}
		if partitions := utils.GetDistincts(produced[root]); len(partitions) > 0 {
			return choose(partitions)
		}
		return preferred
	}

	resolved := make(map[int]PartitionIndex)

	instrs := make([]InstructionPartition, n)
	for i := range d.Operators {

		root := b.find(i)

		block, ok := resolved[root]
		if !ok {
			block = blockPartition(root)
			resolved[root] = block
		}

		if partition, isLut := lutPartition[i]; isLut {
			instrs[i] = NewInstructionPartition(partition)
			if partition != block {
				instrs[i].AddAlternative(block)
			}
			continue
		}

		instrs[i] = NewInstructionPartition(block)
	}

	return compact(instrs), nil
}

// compact renumbers the partitions used by instrs as 0, 1, ... in order.
func compact(instrs []InstructionPartition) (p Partitions) {

	used := make(map[PartitionIndex]bool)
	for _, ip := range instrs {
		used[ip.Partition] = true
		for _, q := range ip.Alternatives {
			used[q] = true
		}
	}

	order := maps.Keys(used)
	slices.Sort(order)

	renumber := make(map[PartitionIndex]PartitionIndex, len(order))
	for i, q := range order {
		renumber[q] = i
	}

	p.NbPartitions = utils.Max(len(order), 1)
	p.InstrsPartition = make([]InstructionPartition, len(instrs))
	for i, ip := range instrs {
		p.InstrsPartition[i] = NewInstructionPartition(renumber[ip.Partition])
		for _, q := range ip.Alternatives {
			p.InstrsPartition[i].AddAlternative(renumber[q])
		}
	}

	return
}
