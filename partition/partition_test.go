package partition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/partition-noise-analyzer/dag"
)

const (
	lowPrecisionPartition  = 0
	highPrecisionPartition = 1
)

var pCut2 = PrecisionCut{PCut: []dag.Precision{2}}

func partitionsOf(p Partitions) (partitions []PartitionIndex) {
	for _, ip := range p.InstrsPartition {
		partitions = append(partitions, ip.Partition)
	}
	return
}

func TestPrecisionCut(t *testing.T) {

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, PrecisionCut{}.Validate())
		require.NoError(t, pCut2.Validate())
		err := PrecisionCut{PCut: []dag.Precision{2, 4}}.Validate()
		require.True(t, errors.Is(err, ErrTooManyCuts))
	})

	t.Run("PartitionOf", func(t *testing.T) {
		d := dag.NewOperationDag()
		small := d.AddInput(2, dag.Number())
		large := d.AddInput(3, dag.Number())
		lutSmall := d.AddLut(small, dag.UnknownFunction, 8)
		lutLarge := d.AddLut(large, dag.UnknownFunction, 1)

		_, isLut := pCut2.PartitionOf(d, small)
		require.False(t, isLut)

		p, isLut := pCut2.PartitionOf(d, lutSmall)
		require.True(t, isLut)
		require.Equal(t, lowPrecisionPartition, p)

		p, _ = pCut2.PartitionOf(d, lutLarge)
		require.Equal(t, highPrecisionPartition, p)
	})
}

func TestInstructionPartition(t *testing.T) {
	ip := NewInstructionPartition(1)
	ip.AddAlternative(3)
	ip.AddAlternative(0)
	ip.AddAlternative(3)
	require.Equal(t, []PartitionIndex{0, 3}, ip.Alternatives)
	require.True(t, ip.Materialized(1))
	require.True(t, ip.Materialized(0))
	require.False(t, ip.Materialized(2))
	require.Equal(t, "1 -> [0 3]", ip.String())
}

func TestPartitionning(t *testing.T) {

	t.Run("LutSequence", func(t *testing.T) {
		d := dag.NewOperationDag()
		input := d.AddInput(8, dag.Number())
		lut1 := d.AddLut(input, dag.UnknownFunction, 8)
		lut2 := d.AddLut(lut1, dag.UnknownFunction, 1)
		lut3 := d.AddLut(lut2, dag.UnknownFunction, 1)
		lut4 := d.AddLut(lut3, dag.UnknownFunction, 8)
		d.AddLut(lut4, dag.UnknownFunction, 8)

		p, err := PartitionningWithPreferred(d, pCut2, lowPrecisionPartition)
		require.NoError(t, err)
		require.Equal(t, 2, p.NbPartitions)
		require.Equal(t, []PartitionIndex{
			highPrecisionPartition,
			highPrecisionPartition,
			highPrecisionPartition,
			lowPrecisionPartition,
			lowPrecisionPartition,
			highPrecisionPartition,
		}, partitionsOf(p))

		// lut2 feeds a low precision lut, lut4 a high precision one
		require.Equal(t, []PartitionIndex{lowPrecisionPartition}, p.InstrsPartition[lut2].Alternatives)
		require.Equal(t, []PartitionIndex{highPrecisionPartition}, p.InstrsPartition[lut4].Alternatives)
		require.Empty(t, p.InstrsPartition[lut1].Alternatives)
	})

	t.Run("UnusedPartitionIsRemoved", func(t *testing.T) {
		d := dag.NewOperationDag()
		input1 := d.AddInput(8, dag.Number())
		input2 := d.AddInput(8, dag.Number())
		lut1 := d.AddLut(input1, dag.UnknownFunction, 8)
		d.AddLevelledOp([]dag.OperatorIndex{lut1, input2}, dag.ZeroComplexity, 8, dag.Number(), "comment")

		p, err := PartitionningWithPreferred(d, pCut2, lowPrecisionPartition)
		require.NoError(t, err)
		require.Equal(t, 1, p.NbPartitions)
		require.Equal(t, []PartitionIndex{0, 0, 0, 0}, partitionsOf(p))
	})

	t.Run("ExpandedRound", func(t *testing.T) {
		d := dag.NewOperationDag()
		input := d.AddInput(8, dag.Number())
		lut := d.AddLut(input, dag.UnknownFunction, 16)
		rounded := d.AddExpandedRound(lut, 8)
		last := d.AddLut(rounded, dag.UnknownFunction, 16)

		p, err := PartitionningWithPreferred(d, pCut2, lowPrecisionPartition)
		require.NoError(t, err)
		require.Equal(t, 2, p.NbPartitions)

		require.Equal(t, highPrecisionPartition, p.InstrsPartition[input].Partition)
		require.Equal(t, highPrecisionPartition, p.InstrsPartition[lut].Partition)
		require.Equal(t, []PartitionIndex{lowPrecisionPartition}, p.InstrsPartition[lut].Alternatives)
		for i := lut + 1; i <= rounded; i++ {
			require.Equal(t, lowPrecisionPartition, p.InstrsPartition[i].Partition, "operator %d", i)
			require.Empty(t, p.InstrsPartition[i].Alternatives)
		}
		require.Equal(t, highPrecisionPartition, p.InstrsPartition[last].Partition)
	})

	t.Run("NoCut", func(t *testing.T) {
		d := dag.NewOperationDag()
		input := d.AddInput(8, dag.Number())
		d.AddLut(input, dag.UnknownFunction, 8)

		p, err := PartitionningWithPreferred(d, PrecisionCut{}, 0)
		require.NoError(t, err)
		require.Equal(t, 1, p.NbPartitions)
		require.Equal(t, []PartitionIndex{0, 0}, partitionsOf(p))
	})

	t.Run("Errors", func(t *testing.T) {
		d := dag.NewOperationDag()
		input := d.AddInput(8, dag.Number())
		d.AddRound(input, 4)

		_, err := PartitionningWithPreferred(d, PrecisionCut{PCut: []dag.Precision{1, 2}}, 0)
		require.True(t, errors.Is(err, ErrTooManyCuts))

		_, err = PartitionningWithPreferred(d, pCut2, 2)
		require.Error(t, err)

		_, err = PartitionningWithPreferred(d, pCut2, 0)
		require.Error(t, err)
	})
}
