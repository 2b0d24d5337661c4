package symbolic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymbolicVariance(t *testing.T) {

	t.Run("Constructors", func(t *testing.T) {
		in := Input(2, 1)
		require.Equal(t, 2, in.NbPartitions())
		require.Equal(t, 1, in.Partition())
		require.Equal(t, 1.0, in.CoeffInput(1))
		require.Equal(t, 0.0, in.CoeffInput(0))
		require.Equal(t, 0.0, in.CoeffPBS(1))
		require.True(t, in.IsValid())

		pbs := AfterPBS(2, 0)
		require.Equal(t, 1.0, pbs.CoeffPBS(0))
		require.Equal(t, 0.0, pbs.CoeffInput(0))
		require.Len(t, pbs.Coeffs(), 8)

		require.Panics(t, func() { Input(2, 2) })
	})

	t.Run("Zero", func(t *testing.T) {
		z := Zero()
		require.True(t, z.IsZero())
		require.False(t, z.IsValid())
		require.Equal(t, 0, z.NbPartitions())
		require.Equal(t, -1, z.Partition())
		require.Equal(t, 0.0, z.CoeffPBS(3))
		require.True(t, z.Equal(SymbolicVariance{}))

		in := Input(1, 0)
		require.True(t, z.Add(in).Equal(in))
		require.True(t, in.Add(z).Equal(in))
		require.True(t, z.Max(in).Equal(in))
	})

	t.Run("Unset", func(t *testing.T) {
		u := Unset(2)
		require.True(t, u.IsUnset())
		require.False(t, u.IsValid())
		require.False(t, u.IsZero())
		require.Equal(t, -1, u.Partition())
		require.Equal(t, 2, u.NbPartitions())
		require.False(t, u.Equal(Zero()))
		require.Panics(t, func() { u.Add(Input(2, 0)) })
		require.Panics(t, func() { u.Mul(2) })
		require.Panics(t, func() { u.AfterPartitionKeyswitchToBig(0, 1) })
	})

	t.Run("AddMul", func(t *testing.T) {
		a := Input(2, 0).Mul(4)
		b := AfterPBS(2, 0).Mul(9)
		c := a.Add(b).Add(Input(2, 0))
		require.Equal(t, 5.0, c.CoeffInput(0))
		require.Equal(t, 9.0, c.CoeffPBS(0))
		require.Equal(t, 0, c.Partition())

		// immutability
		require.Equal(t, 4.0, a.CoeffInput(0))
		require.Equal(t, 0.0, a.CoeffPBS(0))

		require.Panics(t, func() { a.Mul(-1) })
		require.Panics(t, func() { a.Add(Input(1, 0)) })
	})

	t.Run("Max", func(t *testing.T) {
		a := Input(2, 0).Mul(3).Add(AfterPBS(2, 1))
		b := Input(2, 0).Add(AfterPBS(2, 1).Mul(5))
		m := a.Max(b)
		require.Equal(t, 3.0, m.CoeffInput(0))
		require.Equal(t, 5.0, m.CoeffPBS(1))
		require.True(t, m.Equal(b.Max(a)))
	})

	t.Run("AfterLevelledOp", func(t *testing.T) {
		v := AfterPBS(1, 0).AfterLevelledOp(8)
		require.Equal(t, 8.0, v.CoeffPBS(0))
	})

	t.Run("AfterPartitionKeyswitchToBig", func(t *testing.T) {
		v := AfterPBS(2, 1).Add(Input(2, 1))
		converted := v.AfterPartitionKeyswitchToBig(1, 0)
		require.Equal(t, 0, converted.Partition())
		require.Equal(t, 1.0, converted.CoeffPartitionKeyswitchToBig(1, 0))
		require.Equal(t, 0.0, converted.CoeffPartitionKeyswitchToBig(0, 1))
		require.Equal(t, v.CoeffPBS(1), converted.CoeffPBS(1))
		require.Equal(t, v.CoeffInput(1), converted.CoeffInput(1))
		require.Equal(t, 0.0, v.CoeffPartitionKeyswitchToBig(1, 0))
		require.Panics(t, func() { v.AfterPartitionKeyswitchToBig(1, 2) })
	})

	t.Run("CoeffPartitionRange", func(t *testing.T) {
		v := AfterPBS(2, 0)
		require.Panics(t, func() { v.CoeffInput(2) })
		require.Panics(t, func() { v.CoeffInput(-1) })
		require.Panics(t, func() { v.CoeffPBS(2) })
		require.Panics(t, func() { v.CoeffPartitionKeyswitchToBig(0, 2) })
		require.Panics(t, func() { v.CoeffPartitionKeyswitchToBig(2, 0) })
		require.Panics(t, func() { Unset(1).CoeffPBS(1) })
		require.Equal(t, 1.0, v.CoeffPBS(0))
	})

	t.Run("IsValid", func(t *testing.T) {
		require.False(t, Input(1, 0).Mul(math.Inf(1)).IsValid())
		require.Panics(t, func() { Input(1, 0).Mul(math.NaN()) })
	})

	t.Run("String", func(t *testing.T) {
		v := Input(2, 0).Add(AfterPBS(2, 1).Mul(2)).AfterPartitionKeyswitchToBig(1, 0)
		require.Equal(t, "1σ²In[0] + 2σ²Br[1] + 1σ²FK[1→0]", v.String())
		require.Equal(t, "ZERO", Zero().String())
		require.Equal(t, "UNSET", Unset(1).String())
	})
}
