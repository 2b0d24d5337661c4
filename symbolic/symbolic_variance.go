// Package symbolic implements the symbolic noise variance algebra: a
// variance is a non-negative linear combination of named noise sources,
// the fresh encryption noise and the post-bootstrap noise of every
// partition, plus the coefficients of the fast keyswitches converting a
// ciphertext from one partition to the big key of another.
package symbolic

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// index is the layout of the coefficients of nbPartitions partitions:
// inputs, then bootstraps, then the nbPartitions x nbPartitions fast
// keyswitches.
type index struct {
	nbPartitions int
}

func (i index) size() int {
	return 2*i.nbPartitions + i.nbPartitions*i.nbPartitions
}

func (i index) input(partition int) int {
	return partition
}

func (i index) pbs(partition int) int {
	return i.nbPartitions + partition
}

func (i index) partitionKeyswitchToBig(src, dst int) int {
	return 2*i.nbPartitions + src*i.nbPartitions + dst
}

type state uint8

const (
	stateZero state = iota
	stateValue
	stateUnset
)

// SymbolicVariance is an immutable symbolic noise variance. Its zero
// value is the neutral element of Add and Max.
//
// An unset variance marks a (operator, partition) pair in which the
// operator output is not materialized; it must never be read.
type SymbolicVariance struct {
	state     state
	partition int
	coeffs    []float64
}

// Zero returns the neutral variance.
func Zero() SymbolicVariance {
	return SymbolicVariance{}
}

// Unset returns the marker of a variance that must never be read.
func Unset(nbPartitions int) SymbolicVariance {
	return SymbolicVariance{state: stateUnset, partition: -1, coeffs: make([]float64, index{nbPartitions}.size())}
}

func newValue(nbPartitions, partition int) SymbolicVariance {
	if partition < 0 || partition >= nbPartitions {
		panic(fmt.Errorf("invalid partition %d: must be in [0, %d)", partition, nbPartitions))
	}
	return SymbolicVariance{state: stateValue, partition: partition, coeffs: make([]float64, index{nbPartitions}.size())}
}

// Input returns the variance of a fresh encryption in partition.
func Input(nbPartitions, partition int) SymbolicVariance {
	sv := newValue(nbPartitions, partition)
	sv.coeffs[sv.index().input(partition)] = 1
	return sv
}

// AfterPBS returns the variance of a bootstrap output in partition. The
// bootstrap erases any prior noise.
func AfterPBS(nbPartitions, partition int) SymbolicVariance {
	sv := newValue(nbPartitions, partition)
	sv.coeffs[sv.index().pbs(partition)] = 1
	return sv
}

func (sv SymbolicVariance) index() index {
	return index{nbPartitions: sv.NbPartitions()}
}

// NbPartitions returns the number of partitions sv is defined over, 0
// for the zero variance.
func (sv SymbolicVariance) NbPartitions() int {
	// size = n^2 + 2n
	return int(math.Round(math.Sqrt(float64(len(sv.coeffs)+1)))) - 1
}

// Partition returns the partition tag of sv, -1 if sv holds no value.
func (sv SymbolicVariance) Partition() int {
	if sv.state != stateValue {
		return -1
	}
	return sv.partition
}

func (sv SymbolicVariance) IsZero() bool {
	return sv.state == stateZero
}

func (sv SymbolicVariance) IsUnset() bool {
	return sv.state == stateUnset
}

// IsValid reports whether sv holds a value whose coefficients are all
// finite and non-negative.
func (sv SymbolicVariance) IsValid() bool {
	if sv.state != stateValue || floats.HasNaN(sv.coeffs) {
		return false
	}
	for _, c := range sv.coeffs {
		if math.IsInf(c, 0) || c < 0 {
			return false
		}
	}
	return true
}

func (sv SymbolicVariance) Equal(other SymbolicVariance) bool {
	if sv.state != other.state || sv.Partition() != other.Partition() {
		return false
	}
	if sv.state == stateZero {
		return true
	}
	return len(sv.coeffs) == len(other.coeffs) && floats.Equal(sv.coeffs, other.coeffs)
}

// Coeffs returns a copy of the coefficients of sv.
func (sv SymbolicVariance) Coeffs() []float64 {
	return append([]float64{}, sv.coeffs...)
}

func (sv SymbolicVariance) checkPartition(partitions ...int) {
	n := sv.NbPartitions()
	for _, p := range partitions {
		if p < 0 || p >= n {
			panic(fmt.Errorf("invalid partition %d: must be in [0, %d)", p, n))
		}
	}
}

// CoeffInput returns the coefficient of the fresh input noise of partition.
func (sv SymbolicVariance) CoeffInput(partition int) float64 {
	if sv.IsZero() {
		return 0
	}
	sv.checkPartition(partition)
	return sv.coeffs[sv.index().input(partition)]
}

// CoeffPBS returns the coefficient of the bootstrap noise of partition.
func (sv SymbolicVariance) CoeffPBS(partition int) float64 {
	if sv.IsZero() {
		return 0
	}
	sv.checkPartition(partition)
	return sv.coeffs[sv.index().pbs(partition)]
}

// CoeffPartitionKeyswitchToBig returns the coefficient of the fast
// keyswitch from src to the big key of dst.
func (sv SymbolicVariance) CoeffPartitionKeyswitchToBig(src, dst int) float64 {
	if sv.IsZero() {
		return 0
	}
	sv.checkPartition(src, dst)
	return sv.coeffs[sv.index().partitionKeyswitchToBig(src, dst)]
}

func (sv SymbolicVariance) clone() SymbolicVariance {
	sv.coeffs = append([]float64{}, sv.coeffs...)
	return sv
}

func (sv SymbolicVariance) checkOperand(other SymbolicVariance) {
	if sv.state == stateUnset || other.state == stateUnset {
		panic("invalid operand: unset symbolic variance")
	}
	if sv.state == stateValue && other.state == stateValue && len(sv.coeffs) != len(other.coeffs) {
		panic(fmt.Errorf("invalid operand dimensions: %d != %d partitions", sv.NbPartitions(), other.NbPartitions()))
	}
}

// Add returns sv + other.
func (sv SymbolicVariance) Add(other SymbolicVariance) SymbolicVariance {
	sv.checkOperand(other)
	switch {
	case other.IsZero():
		return sv.clone()
	case sv.IsZero():
		return other.clone()
	}
	out := sv.clone()
	floats.Add(out.coeffs, other.coeffs)
	return out
}

// Mul returns sv scaled by the non-negative factor f.
func (sv SymbolicVariance) Mul(f float64) SymbolicVariance {
	if sv.IsUnset() {
		panic("invalid operand: unset symbolic variance")
	}
	if f < 0 || math.IsNaN(f) {
		panic(fmt.Errorf("invalid factor %g: must be non-negative", f))
	}
	out := sv.clone()
	floats.Scale(f, out.coeffs)
	return out
}

// Max returns the dominant branch of sv and other: the variance
// dominating both, coefficient by coefficient.
func (sv SymbolicVariance) Max(other SymbolicVariance) SymbolicVariance {
	sv.checkOperand(other)
	switch {
	case other.IsZero():
		return sv.clone()
	case sv.IsZero():
		return other.clone()
	}
	out := sv.clone()
	for i, c := range other.coeffs {
		out.coeffs[i] = math.Max(out.coeffs[i], c)
	}
	return out
}

// AfterLevelledOp returns the variance after a levelled operation of
// squared 2-norm manp.
func (sv SymbolicVariance) AfterLevelledOp(manp float64) SymbolicVariance {
	return sv.Mul(manp)
}

// AfterPartitionKeyswitchToBig returns the variance of sv once converted
// from partition src to the big key of partition dst. Prior terms are
// kept and the result is tagged with dst.
func (sv SymbolicVariance) AfterPartitionKeyswitchToBig(src, dst int) SymbolicVariance {
	if sv.state != stateValue {
		panic("invalid operand: keyswitch of a variance without value")
	}
	sv.checkPartition(src, dst)
	out := sv.clone()
	out.coeffs[out.index().partitionKeyswitchToBig(src, dst)]++
	out.partition = dst
	return out
}

// String returns the non null terms of sv, e.g. 1σ²In[0] + 2σ²Br[1] + 1σ²FK[1→0].
func (sv SymbolicVariance) String() string {

	switch sv.state {
	case stateZero:
		return "ZERO"
	case stateUnset:
		return "UNSET"
	}

	idx := sv.index()
	n := idx.nbPartitions

	var terms []string
	add := func(c float64, name string) {
		if c != 0 {
			terms = append(terms, fmt.Sprintf("%gσ²%s", c, name))
		}
	}

	for p := 0; p < n; p++ {
		add(sv.coeffs[idx.input(p)], fmt.Sprintf("In[%d]", p))
	}
	for p := 0; p < n; p++ {
		add(sv.coeffs[idx.pbs(p)], fmt.Sprintf("Br[%d]", p))
	}
	for src := 0; src < n; src++ {
		for dst := 0; dst < n; dst++ {
			add(sv.coeffs[idx.partitionKeyswitchToBig(src, dst)], fmt.Sprintf("FK[%d→%d]", src, dst))
		}
	}

	if len(terms) == 0 {
		return "0"
	}

	return strings.Join(terms, " + ")
}
