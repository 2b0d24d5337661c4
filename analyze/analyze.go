// Package analyze propagates the symbolic noise variance of every operator
// of a partitioned operation DAG, in every partition in which its output is
// materialized.
package analyze

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/tuneinsight/partition-noise-analyzer/dag"
	"github.com/tuneinsight/partition-noise-analyzer/partition"
	"github.com/tuneinsight/partition-noise-analyzer/symbolic"
)

// AnalyzedDag is the result of Analyze. OutVariances has one row per
// operator and NbPartitions columns per row: the home column and the
// alternative columns of an operator hold its variance, the others are
// unset.
type AnalyzedDag struct {
	Operators          []dag.Operator
	NbPartitions       int
	InstrsPartition    []partition.InstructionPartition
	OutVariances       [][]symbolic.SymbolicVariance
	LevelledComplexity dag.LevelledComplexity
	Config             NoiseBoundConfig
}

// Analyze expands the Rounds of d, assigns every operator to a partition
// and propagates the noise variances. It returns an error wrapping
// ErrPrecondition if pCut, preferred or d are rejected, and an
// *InternalError if the propagation aborts.
func Analyze(d *dag.OperationDag, cfg NoiseBoundConfig, pCut partition.PrecisionCut, preferred partition.PartitionIndex) (*AnalyzedDag, error) {

	if err := pCut.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	expanded := dag.ExpandRound(d)

	p, err := partition.PartitionningWithPreferred(expanded, pCut, preferred)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	out, err := OutVariances(expanded, p.NbPartitions, p.InstrsPartition)
	if err != nil {
		return nil, err
	}

	return &AnalyzedDag{
		Operators:          expanded.Operators,
		NbPartitions:       p.NbPartitions,
		InstrsPartition:    p.InstrsPartition,
		OutVariances:       out,
		LevelledComplexity: dag.ZeroComplexity,
		Config:             cfg,
	}, nil
}

// OutVariances computes the variance matrix of d for the given partition
// assignment, operator by operator in index order. The home column of an
// operator is written after its alternatives. Any inconsistency aborts the
// propagation with an *InternalError and no result.
func OutVariances(d *dag.OperationDag, nbPartitions int, instrs []partition.InstructionPartition) ([][]symbolic.SymbolicVariance, error) {

	if nbPartitions < 1 {
		return nil, faultAt(-1, -1, FaultMissingColumn, "invalid number of partitions %d", nbPartitions)
	}

	if len(instrs) != d.Len() {
		return nil, faultAt(-1, -1, FaultInconsistentPartition, "%d instruction partitions for %d operators", len(instrs), d.Len())
	}

	out := make([][]symbolic.SymbolicVariance, d.Len())

	for i, op := range d.Operators {

		ip := instrs[i]
		p := ip.Partition

		if p < 0 || p >= nbPartitions {
			return nil, faultAt(i, p, FaultInconsistentPartition, "home partition not in [0, %d)", nbPartitions)
		}

		v, err := nativeVariance(d, out, instrs, nbPartitions, i, op, p)
		if err != nil {
			return nil, err
		}

		if !v.IsValid() {
			return nil, faultAt(i, p, FaultInvalidRead, "computed variance %s", v)
		}

		row := make([]symbolic.SymbolicVariance, nbPartitions)
		for q := range row {
			row[q] = symbolic.Unset(nbPartitions)
		}

		for _, q := range ip.Alternatives {
			if q < 0 || q >= nbPartitions {
				return nil, faultAt(i, q, FaultMissingColumn, "alternative partition not in [0, %d)", nbPartitions)
			}
			row[q] = v.AfterPartitionKeyswitchToBig(p, q)
		}

		row[p] = v

		out[i] = row
	}

	return out, nil
}

// nativeVariance returns the variance of operator i in its home partition p.
func nativeVariance(d *dag.OperationDag, out [][]symbolic.SymbolicVariance, instrs []partition.InstructionPartition, nbPartitions int, i dag.OperatorIndex, op dag.Operator, p partition.PartitionIndex) (v symbolic.SymbolicVariance, err error) {

	get := func(input dag.OperatorIndex) (symbolic.SymbolicVariance, error) {
		return read(out, instrs, i, i, input, p)
	}

	switch op := op.(type) {

	case dag.Input:
		return symbolic.Input(nbPartitions, p), nil

	case dag.Lut:
		return symbolic.AfterPBS(nbPartitions, p), nil

	case dag.LevelledOp:

		if len(op.Inputs) == 0 {
			return v, faultAt(i, p, FaultEmptyLevelledOp, "")
		}

		for _, input := range op.Inputs {
			var vin symbolic.SymbolicVariance
			if vin, err = get(input); err != nil {
				return
			}
			v = v.Max(vin)
		}

		if op.Manp < 0 || math.IsNaN(op.Manp) || math.IsInf(op.Manp, 0) {
			return v, faultAt(i, p, FaultInvalidRead, "invalid manp %g", op.Manp)
		}

		return v.AfterLevelledOp(op.Manp), nil

	case dag.Dot:

		if len(op.Inputs) == 0 {
			return v, faultAt(i, p, FaultDotUnsupported, "dot without input")
		}

		first := op.Inputs[0]
		if first < 0 || first >= i {
			return v, &InternalError{Op: i, Input: first, Partition: p, Home: -1, Fault: FaultOutOfRange}
		}

		kind := dag.DotKindOf(uint64(len(op.Inputs)), d.OutShapes[first], op.Weights)

		switch kind {
		case dag.DotSimple, dag.DotTensor, dag.DotBroadcast:
		case dag.DotCompatibleTensor:
			return v, faultAt(i, p, FaultDotNotImplemented, "%s", kind)
		default:
			return v, faultAt(i, p, FaultDotUnsupported, "%s: %d inputs of shape %s, weights of shape %s", kind, len(op.Inputs), d.OutShapes[first], op.Weights.Shape)
		}

		// a single operand is shared by every weight
		if len(op.Inputs) == 1 {
			var vin symbolic.SymbolicVariance
			if vin, err = get(first); err != nil {
				return
			}
			return vin.Mul(op.Weights.SquareNorm2()), nil
		}

		if op.Weights.Len() > len(op.Inputs) {
			return v, faultAt(i, p, FaultDotUnsupported, "%d weights for %d inputs", op.Weights.Len(), len(op.Inputs))
		}

		for j, w := range op.Weights.Values {

			var vin symbolic.SymbolicVariance
			if vin, err = get(op.Inputs[j]); err != nil {
				return
			}

			v = v.Add(vin.Mul(float64(w) * float64(w)))
		}

		return v, nil

	case dag.UnsafeCast:
		return get(op.Input)

	case dag.Round:
		return v, faultAt(i, p, FaultRoundNotExpanded, "")

	default:
		return v, faultAt(i, p, FaultInconsistentPartition, "unknown operator %T", op)
	}
}

// read is the guarded read of the variance of input in partition q. Only
// the first computed rows of out can be read.
func read(out [][]symbolic.SymbolicVariance, instrs []partition.InstructionPartition, computed int, op, input dag.OperatorIndex, q partition.PartitionIndex) (v symbolic.SymbolicVariance, err error) {

	fault := func(f FaultKind, detail string) *InternalError {
		home := -1
		if input >= 0 && input < len(instrs) {
			home = instrs[input].Partition
		}
		return &InternalError{Op: op, Input: input, Partition: q, Home: home, Fault: f, Detail: detail}
	}

	if input < 0 || input >= computed || input >= len(out) {
		return v, fault(FaultOutOfRange, "")
	}

	if q < 0 || q >= len(out[input]) {
		return v, fault(FaultMissingColumn, "")
	}

	v = out[input][q]

	switch {
	case v.IsZero():
		return v, fault(FaultZeroRead, "")
	case v.IsUnset():
		return v, fault(FaultUnsetRead, "partition is neither the home partition nor an alternative")
	case !v.IsValid():
		return v, fault(FaultInvalidRead, v.String())
	case v.Partition() != q:
		return v, fault(FaultInconsistentPartition, fmt.Sprintf("variance tagged with partition %d", v.Partition()))
	}

	return v, nil
}

// Variance returns the variance of op in partition q. It fails with an
// *InternalError if op is not materialized in q.
func (a *AnalyzedDag) Variance(op dag.OperatorIndex, q partition.PartitionIndex) (symbolic.SymbolicVariance, error) {
	return read(a.OutVariances, a.InstrsPartition, len(a.OutVariances), -1, op, q)
}

// CheckInvariants verifies the shape of the variance matrix and that every
// entry is the home variance, its conversion to an alternative partition
// or unset.
func (a *AnalyzedDag) CheckInvariants() error {

	if len(a.OutVariances) != len(a.Operators) || len(a.InstrsPartition) != len(a.Operators) {
		return faultAt(-1, -1, FaultOutOfRange, "%d rows and %d instruction partitions for %d operators", len(a.OutVariances), len(a.InstrsPartition), len(a.Operators))
	}

	for i, row := range a.OutVariances {

		if len(row) != a.NbPartitions {
			return faultAt(i, -1, FaultMissingColumn, "%d columns for %d partitions", len(row), a.NbPartitions)
		}

		ip := a.InstrsPartition[i]

		home, err := read(a.OutVariances, a.InstrsPartition, len(a.OutVariances), i, i, ip.Partition)
		if err != nil {
			return err
		}

		for q, v := range row {
			switch {
			case q == ip.Partition:
			case ip.HasAlternative(q):
				if !v.Equal(home.AfterPartitionKeyswitchToBig(ip.Partition, q)) {
					return &InternalError{Op: i, Input: i, Partition: q, Home: ip.Partition, Fault: FaultInconsistentPartition, Detail: "alternative is not the conversion of the home variance"}
				}
			case !v.IsUnset():
				return &InternalError{Op: i, Input: i, Partition: q, Home: ip.Partition, Fault: FaultInconsistentPartition, Detail: "variance stored outside of the materialized partitions"}
			}
		}
	}

	return nil
}

// Fingerprint returns the BLAKE2b-256 digest of the variance matrix.
func (a *AnalyzedDag) Fingerprint() (digest [blake2b.Size256]byte) {

	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}

	buf := make([]byte, 8)
	put := func(x uint64) {
		binary.LittleEndian.PutUint64(buf, x)
		h.Write(buf)
	}

	put(uint64(a.NbPartitions))
	put(uint64(len(a.OutVariances)))

	for _, row := range a.OutVariances {
		for _, v := range row {
			switch {
			case v.IsZero():
				put(0)
			case v.IsUnset():
				put(1)
			default:
				put(2)
				put(uint64(v.Partition()))
				for _, c := range v.Coeffs() {
					put(math.Float64bits(c))
				}
			}
		}
	}

	copy(digest[:], h.Sum(nil))

	return
}

func (a *AnalyzedDag) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "nb_partitions: %d\n", a.NbPartitions)
	for i, row := range a.OutVariances {
		fmt.Fprintf(&sb, "%%%d <- %s [%s]\n", i, a.Operators[i].Kind(), a.InstrsPartition[i])
		for q, v := range row {
			if !v.IsUnset() {
				fmt.Fprintf(&sb, "  %d: %s\n", q, v)
			}
		}
	}
	return sb.String()
}
