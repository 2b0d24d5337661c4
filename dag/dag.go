package dag

import (
	"fmt"
	"math"
	"strings"

	"github.com/tuneinsight/lattigo/v5/utils"
)

// OperationDag is an append-only arena of operators. OutShapes and
// OutPrecisions are parallel to Operators.
type OperationDag struct {
	Operators     []Operator
	OutShapes     []Shape
	OutPrecisions []Precision
}

func NewOperationDag() *OperationDag {
	return &OperationDag{}
}

// Len returns the number of operators of the DAG.
func (d *OperationDag) Len() int {
	return len(d.Operators)
}

func (d *OperationDag) Clone() *OperationDag {
	c := &OperationDag{
		Operators:     make([]Operator, len(d.Operators)),
		OutShapes:     make([]Shape, len(d.OutShapes)),
		OutPrecisions: make([]Precision, len(d.OutPrecisions)),
	}
	for i := range d.Operators {
		c.Operators[i] = withOperands(d.Operators[i], func(i OperatorIndex) OperatorIndex { return i })
	}
	for i := range d.OutShapes {
		c.OutShapes[i] = d.OutShapes[i].Clone()
	}
	copy(c.OutPrecisions, d.OutPrecisions)
	return c
}

func (d *OperationDag) add(op Operator, shape Shape, precision Precision) OperatorIndex {
	for _, in := range op.Operands() {
		if in < 0 || in >= len(d.Operators) {
			panic(fmt.Errorf("invalid operand %%%d for operator %%%d: must reference an earlier operator", in, len(d.Operators)))
		}
	}
	d.Operators = append(d.Operators, op)
	d.OutShapes = append(d.OutShapes, shape)
	d.OutPrecisions = append(d.OutPrecisions, precision)
	return len(d.Operators) - 1
}

// AddInput adds a fresh input of the given precision and shape.
func (d *OperationDag) AddInput(precision Precision, shape Shape) OperatorIndex {
	return d.add(Input{Precision: precision, Shape: shape.Clone()}, shape.Clone(), precision)
}

// AddLut adds a programmable bootstrap of input producing outPrecision bits.
func (d *OperationDag) AddLut(input OperatorIndex, table FunctionTable, outPrecision Precision) OperatorIndex {
	d.checkOperand(input)
	return d.add(Lut{Input: input, Table: table, OutPrecision: outPrecision}, d.OutShapes[input].Clone(), outPrecision)
}

// AddLevelledOp adds a linear operation over inputs whose output variance is
// the largest input variance times manp.
func (d *OperationDag) AddLevelledOp(inputs []OperatorIndex, complexity LevelledComplexity, manp float64, outShape Shape, comment string) OperatorIndex {

	if len(inputs) == 0 {
		panic("invalid levelled op: no inputs")
	}

	var precision Precision
	for _, in := range inputs {
		d.checkOperand(in)
		precision = utils.Max(precision, d.OutPrecisions[in])
	}

	op := LevelledOp{
		Inputs:     append([]OperatorIndex{}, inputs...),
		Complexity: complexity,
		Manp:       manp,
		OutShape:   outShape.Clone(),
		Comment:    comment,
	}

	return d.add(op, outShape.Clone(), precision)
}

// AddDot adds the weighted reduction of inputs. The output shape follows
// the DotKind of the operands and weights.
func (d *OperationDag) AddDot(inputs []OperatorIndex, weights Weights) OperatorIndex {

	if len(inputs) == 0 {
		panic("invalid dot: no inputs")
	}

	for _, in := range inputs {
		d.checkOperand(in)
	}

	first := inputs[0]

	var shape Shape
	switch DotKindOf(uint64(len(inputs)), d.OutShapes[first], weights) {
	case DotBroadcast:
		shape = Vector(d.OutShapes[first].FirstDim())
	default:
		shape = Number()
	}

	op := Dot{
		Inputs:  append([]OperatorIndex{}, inputs...),
		Weights: NewTensorWeights(weights.Shape, weights.Values),
	}

	return d.add(op, shape, d.OutPrecisions[first])
}

// AddUnsafeCast reinterprets input with outPrecision bits.
func (d *OperationDag) AddUnsafeCast(input OperatorIndex, outPrecision Precision) OperatorIndex {
	d.checkOperand(input)
	return d.add(UnsafeCast{Input: input, OutPrecision: outPrecision}, d.OutShapes[input].Clone(), outPrecision)
}

// AddRound adds a rounding of input to outPrecision bits.
func (d *OperationDag) AddRound(input OperatorIndex, outPrecision Precision) OperatorIndex {
	d.checkOperand(input)
	return d.add(Round{Input: input, OutPrecision: outPrecision}, d.OutShapes[input].Clone(), outPrecision)
}

func (d *OperationDag) checkOperand(in OperatorIndex) {
	if in < 0 || in >= len(d.Operators) {
		panic(fmt.Errorf("invalid operand %%%d: the dag has %d operators", in, len(d.Operators)))
	}
}

// Validate checks that the DAG is well formed: parallel slices of equal
// length, backward only references and well defined operator attributes.
func (d *OperationDag) Validate() (err error) {

	if len(d.OutShapes) != len(d.Operators) || len(d.OutPrecisions) != len(d.Operators) {
		return fmt.Errorf("invalid dag: %d operators, %d shapes and %d precisions", len(d.Operators), len(d.OutShapes), len(d.OutPrecisions))
	}

	for i, op := range d.Operators {

		if op == nil {
			return fmt.Errorf("invalid dag: operator %%%d is nil", i)
		}

		for _, in := range op.Operands() {
			if in < 0 || in >= i {
				return fmt.Errorf("invalid dag: operator %%%d (%s) reads %%%d, must reference an earlier operator", i, op.Kind(), in)
			}
		}

		switch op := op.(type) {
		case LevelledOp:
			if len(op.Inputs) == 0 {
				return fmt.Errorf("invalid dag: levelled op %%%d has no inputs", i)
			}
			if math.IsNaN(op.Manp) || math.IsInf(op.Manp, 0) || op.Manp < 0 {
				return fmt.Errorf("invalid dag: levelled op %%%d has manp %g, must be finite and non-negative", i, op.Manp)
			}
		case Dot:
			if len(op.Inputs) == 0 {
				return fmt.Errorf("invalid dag: dot %%%d has no inputs", i)
			}
			if op.Weights.Shape.FlatSize() != uint64(len(op.Weights.Values)) {
				return fmt.Errorf("invalid dag: dot %%%d weights shape %s does not hold %d values", i, op.Weights.Shape, len(op.Weights.Values))
			}
		case Round:
			if in := d.OutPrecisions[op.Input]; op.OutPrecision > in || in > MaxRoundPrecision {
				return fmt.Errorf("invalid dag: round %%%d cannot round %d bits to %d bits", i, in, op.OutPrecision)
			}
		}
	}

	return nil
}

// Consumers returns, for every operator, the operators reading it.
func (d *OperationDag) Consumers() (consumers [][]OperatorIndex) {
	consumers = make([][]OperatorIndex, len(d.Operators))
	for i, op := range d.Operators {
		for _, in := range op.Operands() {
			if !utils.IsInSlice(i, consumers[in]) {
				consumers[in] = append(consumers[in], i)
			}
		}
	}
	return
}

// HasRound reports whether a Round operator is present.
func (d *OperationDag) HasRound() bool {
	for _, op := range d.Operators {
		if _, ok := op.(Round); ok {
			return true
		}
	}
	return false
}

func (d *OperationDag) String() string {
	var sb strings.Builder
	for i, op := range d.Operators {
		fmt.Fprintf(&sb, "%%%d <- %s\n", i, describe(op))
	}
	return sb.String()
}
