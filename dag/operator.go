package dag

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// OperatorIndex references an operator of an OperationDag by its
// position in the arena. Operators only reference earlier indexes.
type OperatorIndex = int

// Operator is one node of an OperationDag. The set of operators is
// closed: Input, Lut, LevelledOp, Dot, UnsafeCast and Round.
type Operator interface {
	// Operands returns the indexes of the operators this one reads.
	Operands() []OperatorIndex
	// Kind returns the lower case name of the operator.
	Kind() string
	isOperator()
}

// Input is a fresh encryption of a clear value.
type Input struct {
	Precision Precision
	Shape     Shape
}

// Lut is a programmable bootstrap evaluating Table on Input.
type Lut struct {
	Input        OperatorIndex
	Table        FunctionTable
	OutPrecision Precision
}

// LevelledOp is a linear/affine operation over Inputs. Manp is the
// squared 2-norm of its weights, the factor by which it amplifies the
// variance of its worst input.
type LevelledOp struct {
	Inputs     []OperatorIndex
	Complexity LevelledComplexity
	Manp       float64
	OutShape   Shape
	Comment    string
}

// Dot is a weighted reduction of Inputs.
type Dot struct {
	Inputs  []OperatorIndex
	Weights Weights
}

// UnsafeCast changes the precision of Input without touching its ciphertext.
type UnsafeCast struct {
	Input        OperatorIndex
	OutPrecision Precision
}

// Round rounds Input to OutPrecision bits. It is expanded by ExpandRound
// before any noise analysis.
type Round struct {
	Input        OperatorIndex
	OutPrecision Precision
}

func (Input) Operands() []OperatorIndex        { return nil }
func (op Lut) Operands() []OperatorIndex       { return []OperatorIndex{op.Input} }
func (op LevelledOp) Operands() []OperatorIndex { return slices.Clone(op.Inputs) }
func (op Dot) Operands() []OperatorIndex        { return slices.Clone(op.Inputs) }
func (op UnsafeCast) Operands() []OperatorIndex { return []OperatorIndex{op.Input} }
func (op Round) Operands() []OperatorIndex      { return []OperatorIndex{op.Input} }

func (Input) Kind() string      { return "input" }
func (Lut) Kind() string        { return "lut" }
func (LevelledOp) Kind() string { return "levelled" }
func (Dot) Kind() string        { return "dot" }
func (UnsafeCast) Kind() string { return "unsafe_cast" }
func (Round) Kind() string      { return "round" }

func (Input) isOperator()      {}
func (Lut) isOperator()        {}
func (LevelledOp) isOperator() {}
func (Dot) isOperator()        {}
func (UnsafeCast) isOperator() {}
func (Round) isOperator()      {}

// withOperands returns a copy of op whose operands are remapped by f.
func withOperands(op Operator, f func(OperatorIndex) OperatorIndex) Operator {
	switch op := op.(type) {
	case Input:
		return op
	case Lut:
		op.Input = f(op.Input)
		return op
	case LevelledOp:
		inputs := make([]OperatorIndex, len(op.Inputs))
		for i, in := range op.Inputs {
			inputs[i] = f(in)
		}
		op.Inputs = inputs
		return op
	case Dot:
		inputs := make([]OperatorIndex, len(op.Inputs))
		for i, in := range op.Inputs {
			inputs[i] = f(in)
		}
		op.Inputs = inputs
		return op
	case UnsafeCast:
		op.Input = f(op.Input)
		return op
	case Round:
		op.Input = f(op.Input)
		return op
	default:
		panic(fmt.Errorf("invalid operator.(type): %T", op))
	}
}

func describe(op Operator) string {
	switch op := op.(type) {
	case Input:
		return fmt.Sprintf("Input : u%d x %s", op.Precision, op.Shape)
	case Lut:
		return fmt.Sprintf("Lut : %%%d -> u%d", op.Input, op.OutPrecision)
	case LevelledOp:
		return fmt.Sprintf("LevelledOp : %v manp=%g %s", op.Inputs, op.Manp, op.Comment)
	case Dot:
		return fmt.Sprintf("Dot : %v . %v", op.Inputs, op.Weights.Values)
	case UnsafeCast:
		return fmt.Sprintf("UnsafeCast : %%%d -> u%d", op.Input, op.OutPrecision)
	case Round:
		return fmt.Sprintf("Round : %%%d -> u%d", op.Input, op.OutPrecision)
	default:
		return fmt.Sprintf("%T", op)
	}
}
