package dag

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Precision is a bit precision of a clear value.
type Precision = uint64

// Shape is the shape of an operator output tensor. A shape
// without dimensions is a single number.
type Shape struct {
	Dimensions []uint64
}

// Number returns the shape of a scalar.
func Number() Shape {
	return Shape{}
}

// Vector returns the shape of a vector of n elements.
func Vector(n uint64) Shape {
	return Shape{Dimensions: []uint64{n}}
}

// Duplicated returns the shape of n stacked copies of s.
func Duplicated(n uint64, s Shape) Shape {
	dims := make([]uint64, 0, len(s.Dimensions)+1)
	dims = append(dims, n)
	return Shape{Dimensions: append(dims, s.Dimensions...)}
}

func (s Shape) IsNumber() bool {
	return len(s.Dimensions) == 0
}

// FirstDim returns the outermost dimension, 1 for a number.
func (s Shape) FirstDim() uint64 {
	if s.IsNumber() {
		return 1
	}
	return s.Dimensions[0]
}

// EraseFirstDim returns s without its outermost dimension.
func (s Shape) EraseFirstDim() Shape {
	if len(s.Dimensions) < 2 {
		return Number()
	}
	return Shape{Dimensions: slices.Clone(s.Dimensions[1:])}
}

// FlatSize returns the number of elements of a tensor of shape s.
func (s Shape) FlatSize() (size uint64) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s.Dimensions, other.Dimensions)
}

func (s Shape) Clone() Shape {
	if s.IsNumber() {
		return Number()
	}
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

func (s Shape) String() string {
	dims := make([]string, len(s.Dimensions))
	for i, d := range s.Dimensions {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(dims, ", ") + "]"
}

// Weights is a clear integer tensor used by a Dot.
type Weights struct {
	Shape  Shape
	Values []int64
}

// NewWeights returns a vector of weights.
func NewWeights(values ...int64) Weights {
	return Weights{
		Shape:  Vector(uint64(len(values))),
		Values: slices.Clone(values),
	}
}

// NewTensorWeights returns weights of the given shape.
func NewTensorWeights(shape Shape, values []int64) Weights {

	if shape.FlatSize() != uint64(len(values)) {
		panic(fmt.Errorf("invalid weights: shape %s holds %d values, but %d were given", shape, shape.FlatSize(), len(values)))
	}

	return Weights{
		Shape:  shape.Clone(),
		Values: slices.Clone(values),
	}
}

func (w Weights) Len() int {
	return len(w.Values)
}

// SquareNorm2 returns sum(w_i^2).
func (w Weights) SquareNorm2() (norm float64) {
	for _, v := range w.Values {
		norm += float64(v) * float64(v)
	}
	return
}

// FunctionTable is the clear table applied by a Lut.
// An empty table stands for an unknown function.
type FunctionTable struct {
	Values []uint64
}

var UnknownFunction = FunctionTable{}

// LevelledComplexity is the cost of the levelled operations of a DAG.
type LevelledComplexity struct {
	LweDimCostFactor float64
	FixedCost        float64
}

// ZeroComplexity is the neutral LevelledComplexity.
var ZeroComplexity = LevelledComplexity{}
