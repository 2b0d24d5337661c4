package dag

import (
	"fmt"
)

// MaxRoundPrecision is the largest accumulator precision a Round can be
// expanded from, the isolating weights being int64.
const MaxRoundPrecision = 62

// AddExpandedRound adds the lower level sequence computing the rounding
// of input to roundedPrecision bits and returns the index of its result.
//
// Each of the dropped least significant bits is isolated and erased:
//
//	shifted = input * 2^(p-1-bit)    (bit moved to the MSB)
//	msb     = cast(shifted, 1)
//	lsb     = lut(msb)               (bit as 0 or 1 at accumulator precision)
//	input   = input - lsb
//
// and the result is finally cast to roundedPrecision.
func (d *OperationDag) AddExpandedRound(input OperatorIndex, roundedPrecision Precision) OperatorIndex {

	d.checkOperand(input)

	inPrecision := d.OutPrecisions[input]

	if roundedPrecision > inPrecision || inPrecision > MaxRoundPrecision {
		panic(fmt.Errorf("invalid round: cannot round %d bits to %d bits", inPrecision, roundedPrecision))
	}

	if roundedPrecision == inPrecision {
		return input
	}

	shape := d.OutShapes[input]

	rounded := input
	for bit := Precision(0); bit < inPrecision-roundedPrecision; bit++ {
		shifted := d.addScaled(rounded, int64(1)<<(inPrecision-1-bit), shape)
		msb := d.AddUnsafeCast(shifted, 1)
		lsb := d.AddLut(msb, UnknownFunction, inPrecision)
		rounded = d.addErase(rounded, lsb, shape)
	}

	return d.AddUnsafeCast(rounded, roundedPrecision)
}

// addScaled multiplies input by weight, with a Dot on scalars and a
// LevelledOp on tensors.
func (d *OperationDag) addScaled(input OperatorIndex, weight int64, shape Shape) OperatorIndex {
	if shape.IsNumber() {
		return d.AddDot([]OperatorIndex{input}, NewWeights(weight))
	}
	w := float64(weight)
	return d.AddLevelledOp([]OperatorIndex{input}, ZeroComplexity, w*w, shape, "round: isolate bit")
}

// addErase computes input - lsb.
func (d *OperationDag) addErase(input, lsb OperatorIndex, shape Shape) OperatorIndex {
	if shape.IsNumber() {
		return d.AddDot([]OperatorIndex{input, lsb}, NewWeights(1, -1))
	}
	return d.AddLevelledOp([]OperatorIndex{input, lsb}, ZeroComplexity, 2, shape, "round: erase bit")
}

// ExpandRound returns a copy of d in which every Round operator is
// replaced by its expansion. References of later operators are remapped
// to the expanded results. The returned DAG contains no Round.
func ExpandRound(d *OperationDag) *OperationDag {

	if !d.HasRound() {
		return d.Clone()
	}

	out := NewOperationDag()

	remap := make([]OperatorIndex, len(d.Operators))
	f := func(i OperatorIndex) OperatorIndex { return remap[i] }

	for i, op := range d.Operators {

		if round, ok := op.(Round); ok {
			remap[i] = out.AddExpandedRound(remap[round.Input], round.OutPrecision)
			continue
		}

		remap[i] = out.add(withOperands(op, f), d.OutShapes[i].Clone(), d.OutPrecisions[i])
	}

	return out
}
