package dag

// DotKind classifies the operand and weight shapes of a Dot.
type DotKind int

const (
	// DotSimple: inputs = [x, y, z], weights = [a, b, c], x*a + y*b + z*c.
	DotSimple DotKind = iota
	// DotTensor: inputs = [[x, y, z]], weights = [a, b, c], x*a + y*b + z*c.
	DotTensor
	// DotBroadcast: inputs = [[[x, y, z], [t, u, v]]], weights = [a, b, c],
	// [x*a + y*b + z*c, t*a + u*b + v*c].
	DotBroadcast
	// DotCompatibleTensor: inputs = [[x, y], [z, t]], weights = [[a, b], [c, d]].
	DotCompatibleTensor
	DotUnsupported
)

func (k DotKind) String() string {
	switch k {
	case DotSimple:
		return "Simple"
	case DotTensor:
		return "Tensor"
	case DotBroadcast:
		return "Broadcast"
	case DotCompatibleTensor:
		return "CompatibleTensor"
	default:
		return "Unsupported"
	}
}

// DotKindOf classifies a Dot of nbInputs operands of shape inputShape
// with the given weights.
func DotKindOf(nbInputs uint64, inputShape Shape, weights Weights) DotKind {
	inputsShape := Duplicated(nbInputs, inputShape)
	switch {
	case inputShape.IsNumber() && inputsShape.Equal(weights.Shape):
		return DotSimple
	case nbInputs == 1 && inputShape.Equal(weights.Shape):
		return DotTensor
	case inputsShape.Equal(weights.Shape):
		return DotCompatibleTensor
	case nbInputs == 1 && !inputShape.IsNumber() && inputShape.EraseFirstDim().Equal(weights.Shape):
		return DotBroadcast
	default:
		return DotUnsupported
	}
}
