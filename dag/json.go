package dag

import (
	"encoding/json"
	"fmt"
	"io"
)

// Raw JSON structures matching the file format

type OperatorJSON struct {
	Kind         string                  `json:"kind"`
	Inputs       []OperatorIndex         `json:"inputs,omitempty"`
	Precision    Precision               `json:"precision,omitempty"`
	Shape        []uint64                `json:"shape,omitempty"`
	Manp         float64                 `json:"manp,omitempty"`
	Complexity   *LevelledComplexityJSON `json:"complexity,omitempty"`
	Comment      string                  `json:"comment,omitempty"`
	Weights      []int64                 `json:"weights,omitempty"`
	WeightsShape *[]uint64               `json:"weights_shape,omitempty"`
	Table        []uint64                `json:"table,omitempty"`
}

type LevelledComplexityJSON struct {
	LweDimCostFactor float64 `json:"lwe_dim_cost_factor"`
	FixedCost        float64 `json:"fixed_cost"`
}

type DagJSON struct {
	Operators []OperatorJSON `json:"operators"`
}

// ReadJSON decodes an OperationDag. Output shapes and precisions are
// recomputed as the builders do and the result is validated.
func ReadJSON(r io.Reader) (d *OperationDag, err error) {

	var dj DagJSON
	if err = json.NewDecoder(r).Decode(&dj); err != nil {
		return nil, fmt.Errorf("parsing dag JSON: %w", err)
	}

	d = NewOperationDag()

	for i, oj := range dj.Operators {
		if err = d.addJSON(oj); err != nil {
			return nil, fmt.Errorf("operator %%%d: %w", i, err)
		}
	}

	if err = d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *OperationDag) addJSON(oj OperatorJSON) (err error) {

	for _, in := range oj.Inputs {
		if in < 0 || in >= d.Len() {
			return fmt.Errorf("invalid operand %%%d: must reference an earlier operator", in)
		}
	}

	single := func() (OperatorIndex, error) {
		if len(oj.Inputs) != 1 {
			return 0, fmt.Errorf("invalid %s: expects 1 input, has %d", oj.Kind, len(oj.Inputs))
		}
		return oj.Inputs[0], nil
	}

	switch oj.Kind {
	case "input":
		d.AddInput(oj.Precision, Shape{Dimensions: oj.Shape})
	case "lut":
		in, err := single()
		if err != nil {
			return err
		}
		d.AddLut(in, FunctionTable{Values: oj.Table}, oj.Precision)
	case "levelled":
		if len(oj.Inputs) == 0 {
			return fmt.Errorf("invalid levelled: no inputs")
		}
		complexity := ZeroComplexity
		if oj.Complexity != nil {
			complexity = LevelledComplexity{LweDimCostFactor: oj.Complexity.LweDimCostFactor, FixedCost: oj.Complexity.FixedCost}
		}
		d.AddLevelledOp(oj.Inputs, complexity, oj.Manp, Shape{Dimensions: oj.Shape}, oj.Comment)
	case "dot":
		if len(oj.Inputs) == 0 {
			return fmt.Errorf("invalid dot: no inputs")
		}
		shape := Vector(uint64(len(oj.Weights)))
		if oj.WeightsShape != nil {
			shape = Shape{Dimensions: *oj.WeightsShape}
		}
		if shape.FlatSize() != uint64(len(oj.Weights)) {
			return fmt.Errorf("invalid dot: weights shape %s does not hold %d values", shape, len(oj.Weights))
		}
		d.AddDot(oj.Inputs, Weights{Shape: shape, Values: oj.Weights})
	case "unsafe_cast":
		in, err := single()
		if err != nil {
			return err
		}
		d.AddUnsafeCast(in, oj.Precision)
	case "round":
		in, err := single()
		if err != nil {
			return err
		}
		d.AddRound(in, oj.Precision)
	default:
		return fmt.Errorf("invalid kind %q", oj.Kind)
	}

	return nil
}

// WriteJSON encodes d in the format read by ReadJSON.
func (d *OperationDag) WriteJSON(w io.Writer) error {

	dj := DagJSON{Operators: make([]OperatorJSON, len(d.Operators))}

	for i, op := range d.Operators {

		oj := OperatorJSON{Kind: op.Kind(), Inputs: op.Operands()}

		switch op := op.(type) {
		case Input:
			oj.Precision = op.Precision
			oj.Shape = op.Shape.Dimensions
		case Lut:
			oj.Precision = op.OutPrecision
			oj.Table = op.Table.Values
		case LevelledOp:
			oj.Manp = op.Manp
			oj.Shape = op.OutShape.Dimensions
			oj.Comment = op.Comment
			if op.Complexity != ZeroComplexity {
				oj.Complexity = &LevelledComplexityJSON{
					LweDimCostFactor: op.Complexity.LweDimCostFactor,
					FixedCost:        op.Complexity.FixedCost,
				}
			}
		case Dot:
			oj.Weights = op.Weights.Values
			dims := append([]uint64{}, op.Weights.Shape.Dimensions...)
			oj.WeightsShape = &dims
		case UnsafeCast:
			oj.Precision = op.OutPrecision
		case Round:
			oj.Precision = op.OutPrecision
		}

		dj.Operators[i] = oj
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dj); err != nil {
		return fmt.Errorf("writing dag JSON: %w", err)
	}

	return nil
}
