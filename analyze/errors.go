package analyze

import (
	"errors"
	"fmt"

	"github.com/tuneinsight/partition-noise-analyzer/dag"
	"github.com/tuneinsight/partition-noise-analyzer/partition"
)

var (
	// ErrPrecondition is returned when the caller supplied configuration
	// or DAG is rejected before any propagation.
	ErrPrecondition = errors.New("precondition fault")

	// ErrInternal is wrapped by every *InternalError.
	ErrInternal = errors.New("internal consistency fault")
)

// FaultKind enumerates the internal consistency faults of the propagation.
type FaultKind int

const (
	FaultOutOfRange FaultKind = iota
	FaultMissingColumn
	FaultZeroRead
	FaultInvalidRead
	FaultUnsetRead
	FaultInconsistentPartition
	FaultRoundNotExpanded
	FaultDotNotImplemented
	FaultDotUnsupported
	FaultEmptyLevelledOp
)

func (f FaultKind) String() string {
	switch f {
	case FaultOutOfRange:
		return "operator index out of range"
	case FaultMissingColumn:
		return "partition column does not exist"
	case FaultZeroRead:
		return "read of a zero variance"
	case FaultInvalidRead:
		return "read of an invalid variance"
	case FaultUnsetRead:
		return "read of an unset variance"
	case FaultInconsistentPartition:
		return "inconsistent partition"
	case FaultRoundNotExpanded:
		return "round operator not expanded"
	case FaultDotNotImplemented:
		return "dot kind not implemented"
	case FaultDotUnsupported:
		return "dot kind unsupported"
	case FaultEmptyLevelledOp:
		return "levelled operator without input"
	default:
		return fmt.Sprintf("fault(%d)", int(f))
	}
}

// InternalError is the diagnostic of an aborted propagation. Op is the
// operator being computed (-1 outside of the propagation), Input the
// operator being read (-1 if none), Partition the requested column and
// Home the home partition of Input, or of Op when there is no Input.
type InternalError struct {
	Op        dag.OperatorIndex
	Input     dag.OperatorIndex
	Partition partition.PartitionIndex
	Home      partition.PartitionIndex
	Fault     FaultKind
	Detail    string
}

func (e *InternalError) Error() string {
	s := fmt.Sprintf("%s: %s (op=%d, input=%d, partition=%d, home=%d)", ErrInternal, e.Fault, e.Op, e.Input, e.Partition, e.Home)
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

func (e *InternalError) Unwrap() error {
	return ErrInternal
}

func faultAt(op dag.OperatorIndex, home partition.PartitionIndex, fault FaultKind, format string, args ...interface{}) *InternalError {
	return &InternalError{
		Op:        op,
		Input:     -1,
		Partition: home,
		Home:      home,
		Fault:     fault,
		Detail:    fmt.Sprintf(format, args...),
	}
}
