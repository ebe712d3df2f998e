package albertree

import (
	"fmt"

	"github.com/stntngo/albertree/blackboard"
)

// LogicError and RuntimeError are the two error families spec.md §7
// distinguishes: programming mistakes the caller can only fix by
// changing code or tree description, versus failures that depend on
// data or environment. They are defined once, in the blackboard package
// (where most of them originate), and aliased here so node and tree code
// never needs to import blackboard just to raise one.
type (
	LogicError   = blackboard.LogicError
	RuntimeError = blackboard.RuntimeError
)

// NewLogicError and NewRuntimeError construct the two error families.
var (
	NewLogicError   = blackboard.NewLogicError
	NewRuntimeError = blackboard.NewRuntimeError
)

// TickBacktraceEntry identifies exactly where in the tree a failure
// originated, per spec.md §7: "the host receives a single entry
// identifying exactly where in the tree the failure originated; any
// layered subtrees are visible in the path itself."
type TickBacktraceEntry struct {
	InstanceName   string
	FullPath       string
	RegistrationID string
}

func (e TickBacktraceEntry) String() string {
	return fmt.Sprintf("%s (%s) @ %s", e.InstanceName, e.RegistrationID, e.FullPath)
}

// NodeExecutionError wraps whatever a node's own Tick returned or
// panicked with, attaching the backtrace entry for the node that threw.
// executeTick constructs these; parent composites never catch them — they
// unwind all the way to the tick driver and then to the host, per
// spec.md §7.
type NodeExecutionError struct {
	Backtrace TickBacktraceEntry
	Err       error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node execution error at %s: %v", e.Backtrace, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}
