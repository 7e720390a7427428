package formz

// Phase summarizes the validation standing of a node.
type Phase int32

const (
	// PhaseInvalid indicates a known validation error, or a pass that has
	// not produced a result yet.
	PhaseInvalid Phase = iota

	// PhaseValidating indicates an async validation pass is in flight.
	PhaseValidating

	// PhaseValid indicates no known error and no pending async pass.
	PhaseValid
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInvalid:
		return "invalid"
	case PhaseValidating:
		return "validating"
	case PhaseValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Status is the type-erased view of a node's snapshot that groups aggregate.
type Status struct {
	Value      any
	Err        error
	Changed    bool
	Empty      bool
	Complete   bool
	Validating bool
	Valid      bool
	Focused    bool
	Touched    bool
	Disabled   bool
	Skip       bool
}

// Phase returns the validation phase of the status.
func (s Status) Phase() Phase {
	switch {
	case s.Validating:
		return PhaseValidating
	case s.Valid:
		return PhaseValid
	default:
		return PhaseInvalid
	}
}

// Node is implemented by Field, ArrayGroup and ObjectGroup. Groups hold
// references to nodes; the only back-edge is the subscription a group
// registers through Watch, which it removes with Unsubscribe.
type Node interface {
	// Status returns the node's current state without its concrete types.
	Status() Status

	// Watch registers fn to run after every change of the node's state.
	Watch(fn func()) Subscription

	// Unsubscribe removes a handler registered with Watch or Subscribe.
	Unsubscribe(sub Subscription) bool

	// Reset restores the node to its baseline.
	Reset() bool
}
