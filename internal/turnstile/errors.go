// Package turnstile implements the logical turnstile state machine: a
// fixed transition graph, a bounded transition history, and the mapping
// from protocol-emitting states to the wire commands they produce.
package turnstile

import "fmt"

// InvalidStateTransitionError reports a transition outside the legal graph.
type InvalidStateTransitionError struct {
	From State
	To   State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("turnstile: illegal transition %s -> %s", e.From, e.To)
}
