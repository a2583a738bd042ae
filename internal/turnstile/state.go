package turnstile

import "github.com/henrycontrol/turnkey/internal/protocol"

// State is one node of the turnstile's logical state machine.
type State int

const (
	Idle State = iota
	Reading
	Validating
	Granted
	Denied
	WaitingRotation
	RotationInProgress
	RotationCompleted
	RotationTimeout
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Reading:
		return "Reading"
	case Validating:
		return "Validating"
	case Granted:
		return "Granted"
	case Denied:
		return "Denied"
	case WaitingRotation:
		return "WaitingRotation"
	case RotationInProgress:
		return "RotationInProgress"
	case RotationCompleted:
		return "RotationCompleted"
	case RotationTimeout:
		return "RotationTimeout"
	default:
		return "Unknown"
	}
}

// transitions is the closed legal transition graph. A (from,to) pair not
// present here is rejected.
var transitions = map[State]map[State]bool{
	Idle:               {Reading: true},
	Reading:            {Validating: true},
	Validating:         {Granted: true, Denied: true},
	Granted:            {WaitingRotation: true},
	WaitingRotation:    {RotationInProgress: true, RotationTimeout: true},
	RotationInProgress: {RotationCompleted: true},
	RotationCompleted:  {Idle: true},
	Denied:             {Idle: true},
	RotationTimeout:    {Idle: true},
}

// isLegal reports whether from->to is in the transition graph.
func isLegal(from, to State) bool {
	return transitions[from][to]
}

// CommandCode returns the wire command a protocol-emitting state produces
// on entry, and ok=true for the three emitting states
// (WaitingRotation/RotationCompleted/RotationTimeout). All other states
// return ok=false.
func (s State) CommandCode() (protocol.CommandCode, bool) {
	switch s {
	case WaitingRotation:
		return protocol.CommandWaitingRotation, true
	case RotationCompleted:
		return protocol.CommandRotationCompleted, true
	case RotationTimeout:
		return protocol.CommandRotationTimeout, true
	default:
		return protocol.CommandUnknown, false
	}
}
