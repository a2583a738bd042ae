package turnstile

import "time"

// maxHistory bounds the transition record FIFO; entries beyond the cap
// evict oldest-first.
const maxHistory = 100

// Transition is one recorded state change.
type Transition struct {
	From    State
	To      State
	Entered time.Time
}

// Machine is the logical turnstile state machine described in the wire
// protocol's companion specification: a fixed transition graph, a bounded
// audit history, and an optional per-state timeout. Machine is not safe
// for concurrent use — it belongs to one actor, matching the rest of the
// module's cooperative single-threaded-per-actor concurrency model.
type Machine struct {
	current State
	history []Transition

	timeoutAt      time.Time
	hasTimeout     bool
	timeoutTarget  State
}

// New constructs a Machine starting in Idle.
func New() *Machine {
	return &Machine{current: Idle}
}

// Current returns the machine's current state.
func (m *Machine) Current() State { return m.current }

// History returns the transition FIFO, oldest first.
func (m *Machine) History() []Transition {
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// TransitionTo attempts from->to against the legal transition graph. On
// success it records the transition, updates the current state, and
// clears any pending timeout. On failure the state is unchanged and
// *InvalidStateTransitionError is returned.
func (m *Machine) TransitionTo(to State) (Transition, error) {
	from := m.current
	if !isLegal(from, to) {
		return Transition{}, &InvalidStateTransitionError{From: from, To: to}
	}
	return m.forceTransition(from, to), nil
}

// forceTransition performs the bookkeeping common to TransitionTo and
// Reset: record history, update current, clear the timeout.
func (m *Machine) forceTransition(from, to State) Transition {
	t := Transition{From: from, To: to, Entered: time.Now()}
	m.current = to
	m.appendHistory(t)
	m.hasTimeout = false
	return t
}

func (m *Machine) appendHistory(t Transition) {
	m.history = append(m.history, t)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
}

// Reset forces a transition from the current state to Idle regardless of
// the transition graph, records it, and clears any pending timeout.
func (m *Machine) Reset() Transition {
	return m.forceTransition(m.current, Idle)
}

// SetTimeout arms a timeout that, once expired, transitions the machine to
// target on the next CheckTimeout call, from the state it is in when the
// timeout is armed. Entering any new state (via TransitionTo or Reset)
// clears a pending timeout.
func (m *Machine) SetTimeout(d time.Duration, target State) {
	m.timeoutAt = time.Now().Add(d)
	m.hasTimeout = true
	m.timeoutTarget = target
}

// ClearTimeout disarms any pending timeout without changing state.
func (m *Machine) ClearTimeout() {
	m.hasTimeout = false
}

// CheckTimeout is the combined check-and-handle operation: if a timeout
// is armed and has expired, it performs the transition to the armed
// target state (typically WaitingRotation -> RotationTimeout) and returns
// the resulting Transition. If no timeout is armed or it has not yet
// expired, ok is false.
func (m *Machine) CheckTimeout() (Transition, bool) {
	if !m.hasTimeout || time.Now().Before(m.timeoutAt) {
		return Transition{}, false
	}
	target := m.timeoutTarget
	m.hasTimeout = false
	if !isLegal(m.current, target) {
		return Transition{}, false
	}
	return m.forceTransition(m.current, target), true
}
