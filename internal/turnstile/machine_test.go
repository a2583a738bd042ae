package turnstile

import (
	"testing"
	"time"

	"github.com/henrycontrol/turnkey/internal/protocol"
)

func TestLegalTransitionTable(t *testing.T) {
	legal := map[State][]State{
		Idle:               {Reading},
		Reading:            {Validating},
		Validating:         {Granted, Denied},
		Granted:            {WaitingRotation},
		WaitingRotation:    {RotationInProgress, RotationTimeout},
		RotationInProgress: {RotationCompleted},
		RotationCompleted:  {Idle},
		Denied:             {Idle},
		RotationTimeout:    {Idle},
	}

	all := []State{Idle, Reading, Validating, Granted, Denied, WaitingRotation, RotationInProgress, RotationCompleted, RotationTimeout}

	for _, from := range all {
		wantLegal := make(map[State]bool)
		for _, to := range legal[from] {
			wantLegal[to] = true
		}
		for _, to := range all {
			m := New()
			m.current = from
			_, err := m.TransitionTo(to)
			if wantLegal[to] {
				if err != nil {
					t.Errorf("%s -> %s: expected success, got %v", from, to, err)
				}
				if m.Current() != to {
					t.Errorf("%s -> %s: expected current state %s, got %s", from, to, to, m.Current())
				}
			} else {
				if err == nil {
					t.Errorf("%s -> %s: expected InvalidStateTransitionError", from, to)
				}
				if m.Current() != from {
					t.Errorf("%s -> %s: state changed on rejected transition", from, to)
				}
			}
		}
	}
}

func TestProtocolEmittingStates(t *testing.T) {
	cases := []struct {
		state State
		want  protocol.CommandCode
	}{
		{WaitingRotation, protocol.CommandWaitingRotation},
		{RotationCompleted, protocol.CommandRotationCompleted},
		{RotationTimeout, protocol.CommandRotationTimeout},
	}
	for _, c := range cases {
		got, ok := c.state.CommandCode()
		if !ok || got != c.want {
			t.Errorf("%s.CommandCode() = %v, %v; want %v, true", c.state, got, ok, c.want)
		}
	}

	nonEmitting := []State{Idle, Reading, Validating, Granted, Denied, RotationInProgress}
	for _, s := range nonEmitting {
		if _, ok := s.CommandCode(); ok {
			t.Errorf("%s: expected non-emitting", s)
		}
	}
}

func TestFullFlowHistoryCount(t *testing.T) {
	m := New()
	sequence := []State{Reading, Validating, Granted, WaitingRotation, RotationInProgress, RotationCompleted, Idle}
	for _, s := range sequence {
		if _, err := m.TransitionTo(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	history := m.History()
	if len(history) != 7 {
		t.Fatalf("expected 7 history records, got %d", len(history))
	}
	if history[0].From != Idle || history[0].To != Reading {
		t.Fatalf("unexpected first record: %+v", history[0])
	}
	if history[6].From != RotationCompleted || history[6].To != Idle {
		t.Fatalf("unexpected last record: %+v", history[6])
	}
}

func TestHistoryCapsAt100(t *testing.T) {
	m := New()
	for i := 0; i < 120; i++ {
		m.current = Denied
		if _, err := m.TransitionTo(Idle); err != nil {
			t.Fatalf("Denied->Idle: %v", err)
		}
		m.current = Idle
		if _, err := m.TransitionTo(Reading); err != nil {
			t.Fatalf("Idle->Reading: %v", err)
		}
		m.current = Reading
		if _, err := m.TransitionTo(Validating); err != nil {
			t.Fatalf("Reading->Validating: %v", err)
		}
		m.current = Validating
		if _, err := m.TransitionTo(Denied); err != nil {
			t.Fatalf("Validating->Denied: %v", err)
		}
	}
	if len(m.History()) != maxHistory {
		t.Fatalf("expected history capped at %d, got %d", maxHistory, len(m.History()))
	}
}

func TestResetForcesIdleFromAnyState(t *testing.T) {
	m := New()
	m.current = RotationInProgress
	rec := m.Reset()
	if m.Current() != Idle {
		t.Fatalf("expected Idle after Reset, got %s", m.Current())
	}
	if rec.From != RotationInProgress || rec.To != Idle {
		t.Fatalf("unexpected reset record: %+v", rec)
	}
}

func TestTimeoutExpiryTransitionsWaitingRotationToRotationTimeout(t *testing.T) {
	m := New()
	m.current = WaitingRotation
	m.SetTimeout(10*time.Millisecond, RotationTimeout)

	if _, ok := m.CheckTimeout(); ok {
		t.Fatalf("expected timeout not yet expired")
	}

	time.Sleep(20 * time.Millisecond)
	rec, ok := m.CheckTimeout()
	if !ok {
		t.Fatalf("expected timeout to fire")
	}
	if rec.From != WaitingRotation || rec.To != RotationTimeout {
		t.Fatalf("unexpected transition: %+v", rec)
	}
	if m.Current() != RotationTimeout {
		t.Fatalf("expected current state RotationTimeout, got %s", m.Current())
	}
}

func TestEnteringNewStateClearsTimeout(t *testing.T) {
	m := New()
	m.current = WaitingRotation
	m.SetTimeout(10*time.Millisecond, RotationTimeout)

	if _, err := m.TransitionTo(RotationInProgress); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := m.CheckTimeout(); ok {
		t.Fatalf("expected timeout cleared by the intervening transition")
	}
}
