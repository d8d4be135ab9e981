package model

import "testing"

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhasePending, PhaseStarting, true},
		{PhasePending, PhaseCancelled, true},
		{PhasePending, PhaseScanning, false},
		{PhaseStarting, PhaseStarted, true},
		{PhaseStarting, PhasePending, false},
		{PhaseStarted, PhaseScanning, true},
		{PhaseStarted, PhaseComplete, true},
		{PhaseScanning, PhaseComplete, true},
		{PhaseScanning, PhaseFailed, true},
		{PhaseComplete, PhaseScanning, false},
		{PhaseFailed, PhasePending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("%s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestSessionTransitionSetsFinishedAt(t *testing.T) {
	s := NewSession("agent-1", "tenant-1", KindNetwork)
	if s.Phase != PhasePending {
		t.Fatalf("new session phase = %s, want pending", s.Phase)
	}
	if !s.Transition(PhaseStarting) {
		t.Fatal("pending -> starting should be legal")
	}
	if !s.Transition(PhaseStarted) {
		t.Fatal("starting -> started should be legal")
	}
	if !s.FinishedAt.IsZero() {
		t.Fatal("non-terminal transition must not set FinishedAt")
	}
	if !s.Transition(PhaseComplete) {
		t.Fatal("started -> complete should be legal")
	}
	if s.FinishedAt.IsZero() {
		t.Fatal("terminal transition must set FinishedAt")
	}
	if s.Transition(PhaseScanning) {
		t.Fatal("terminal session must reject further transitions")
	}
}

func TestPortLessOrdering(t *testing.T) {
	a := Port{Number: 80, Transport: TransportTCP}
	b := Port{Number: 80, Transport: TransportUDP}
	c := Port{Number: 443, Transport: TransportTCP}
	if !a.Less(b) {
		t.Error("tcp:80 should sort before udp:80")
	}
	if !b.Less(c) {
		t.Error("udp:80 should sort before tcp:443")
	}
	if c.Less(a) {
		t.Error("tcp:443 should not sort before tcp:80")
	}
}
