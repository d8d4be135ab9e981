package agentsession

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

func TestStartSessionRotatesPriorToken(t *testing.T) {
	g := NewGuard()

	_, firstToken := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)
	if firstToken.Cancelled() {
		t.Fatal("fresh token should not start cancelled")
	}

	_, secondToken := g.StartSession("agent-1", "tenant-1", model.KindDocker, nil)

	if !firstToken.Cancelled() {
		t.Error("starting a new session should cancel the prior token")
	}
	if secondToken.Cancelled() {
		t.Error("the new token should not be cancelled by its own rotation")
	}

	active, ok := g.Active()
	if !ok {
		t.Fatal("expected an active session after StartSession")
	}
	if active.Kind != model.KindDocker {
		t.Errorf("active.Kind = %v, want %v", active.Kind, model.KindDocker)
	}
}

func TestGuardTokenMatchesActiveSession(t *testing.T) {
	g := NewGuard()
	session, token := g.StartSession("agent-1", "tenant-1", model.KindSelfReport, nil)

	got, ok := g.Token()
	if !ok || got != token {
		t.Fatal("Token() should return the token created by StartSession")
	}

	active, _ := g.Active()
	if active.ID != session.ID {
		t.Errorf("Active().ID = %v, want %v", active.ID, session.ID)
	}
}

func TestGuardCancelSignalsActiveToken(t *testing.T) {
	g := NewGuard()
	_, token := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)

	if !g.Cancel() {
		t.Fatal("Cancel() should report true when a session is active")
	}
	if !token.Cancelled() {
		t.Error("Cancel() should signal the active token")
	}
}

func TestGuardCancelWithNoActiveSession(t *testing.T) {
	g := NewGuard()
	if g.Cancel() {
		t.Error("Cancel() should report false with no active session")
	}
}

func TestGuardClearRemovesMatchingSession(t *testing.T) {
	g := NewGuard()
	session, _ := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)

	g.Clear(uuid.New())
	if _, ok := g.Active(); !ok {
		t.Fatal("Clear with a mismatched id should not remove the active session")
	}

	g.Clear(session.ID)
	if _, ok := g.Active(); ok {
		t.Error("Clear with the matching id should remove the active session")
	}
}

func TestGuardTransitionAdvancesLegalEdge(t *testing.T) {
	g := NewGuard()
	session, _ := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)

	if err := g.Transition(session.ID, model.PhaseStarting); err != nil {
		t.Fatalf("unexpected error on legal transition: %v", err)
	}
	active, _ := g.Active()
	if active.Phase != model.PhaseStarting {
		t.Errorf("Phase = %v, want %v", active.Phase, model.PhaseStarting)
	}
}

func TestGuardTransitionRejectsIllegalEdge(t *testing.T) {
	g := NewGuard()
	session, _ := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)

	if err := g.Transition(session.ID, model.PhaseComplete); err == nil {
		t.Error("expected an error jumping straight from Pending to Complete")
	}
}

func TestGuardTransitionRejectsUnknownSessionID(t *testing.T) {
	g := NewGuard()
	g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)

	if err := g.Transition(uuid.New(), model.PhaseStarting); err == nil {
		t.Error("expected an error transitioning a session id that isn't active")
	}
}
