package sessionregistry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/eventbus"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

type fakeDispatcher struct {
	mu        sync.Mutex
	initiated []uuid.UUID
	cancelled []uuid.UUID
	failNext  bool
}

func (f *fakeDispatcher) Initiate(_ context.Context, _ model.Definition, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("boom")
	}
	f.initiated = append(f.initiated, sessionID)
	return nil
}

func (f *fakeDispatcher) Cancel(_ context.Context, _ string, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, sessionID)
	return nil
}

func newTestRegistry() (*Registry, *fakeDispatcher, *MemoryArchiver) {
	disp := &fakeDispatcher{}
	arch := NewMemoryArchiver()
	return New(disp, arch, eventbus.New(), nil), disp, arch
}

func testDef(agentID string) model.Definition {
	return model.Definition{ID: uuid.New(), AgentID: agentID, TenantID: "t1", Kind: model.KindSelfReport, RunType: model.AdHoc{}}
}

func TestStartSessionDispatchesWhenIdle(t *testing.T) {
	reg, disp, _ := newTestRegistry()
	def := testDef("agent-1")

	session, err := reg.StartSession(context.Background(), def)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if session.Phase != model.PhaseStarting {
		t.Errorf("phase = %s, want starting", session.Phase)
	}
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.initiated) != 1 || disp.initiated[0] != session.ID {
		t.Errorf("initiated = %v, want [%s]", disp.initiated, session.ID)
	}
}

func TestSecondSessionQueuesBehindRunning(t *testing.T) {
	reg, disp, _ := newTestRegistry()
	def := testDef("agent-1")

	first, _ := reg.StartSession(context.Background(), def)
	second, _ := reg.StartSession(context.Background(), def)

	if got, _ := reg.Get(second.ID); got.Phase != model.PhasePending {
		t.Errorf("second session phase = %s, want pending", got.Phase)
	}
	disp.mu.Lock()
	n := len(disp.initiated)
	disp.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected only the first session dispatched, got %d initiated", n)
	}

	// Completing the first promotes the second.
	err := reg.ApplyUpdate(context.Background(), model.UpdatePayload{
		SessionID: first.ID, AgentID: "agent-1", Phase: model.PhaseStarted,
	})
	if err != nil {
		t.Fatalf("ApplyUpdate started: %v", err)
	}
	err = reg.ApplyUpdate(context.Background(), model.UpdatePayload{
		SessionID: first.ID, AgentID: "agent-1", Phase: model.PhaseComplete, FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("ApplyUpdate complete: %v", err)
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.initiated) != 2 || disp.initiated[1] != second.ID {
		t.Errorf("initiated = %v, want second session dispatched next", disp.initiated)
	}
}

func TestAtMostOneRunningPerAgentInvariant(t *testing.T) {
	reg, _, _ := newTestRegistry()
	def := testDef("agent-1")

	reg.StartSession(context.Background(), def)
	reg.StartSession(context.Background(), def)
	reg.StartSession(context.Background(), def)

	nonPending := 0
	for _, s := range reg.List() {
		if s.Phase != model.PhasePending {
			nonPending++
		}
	}
	if nonPending > 1 {
		t.Errorf("%d non-pending sessions for agent-1, want <= 1", nonPending)
	}
}

func TestCancelPendingSessionIsSynchronous(t *testing.T) {
	reg, _, _ := newTestRegistry()
	def := testDef("agent-1")
	reg.StartSession(context.Background(), def)
	second, _ := reg.StartSession(context.Background(), def)

	if err := reg.CancelSession(context.Background(), second.ID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if _, ok := reg.Get(second.ID); ok {
		t.Error("cancelled pending session should be removed from live registry")
	}
}

func TestCancelStartingIsTransient(t *testing.T) {
	reg, _, _ := newTestRegistry()
	def := testDef("agent-1")
	session, _ := reg.StartSession(context.Background(), def)

	if err := reg.CancelSession(context.Background(), session.ID); err == nil {
		t.Error("expected transient error cancelling a Starting session")
	}
}

func TestCancelRunningIssuesDispatch(t *testing.T) {
	reg, disp, _ := newTestRegistry()
	def := testDef("agent-1")
	session, _ := reg.StartSession(context.Background(), def)
	reg.ApplyUpdate(context.Background(), model.UpdatePayload{SessionID: session.ID, AgentID: "agent-1", Phase: model.PhaseStarted})
	reg.ApplyUpdate(context.Background(), model.UpdatePayload{SessionID: session.ID, AgentID: "agent-1", Phase: model.PhaseScanning})

	if err := reg.CancelSession(context.Background(), session.ID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.cancelled) != 1 {
		t.Errorf("cancelled = %v, want one entry", disp.cancelled)
	}
}

func TestCancelTerminalSessionIsNoOp(t *testing.T) {
	reg, _, _ := newTestRegistry()
	if err := reg.CancelSession(context.Background(), uuid.New()); err != nil {
		t.Errorf("cancelling unknown/terminal session should be a no-op success, got %v", err)
	}
}

func TestTerminalSessionArchivedAndRemoved(t *testing.T) {
	reg, _, arch := newTestRegistry()
	def := testDef("agent-1")
	session, _ := reg.StartSession(context.Background(), def)
	reg.ApplyUpdate(context.Background(), model.UpdatePayload{SessionID: session.ID, AgentID: "agent-1", Phase: model.PhaseFailed, Error: "boom"})

	if _, ok := reg.Get(session.ID); ok {
		t.Error("terminal session should be removed from the live registry")
	}
	archived, ok := arch.Get(session.ID)
	if !ok {
		t.Fatal("expected terminal session archived")
	}
	if archived.Phase != model.PhaseFailed || archived.LastError != "boom" {
		t.Errorf("archived session = %+v", archived)
	}
}

func TestFailedInitiateMarksSessionFailed(t *testing.T) {
	reg, disp, arch := newTestRegistry()
	disp.failNext = true
	def := testDef("agent-1")

	session, err := reg.StartSession(context.Background(), def)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	archived, ok := arch.Get(session.ID)
	if !ok || archived.Phase != model.PhaseFailed {
		t.Errorf("expected session archived as Failed after initiate error, got %+v ok=%v", archived, ok)
	}
}
