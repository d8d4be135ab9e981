package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/clock"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

type memStore struct {
	mu   sync.Mutex
	defs map[uuid.UUID]model.Definition
}

func newMemStore() *memStore { return &memStore{defs: make(map[uuid.UUID]model.Definition)} }

func (m *memStore) Save(_ context.Context, def model.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.defs, id)
	return nil
}

func (m *memStore) List(_ context.Context) ([]model.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Definition, 0, len(m.defs))
	for _, d := range m.defs {
		out = append(out, d)
	}
	return out, nil
}

func (m *memStore) get(id uuid.UUID) model.Definition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defs[id]
}

type fakeStarter struct {
	mu      sync.Mutex
	started []uuid.UUID
	fail    bool
}

func (f *fakeStarter) StartSession(_ context.Context, def model.Definition) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("boom")
	}
	f.started = append(f.started, def.ID)
	return model.NewSession(def.AgentID, def.TenantID, def.Kind), nil
}

func (f *fakeStarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

func newTestScheduler() (*Scheduler, *memStore, *fakeStarter) {
	store := newMemStore()
	starter := &fakeStarter{}
	s := New(store, starter, clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), nil)
	return s, store, starter
}

func validDef(agentID string) model.Definition {
	return model.Definition{
		ID:      uuid.New(),
		AgentID: agentID,
		TenantID: "t1",
		Kind:    model.KindSelfReport,
		RunType: model.Scheduled{Cron: "*/5 * * * *", Enabled: true},
	}
}

func TestCreateRegistersValidCron(t *testing.T) {
	s, store, _ := newTestScheduler()
	def := validDef("agent-1")

	created, err := s.Create(context.Background(), def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sched, ok := created.RunType.(model.Scheduled)
	if !ok || !sched.Enabled {
		t.Fatalf("expected enabled scheduled run type, got %+v", created.RunType)
	}
	if _, ok := s.entries[created.ID]; !ok {
		t.Error("expected cron job registered")
	}
	if stored := store.get(created.ID); stored.ID != created.ID {
		t.Error("expected definition persisted")
	}
}

func TestCreateWithMalformedCronPersistsDisabled(t *testing.T) {
	s, store, _ := newTestScheduler()
	def := validDef("agent-1")
	def.RunType = model.Scheduled{Cron: "not a cron expression", Enabled: true}

	created, err := s.Create(context.Background(), def)
	if err != nil {
		t.Fatalf("Create should not fail outright on bad cron: %v", err)
	}
	sched, ok := created.RunType.(model.Scheduled)
	if !ok || sched.Enabled {
		t.Fatalf("expected definition persisted disabled, got %+v", created.RunType)
	}
	if created.LastRegisterError == "" {
		t.Error("expected LastRegisterError recorded")
	}
	if _, ok := s.entries[created.ID]; ok {
		t.Error("malformed cron must not leave a registered job")
	}
	stored := store.get(created.ID)
	storedSched := stored.RunType.(model.Scheduled)
	if storedSched.Enabled {
		t.Error("persisted definition must be disabled")
	}
}

func TestUpdateReregistersJob(t *testing.T) {
	s, _, _ := newTestScheduler()
	def := validDef("agent-1")
	created, _ := s.Create(context.Background(), def)
	firstEntry := s.entries[created.ID]

	created.RunType = model.Scheduled{Cron: "0 * * * *", Enabled: true}
	updated, err := s.Update(context.Background(), created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.entries[updated.ID] == firstEntry {
		t.Error("expected a new cron entry id after update")
	}
}

func TestDeleteUnregistersJob(t *testing.T) {
	s, store, _ := newTestScheduler()
	def := validDef("agent-1")
	created, _ := s.Create(context.Background(), def)

	if err := s.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.entries[created.ID]; ok {
		t.Error("expected job unregistered")
	}
	if _, err := store.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, present := store.defs[created.ID]; present {
		t.Error("expected definition deleted from store")
	}
}

func TestLoadRegistersEnabledDefinitionsOnly(t *testing.T) {
	store := newMemStore()
	starter := &fakeStarter{}
	s := New(store, starter, clock.NewFake(time.Now()), nil)

	enabled := validDef("agent-1")
	disabled := validDef("agent-2")
	disabled.RunType = model.Scheduled{Cron: "* * * * *", Enabled: false}
	store.defs[enabled.ID] = enabled
	store.defs[disabled.ID] = disabled

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := s.entries[enabled.ID]; !ok {
		t.Error("expected enabled definition registered")
	}
	if _, ok := s.entries[disabled.ID]; ok {
		t.Error("disabled definition must not be registered")
	}
}

func TestLoadDisablesDefinitionWithRegressedCron(t *testing.T) {
	store := newMemStore()
	starter := &fakeStarter{}
	s := New(store, starter, clock.NewFake(time.Now()), nil)

	def := validDef("agent-1")
	def.RunType = model.Scheduled{Cron: "garbage", Enabled: true}
	store.defs[def.ID] = def

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	stored := store.get(def.ID)
	sched := stored.RunType.(model.Scheduled)
	if sched.Enabled {
		t.Error("expected definition disabled after failing to register on load")
	}
}

func TestTriggerAdHocStartsSessionAndRecordsLastRun(t *testing.T) {
	s, store, starter := newTestScheduler()
	def := model.Definition{
		ID:       uuid.New(),
		AgentID:  "agent-1",
		TenantID: "t1",
		Kind:     model.KindSelfReport,
		RunType:  model.AdHoc{},
	}
	store.defs[def.ID] = def

	session, err := s.TriggerAdHoc(context.Background(), def)
	if err != nil {
		t.Fatalf("TriggerAdHoc: %v", err)
	}
	if session == nil {
		t.Fatal("expected session")
	}
	if starter.count() != 1 {
		t.Errorf("started = %d, want 1", starter.count())
	}
	stored := store.get(def.ID)
	adhoc := stored.RunType.(model.AdHoc)
	if adhoc.LastRun.IsZero() {
		t.Error("expected LastRun recorded")
	}
}
