// Package scheduler implements the coordinator's DiscoveryScheduler:
// cron-driven and ad-hoc triggers over persisted DiscoveryDefinitions,
// keeping the in-memory cron job table consistent with what's stored
// (spec.md §4.4).
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Will-Luck/Docker-Sentinel/internal/clock"
	"github.com/Will-Luck/Docker-Sentinel/internal/logging"
	"github.com/Will-Luck/Docker-Sentinel/internal/metrics"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// DefinitionStore persists DiscoveryDefinitions. The scheduler is the
// only component that needs to both read and write definitions at
// runtime (create/update/delete plus the startup load); relational
// storage for this is an external collaborator (spec.md §1), so this is
// an injected interface exactly like sessionregistry.TerminalArchiver.
type DefinitionStore interface {
	Save(ctx context.Context, def model.Definition) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]model.Definition, error)
}

// SessionStarter is the subset of sessionregistry.Registry the scheduler
// needs to fire a session when a cron job runs or an ad-hoc trigger is
// invoked.
type SessionStarter interface {
	StartSession(ctx context.Context, def model.Definition) (*model.Session, error)
}

// Scheduler owns the live cron job table and keeps it synchronized with
// a DefinitionStore, per spec.md §4.4's create/update/delete/startup
// contract. Grounded on the teacher's internal/engine/scheduler.go
// Scheduler struct shape (clock + Run(ctx) loop owner), generalized from
// a single fixed-interval timer to per-definition cron.Cron jobs.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[uuid.UUID]cron.EntryID
	store   DefinitionStore
	starter SessionStarter
	clock   clock.Clock
	log     *logging.Logger
}

// New creates a Scheduler. Call Start to begin running registered jobs
// and Load to populate it from the store at process startup.
func New(store DefinitionStore, starter SessionStarter, clk clock.Clock, log *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[uuid.UUID]cron.EntryID),
		store:   store,
		starter: starter,
		clock:   clk,
		log:     log,
	}
}

// Start begins running the cron scheduler's goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron scheduler, waiting for any running job to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

// Load reads every Scheduled{enabled:true} definition from the store and
// registers it. A definition that fails to register (e.g. a cron
// expression that regressed after being hand-edited in storage) is
// persisted back as disabled rather than left silently unregistered
// (spec.md §4.4 "On startup").
func (s *Scheduler) Load(ctx context.Context) error {
	defs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}
	for _, def := range defs {
		sched, ok := def.RunType.(model.Scheduled)
		if !ok || !sched.Enabled {
			continue
		}
		if err := s.register(def); err != nil {
			s.disableAndPersist(ctx, def, err)
		}
	}
	return nil
}

// Create registers a new definition. If its RunType is a Scheduled job
// with a malformed cron expression, it is persisted disabled instead of
// rejected outright (spec.md §4.4 "On create").
func (s *Scheduler) Create(ctx context.Context, def model.Definition) (model.Definition, error) {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	if sched, ok := def.RunType.(model.Scheduled); ok && sched.Enabled {
		if err := s.register(def); err != nil {
			def.Disable(err.Error())
			metrics.SchedulerJobErrors.WithLabelValues("bad_cron").Inc()
		}
	}
	if err := s.store.Save(ctx, def); err != nil {
		return model.Definition{}, fmt.Errorf("persist definition: %w", err)
	}
	return def, nil
}

// Update unregisters the prior job, persists the new definition, then
// re-registers it (spec.md §4.4 "On update"); failure follows the same
// disabled-persist path as Create.
func (s *Scheduler) Update(ctx context.Context, def model.Definition) (model.Definition, error) {
	s.unregister(def.ID)
	if sched, ok := def.RunType.(model.Scheduled); ok && sched.Enabled {
		if err := s.register(def); err != nil {
			def.Disable(err.Error())
			metrics.SchedulerJobErrors.WithLabelValues("bad_cron").Inc()
		}
	}
	if err := s.store.Save(ctx, def); err != nil {
		return model.Definition{}, fmt.Errorf("persist definition: %w", err)
	}
	return def, nil
}

// Delete unregisters then deletes the definition (spec.md §4.4 "On delete").
func (s *Scheduler) Delete(ctx context.Context, id uuid.UUID) error {
	s.unregister(id)
	return s.store.Delete(ctx, id)
}

// TriggerAdHoc runs def immediately regardless of its RunType, for
// operator-initiated ad-hoc discoveries.
func (s *Scheduler) TriggerAdHoc(ctx context.Context, def model.Definition) (*model.Session, error) {
	session, err := s.starter.StartSession(ctx, def)
	if err != nil {
		return nil, err
	}
	if ah, ok := def.RunType.(model.AdHoc); ok {
		ah.LastRun = s.clock.Now()
		def.RunType = ah
		_ = s.store.Save(ctx, def)
	}
	return session, nil
}

// register parses def's cron expression and adds a job to the live cron
// table. Definitions are captured by value in the closure so a later
// Update's re-registration doesn't retroactively change an already-fired
// job's view of the definition.
func (s *Scheduler) register(def model.Definition) error {
	sched, ok := def.RunType.(model.Scheduled)
	if !ok {
		return fmt.Errorf("definition %s: register called on non-scheduled run type", def.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(sched.Cron, func() {
		s.fire(def)
	})
	if err != nil {
		return fmt.Errorf("parse cron %q: %w", sched.Cron, err)
	}
	s.entries[def.ID] = entryID
	return nil
}

func (s *Scheduler) unregister(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// fire runs when a cron job's time arrives: start a session and record
// last_run on success.
func (s *Scheduler) fire(def model.Definition) {
	ctx := context.Background()
	if _, err := s.starter.StartSession(ctx, def); err != nil {
		if s.log != nil {
			s.log.Error("scheduled discovery failed to start", "definition", def.ID, "error", err)
		}
		return
	}
	if sched, ok := def.RunType.(model.Scheduled); ok {
		sched.LastRun = s.clock.Now()
		def.RunType = sched
		if err := s.store.Save(ctx, def); err != nil && s.log != nil {
			s.log.Error("persist last_run failed", "definition", def.ID, "error", err)
		}
	}
}

// disableAndPersist writes back a definition as disabled after a
// registration failure, per spec.md §3 "persisted with enabled=false".
func (s *Scheduler) disableAndPersist(ctx context.Context, def model.Definition, cause error) {
	def.Disable(cause.Error())
	metrics.SchedulerJobErrors.WithLabelValues("registration_failed").Inc()
	if err := s.store.Save(ctx, def); err != nil && s.log != nil {
		s.log.Error("persist disabled definition failed", "definition", def.ID, "error", err)
	}
}
