// Package sessionregistry is the coordinator's process-wide session
// manager: it owns every live discovery session, enforces the
// at-most-one-running-session-per-agent invariant via a per-agent FIFO
// queue, fans out phase updates to subscribers, and hands terminal
// sessions off to archival storage (spec.md §3 "AgentQueue", §4.3,
// §5 "Shared state").
package sessionregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/eventbus"
	"github.com/Will-Luck/Docker-Sentinel/internal/logging"
	"github.com/Will-Luck/Docker-Sentinel/internal/metrics"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// AgentDispatcher is the coordinator's outbound call to an agent: issue a
// discovery start or a cancellation (spec.md §6 "Coordinator → Agent").
// Implemented by internal/coordinatorapi's outbound client.
type AgentDispatcher interface {
	Initiate(ctx context.Context, def model.Definition, sessionID uuid.UUID) error
	Cancel(ctx context.Context, agentID string, sessionID uuid.UUID) error
}

// TerminalArchiver hands a finished session off to persistent storage,
// which spec.md §1 places out of scope as an external collaborator. The
// in-memory implementation in this package plays the same
// interface-for-injection role the teacher's store.Store interface
// played for internal/web's dependency injection.
type TerminalArchiver interface {
	Archive(ctx context.Context, session model.Session) error
}

// pending is one queued dispatch: the session created for it plus the
// definition needed to build the initiate request when its turn comes.
type pending struct {
	session *model.Session
	def     model.Definition
}

// Registry is the coordinator's live session table and per-agent FIFO
// dispatch queues, guarded by a single RWMutex — spec.md §9 requires
// "all writes that mutate both sessions and agent_queues must take both
// locks in the same order to avoid deadlock"; using one lock for both
// maps satisfies that trivially instead of hand-rolling lock ordering.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]*pending
	queues     map[string][]uuid.UUID // agentID -> FIFO of session ids awaiting dispatch or running
	dispatcher AgentDispatcher
	archiver   TerminalArchiver
	bus        *eventbus.Bus
	log        *logging.Logger
}

// New creates an empty registry.
func New(dispatcher AgentDispatcher, archiver TerminalArchiver, bus *eventbus.Bus, log *logging.Logger) *Registry {
	return &Registry{
		sessions:   make(map[uuid.UUID]*pending),
		queues:     make(map[string][]uuid.UUID),
		dispatcher: dispatcher,
		archiver:   archiver,
		bus:        bus,
		log:        log,
	}
}

// StartSession creates a Pending session for def, enqueues it on def's
// agent queue, and dispatches it immediately if the agent is otherwise
// idle (spec.md §3 "AgentQueue" invariant: at most one non-Pending
// session per agent runs at a time).
func (r *Registry) StartSession(ctx context.Context, def model.Definition) (*model.Session, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	session := model.NewSession(def.AgentID, def.TenantID, def.Kind)
	session.DefinitionID = defIDPtr(def)

	r.mu.Lock()
	r.sessions[session.ID] = &pending{session: session, def: def}
	queue := r.queues[def.AgentID]
	shouldDispatch := len(queue) == 0
	r.queues[def.AgentID] = append(queue, session.ID)
	r.mu.Unlock()

	metrics.SessionsActive.Inc()
	r.publish(session)

	if shouldDispatch {
		r.dispatchHead(ctx, def.AgentID)
	}
	return session, nil
}

func defIDPtr(def model.Definition) *uuid.UUID {
	id := def.ID
	return &id
}

// dispatchHead transitions the agent queue's front session Pending ->
// Starting and issues the initiate call. Must be called with no lock
// held (the dispatch RPC itself happens after the registry lock has
// been released, per spec.md §5's ordering guarantee).
func (r *Registry) dispatchHead(ctx context.Context, agentID string) {
	r.mu.Lock()
	queue := r.queues[agentID]
	if len(queue) == 0 {
		r.mu.Unlock()
		return
	}
	p, ok := r.sessions[queue[0]]
	if !ok || p.session.Phase != model.PhasePending {
		r.mu.Unlock()
		return
	}
	p.session.Transition(model.PhaseStarting)
	session := *p.session
	def := p.def
	r.mu.Unlock()

	r.publish(&session)

	if err := r.dispatcher.Initiate(ctx, def, session.ID); err != nil {
		r.failSession(ctx, session.ID, fmt.Sprintf("initiate failed: %v", err))
	}
}

// CancelSession implements spec.md §4.3's cancellation semantics: Pending
// removal is synchronous, Starting is rejected as transient, Started/
// Scanning issues an async cancel to the agent, and cancelling an
// already-terminal session is a no-op success (spec.md §8 idempotence).
func (r *Registry) CancelSession(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	p, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil // already archived/terminal: no-op success
	}
	phase := p.session.Phase
	agentID := p.session.AgentID

	switch phase {
	case model.PhasePending:
		r.removeFromQueueLocked(agentID, sessionID)
		p.session.Transition(model.PhaseCancelled)
		session := *p.session
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		r.publish(&session)
		r.archiveAndAdvance(ctx, session, agentID)
		return nil
	case model.PhaseStarting:
		r.mu.Unlock()
		return fmt.Errorf("session %s is starting, try again shortly", sessionID)
	case model.PhaseComplete, model.PhaseFailed, model.PhaseCancelled:
		r.mu.Unlock()
		return nil
	default: // Started, Scanning
		r.mu.Unlock()
		return r.dispatcher.Cancel(ctx, agentID, sessionID)
	}
}

// ApplyUpdate records an agent-reported progress/phase update, broadcasts
// it to subscribers, and — if the phase is terminal — archives the
// session and dispatches the next queued session for that agent (spec.md
// §4.3 "Terminal states are broadcast, archived, removed from the live
// registry, and trigger dispatch of the next queued session").
func (r *Registry) ApplyUpdate(ctx context.Context, update model.UpdatePayload) error {
	r.mu.Lock()
	p, ok := r.sessions[update.SessionID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown session %s", update.SessionID)
	}
	if !p.session.Phase.CanTransition(update.Phase) && p.session.Phase != update.Phase {
		r.mu.Unlock()
		return fmt.Errorf("illegal phase transition %s -> %s for session %s", p.session.Phase, update.Phase, update.SessionID)
	}
	p.session.Phase = update.Phase
	p.session.Processed = update.Processed
	if update.Total > 0 {
		p.session.Total = update.Total
	}
	p.session.LastError = update.Error
	if !update.FinishedAt.IsZero() {
		p.session.FinishedAt = update.FinishedAt
	}
	terminal := update.Phase.Terminal()
	session := *p.session
	agentID := p.session.AgentID
	if terminal {
		r.removeFromQueueLocked(agentID, update.SessionID)
		delete(r.sessions, update.SessionID)
	}
	r.mu.Unlock()

	r.publish(&session)
	if terminal {
		r.archiveAndAdvance(ctx, session, agentID)
	}
	return nil
}

func (r *Registry) failSession(ctx context.Context, sessionID uuid.UUID, reason string) {
	r.mu.Lock()
	p, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.session.LastError = reason
	p.session.Transition(model.PhaseFailed)
	session := *p.session
	agentID := p.session.AgentID
	r.removeFromQueueLocked(agentID, sessionID)
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	r.publish(&session)
	r.archiveAndAdvance(ctx, session, agentID)
}

// archiveAndAdvance hands the finished session to the archiver and
// dispatches the next Pending session in the agent's queue, if any.
func (r *Registry) archiveAndAdvance(ctx context.Context, session model.Session, agentID string) {
	metrics.SessionsActive.Dec()
	metrics.SessionsTotal.WithLabelValues(string(session.Phase)).Inc()
	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, session); err != nil && r.log != nil {
			r.log.Error("archive session failed", "session", session.ID, "error", err)
		}
	}
	r.dispatchHead(ctx, agentID)
}

// removeFromQueueLocked removes id from agentID's queue. Caller must
// hold r.mu.
func (r *Registry) removeFromQueueLocked(agentID string, id uuid.UUID) {
	queue := r.queues[agentID]
	for i, qid := range queue {
		if qid == id {
			r.queues[agentID] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

// Get returns a snapshot of a live session by id.
func (r *Registry) Get(id uuid.UUID) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return *p.session, true
}

// List returns a snapshot of every live session.
func (r *Registry) List() []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Session, 0, len(r.sessions))
	for _, p := range r.sessions {
		out = append(out, *p.session)
	}
	return out
}

// QueueDepth reports how many sessions (pending + running) are queued
// for an agent, for metrics/diagnostics.
func (r *Registry) QueueDepth(agentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues[agentID])
}

// Subscribe returns a live feed of every update broadcast by this
// registry, for the coordinator's SSE handler.
func (r *Registry) Subscribe() *eventbus.Subscription {
	return r.bus.Subscribe()
}

func (r *Registry) publish(session *model.Session) {
	r.bus.Publish(session.ToUpdatePayload())
}
