// Package model holds the shared data types exchanged between the
// coordinator and agents: discovery sessions, definitions, and the
// host/interface/port/service topology an agent reports back.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Phase is a discovery session's position in its state machine.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseStarting  Phase = "starting"
	PhaseStarted   Phase = "started"
	PhaseScanning  Phase = "scanning"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether the phase is one of the three terminal states.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the allowed forward edges of the phase
// machine described in spec.md §4.3. No backwards transitions exist.
var validTransitions = map[Phase][]Phase{
	PhasePending:   {PhaseStarting, PhaseCancelled},
	PhaseStarting:  {PhaseStarted, PhaseFailed},
	PhaseStarted:   {PhaseScanning, PhaseComplete, PhaseFailed, PhaseCancelled},
	PhaseScanning:  {PhaseComplete, PhaseFailed, PhaseCancelled},
	PhaseComplete:  {},
	PhaseFailed:    {},
	PhaseCancelled: {},
}

// CanTransition reports whether moving from p to next is a legal edge.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range validTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Kind identifies which discovery runner produced or will produce a session.
type Kind string

const (
	KindSelfReport Kind = "self_report"
	KindDocker     Kind = "docker"
	KindNetwork    Kind = "network"
)

// Session is one live execution of a discovery definition. The coordinator
// owns the canonical copy in the SessionRegistry; agents only hold the
// session id plus whatever progress they have reported.
type Session struct {
	ID          uuid.UUID `json:"id"`
	AgentID     string    `json:"agentId"`
	TenantID    string    `json:"tenantId"`
	Kind        Kind      `json:"kind"`
	Phase       Phase     `json:"phase"`
	Processed   int       `json:"processed"`
	Total       int       `json:"total"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	DefinitionID *uuid.UUID `json:"definitionId,omitempty"`
}

// NewSession creates a session in PhasePending for the given agent/tenant.
func NewSession(agentID, tenantID string, kind Kind) *Session {
	return &Session{
		ID:       uuid.New(),
		AgentID:  agentID,
		TenantID: tenantID,
		Kind:     kind,
		Phase:    PhasePending,
	}
}

// Transition moves the session to next if legal, else returns false.
func (s *Session) Transition(next Phase) bool {
	if !s.Phase.CanTransition(next) {
		return false
	}
	s.Phase = next
	if next.Terminal() {
		s.FinishedAt = time.Now()
	}
	return true
}

// UpdatePayload is the wire shape an agent POSTs to
// /api/discovery/{session_id}/update (spec.md §6).
type UpdatePayload struct {
	SessionID  uuid.UUID `json:"sessionId"`
	AgentID    string    `json:"agentId"`
	TenantID   string    `json:"tenantId"`
	Phase      Phase     `json:"phase"`
	Kind       Kind      `json:"kind"`
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// ToUpdatePayload snapshots the session as the wire payload agents send
// and the coordinator broadcasts to SSE subscribers.
func (s *Session) ToUpdatePayload() UpdatePayload {
	return UpdatePayload{
		SessionID:  s.ID,
		AgentID:    s.AgentID,
		TenantID:   s.TenantID,
		Phase:      s.Phase,
		Kind:       s.Kind,
		Processed:  s.Processed,
		Total:      s.Total,
		Error:      s.LastError,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}
