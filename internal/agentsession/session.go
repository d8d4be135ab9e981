// Package agentsession implements the agent-side active-session guard
// described in spec.md §4.3: at most one active session per agent, a
// per-session cancellation token, and the phase-machine transitions a
// runner drives as it executes a scan.
package agentsession

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// Guard holds the single active session slot for one agent. New creations
// rotate any prior session's token out — mirroring the teacher's Agent
// struct holding one offlineSince/connected state under a single mutex
// (internal/cluster/agent/agent.go).
type Guard struct {
	mu      sync.RWMutex
	active  *model.Session
	token   *cancel.Token
}

// NewGuard creates an empty session guard.
func NewGuard() *Guard {
	return &Guard{}
}

// StartSession rotates in a fresh session and cancellation token,
// replacing (and cancelling the token of) whatever was active. Per
// spec.md §4.3 "a new start_new_session call rotates to a fresh token".
func (g *Guard) StartSession(agentID, tenantID string, kind model.Kind, definitionID *uuid.UUID) (*model.Session, *cancel.Token) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != nil {
		g.token.Cancel()
	}

	session := model.NewSession(agentID, tenantID, kind)
	session.DefinitionID = definitionID
	token := cancel.New()

	g.active = session
	g.token = token
	return session, token
}

// StartSessionWithID is StartSession for the agent-side half of a
// dispatch: the coordinator has already minted sessionID and expects
// every update this agent reports to carry it back unchanged.
func (g *Guard) StartSessionWithID(sessionID uuid.UUID, agentID, tenantID string, kind model.Kind) (*model.Session, *cancel.Token) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != nil {
		g.token.Cancel()
	}

	session := model.NewSession(agentID, tenantID, kind)
	session.ID = sessionID
	// The coordinator moved this session to Starting when it dispatched
	// it, so the agent-side copy begins there too.
	session.Phase = model.PhaseStarting
	token := cancel.New()

	g.active = session
	g.token = token
	return session, token
}

// Active returns the currently active session, if any.
func (g *Guard) Active() (*model.Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.active == nil {
		return nil, false
	}
	return g.active, true
}

// Token returns the cancellation token for the currently active session.
func (g *Guard) Token() (*cancel.Token, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token == nil {
		return nil, false
	}
	return g.token, true
}

// Cancel signals the active session's token, if one is running, and
// reports whether a session was actually cancelled.
func (g *Guard) Cancel() bool {
	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token == nil {
		return false
	}
	token.Cancel()
	return true
}

// Clear removes the active slot once a terminal phase has been reported,
// per spec.md §4.3 "removed from the live registry" (agent-local half of
// that contract — the coordinator's copy lives in sessionregistry).
func (g *Guard) Clear(sessionID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != nil && g.active.ID == sessionID {
		g.active = nil
		g.token = nil
	}
}

// Transition advances the active session's phase if it is the legal next
// step, else returns an error describing the illegal edge.
func (g *Guard) Transition(sessionID uuid.UUID, next model.Phase) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil || g.active.ID != sessionID {
		return fmt.Errorf("no active session %s", sessionID)
	}
	if !g.active.Transition(next) {
		return fmt.Errorf("illegal phase transition %s -> %s", g.active.Phase, next)
	}
	return nil
}
