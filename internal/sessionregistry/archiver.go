package sessionregistry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// MemoryArchiver is a reference TerminalArchiver for tests and
// single-process deployments without an external persistence layer
// wired in. Production deployments back this interface with whatever
// relational store owns historical records (spec.md §1 "out of scope").
type MemoryArchiver struct {
	mu      sync.Mutex
	records map[uuid.UUID]model.Session
}

// NewMemoryArchiver creates an empty in-memory archiver.
func NewMemoryArchiver() *MemoryArchiver {
	return &MemoryArchiver{records: make(map[uuid.UUID]model.Session)}
}

// Archive stores a copy of the terminal session.
func (a *MemoryArchiver) Archive(_ context.Context, session model.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[session.ID] = session
	return nil
}

// Get returns an archived session by id.
func (a *MemoryArchiver) Get(id uuid.UUID) (model.Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.records[id]
	return s, ok
}

// All returns every archived session, for diagnostics/tests.
func (a *MemoryArchiver) All() []model.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Session, 0, len(a.records))
	for _, s := range a.records {
		out = append(out, s)
	}
	return out
}
