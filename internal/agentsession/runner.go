package agentsession

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// Reporter sends a session's progress/phase updates to the coordinator.
// Implemented by internal/agentclient; kept as a narrow interface here so
// the runner doesn't depend on the HTTP transport.
type Reporter interface {
	ReportUpdate(ctx context.Context, payload model.UpdatePayload) error
}

// Runner is a single discovery kind's work function: given a cancellation
// token and a progress sink, scan whatever the session targets and report
// results. Implemented by internal/discoveryrun's SelfReport/Docker/
// Network runners.
type Runner interface {
	Run(token *cancel.Token, progress *Progress) error
}

// Progress tracks processed/total counts and emits adaptive-threshold
// updates to a Reporter, per spec.md §4.3 "Progress reporting":
// clamp(total/15, 1, 50), report when processed exceeds the last report
// by at least that threshold, or on completion.
type Progress struct {
	mu        sync.Mutex
	ctx       context.Context
	reporter  Reporter
	session   *model.Session
	guard     *Guard
	threshold int
	lastSent  int
}

// NewProgress derives the adaptive threshold from total and wires a
// progress sink for one session.
func NewProgress(ctx context.Context, reporter Reporter, guard *Guard, session *model.Session, total int) *Progress {
	session.Total = total
	return &Progress{
		ctx:       ctx,
		reporter:  reporter,
		session:   session,
		guard:     guard,
		threshold: clampInt(total/15, 1, 50),
	}
}

// SetTotal finalizes the expected unit count once a runner has enumerated
// its targets (container list length, candidate IP count), recomputing
// the adaptive report threshold from it. Runners that don't know total
// until after an initial enumeration pass call this before the first
// Advance.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.Total = total
	p.threshold = clampInt(total/15, 1, 50)
}

// SessionID returns the id of the session this progress sink reports for.
func (p *Progress) SessionID() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.ID
}

// Context returns the context this progress sink reports updates under.
func (p *Progress) Context() context.Context {
	return p.ctx
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Advance bumps the processed count and reports if the adaptive threshold
// has been crossed since the last report. Safe to call concurrently from
// the scanner's in-flight probe goroutines.
func (p *Progress) Advance(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if processed <= p.session.Processed {
		return
	}
	p.session.Processed = processed
	if processed-p.lastSent >= p.threshold {
		p.flushLocked()
	}
}

// Phase transitions the session's phase via the guard and always reports.
func (p *Progress) Phase(next model.Phase) error {
	if err := p.guard.Transition(p.session.ID, next); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
	return nil
}

// Fail transitions the session to Failed carrying the sanitized error
// string and reports it, regardless of the adaptive threshold — terminal
// transitions always report per spec.md §4.3.
func (p *Progress) Fail(reason string) {
	p.mu.Lock()
	p.session.LastError = reason
	p.mu.Unlock()
	_ = p.guard.Transition(p.session.ID, model.PhaseFailed)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
}

// Complete transitions the session to Complete and reports.
func (p *Progress) Complete() {
	_ = p.guard.Transition(p.session.ID, model.PhaseComplete)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
}

// Cancelled transitions the session to Cancelled, recording the last
// known processed count, and reports.
func (p *Progress) Cancelled() {
	_ = p.guard.Transition(p.session.ID, model.PhaseCancelled)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
}

func (p *Progress) flushLocked() {
	p.lastSent = p.session.Processed
	if p.reporter == nil {
		return
	}
	_ = p.reporter.ReportUpdate(p.ctx, p.session.ToUpdatePayload())
}
