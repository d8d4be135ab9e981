package agentsession

import (
	"context"
	"testing"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

type recordingReporter struct {
	payloads []model.UpdatePayload
}

func (r *recordingReporter) ReportUpdate(_ context.Context, payload model.UpdatePayload) error {
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestProgressAdvanceReportsOnlyPastThreshold(t *testing.T) {
	g := NewGuard()
	session, _ := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)
	reporter := &recordingReporter{}

	// total=150 -> threshold clamp(150/15,1,50) = 10
	p := NewProgress(context.Background(), reporter, g, session, 150)

	p.Advance(5)
	if len(reporter.payloads) != 0 {
		t.Fatalf("got %d reports after advancing below threshold, want 0", len(reporter.payloads))
	}

	p.Advance(10)
	if len(reporter.payloads) != 1 {
		t.Fatalf("got %d reports after crossing threshold, want 1", len(reporter.payloads))
	}
	if reporter.payloads[0].Processed != 10 {
		t.Errorf("reported Processed = %d, want 10", reporter.payloads[0].Processed)
	}
}

func TestProgressThresholdClampsToFloorAndCeiling(t *testing.T) {
	g := NewGuard()
	lowTotal, _ := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)
	low := NewProgress(context.Background(), nil, g, lowTotal, 3)
	if low.threshold != 1 {
		t.Errorf("threshold for total=3 = %d, want floor of 1", low.threshold)
	}

	g2 := NewGuard()
	highTotal, _ := g2.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)
	high := NewProgress(context.Background(), nil, g2, highTotal, 10000)
	if high.threshold != 50 {
		t.Errorf("threshold for total=10000 = %d, want ceiling of 50", high.threshold)
	}
}

func TestProgressCompleteAlwaysReports(t *testing.T) {
	g := NewGuard()
	session, _ := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)
	g.Transition(session.ID, model.PhaseStarting)
	g.Transition(session.ID, model.PhaseStarted)
	reporter := &recordingReporter{}

	p := NewProgress(context.Background(), reporter, g, session, 100)
	p.Advance(1)
	p.Complete()

	if len(reporter.payloads) != 1 {
		t.Fatalf("got %d reports, want exactly 1 from Complete", len(reporter.payloads))
	}
	if reporter.payloads[0].Phase != model.PhaseComplete {
		t.Errorf("reported Phase = %v, want Complete", reporter.payloads[0].Phase)
	}
}

func TestProgressFailCarriesLastError(t *testing.T) {
	g := NewGuard()
	session, _ := g.StartSession("agent-1", "tenant-1", model.KindNetwork, nil)
	g.Transition(session.ID, model.PhaseStarting)
	reporter := &recordingReporter{}

	p := NewProgress(context.Background(), reporter, g, session, 10)
	p.Fail("host unreachable: no route")

	if len(reporter.payloads) != 1 {
		t.Fatalf("got %d reports, want 1", len(reporter.payloads))
	}
	if reporter.payloads[0].Error != "host unreachable: no route" {
		t.Errorf("reported Error = %q, want the failure reason", reporter.payloads[0].Error)
	}
	if reporter.payloads[0].Phase != model.PhaseFailed {
		t.Errorf("reported Phase = %v, want Failed", reporter.payloads[0].Phase)
	}
}
