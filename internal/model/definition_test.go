package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestDefinitionJSONRoundTrip(t *testing.T) {
	d := Definition{
		ID:                 uuid.New(),
		TenantID:           "tenant-1",
		AgentID:             "agent-1",
		Kind:               KindNetwork,
		RunType:            Scheduled{Cron: "0 * * * *", Enabled: true},
		HostNamingFallback: FallbackBestService,
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Definition
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	sched, ok := got.RunType.(Scheduled)
	if !ok {
		t.Fatalf("run type = %T, want Scheduled", got.RunType)
	}
	if sched.Cron != "0 * * * *" || !sched.Enabled {
		t.Errorf("scheduled = %+v, want cron=0 * * * * enabled=true", sched)
	}
}

func TestDefinitionDisablePersistsFlag(t *testing.T) {
	d := Definition{RunType: Scheduled{Cron: "bad cron", Enabled: true}}
	d.Disable("invalid cron expression")

	sched, ok := d.RunType.(Scheduled)
	if !ok {
		t.Fatalf("run type = %T, want Scheduled", d.RunType)
	}
	if sched.Enabled {
		t.Error("Disable must persist enabled=false onto the stored run type")
	}
	if d.LastRegisterError == "" {
		t.Error("Disable must record the reason")
	}
}

func TestDefinitionValidateDefaultsFallback(t *testing.T) {
	d := Definition{AgentID: "agent-1"}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if d.HostNamingFallback != FallbackBestService {
		t.Errorf("fallback = %s, want %s", d.HostNamingFallback, FallbackBestService)
	}

	empty := Definition{}
	if err := empty.Validate(); err == nil {
		t.Error("validate should reject a definition with no agent id")
	}
}
