package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HostNamingFallback selects how a host without a resolved hostname gets
// its display target, per spec.md §4.2 "Host target policy".
type HostNamingFallback string

const (
	FallbackBestService HostNamingFallback = "best_service"
	FallbackIP          HostNamingFallback = "ip"
)

// RunType is a tagged union over a discovery definition's trigger: a cron
// schedule, a one-shot ad-hoc run, or a frozen historical snapshot.
type RunType interface {
	runTypeTag() string
}

// Scheduled definitions fire on a cron expression when Enabled.
type Scheduled struct {
	Cron    string    `json:"cron"`
	LastRun time.Time `json:"lastRun,omitempty"`
	Enabled bool      `json:"enabled"`
}

func (Scheduled) runTypeTag() string { return "scheduled" }

// AdHoc definitions only run when explicitly triggered.
type AdHoc struct {
	LastRun time.Time `json:"lastRun,omitempty"`
}

func (AdHoc) runTypeTag() string { return "ad_hoc" }

// Historical definitions are frozen; they hold past results and never run.
type Historical struct {
	FrozenAt time.Time `json:"frozenAt"`
}

func (Historical) runTypeTag() string { return "historical" }

// Definition is the persisted configuration of a recurring or ad-hoc
// discovery (spec.md §3 "DiscoveryDefinition").
type Definition struct {
	ID                 uuid.UUID          `json:"id"`
	TenantID           string             `json:"tenantId"`
	AgentID            string             `json:"agentId"`
	Kind               Kind               `json:"kind"`
	RunType            RunType            `json:"runType"`
	SubnetIDs          []uuid.UUID        `json:"subnetIds,omitempty"`
	HostID             *uuid.UUID         `json:"hostId,omitempty"`
	HostNamingFallback HostNamingFallback `json:"hostNamingFallback"`
	LastRegisterError  string             `json:"lastRegisterError,omitempty"`
}

// definitionWire is the JSON-on-the-wire shape: RunType's tag lives beside
// its fields rather than nested, per spec.md §6 "tagged unions are
// serialized with a type discriminator".
type definitionWire struct {
	ID                 uuid.UUID          `json:"id"`
	TenantID           string             `json:"tenantId"`
	AgentID            string             `json:"agentId"`
	Kind               Kind               `json:"kind"`
	Type               string             `json:"type"`
	Cron               string             `json:"cron,omitempty"`
	LastRun            time.Time          `json:"lastRun,omitempty"`
	Enabled            bool               `json:"enabled,omitempty"`
	FrozenAt           time.Time          `json:"frozenAt,omitempty"`
	SubnetIDs          []uuid.UUID        `json:"subnetIds,omitempty"`
	HostID             *uuid.UUID         `json:"hostId,omitempty"`
	HostNamingFallback HostNamingFallback `json:"hostNamingFallback"`
	LastRegisterError  string             `json:"lastRegisterError,omitempty"`
}

// MarshalJSON flattens the RunType tagged union onto the wire struct.
func (d Definition) MarshalJSON() ([]byte, error) {
	w := definitionWire{
		ID:                 d.ID,
		TenantID:           d.TenantID,
		AgentID:            d.AgentID,
		Kind:               d.Kind,
		SubnetIDs:          d.SubnetIDs,
		HostID:             d.HostID,
		HostNamingFallback: d.HostNamingFallback,
		LastRegisterError:  d.LastRegisterError,
	}
	switch rt := d.RunType.(type) {
	case Scheduled:
		w.Type = rt.runTypeTag()
		w.Cron = rt.Cron
		w.LastRun = rt.LastRun
		w.Enabled = rt.Enabled
	case AdHoc:
		w.Type = rt.runTypeTag()
		w.LastRun = rt.LastRun
	case Historical:
		w.Type = rt.runTypeTag()
		w.FrozenAt = rt.FrozenAt
	case nil:
		w.Type = ""
	default:
		return nil, fmt.Errorf("definition %s: unknown run type %T", d.ID, rt)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reconstructs the RunType tagged union from the wire struct.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var w definitionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.ID = w.ID
	d.TenantID = w.TenantID
	d.AgentID = w.AgentID
	d.Kind = w.Kind
	d.SubnetIDs = w.SubnetIDs
	d.HostID = w.HostID
	d.HostNamingFallback = w.HostNamingFallback
	d.LastRegisterError = w.LastRegisterError

	switch w.Type {
	case "scheduled":
		d.RunType = Scheduled{Cron: w.Cron, LastRun: w.LastRun, Enabled: w.Enabled}
	case "ad_hoc":
		d.RunType = AdHoc{LastRun: w.LastRun}
	case "historical":
		d.RunType = Historical{FrozenAt: w.FrozenAt}
	case "":
		d.RunType = nil
	default:
		return fmt.Errorf("definition %s: unknown run type %q", d.ID, w.Type)
	}
	return nil
}

// Disable rewrites RunType to a disabled Scheduled value, actually
// mutating the stored definition rather than a transient copy — see
// DESIGN.md "Open Question decisions" #2.
func (d *Definition) Disable(reason string) {
	switch rt := d.RunType.(type) {
	case Scheduled:
		rt.Enabled = false
		d.RunType = rt
	default:
		d.RunType = Scheduled{Enabled: false}
	}
	d.LastRegisterError = reason
}

// Validate checks the minimal structural invariants a definition must
// satisfy before the scheduler or a session can be created from it.
func (d *Definition) Validate() error {
	if d.AgentID == "" {
		return fmt.Errorf("definition %s: agent id required", d.ID)
	}
	if d.HostNamingFallback == "" {
		d.HostNamingFallback = FallbackBestService
	}
	return nil
}
