package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DiscoveryType is the tagged union an agent receives on
// POST /api/discovery/initiate, naming which runner to drive and what it
// needs (spec.md §6 "Wire format").
type DiscoveryType interface {
	discoveryTypeTag() string
}

// SelfReportRequest asks the agent to report its own host.
type SelfReportRequest struct {
	HostID *uuid.UUID `json:"hostId,omitempty"`
}

func (SelfReportRequest) discoveryTypeTag() string { return "self_report" }

// NetworkRequest asks the agent to sweep subnets, restricted to
// SubnetIDs when non-empty.
type NetworkRequest struct {
	SubnetIDs          []uuid.UUID        `json:"subnetIds,omitempty"`
	HostNamingFallback HostNamingFallback `json:"hostNamingFallback"`
}

func (NetworkRequest) discoveryTypeTag() string { return "network" }

// DockerRequest asks the agent to enumerate its local containers.
type DockerRequest struct {
	HostID             *uuid.UUID         `json:"hostId,omitempty"`
	HostNamingFallback HostNamingFallback `json:"hostNamingFallback"`
}

func (DockerRequest) discoveryTypeTag() string { return "docker" }

// DiscoveryRequest is the body of POST /api/discovery/initiate.
type DiscoveryRequest struct {
	SessionID     uuid.UUID     `json:"sessionId"`
	DiscoveryType DiscoveryType `json:"discoveryType"`
}

type discoveryRequestWire struct {
	SessionID          uuid.UUID          `json:"sessionId"`
	Type               string             `json:"type"`
	HostID             *uuid.UUID         `json:"hostId,omitempty"`
	SubnetIDs          []uuid.UUID        `json:"subnetIds,omitempty"`
	HostNamingFallback HostNamingFallback `json:"hostNamingFallback,omitempty"`
}

// MarshalJSON flattens the DiscoveryType tagged union onto the wire
// struct, matching the convention used by Definition's RunType.
func (d DiscoveryRequest) MarshalJSON() ([]byte, error) {
	w := discoveryRequestWire{SessionID: d.SessionID}
	switch t := d.DiscoveryType.(type) {
	case SelfReportRequest:
		w.Type = t.discoveryTypeTag()
		w.HostID = t.HostID
	case NetworkRequest:
		w.Type = t.discoveryTypeTag()
		w.SubnetIDs = t.SubnetIDs
		w.HostNamingFallback = t.HostNamingFallback
	case DockerRequest:
		w.Type = t.discoveryTypeTag()
		w.HostID = t.HostID
		w.HostNamingFallback = t.HostNamingFallback
	case nil:
		w.Type = ""
	default:
		return nil, fmt.Errorf("discovery request %s: unknown discovery type %T", d.SessionID, t)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reconstructs the DiscoveryType tagged union from the wire struct.
func (d *DiscoveryRequest) UnmarshalJSON(data []byte) error {
	var w discoveryRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.SessionID = w.SessionID
	switch w.Type {
	case "self_report":
		d.DiscoveryType = SelfReportRequest{HostID: w.HostID}
	case "network":
		d.DiscoveryType = NetworkRequest{SubnetIDs: w.SubnetIDs, HostNamingFallback: w.HostNamingFallback}
	case "docker":
		d.DiscoveryType = DockerRequest{HostID: w.HostID, HostNamingFallback: w.HostNamingFallback}
	case "":
		d.DiscoveryType = nil
	default:
		return fmt.Errorf("discovery request %s: unknown discovery type %q", d.SessionID, w.Type)
	}
	return nil
}

// DiscoveryTypeFromDefinition derives the wire DiscoveryType an initiate
// call should carry for def, so the coordinator's dispatcher doesn't
// need to duplicate this mapping.
func DiscoveryTypeFromDefinition(def Definition) DiscoveryType {
	switch def.Kind {
	case KindSelfReport:
		return SelfReportRequest{HostID: def.HostID}
	case KindDocker:
		return DockerRequest{HostID: def.HostID, HostNamingFallback: def.HostNamingFallback}
	case KindNetwork:
		return NetworkRequest{SubnetIDs: def.SubnetIDs, HostNamingFallback: def.HostNamingFallback}
	default:
		return nil
	}
}
