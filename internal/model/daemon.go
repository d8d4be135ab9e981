package model

import (
	"time"

	"github.com/google/uuid"
)

// Daemon is a registered agent process: where the coordinator can reach
// it to issue initiate/cancel calls, and what it last reported about
// itself (spec.md §6 "POST /api/daemons/register", ".../heartbeat",
// ".../update-capabilities").
type Daemon struct {
	ID               uuid.UUID   `json:"id"`
	TenantID         string      `json:"tenantId"`
	AgentID          string      `json:"agentId"`
	Address          string      `json:"address"` // host:port the coordinator dials for initiate/cancel
	HasDockerSocket  bool        `json:"hasDockerSocket"`
	InterfaceSubnetIDs []uuid.UUID `json:"interfaceSubnetIds,omitempty"`
	LastHeartbeat    time.Time   `json:"lastHeartbeat"`
}
