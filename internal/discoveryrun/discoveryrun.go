// Package discoveryrun implements the three discovery-kind runners an
// agent drives through its session guard: SelfReport (report the agent's
// own host), Docker (enumerate local containers), and Network (sweep a
// subnet). Each turns scan evidence into classifier.ClassifyHost calls
// and submits the results to the coordinator.
package discoveryrun

import (
	"context"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// Coordinator is the subset of the agent→coordinator REST surface
// (spec.md §6) a discovery runner needs to submit what it finds.
// Implemented by internal/agentclient.
type Coordinator interface {
	CreateSubnet(ctx context.Context, subnet model.Subnet) (model.Subnet, error)
	CreateHost(ctx context.Context, host model.Host, services []model.Service) (model.Host, []model.Service, error)
	UpdateCapabilities(ctx context.Context, agentID string, hasDockerSocket bool, interfacedSubnetIDs []uuid.UUID) error
}

// Topology is the local-machine network introspection a runner needs:
// its own interfaces/subnets, routing-table gateway IPs, and per-IP MAC
// resolution. Implemented by internal/netinfo.
type Topology interface {
	OwnInterfaces(tenantID string) ([]model.Interface, []model.Subnet, error)
	GatewayIPs() ([]string, error)
	MACForIP(ctx context.Context, ip string) (string, error)
	HasDockerSocket() bool
	OwnHostname() string
}
