package discoveryrun

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/agentsession"
	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/classifier"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
	"github.com/Will-Luck/Docker-Sentinel/internal/scanner"
)

// SelfReport is the discovery runner for an agent reporting its own host:
// its interfaces/subnets, the open ports and endpoint bodies a scan of
// itself reveals, and whatever the classifier makes of that evidence
// (spec.md §4 diagram "SelfReport"). Always reports total=1 (spec.md §8).
type SelfReport struct {
	Topology       Topology
	Coordinator    Coordinator
	Registry       *classifier.Registry
	AgentID        string
	TenantID       string
	NamingFallback model.HostNamingFallback
	ScanBudget     func() scanner.Budget
	DHCPPolicy     scanner.DHCPPolicy
}

var _ agentsession.Runner = (*SelfReport)(nil)

// Run implements agentsession.Runner.
func (r *SelfReport) Run(token *cancel.Token, progress *agentsession.Progress) error {
	progress.SetTotal(1)
	ctx := progress.Context()

	interfaces, subnets, err := r.Topology.OwnInterfaces(r.TenantID)
	if err != nil {
		progress.Fail(fmt.Sprintf("enumerate interfaces: %v", err))
		return err
	}
	if len(interfaces) == 0 {
		progress.Fail("no usable network interface found")
		return fmt.Errorf("self-report: no usable interface")
	}

	subnetByCIDR, err := r.reconcileSubnets(ctx, subnets)
	if err != nil {
		progress.Fail(fmt.Sprintf("reconcile subnets: %v", err))
		return err
	}
	for i := range interfaces {
		if s, ok := subnetForInterface(interfaces[i], subnets, subnetByCIDR); ok {
			id := s.ID
			interfaces[i].SubnetID = &id
		}
	}

	if token.Cancelled() {
		progress.Cancelled()
		return nil
	}

	gatewayIPs, _ := r.Topology.GatewayIPs()
	primary := interfaces[0]
	primarySubnet, _ := subnetForInterface(primary, subnets, subnetByCIDR)

	budget := r.ScanBudget()
	result, err := scanner.Scan(token, scanner.HostScanInput{
		IP:             primary.IP,
		IsGateway:      containsString(gatewayIPs, primary.IP),
		SubnetCIDR:     primarySubnet.CIDR,
		ExtraEndpoints: r.Registry.EndpointTargets(),
		DHCPPolicy:     r.DHCPPolicy,
		PortBatchSize:  budget.PortBatchSize,
	})
	if err != nil {
		progress.Fail(fmt.Sprintf("scan self: %v", err))
		return err
	}
	if token.Cancelled() {
		progress.Cancelled()
		return nil
	}

	hostname := result.Hostname
	if hostname == "" {
		hostname = r.Topology.OwnHostname()
	}

	if primary.MAC == "" {
		if mac, err := r.Topology.MACForIP(ctx, primary.IP); err == nil {
			primary.MAC = mac
		}
	}

	classified := classifier.ClassifyHost(r.Registry, progress.SessionID(), classifier.HostCandidate{
		Interface:  primary,
		Subnet:     primarySubnet,
		OpenPorts:  result.OpenPorts,
		Endpoints:  toEndpointEvidence(result.Endpoints),
		Hostname:   hostname,
		GatewayIPs: gatewayIPs,
	}, r.NamingFallback)

	host := model.Host{
		ID:         uuid.New(),
		Name:       classified.HostName,
		Interfaces: interfaces,
		OpenPorts:  classified.UnboundPorts,
		Target:     classified.Target,
	}
	for _, svc := range classified.Services {
		host.ServiceIDs = append(host.ServiceIDs, svc.ID)
	}

	if _, _, err := r.Coordinator.CreateHost(ctx, host, classified.Services); err != nil {
		progress.Fail(fmt.Sprintf("submit host: %v", err))
		return err
	}

	subnetIDs := make([]uuid.UUID, 0, len(subnetByCIDR))
	for _, s := range subnetByCIDR {
		subnetIDs = append(subnetIDs, s.ID)
	}
	if err := r.Coordinator.UpdateCapabilities(ctx, r.AgentID, r.Topology.HasDockerSocket(), subnetIDs); err != nil {
		progress.Fail(fmt.Sprintf("update capabilities: %v", err))
		return err
	}

	progress.Advance(1)
	progress.Complete()
	return nil
}

// reconcileSubnets submits every locally observed subnet to the
// coordinator and returns the server-accepted records keyed by CIDR,
// following spec.md §6's "subnet upsert rule" (the coordinator, not the
// agent, decides whether a CIDR already exists).
func (r *SelfReport) reconcileSubnets(ctx context.Context, subnets []model.Subnet) (map[string]model.Subnet, error) {
	out := make(map[string]model.Subnet, len(subnets))
	for _, s := range subnets {
		created, err := r.Coordinator.CreateSubnet(ctx, s)
		if err != nil {
			return nil, err
		}
		out[s.CIDR] = created
	}
	return out, nil
}

// subnetForInterface finds the created (coordinator-accepted) subnet
// record whose CIDR contains iface's IP.
func subnetForInterface(iface model.Interface, subnets []model.Subnet, byCIDR map[string]model.Subnet) (model.Subnet, bool) {
	for _, s := range subnets {
		if !cidrContainsIP(s.CIDR, iface.IP) {
			continue
		}
		if created, ok := byCIDR[s.CIDR]; ok {
			return created, true
		}
		return s, true
	}
	return model.Subnet{}, false
}

func cidrContainsIP(cidr, ip string) bool {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	return ipnet.Contains(addr)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func toEndpointEvidence(responses []scanner.EndpointResponse) []classifier.EndpointEvidence {
	out := make([]classifier.EndpointEvidence, len(responses))
	for i, r := range responses {
		out[i] = classifier.EndpointEvidence{Port: r.Port, Path: r.Path, Body: r.Body}
	}
	return out
}
