package discoveryrun

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/agentsession"
	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/classifier"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
	"github.com/Will-Luck/Docker-Sentinel/internal/scanner"
)

// Network is the discovery runner that sweeps one or more subnets,
// scanning each candidate IP in spec.md §4.5's priority order and
// classifying whatever answers (spec.md §4 diagram "NetworkScan").
// Subnets are the ones this agent observed via its own interfaces
// (spec.md §4.5 "Docker-bridge-typed subnets are skipped" — they're
// Docker discovery's job instead).
type Network struct {
	Topology       Topology
	Coordinator    Coordinator
	Registry       *classifier.Registry
	AgentID        string
	TenantID       string
	NamingFallback model.HostNamingFallback
	ScanBudget     func() scanner.Budget
	DHCPPolicy     scanner.DHCPPolicy
	Log            *slog.Logger

	// SubnetIDs restricts the sweep to specific coordinator-assigned
	// subnet ids when non-empty (spec.md §6 "Network{subnet_ids?, ...}").
	// The agent only learns a coordinator-assigned subnet id the first
	// time self-report discovery reconciles that CIDR; until a lookup
	// path for resolving an arbitrary id back to its CIDR exists, a
	// restricted sweep run before self-report has ever seen the subnet
	// falls back to scanning everything this agent can see rather than
	// silently scanning nothing.
	SubnetIDs []uuid.UUID
}

var _ agentsession.Runner = (*Network)(nil)

// scanTarget is one candidate IP queued for scanning, tagged with the
// subnet it came from so results can be classified in that subnet's
// context.
type scanTarget struct {
	ip        string
	subnet    model.Subnet
	isGateway bool
}

// scannedHost pairs the host record with the services classified for it,
// since scanner.BatchScan's generic result type can only carry one value.
type scannedHost struct {
	host     model.Host
	services []model.Service
}

// Run implements agentsession.Runner.
func (r *Network) Run(token *cancel.Token, progress *agentsession.Progress) error {
	ctx := progress.Context()

	_, subnets, err := r.Topology.OwnInterfaces(r.TenantID)
	if err != nil {
		progress.Fail(fmt.Sprintf("enumerate interfaces: %v", err))
		return err
	}

	gatewayIPs, _ := r.Topology.GatewayIPs()

	subnets = r.filterSubnets(subnets)
	if len(subnets) == 0 {
		progress.Complete()
		return nil
	}

	accepted := make(map[string]model.Subnet, len(subnets))
	for _, s := range subnets {
		created, err := r.Coordinator.CreateSubnet(ctx, s)
		if err != nil {
			progress.Fail(fmt.Sprintf("submit subnet %s: %v", s.CIDR, err))
			return err
		}
		accepted[s.CIDR] = created
	}

	var targets []scanTarget
	for _, s := range subnets {
		subnet := accepted[s.CIDR]
		for _, ip := range scanner.CandidateIPs(r.Log, s.CIDR) {
			targets = append(targets, scanTarget{ip: ip, subnet: subnet, isGateway: containsString(gatewayIPs, ip)})
		}
	}
	progress.SetTotal(len(targets))
	if len(targets) == 0 {
		progress.Complete()
		return nil
	}

	budget := r.ScanBudget()
	sessionID := progress.SessionID()
	var processed int64

	hosts := scanner.BatchScan(targets, budget.ConcurrentHosts, token, func(t scanTarget) *scannedHost {
		host := r.scanOne(ctx, token, t, gatewayIPs, budget.PortBatchSize, sessionID)
		n := atomic.AddInt64(&processed, 1)
		progress.Advance(int(n))
		return host
	})

	if token.Cancelled() {
		progress.Cancelled()
		return nil
	}

	for _, host := range hosts {
		if host == nil {
			continue
		}
		if _, _, err := r.Coordinator.CreateHost(ctx, host.host, host.services); err != nil {
			progress.Fail(fmt.Sprintf("submit host %s: %v", host.host.Target.Value, err))
			return err
		}
	}

	progress.Complete()
	return nil
}

// scanOne probes a single candidate IP and classifies the result. It
// returns nil when the IP produced no evidence worth reporting (no open
// ports, no resolved hostname) — the common case for the vast majority
// of addresses in any given subnet.
func (r *Network) scanOne(ctx context.Context, token *cancel.Token, t scanTarget, gatewayIPs []string, portBatch int, sessionID uuid.UUID) *scannedHost {
	if token.Cancelled() {
		return nil
	}

	result, err := scanner.Scan(token, scanner.HostScanInput{
		IP:             t.ip,
		IsGateway:      t.isGateway,
		IsIPv6:         false,
		SubnetCIDR:     t.subnet.CIDR,
		ExtraEndpoints: r.Registry.EndpointTargets(),
		DHCPPolicy:     r.DHCPPolicy,
		PortBatchSize:  portBatch,
	})
	if err != nil {
		if scanner.IsCriticalError(err) && r.Log != nil {
			r.Log.Error("critical scan error", "ip", t.ip, "error", err)
		}
		return nil
	}
	if len(result.OpenPorts) == 0 && result.Hostname == "" {
		return nil
	}

	mac, _ := r.Topology.MACForIP(ctx, t.ip)
	subnetID := t.subnet.ID
	iface := model.Interface{ID: uuid.New(), IP: t.ip, SubnetID: &subnetID, MAC: mac}

	classified := classifier.ClassifyHost(r.Registry, sessionID, classifier.HostCandidate{
		Interface:  iface,
		Subnet:     t.subnet,
		OpenPorts:  result.OpenPorts,
		Endpoints:  toEndpointEvidence(result.Endpoints),
		Hostname:   result.Hostname,
		GatewayIPs: gatewayIPs,
	}, r.NamingFallback)

	host := model.Host{
		ID:         uuid.New(),
		Name:       classified.HostName,
		Interfaces: []model.Interface{iface},
		OpenPorts:  classified.UnboundPorts,
		Target:     classified.Target,
	}
	for _, svc := range classified.Services {
		host.ServiceIDs = append(host.ServiceIDs, svc.ID)
	}

	return &scannedHost{host: host, services: classified.Services}
}

// filterSubnets drops Docker-bridge subnets (Docker discovery's job)
// and, when r.SubnetIDs names at least one subnet this agent already
// knows the id of, restricts the sweep to those.
func (r *Network) filterSubnets(subnets []model.Subnet) []model.Subnet {
	var wanted map[uuid.UUID]bool
	if len(r.SubnetIDs) > 0 {
		wanted = make(map[uuid.UUID]bool, len(r.SubnetIDs))
		for _, id := range r.SubnetIDs {
			wanted[id] = true
		}
	}

	restricted := make([]model.Subnet, 0, len(subnets))
	all := make([]model.Subnet, 0, len(subnets))
	for _, s := range subnets {
		if s.Type == model.SubnetDockerBridge {
			continue
		}
		all = append(all, s)
		if wanted != nil && wanted[s.ID] {
			restricted = append(restricted, s)
		}
	}
	if wanted != nil && len(restricted) > 0 {
		return restricted
	}
	return all
}
