// Package scanner implements the bounded-parallelism TCP/UDP/endpoint
// probe pipeline that turns a target IP into a set of open ports and
// reachable HTTP(S) endpoints.
package scanner

import (
	"net"
	"sort"
	"time"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

const ptrTimeout = 800 * time.Millisecond

var ptrResolver = net.DefaultResolver

// HostScanInput is everything the scanner needs about one target beyond
// its IP: whether it's this subnet's gateway, whether the subnet is
// IPv6, and any endpoint-only ports service definitions want probed
// regardless of what TCP discovery finds open.
type HostScanInput struct {
	IP              string
	IsGateway       bool
	IsIPv6          bool
	SubnetCIDR      string
	ExtraEndpoints  []EndpointTarget
	DHCPPolicy      DHCPPolicy
	PortBatchSize   int
}

// HostScanResult is one target's scan output: its open ports (TCP, UDP,
// and endpoint-only ports merged, sorted, deduplicated), the endpoint
// bodies collected along the way, and the resolved hostname, if any.
type HostScanResult struct {
	OpenPorts []model.Port
	Endpoints []EndpointResponse
	Hostname  string
}

// Scan runs the full probe pipeline against one host: TCP port sweep,
// UDP protocol probes, HTTP(S) endpoint probes, and reverse-DNS hostname
// resolution, then merges and sorts the results (spec.md §4.1
// "Post-processing": ports that only answered via endpoint probing are
// folded into open_ports too).
func Scan(token *cancel.Token, in HostScanInput) (HostScanResult, error) {
	tcpPorts, err := scanTCPPorts(token, in.IP, in.PortBatchSize)
	if err != nil {
		return HostScanResult{}, err
	}
	if token.Cancelled() {
		return HostScanResult{}, nil
	}

	udpPorts := scanUDPPorts(token, udpProbeParams{
		ip:         in.IP,
		isGateway:  in.IsGateway,
		isIPv6:     in.IsIPv6,
		subnetCIDR: in.SubnetCIDR,
		dhcpPolicy: in.DHCPPolicy,
	}, in.PortBatchSize)

	if token.Cancelled() {
		return HostScanResult{OpenPorts: mergePorts(tcpPorts, udpPorts)}, nil
	}

	endpoints := scanEndpoints(token, in.IP, tcpPorts, in.ExtraEndpoints, in.PortBatchSize)

	endpointPorts := make([]model.Port, len(endpoints))
	for i, e := range endpoints {
		endpointPorts[i] = e.Port
	}

	merged := mergePorts(tcpPorts, udpPorts, endpointPorts)

	hostname := resolveHostname(token, in.IP)

	return HostScanResult{OpenPorts: merged, Endpoints: endpoints, Hostname: hostname}, nil
}

// mergePorts unions any number of port slices, then sorts and
// deduplicates by (number, transport) per spec.md §8's sortedness
// invariant.
func mergePorts(sets ...[]model.Port) []model.Port {
	seen := make(map[model.Port]bool)
	var all []model.Port
	for _, set := range sets {
		for _, p := range set {
			if seen[p] {
				continue
			}
			seen[p] = true
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Less(all[j])
	})
	return all
}

// resolveHostname performs a reverse-DNS lookup with an 800ms budget.
// An empty result just means no hostname was found; it is never a
// critical error.
func resolveHostname(token *cancel.Token, ip string) string {
	ctx, cancelCtx := tokenTimeoutContext(token, ptrTimeout)
	defer cancelCtx()

	names, err := ptrResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return trimTrailingDot(names[0])
}

func trimTrailingDot(s string) string {
	if n := len(s); n > 0 && s[n-1] == '.' {
		return s[:n-1]
	}
	return s
}
