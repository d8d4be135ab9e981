package scanner

import (
	"context"
	"net"
	"time"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// udpProtocolTimeout is the fixed 2s budget for every UDP protocol probe
// (spec.md §5 "Timeouts").
const udpProtocolTimeout = 2 * time.Second

// DHCPPolicy selects which hosts the DHCP probe is allowed to target — an
// explicit runner-level policy per spec.md §9's open question.
type DHCPPolicy int

const (
	DHCPProbeGatewaysOnly DHCPPolicy = iota
	DHCPProbeAllHosts
)

// udpProbeParams carries everything a protocol-specific UDP probe needs
// beyond the target IP and port.
type udpProbeParams struct {
	ip          string
	isGateway   bool
	isIPv6      bool
	subnetCIDR  string
	dhcpPolicy  DHCPPolicy
}

// scanUDPPorts dispatches one protocol-specific probe per curated UDP
// port, capped at min(batchSize, 10) concurrency (spec.md §4.1 "UDP
// probe").
func scanUDPPorts(token *cancel.Token, params udpProbeParams, batchSize int) []model.Port {
	udpConcurrency := batchSize
	if udpConcurrency > 10 {
		udpConcurrency = 10
	}

	results := BatchScan(discoveryUDPPorts, udpConcurrency, token, func(port int) open {
		return probeUDPPort(token, params, port)
	})

	var openPorts []model.Port
	for _, r := range results {
		if r.ok {
			openPorts = append(openPorts, r.port)
		}
	}
	return openPorts
}

func probeUDPPort(token *cancel.Token, params udpProbeParams, port int) open {
	var ok bool
	switch port {
	case portDNS:
		ok = probeDNS(token, params.ip)
	case portNTP:
		ok = probeNTP(params.ip)
	case portSNMP:
		ok = probeSNMP(params.ip)
	case portDHCP:
		if params.isIPv6 {
			// IPv6 subnets are skipped entirely for DHCP (spec.md §4.1).
			return open{}
		}
		if params.dhcpPolicy == DHCPProbeGatewaysOnly && !params.isGateway {
			return open{}
		}
		ok = probeDHCP(params.ip, params.subnetCIDR)
	default:
		return open{}
	}
	return open{port: model.Port{Number: port, Transport: model.TransportUDP}, ok: ok}
}

// wellKnownDNSName is resolved against the target's own resolver to
// confirm it actually answers DNS queries.
const wellKnownDNSName = "www.google.com"

// probeDNS builds a resolver pointed at <ip>:53 and attempts to resolve a
// well-known name within 2s; any answer means the port is open (spec.md
// §4.1 "53 (DNS)").
func probeDNS(token *cancel.Token, ip string) bool {
	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: udpProtocolTimeout}
			return d.DialContext(ctx, network, net.JoinHostPort(ip, "53"))
		},
	}

	ctx, cancelCtx := tokenTimeoutContext(token, udpProtocolTimeout)
	defer cancelCtx()

	addrs, err := resolver.LookupHost(ctx, wellKnownDNSName)
	return err == nil && len(addrs) > 0
}
