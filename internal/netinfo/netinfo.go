// Package netinfo gathers the local-machine network facts a discovery
// runner needs: this host's own interfaces and the subnets they imply,
// a guessed gateway IP for each attached subnet, and per-IP MAC
// resolution via ARP.
package netinfo

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/arp"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

const arpTimeout = 2 * time.Second

// Client reads the local machine's interfaces, routes, and ARP table.
// There is no per-instance state; it exists so call sites can depend on
// the Topology interface rather than free functions.
type Client struct{}

func NewClient() *Client { return &Client{} }

// OwnInterfaces enumerates every up, non-loopback IPv4 address on this
// host and groups them by subnet, synthesizing one model.Subnet per
// distinct CIDR seen (spec.md §3 "Host owns a set of Interfaces").
func (c *Client) OwnInterfaces(tenantID string) ([]model.Interface, []model.Subnet, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("list interfaces: %w", err)
	}

	subnetByCIDR := make(map[string]model.Subnet)
	var interfaces []model.Interface

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}

			subnetType := classifySubnetType(iface)
			cidr := ipNet.String()
			ones, bits := ipNet.Mask.Size()

			var subnetID *uuid.UUID
			switch {
			case ones == 32 && bits == 32 && subnetType == model.SubnetVPN:
				// A /32 VPN-tunnel address has no subnet of its own on the
				// wire; synthesize the /24 its peers are conventionally
				// numbered from (spec.md §8 boundary behaviors).
				cidr = synthesizedVPNSubnetCIDR(ipNet.IP)
				subnetID = subnetIDFor(subnetByCIDR, tenantID, cidr, subnetType)
			case ones == 32 && bits == 32:
				// A /32 non-VPN interface (e.g. a loopback alias) implies
				// no subnet at all; leave the interface unassigned.
			default:
				subnetID = subnetIDFor(subnetByCIDR, tenantID, cidr, subnetType)
			}

			interfaces = append(interfaces, model.Interface{
				ID:       uuid.New(),
				IP:       ipNet.IP.String(),
				SubnetID: subnetID,
				MAC:      iface.HardwareAddr.String(),
			})
		}
	}

	subnets := make([]model.Subnet, 0, len(subnetByCIDR))
	for _, s := range subnetByCIDR {
		subnets = append(subnets, s)
	}
	sort.Slice(subnets, func(i, j int) bool { return subnets[i].CIDR < subnets[j].CIDR })

	return interfaces, subnets, nil
}

// classifySubnetType flags Docker's own bridge interfaces so network
// scans can skip them — Docker discovery covers that ground instead
// (spec.md §4.5 "Docker-bridge-typed subnets are skipped") — and VPN
// tunnel interfaces, which get the /32-expansion treatment in
// OwnInterfaces (spec.md §8).
func classifySubnetType(iface net.Interface) model.SubnetType {
	switch {
	case iface.Name == "docker0", hasPrefix(iface.Name, "br-"), hasPrefix(iface.Name, "veth"):
		return model.SubnetDockerBridge
	case isVPNInterfaceName(iface.Name):
		return model.SubnetVPN
	default:
		return model.SubnetPhysical
	}
}

// isVPNInterfaceName matches the conventional tunnel-interface naming
// used by common VPN stacks (OpenVPN/tun, WireGuard, macOS utun, TAP
// bridges, and point-to-point PPP links).
func isVPNInterfaceName(name string) bool {
	for _, prefix := range []string{"tun", "wg", "utun", "tap", "ppp"} {
		if hasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// synthesizedVPNSubnetCIDR expands a /32 VPN-tunnel address into the /24
// its peers are conventionally numbered from, by zeroing the last octet
// (spec.md §8 "scanning a /32 VPN-tunnel interface expands to a
// synthesized /24 subnet").
func synthesizedVPNSubnetCIDR(ip net.IP) string {
	v4 := ip.To4()
	network := make(net.IP, net.IPv4len)
	copy(network, v4)
	network[3] = 0
	return network.String() + "/24"
}

// subnetIDFor returns the id of the subnet for cidr, creating and
// recording it in subnetByCIDR on first sight.
func subnetIDFor(subnetByCIDR map[string]model.Subnet, tenantID, cidr string, subnetType model.SubnetType) *uuid.UUID {
	subnet, ok := subnetByCIDR[cidr]
	if !ok {
		subnet = model.Subnet{
			ID:       uuid.New(),
			TenantID: tenantID,
			CIDR:     cidr,
			Type:     subnetType,
		}
		subnetByCIDR[cidr] = subnet
	}
	id := subnet.ID
	return &id
}

// GatewayIPs returns the ".1" address of every subnet this host's up,
// non-loopback IPv4 interfaces are attached to, as a stand-in for the
// routing table. The OS routing table is not read, so a gateway with any
// other address is not reported. Network discovery treats these as known
// local gateways for the IsGateway pattern's primary signal.
func (c *Client) GatewayIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var gateways []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			gw := firstHostInSubnet(ipNet)
			if gw != "" {
				gateways = append(gateways, gw)
			}
		}
	}
	return gateways, nil
}

// firstHostInSubnet returns the ".1" address of ipNet's network, the
// overwhelmingly common default-gateway convention for the subnets this
// host itself is attached to.
func firstHostInSubnet(ipNet *net.IPNet) string {
	network := ipNet.IP.Mask(ipNet.Mask).To4()
	if network == nil {
		return ""
	}
	gw := make(net.IP, 4)
	copy(gw, network)
	gw[3] = 1
	if !ipNet.Contains(gw) {
		return ""
	}
	return gw.String()
}

// MACForIP resolves ip's MAC address via an ARP request sent from
// whichever local interface shares its subnet (spec.md §4.2 "MacVendor"
// needs a MAC to look up). Returns "" with no error if nothing answers.
func (c *Client) MACForIP(ctx context.Context, ip string) (string, error) {
	target := net.ParseIP(ip)
	if target == nil || target.To4() == nil {
		return "", fmt.Errorf("invalid IPv4 address %q", ip)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil || !ipNet.Contains(target) {
				continue
			}
			mac, err := arpRequest(ctx, &iface, target)
			if err == nil {
				return mac.String(), nil
			}
		}
	}
	return "", nil
}

func arpRequest(ctx context.Context, iface *net.Interface, targetIP net.IP) (net.HardwareAddr, error) {
	client, err := arp.Dial(iface)
	if err != nil {
		return nil, fmt.Errorf("arp dial %s: %w", iface.Name, err)
	}
	defer client.Close()

	targetAddr, ok := netip.AddrFromSlice(targetIP.To4())
	if !ok {
		return nil, fmt.Errorf("invalid IPv4 address")
	}

	deadline := time.Now().Add(arpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := client.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := client.Request(targetAddr); err != nil {
		return nil, fmt.Errorf("arp request: %w", err)
	}

	for i := 0; i < 3; i++ {
		packet, _, err := client.Read()
		if err != nil {
			if i == 2 {
				return nil, fmt.Errorf("no arp response: %w", err)
			}
			continue
		}
		if packet.Operation == arp.OperationReply && packet.SenderIP.Compare(targetAddr) == 0 {
			return packet.SenderHardwareAddr, nil
		}
	}
	return nil, fmt.Errorf("no matching arp response")
}

// HasDockerSocket reports whether the Docker Engine API socket is
// present on this host, used by self-report discovery to advertise
// whether Docker discovery is viable here.
func (c *Client) HasDockerSocket() bool {
	_, err := os.Stat("/var/run/docker.sock")
	return err == nil
}

// OwnHostname returns this host's configured hostname, best-effort.
func (c *Client) OwnHostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}
