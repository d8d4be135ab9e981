package scanner

import (
	"log/slog"
	"net"
	"sort"
)

// minSubnetPrefix is the smallest (i.e. widest) prefix length a network
// scan will accept; anything wider is too expensive to enumerate
// (spec.md §4.5).
const minSubnetPrefix = 10

// ipTier buckets a last-octet value into spec.md §4.5's priority table.
// Tier 0 means "skip" (network/broadcast address).
func ipTier(lastOctet int) int {
	switch {
	case lastOctet == 0 || lastOctet == 255:
		return 0
	case lastOctet == 1 || lastOctet == 254:
		return 1
	case lastOctet == 2 || lastOctet == 3 || lastOctet == 10 || lastOctet == 100 || lastOctet == 252 || lastOctet == 253:
		return 2
	case lastOctet >= 4 && lastOctet <= 30:
		return 3
	case lastOctet >= 31 && lastOctet <= 150:
		return 4
	default:
		return 5
	}
}

// CandidateIPs expands an IPv4 CIDR into scan targets ordered by spec.md
// §4.5's priority tiers (gateway octets first, then infra/DHCP bounds,
// static ranges, active DHCP ranges, extended range last). Returns nil
// with a logged warning if the subnet is too wide to enumerate or isn't
// IPv4. Callers are responsible for skipping Docker-bridge-typed
// subnets before calling this — that's a subnet-metadata decision, not
// an address-arithmetic one.
func CandidateIPs(log *slog.Logger, cidr string) []string {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil
	}

	v4 := ip.To4()
	if v4 == nil {
		// IPv6 subnets are not enumerated: no candidates are returned for
		// them, so network scans cover IPv4 addresses only.
		return nil
	}

	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return nil
	}
	if ones < minSubnetPrefix {
		if log != nil {
			log.Warn("subnet too wide to scan, skipping", "cidr", cidr, "prefix", ones)
		}
		return nil
	}

	type candidate struct {
		ip   string
		tier int
	}

	var candidates []candidate
	base := ipnet.IP.To4()
	hostBits := 32 - ones
	count := 1 << uint(hostBits)

	for i := 0; i < count; i++ {
		addr := make(net.IP, 4)
		copy(addr, base)
		addUint32(addr, uint32(i))
		if !ipnet.Contains(addr) {
			continue
		}
		last := int(addr[3])
		tier := ipTier(last)
		if tier == 0 {
			continue
		}
		candidates = append(candidates, candidate{ip: addr.String(), tier: tier})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].tier < candidates[j].tier
	})

	ips := make([]string, len(candidates))
	for i, c := range candidates {
		ips[i] = c.ip
	}
	return ips
}

func addUint32(ip net.IP, n uint32) {
	carry := n
	for i := 3; i >= 0 && carry > 0; i-- {
		sum := uint32(ip[i]) + carry
		ip[i] = byte(sum & 0xff)
		carry = sum >> 8
	}
}
