package scanner

import "testing"

func TestCandidateIPsOrdersByTier(t *testing.T) {
	ips := CandidateIPs(nil, "192.0.2.0/24")
	if len(ips) == 0 {
		t.Fatal("expected candidate IPs, got none")
	}
	if ips[0] != "192.0.2.1" {
		t.Errorf("first candidate = %s, want gateway 192.0.2.1 first", ips[0])
	}
	if ips[len(ips)-1] == "192.0.2.0" || ips[len(ips)-1] == "192.0.2.255" {
		t.Errorf("network/broadcast address leaked into results: %s", ips[len(ips)-1])
	}
}

func TestCandidateIPsSkipsNetworkAndBroadcast(t *testing.T) {
	ips := CandidateIPs(nil, "203.0.113.0/24")
	for _, ip := range ips {
		if ip == "203.0.113.0" || ip == "203.0.113.255" {
			t.Errorf("found skip-tier address %s in candidates", ip)
		}
	}
	if len(ips) != 254 {
		t.Errorf("got %d candidates, want 254 for a /24", len(ips))
	}
}

func TestCandidateIPsRejectsWidePrefix(t *testing.T) {
	ips := CandidateIPs(nil, "203.0.113.0/9")
	if ips != nil {
		t.Errorf("expected nil for prefix < 10, got %d candidates", len(ips))
	}
}

func TestCandidateIPsRejectsIPv6(t *testing.T) {
	ips := CandidateIPs(nil, "2001:db8::/32")
	if ips != nil {
		t.Errorf("expected nil for IPv6 subnet, got %d candidates", len(ips))
	}
}

func TestIPTierBoundaries(t *testing.T) {
	cases := map[int]int{
		0:   0,
		255: 0,
		1:   1,
		254: 1,
		2:   2,
		100: 2,
		252: 2,
		15:  3,
		30:  3,
		31:  4,
		150: 4,
		151: 5,
		251: 5,
	}
	for octet, want := range cases {
		if got := ipTier(octet); got != want {
			t.Errorf("ipTier(%d) = %d, want %d", octet, got, want)
		}
	}
}
