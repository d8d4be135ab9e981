package scanner

// discoveryTCPPorts is the curated set of TCP ports probed by every scan.
// A curated list, not an exhaustive one — spec.md §1 "Non-goals": this is
// not a general-purpose scanner.
var discoveryTCPPorts = []int{
	21, 22, 23, 25, 53, 80, 88, 110, 111, 135, 139, 143, 389, 443, 445,
	464, 465, 500, 515, 548, 587, 631, 636, 993, 995,
	1433, 1521, 1883, 2049, 2375, 2376, 2379, 3000, 3001, 3306, 3389,
	4000, 4369, 5000, 5001, 5353, 5432, 5672, 5900, 5984,
	6379, 6443, 7000, 8000, 8006, 8080, 8081, 8086, 8096, 8123, 8443,
	8500, 8529, 8834, 8880, 8883, 8888, 8920, 8989, 9000, 9090, 9091,
	9092, 9100, 9200, 9443, 9999, 10000, 11211, 27017, 32400,
}

// discoveryUDPPorts is the curated set of UDP ports with protocol-specific
// probes (spec.md §4.1 "UDP probe").
var discoveryUDPPorts = []int{53, 67, 123, 161}

const (
	portDNS  = 53
	portDHCP = 67
	portNTP  = 123
	portSNMP = 161
)

// wellKnownHTTPSPorts try HTTPS before falling back to HTTP (spec.md §4.1
// "Endpoint probe").
var wellKnownHTTPSPorts = map[int]bool{
	443: true, 8443: true, 9443: true, 8006: true, 8123: true,
}

// wellKnownPorts are ports whose service is common enough that a Port
// pattern match on them only earns Low confidence instead of Medium
// (spec.md §4.2 "Confidence assignment").
var wellKnownPorts = map[int]bool{}

func init() {
	for _, p := range discoveryTCPPorts {
		wellKnownPorts[p] = true
	}
	for _, p := range discoveryUDPPorts {
		wellKnownPorts[p] = true
	}
}

// IsWellKnownPort reports whether p is one of the curated discovery ports
// rather than a "custom" port unique to a particular service definition.
func IsWellKnownPort(p int) bool {
	return wellKnownPorts[p]
}
