package classifier

import (
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
	"github.com/Will-Luck/Docker-Sentinel/internal/scanner"
)

// Definition is one entry in the built-in service catalog: the pattern
// used to recognize it during classification, its display metadata, and
// whether it names a specific product (false) or a generic role (true).
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    string
	Pattern     Pattern
	IsGeneric   bool
	LogoURL     string
}

func tcp(port int) model.Port { return model.Port{Number: port, Transport: model.TransportTCP} }

// Registry is the immutable catalog of built-in service definitions,
// keyed by ID for O(1) lookup.
type Registry struct {
	definitions []Definition
	byID        map[string]Definition
}

// NewRegistry builds the registry and computes each Port pattern's
// uniqueness-across-other-definitions flag.
func NewRegistry(definitions []Definition) *Registry {
	r := &Registry{byID: make(map[string]Definition, len(definitions))}
	r.definitions = append(r.definitions, definitions...)
	markUniquePorts(r.definitions)
	for _, d := range r.definitions {
		r.byID[d.ID] = d
	}
	return r
}

// markUniquePorts sets uniqueAcrossRegistry on every Port leaf pattern:
// true only if no other definition's pattern also declares that port.
func markUniquePorts(defs []Definition) {
	counts := make(map[model.Port]int)
	for _, d := range defs {
		for _, p := range d.Pattern.declaredPorts() {
			counts[p]++
		}
	}
	for i := range defs {
		setPortUniqueness(&defs[i].Pattern, counts)
	}
}

// setPortUniqueness rewrites Port leaves in place through the *Pattern
// slot; Port, Not, AnyOf, and AllOf are value types, so each is rebuilt
// and stored back into the slot rather than mutated through the interface.
func setPortUniqueness(p *Pattern, counts map[model.Port]int) {
	switch v := (*p).(type) {
	case Port:
		v.uniqueAcrossRegistry = counts[v.P] == 1
		*p = v
	case Not:
		setPortUniqueness(&v.Inner, counts)
		*p = v
	case AnyOf:
		for i := range v.Patterns {
			setPortUniqueness(&v.Patterns[i], counts)
		}
		*p = v
	case AllOf:
		for i := range v.Patterns {
			setPortUniqueness(&v.Patterns[i], counts)
		}
		*p = v
	}
}

// All returns every registered definition, generic and specific alike.
func (r *Registry) All() []Definition { return r.definitions }

// Find looks up a definition by ID.
func (r *Registry) Find(id string) (Definition, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// EndpointTargets collects every distinct (port, path) an Endpoint
// pattern anywhere in the registry declares, deduplicated. This is the
// "endpoint-only ports drawn from service definitions" input spec.md
// §4.1 says the scanner must probe regardless of what TCP discovery
// finds open — e.g. a service that only answers HTTP on a port the
// curated TCP list doesn't otherwise cover.
func (r *Registry) EndpointTargets() []scanner.EndpointTarget {
	seen := make(map[scanner.EndpointTarget]bool)
	var out []scanner.EndpointTarget
	for _, d := range r.definitions {
		for _, t := range collectEndpointTargets(d.Pattern) {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func collectEndpointTargets(p Pattern) []scanner.EndpointTarget {
	switch v := p.(type) {
	case Endpoint:
		return []scanner.EndpointTarget{{Port: v.P, Path: v.Path}}
	case Not:
		return collectEndpointTargets(v.Inner)
	case AnyOf:
		var out []scanner.EndpointTarget
		for _, child := range v.Patterns {
			out = append(out, collectEndpointTargets(child)...)
		}
		return out
	case AllOf:
		var out []scanner.EndpointTarget
		for _, child := range v.Patterns {
			out = append(out, collectEndpointTargets(child)...)
		}
		return out
	default:
		return nil
	}
}

// DefaultDefinitions is the built-in service catalog, grounded on the
// reference definitions/*.rs files: a handful of named products plus the
// generic fallback roles (workstation, switch, nas device, iot, gateway).
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:          "nginx-proxy-manager",
			Name:        "Nginx Proxy Manager",
			Description: "Web-based Nginx proxy management interface",
			Category:    "reverse_proxy",
			Pattern:     Endpoint{P: tcp(80), Path: "/", Needle: "nginx proxy manager"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/nginx-proxy-manager.svg",
		},
		{
			ID:          "docker",
			Name:        "Docker",
			Description: "Docker",
			Category:    "virtualization",
			Pattern:     None{},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/docker.svg",
		},
		{
			ID:          "home-assistant",
			Name:        "Home Assistant",
			Description: "Open-source home automation platform",
			Category:    "home_automation",
			Pattern:     Endpoint{P: tcp(8123), Path: "/auth/authorize", Needle: "home assistant"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/home-assistant.svg",
		},
		{
			ID:          "jellyfin",
			Name:        "Jellyfin",
			Description: "Free media server for personal streaming",
			Category:    "media",
			Pattern:     Endpoint{P: tcp(80), Path: "/System/Info/Public", Needle: "Jellyfin"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/jellyfin.svg",
		},
		{
			ID:          "home-assistant-alt",
			Name:        "Pi-hole",
			Description: "Network-wide DNS sinkhole with a web admin console",
			Category:    "networking",
			Pattern:     Endpoint{P: tcp(80), Path: "/admin/", Needle: "pi-hole"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/pi-hole.svg",
		},
		{
			ID:          "portainer",
			Name:        "Portainer",
			Description: "Container management UI for Docker and Kubernetes",
			Category:    "virtualization",
			Pattern:     Endpoint{P: tcp(9000), Path: "/", Needle: "portainer"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/portainer.svg",
		},
		{
			ID:          "grafana",
			Name:        "Grafana",
			Description: "Dashboards and observability platform",
			Category:    "monitoring",
			Pattern:     Endpoint{P: tcp(3000), Path: "/login", Needle: "grafana"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/grafana.svg",
		},
		{
			ID:          "prometheus",
			Name:        "Prometheus",
			Description: "Metrics collection and alerting system",
			Category:    "monitoring",
			Pattern:     Endpoint{P: tcp(9090), Path: "/graph", Needle: "prometheus"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/prometheus.svg",
		},
		{
			ID:          "eero-gateway",
			Name:        "Eero Gateway",
			Description: "Eero device providing routing and gateway services",
			Category:    "network_access",
			Pattern: AllOf{Patterns: []Pattern{
				MacVendor{Vendor: "eero Inc"},
				IsGateway{},
			}},
			LogoURL: "https://www.vectorlogo.zone/logos/eero/eero-icon.svg",
		},
		{
			ID:          "unifi-access-point",
			Name:        "UniFi Access Point",
			Description: "Ubiquiti UniFi wireless access point",
			Category:    "network_access",
			Pattern:     MacVendor{Vendor: "Ubiquiti Networks Inc"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/unifi.svg",
		},
		{
			ID:          "philips-hue-bridge",
			Name:        "Philips Hue Bridge",
			Description: "Bridge coordinating Philips Hue smart lighting",
			Category:    "smart_home",
			Pattern:     MacVendor{Vendor: "Philips Lighting BV"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/philips-hue.svg",
		},
		{
			ID:          "sonos-speaker",
			Name:        "Sonos Speaker",
			Description: "Sonos networked speaker",
			Category:    "smart_home",
			Pattern:     MacVendor{Vendor: "Sonos, Inc."},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/sonos.svg",
		},
		{
			ID:          "roku",
			Name:        "Roku",
			Description: "Roku streaming media player",
			Category:    "media",
			Pattern:     MacVendor{Vendor: "Roku, Inc"},
			LogoURL:     "https://cdn.jsdelivr.net/gh/homarr-labs/dashboard-icons/svg/roku.svg",
		},
		{
			ID:          "workstation",
			Name:        "Workstation",
			Description: "Desktop computer for productivity work",
			Category:    "workstation",
			Pattern: AllOf{Patterns: []Pattern{
				Port{P: tcp(3389)},
				Port{P: tcp(445)},
			}},
			IsGeneric: true,
		},
		{
			ID:          "switch",
			Name:        "Switch",
			Description: "Generic network switch for local area networking",
			Category:    "network_core",
			Pattern: AllOf{Patterns: []Pattern{
				Not{Inner: IsGateway{}},
				AllOf{Patterns: []Pattern{
					Port{P: tcp(80)},
					Port{P: tcp(23)},
				}},
			}},
			IsGeneric: true,
		},
		{
			ID:          "nas-device",
			Name:        "Nas Device",
			Description: "A generic network storage device",
			Category:    "storage",
			Pattern:     Port{P: model.Port{Number: 2049, Transport: model.TransportTCP}},
			IsGeneric:   true,
		},
		{
			ID:          "iot",
			Name:        "IoT",
			Description: "A generic IoT service",
			Category:    "iot",
			Pattern:     None{},
			IsGeneric:   true,
		},
		{
			ID:          "gateway",
			Name:        "Gateway",
			Description: "Generic router or gateway providing network access",
			Category:    "network_access",
			Pattern:     IsGateway{},
			IsGeneric:   true,
		},
	}
}
