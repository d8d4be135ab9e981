package classifier

import (
	"net"
	"sort"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// HostCandidate is everything known about one discovered host before
// classification: its interface/subnet placement, the ports and endpoint
// bodies the scanner collected, and any resolved hostname.
type HostCandidate struct {
	Interface      model.Interface
	Subnet         model.Subnet
	OpenPorts      []model.Port
	Endpoints      []EndpointEvidence
	Hostname       string
	GatewayIPs     []string
	Virtualization *model.VirtualizationContext
}

// ClassifyResult is one host's classification output: its ranked matched
// services, the residual unclaimed ports, and the resolved target policy.
type ClassifyResult struct {
	Services      []model.Service
	UnboundPorts  []model.Port
	HostName      string
	Target        model.Target
}

// ClassifyHost runs every registered definition against one host
// candidate's scan evidence and produces a ranked, port-bound result
// (spec.md §4.2 "Responsibility").
func ClassifyHost(registry *Registry, sessionID uuid.UUID, candidate HostCandidate, fallback model.HostNamingFallback) ClassifyResult {
	unbound := make(map[model.Port]bool, len(candidate.OpenPorts))
	for _, p := range candidate.OpenPorts {
		unbound[p] = true
	}

	ctx := &MatchContext{
		Subnet:            candidate.Subnet,
		Interface:         candidate.Interface,
		UnboundPorts:      unbound,
		EndpointResponses: candidate.Endpoints,
		GatewayIPs:        candidate.GatewayIPs,
		Virtualization:    candidate.Virtualization,
		OtherGatewaysSeen: otherGatewaySeenInSubnet(candidate),
	}

	var matched []matchedDefinition
	for _, d := range evaluationOrder(registry.All()) {
		result, ok := d.Pattern.Evaluate(ctx)
		if !ok {
			continue
		}
		for _, p := range result.ClaimedPorts {
			delete(ctx.UnboundPorts, p)
		}
		matched = append(matched, matchedDefinition{def: d, result: result})
	}

	services := make([]model.Service, 0, len(matched))
	for _, m := range matched {
		services = append(services, toService(sessionID, m))
	}
	rankServices(services, registry)

	remaining := make([]model.Port, 0, len(ctx.UnboundPorts))
	for p := range ctx.UnboundPorts {
		remaining = append(remaining, p)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Less(remaining[j]) })

	hostName, target := resolveHostNameAndTarget(candidate, services, fallback, registry)

	return ClassifyResult{
		Services:     services,
		UnboundPorts: remaining,
		HostName:     hostName,
		Target:       target,
	}
}

type matchedDefinition struct {
	def    Definition
	result model.MatchResult
}

// evaluationOrder returns definitions in the three priority tiers spec.md
// §4.2 requires: non-generic first, then generic (except Gateway), then
// the generic Gateway last — so Gateway's broad positive signal never
// shadows a more specific classification.
func evaluationOrder(defs []Definition) []Definition {
	var nonGeneric, genericRest, genericGateway []Definition
	for _, d := range defs {
		switch {
		case !d.IsGeneric:
			nonGeneric = append(nonGeneric, d)
		case isBareGatewayPattern(d.Pattern):
			genericGateway = append(genericGateway, d)
		default:
			genericRest = append(genericRest, d)
		}
	}
	ordered := make([]Definition, 0, len(defs))
	ordered = append(ordered, nonGeneric...)
	ordered = append(ordered, genericRest...)
	ordered = append(ordered, genericGateway...)
	return ordered
}

// isBareGatewayPattern reports whether p is the bare IsGateway pattern
// (the catch-all generic Gateway definition), as opposed to some other
// generic definition that merely uses IsGateway as one of several
// conditions (e.g. the Eero gateway's AllOf).
func isBareGatewayPattern(p Pattern) bool {
	_, ok := p.(IsGateway)
	return ok
}

// otherGatewaySeenInSubnet reports whether the known gateway IPs include
// one other than the candidate's own IP inside the candidate's subnet
// (any gateway counts when the subnet's CIDR is unknown), used by
// IsGateway's last-octet heuristic.
func otherGatewaySeenInSubnet(candidate HostCandidate) bool {
	_, subnet, err := net.ParseCIDR(candidate.Subnet.CIDR)
	for _, g := range candidate.GatewayIPs {
		if g == candidate.Interface.IP {
			continue
		}
		if err != nil {
			return true
		}
		if ip := net.ParseIP(g); ip != nil && subnet.Contains(ip) {
			return true
		}
	}
	return false
}

func toService(sessionID uuid.UUID, m matchedDefinition) model.Service {
	var bindings []model.Binding
	if len(m.result.ClaimedPorts) == 0 {
		bindings = append(bindings, model.Binding{
			ID:   model.BindingID(model.BindingInterfaceOnly, nil, nil),
			Kind: model.BindingInterfaceOnly,
		})
	}
	for i := range m.result.ClaimedPorts {
		port := m.result.ClaimedPorts[i]
		viaEndpoint := m.result.Endpoint != nil && m.result.Endpoint.Port == port
		bindings = append(bindings, model.Binding{
			ID:          model.BindingID(model.BindingPort, nil, &port),
			Kind:        model.BindingPort,
			Port:        &port,
			ViaEndpoint: viaEndpoint,
		})
	}

	return model.Service{
		ID:             uuid.New(),
		DefinitionID:   m.def.ID,
		DisplayName:    m.def.Name,
		Bindings:       bindings,
		Virtualization: nil,
		HasLogo:        m.def.LogoURL != "",
		Source: model.Source{
			DiscoverySessionID: sessionID,
			Reason:             m.result.Details.Reason,
			Confidence:         m.result.Details.Confidence,
		},
	}
}

// rankServices orders matched services by confidence descending, then by
// whether they have a logo, then by definition registration order (the
// order passed to NewRegistry), to keep results deterministic.
func rankServices(services []model.Service, registry *Registry) {
	order := make(map[string]int, len(registry.All()))
	for i, d := range registry.All() {
		order[d.ID] = i
	}
	sort.SliceStable(services, func(i, j int) bool {
		a, b := services[i], services[j]
		if a.Source.Confidence != b.Source.Confidence {
			return a.Source.Confidence > b.Source.Confidence
		}
		if a.HasLogo != b.HasLogo {
			return a.HasLogo
		}
		return order[a.DefinitionID] < order[b.DefinitionID]
	})
}

// bestNonGenericService returns the highest-ranked non-generic matched
// service, if any, for the BestService host-naming fallback.
func bestNonGenericService(services []model.Service, registry *Registry) (model.Service, bool) {
	for _, s := range services {
		d, ok := registry.Find(s.DefinitionID)
		if ok && !d.IsGeneric {
			return s, true
		}
	}
	return model.Service{}, false
}

// resolveHostNameAndTarget implements spec.md §4.2's "Host target policy":
// a resolved hostname sets both host.name and target=Hostname; otherwise
// host.name falls back to the best non-generic service's display name or
// the interface IP per the caller's policy, but target is left unset
// (None) so a Port-binding whose response came via endpoint probing can
// still upgrade it (only when target was Hostname or unset) — the
// IP/BestService fallback governs the host's name, not its target.
func resolveHostNameAndTarget(candidate HostCandidate, services []model.Service, fallback model.HostNamingFallback, registry *Registry) (string, model.Target) {
	var hostName string
	var target model.Target

	if candidate.Hostname != "" {
		hostName = candidate.Hostname
		target = model.Target{Kind: model.TargetHostname, Value: candidate.Hostname}
	} else {
		target = model.Target{Kind: model.TargetNone}
		switch fallback {
		case model.FallbackBestService:
			if best, ok := bestNonGenericService(services, registry); ok {
				hostName = best.DisplayName
			} else {
				hostName = candidate.Interface.IP
			}
		default:
			hostName = candidate.Interface.IP
		}
	}

	for _, s := range services {
		for _, b := range s.Bindings {
			if b.Kind != model.BindingPort || !b.ViaEndpoint {
				continue
			}
			if target.Kind == model.TargetHostname || target.Kind == model.TargetNone {
				target = model.Target{Kind: model.TargetServiceBinding, ServiceID: uuidPtr(s.ID), BindingID: b.ID}
			}
		}
	}

	return hostName, target
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
