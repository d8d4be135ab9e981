package classifier

import (
	"strings"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// EndpointEvidence is one successfully-probed endpoint response, carried
// into the classifier so Endpoint patterns can substring-match it.
type EndpointEvidence struct {
	Port model.Port
	Path string
	Body string
}

// MatchContext carries every piece of scan evidence a Pattern needs to
// evaluate against one host candidate: the subnet and interface it was
// found on, its currently-unbound ports, collected endpoint responses,
// the agent's known gateway IPs, and any virtualization context
// (spec.md §4.2 "Responsibility").
type MatchContext struct {
	Subnet            model.Subnet
	Interface         model.Interface
	UnboundPorts      map[model.Port]bool
	EndpointResponses []EndpointEvidence
	GatewayIPs        []string
	Virtualization    *model.VirtualizationContext
	OtherGatewaysSeen bool
}

func (c *MatchContext) endpointMatch(port model.Port, path, needle string) (EndpointEvidence, bool) {
	needle = strings.ToLower(needle)
	for _, e := range c.EndpointResponses {
		if e.Port != port || e.Path != path {
			continue
		}
		if strings.Contains(strings.ToLower(e.Body), needle) {
			return e, true
		}
	}
	return EndpointEvidence{}, false
}
