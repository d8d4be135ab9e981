package classifier

import (
	"strings"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
	"github.com/Will-Luck/Docker-Sentinel/internal/scanner"
)

// Pattern is a definition's discovery signal: a recursive predicate over
// one host candidate's scan evidence (spec.md §4.2 "Pattern language").
type Pattern interface {
	// Evaluate reports whether the pattern matches, and if so the
	// MatchResult describing what it claimed and how confidently.
	Evaluate(ctx *MatchContext) (model.MatchResult, bool)

	// declaredPorts returns the ports this pattern (or its children)
	// would claim on a match, used for the Port pattern's
	// uniqueness-across-the-registry check.
	declaredPorts() []model.Port

	// isGatewaySignal reports whether this pattern (or a descendant)
	// uses IsGateway as a positive match signal.
	isGatewaySignal() bool
}

// Port matches when p is still in the working unbound-port set.
type Port struct {
	P model.Port
	// uniqueAcrossRegistry is computed by the registry at load time:
	// true if no other definition's Port pattern names this same port.
	uniqueAcrossRegistry bool
}

func (pat Port) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	if !ctx.UnboundPorts[pat.P] {
		return model.MatchResult{}, false
	}

	custom := !scanner.IsWellKnownPort(pat.P.Number)
	confidence := model.Low
	reason := "port is open but is used in other service match patterns"
	if custom && pat.uniqueAcrossRegistry {
		confidence = model.Medium
		reason = "port is open and is not used in other service match patterns"
	}

	return model.MatchResult{
		ClaimedPorts: []model.Port{pat.P},
		Details:      model.MatchDetails{Reason: reason, Confidence: confidence},
	}, true
}

func (pat Port) declaredPorts() []model.Port { return []model.Port{pat.P} }
func (pat Port) isGatewaySignal() bool        { return false }

// Endpoint matches when some collected response for (port, path)
// contains needle (case-insensitive).
type Endpoint struct {
	P      model.Port
	Path   string
	Needle string
}

func (pat Endpoint) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	evidence, ok := ctx.endpointMatch(pat.P, pat.Path, pat.Needle)
	if !ok {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		ClaimedPorts: []model.Port{pat.P},
		Endpoint:     &model.EndpointMatch{Port: pat.P, Path: pat.Path},
		Details: model.MatchDetails{
			Reason:     "response from " + pat.Path + " contained \"" + pat.Needle + "\"",
			Confidence: model.High,
		},
	}, true
}

func (pat Endpoint) declaredPorts() []model.Port { return []model.Port{pat.P} }
func (pat Endpoint) isGatewaySignal() bool        { return false }

// MacVendor matches when the interface's MAC resolves, via the OUI
// database, to a company name equal to Vendor once both are
// alphanumeric-lowercased.
type MacVendor struct {
	Vendor string
}

func (pat MacVendor) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	if ctx.Interface.MAC == "" {
		return model.MatchResult{}, false
	}
	company, ok := LookupVendor(ctx.Interface.MAC)
	if !ok {
		return model.MatchResult{}, false
	}
	if normalizeVendor(company) != normalizeVendor(pat.Vendor) {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		MACVendor: company,
		Details:   model.MatchDetails{Reason: "mac address is from vendor " + company, Confidence: model.Medium},
	}, true
}

func (pat MacVendor) declaredPorts() []model.Port { return nil }
func (pat MacVendor) isGatewaySignal() bool        { return false }

func normalizeVendor(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsGateway matches when the interface IP appears in the agent's
// routing-table gateway list, or its last octet is 1 or 254 and no
// other gateway was observed in this subnet.
type IsGateway struct{}

func (IsGateway) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	for _, g := range ctx.GatewayIPs {
		if g == ctx.Interface.IP {
			return model.MatchResult{
				Details: model.MatchDetails{Reason: "host IP is in the routing table", Confidence: model.High},
			}, true
		}
	}

	if lastOctetIsGatewayLike(ctx.Interface.IP) && !ctx.OtherGatewaysSeen {
		return model.MatchResult{
			Details: model.MatchDetails{
				Reason:     "no other gateways in subnet and IP ends in 1 or 254",
				Confidence: model.High,
			},
		}, true
	}

	return model.MatchResult{}, false
}

func lastOctetIsGatewayLike(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	last := parts[3]
	return last == "1" || last == "254"
}

func (IsGateway) declaredPorts() []model.Port { return nil }
func (IsGateway) isGatewaySignal() bool        { return true }

// SubnetIsType matches when the interface's subnet has the given type.
type SubnetIsType struct {
	Type model.SubnetType
}

func (pat SubnetIsType) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	if ctx.Subnet.Type != pat.Type {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		Details: model.MatchDetails{Reason: "subnet is type " + string(pat.Type), Confidence: model.Low},
	}, true
}

func (pat SubnetIsType) declaredPorts() []model.Port { return nil }
func (pat SubnetIsType) isGatewaySignal() bool        { return false }

// DockerContainer matches when the virtualization context indicates a
// Docker container.
type DockerContainer struct{}

func (DockerContainer) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	if ctx.Virtualization == nil || ctx.Virtualization.Docker == nil {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		Details: model.MatchDetails{Reason: "service is running in a docker container", Confidence: model.Low},
	}, true
}

func (DockerContainer) declaredPorts() []model.Port { return nil }
func (DockerContainer) isGatewaySignal() bool        { return false }

// Custom evaluates an arbitrary predicate over the match context with a
// caller-supplied confidence.
type Custom struct {
	Fn            func(*MatchContext) bool
	Reason        string
	NoMatchReason string
	Confidence    model.Confidence
}

func (pat Custom) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	if !pat.Fn(ctx) {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		Details: model.MatchDetails{Reason: pat.Reason, Confidence: pat.Confidence},
	}, true
}

func (pat Custom) declaredPorts() []model.Port { return nil }
func (pat Custom) isGatewaySignal() bool        { return false }

// Not inverts the inner pattern; a match is always Low confidence.
type Not struct {
	Inner Pattern
}

func (pat Not) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	if _, ok := pat.Inner.Evaluate(ctx); ok {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		Details: model.MatchDetails{Reason: "inner pattern did not match", Confidence: model.Low},
	}, true
}

func (pat Not) declaredPorts() []model.Port { return nil }
func (pat Not) isGatewaySignal() bool        { return pat.Inner.isGatewaySignal() }

// AnyOf matches if any child matches; confidence is the max of the
// matching children.
type AnyOf struct {
	Patterns []Pattern
}

func (pat AnyOf) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	var ports []model.Port
	var endpoint *model.EndpointMatch
	var macVendor string
	matched := false
	confidence := model.Low

	for _, child := range pat.Patterns {
		result, ok := child.Evaluate(ctx)
		if !ok {
			continue
		}
		matched = true
		ports = append(ports, result.ClaimedPorts...)
		if endpoint == nil && result.Endpoint != nil {
			endpoint = result.Endpoint
		}
		if macVendor == "" && result.MACVendor != "" {
			macVendor = result.MACVendor
		}
		confidence = model.Max(confidence, result.Details.Confidence)
	}

	if !matched {
		return model.MatchResult{}, false
	}
	return model.MatchResult{
		ClaimedPorts: ports,
		Endpoint:     endpoint,
		MACVendor:    macVendor,
		Details:      model.MatchDetails{Reason: "any of", Confidence: confidence},
	}, true
}

func (pat AnyOf) declaredPorts() []model.Port {
	var ports []model.Port
	for _, child := range pat.Patterns {
		ports = append(ports, child.declaredPorts()...)
	}
	return ports
}

func (pat AnyOf) isGatewaySignal() bool {
	for _, child := range pat.Patterns {
		if child.isGatewaySignal() {
			return true
		}
	}
	return false
}

// AllOf matches only if every child matches; confidence is bumped one
// tier when more than three children matched at Low or Medium.
type AllOf struct {
	Patterns []Pattern
}

func (pat AllOf) Evaluate(ctx *MatchContext) (model.MatchResult, bool) {
	var ports []model.Port
	var endpoint *model.EndpointMatch
	var macVendor string
	var confidences []model.Confidence

	for _, child := range pat.Patterns {
		result, ok := child.Evaluate(ctx)
		if !ok {
			return model.MatchResult{}, false
		}
		ports = append(ports, result.ClaimedPorts...)
		if endpoint == nil && result.Endpoint != nil {
			endpoint = result.Endpoint
		}
		if macVendor == "" && result.MACVendor != "" {
			macVendor = result.MACVendor
		}
		confidences = append(confidences, result.Details.Confidence)
	}

	max := model.NotApplicable
	for _, c := range confidences {
		max = model.Max(max, c)
	}
	if (max == model.Low || max == model.Medium) && len(confidences) > 3 {
		max = max.Bump()
	}

	return model.MatchResult{
		ClaimedPorts: ports,
		Endpoint:     endpoint,
		MACVendor:    macVendor,
		Details:      model.MatchDetails{Reason: "all of", Confidence: max},
	}, true
}

func (pat AllOf) declaredPorts() []model.Port {
	var ports []model.Port
	for _, child := range pat.Patterns {
		ports = append(ports, child.declaredPorts()...)
	}
	return ports
}

func (pat AllOf) isGatewaySignal() bool {
	for _, child := range pat.Patterns {
		if child.isGatewaySignal() {
			return true
		}
	}
	return false
}

// None never matches; a placeholder for services identified only
// through another channel (e.g. Docker container introspection).
type None struct{}

func (None) Evaluate(*MatchContext) (model.MatchResult, bool) { return model.MatchResult{}, false }
func (None) declaredPorts() []model.Port                      { return nil }
func (None) isGatewaySignal() bool                             { return false }
