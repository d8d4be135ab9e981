package classifier

import (
	"testing"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

func baseCtx() *MatchContext {
	return &MatchContext{
		Interface:    model.Interface{IP: "192.168.1.50"},
		UnboundPorts: map[model.Port]bool{},
	}
}

func TestPortPatternRequiresUnbound(t *testing.T) {
	ctx := baseCtx()
	p := Port{P: tcp(7878), uniqueAcrossRegistry: true}
	if _, ok := p.Evaluate(ctx); ok {
		t.Error("expected no match when port is not in the unbound set")
	}

	ctx.UnboundPorts[tcp(7878)] = true
	result, ok := p.Evaluate(ctx)
	if !ok {
		t.Fatal("expected match once port is unbound")
	}
	if result.Details.Confidence != model.Medium {
		t.Errorf("confidence = %v, want Medium for custom+unique port", result.Details.Confidence)
	}
}

func TestPortPatternLowConfidenceWhenNotUnique(t *testing.T) {
	ctx := baseCtx()
	ctx.UnboundPorts[tcp(8096)] = true
	p := Port{P: tcp(8096), uniqueAcrossRegistry: false}
	result, ok := p.Evaluate(ctx)
	if !ok {
		t.Fatal("expected match")
	}
	if result.Details.Confidence != model.Low {
		t.Errorf("confidence = %v, want Low", result.Details.Confidence)
	}
}

func TestEndpointPatternMatchesSubstring(t *testing.T) {
	ctx := baseCtx()
	ctx.EndpointResponses = []EndpointEvidence{{Port: tcp(80), Path: "/", Body: "Welcome to NGINX PROXY MANAGER"}}
	p := Endpoint{P: tcp(80), Path: "/", Needle: "nginx proxy manager"}
	result, ok := p.Evaluate(ctx)
	if !ok {
		t.Fatal("expected case-insensitive substring match")
	}
	if result.Details.Confidence != model.High {
		t.Errorf("confidence = %v, want High", result.Details.Confidence)
	}
	if result.Endpoint == nil || result.Endpoint.Path != "/" {
		t.Error("expected endpoint match to be recorded")
	}
}

func TestIsGatewayMatchesRoutingTable(t *testing.T) {
	ctx := baseCtx()
	ctx.GatewayIPs = []string{"192.168.1.50"}
	result, ok := IsGateway{}.Evaluate(ctx)
	if !ok {
		t.Fatal("expected match via routing table membership")
	}
	if result.Details.Confidence != model.High {
		t.Errorf("confidence = %v, want High", result.Details.Confidence)
	}
}

func TestIsGatewayMatchesLastOctetHeuristic(t *testing.T) {
	ctx := baseCtx()
	ctx.Interface.IP = "192.168.1.1"
	ctx.OtherGatewaysSeen = false
	if _, ok := (IsGateway{}).Evaluate(ctx); !ok {
		t.Error("expected match for .1 address with no other gateways observed")
	}

	ctx.OtherGatewaysSeen = true
	if _, ok := (IsGateway{}).Evaluate(ctx); ok {
		t.Error("expected no match once another gateway was observed in subnet")
	}
}

func TestIsGatewayRejectsNonBoundaryOctet(t *testing.T) {
	ctx := baseCtx()
	ctx.Interface.IP = "192.168.1.50"
	if _, ok := (IsGateway{}).Evaluate(ctx); ok {
		t.Error("expected no match for a non-gateway-like last octet")
	}
}

func TestMacVendorNormalizesBeforeComparing(t *testing.T) {
	ctx := baseCtx()
	ctx.Interface.MAC = "b0:b9:8a:11:22:33"
	p := MacVendor{Vendor: "eero inc"}
	result, ok := p.Evaluate(ctx)
	if !ok {
		t.Fatal("expected vendor match despite case/spacing differences")
	}
	if result.MACVendor != "eero Inc" {
		t.Errorf("MACVendor = %q, want %q", result.MACVendor, "eero Inc")
	}
}

func TestNotInvertsInnerPattern(t *testing.T) {
	ctx := baseCtx()
	result, ok := Not{Inner: IsGateway{}}.Evaluate(ctx)
	if !ok {
		t.Fatal("expected Not to match since inner IsGateway fails")
	}
	if result.Details.Confidence != model.Low {
		t.Errorf("confidence = %v, want Low", result.Details.Confidence)
	}
}

func TestAnyOfTakesMaxConfidence(t *testing.T) {
	ctx := baseCtx()
	ctx.GatewayIPs = []string{"192.168.1.50"}
	ctx.UnboundPorts[tcp(80)] = true
	pat := AnyOf{Patterns: []Pattern{
		Port{P: tcp(80), uniqueAcrossRegistry: false},
		IsGateway{},
	}}
	result, ok := pat.Evaluate(ctx)
	if !ok {
		t.Fatal("expected match")
	}
	if result.Details.Confidence != model.High {
		t.Errorf("confidence = %v, want High (max of Low and High)", result.Details.Confidence)
	}
}

func TestAllOfFailsIfAnyChildFails(t *testing.T) {
	ctx := baseCtx()
	ctx.UnboundPorts[tcp(80)] = true
	pat := AllOf{Patterns: []Pattern{
		Port{P: tcp(80)},
		Port{P: tcp(443)},
	}}
	if _, ok := pat.Evaluate(ctx); ok {
		t.Error("expected AllOf to fail when one child has no evidence")
	}
}

func TestAllOfBumpsConfidenceWithManyLowChildren(t *testing.T) {
	ctx := baseCtx()
	for _, p := range []int{1, 2, 3, 4} {
		ctx.UnboundPorts[model.Port{Number: p, Transport: model.TransportTCP}] = true
	}
	var children []Pattern
	for _, p := range []int{1, 2, 3, 4} {
		children = append(children, Port{P: model.Port{Number: p, Transport: model.TransportTCP}, uniqueAcrossRegistry: false})
	}
	result, ok := AllOf{Patterns: children}.Evaluate(ctx)
	if !ok {
		t.Fatal("expected all four children to match")
	}
	if result.Details.Confidence != model.Medium {
		t.Errorf("confidence = %v, want Medium (Low bumped with >3 children)", result.Details.Confidence)
	}
}

func TestNoneNeverMatches(t *testing.T) {
	if _, ok := (None{}).Evaluate(baseCtx()); ok {
		t.Error("expected None to never match")
	}
}
