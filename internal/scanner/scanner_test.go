package scanner

import (
	"testing"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

func TestMergePortsDedupesAndSorts(t *testing.T) {
	tcp := []model.Port{{Number: 443, Transport: model.TransportTCP}, {Number: 80, Transport: model.TransportTCP}}
	udp := []model.Port{{Number: 53, Transport: model.TransportUDP}}
	endpoint := []model.Port{{Number: 80, Transport: model.TransportTCP}, {Number: 8080, Transport: model.TransportTCP}}

	merged := mergePorts(tcp, udp, endpoint)

	want := []model.Port{
		{Number: 53, Transport: model.TransportUDP},
		{Number: 80, Transport: model.TransportTCP},
		{Number: 443, Transport: model.TransportTCP},
		{Number: 8080, Transport: model.TransportTCP},
	}
	if len(merged) != len(want) {
		t.Fatalf("got %d ports, want %d: %+v", len(merged), len(want), merged)
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Errorf("merged[%d] = %+v, want %+v", i, merged[i], want[i])
		}
	}
}

func TestTrimTrailingDot(t *testing.T) {
	if got := trimTrailingDot("host.example.com."); got != "host.example.com" {
		t.Errorf("got %q, want %q", got, "host.example.com")
	}
	if got := trimTrailingDot("host.example.com"); got != "host.example.com" {
		t.Errorf("got %q, want unchanged %q", got, "host.example.com")
	}
	if got := trimTrailingDot(""); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}
