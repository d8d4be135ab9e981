package scanner

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

func testServerPort(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	return port
}

func TestProbeEndpointSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("nginx proxy manager"))
	}))
	defer srv.Close()

	token := cancel.New()
	port := testServerPort(t, srv.URL)
	ok, body := probeEndpoint(token, "127.0.0.1", EndpointTarget{Port: model.Port{Number: port, Transport: model.TransportTCP}, Path: "/"})
	if !ok {
		t.Error("expected successful probe against live httptest server")
	}
	if body != "nginx proxy manager" {
		t.Errorf("body = %q, want %q", body, "nginx proxy manager")
	}
}

func TestProbeEndpointRejectsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	token := cancel.New()
	port := testServerPort(t, srv.URL)
	ok, _ := probeEndpoint(token, "127.0.0.1", EndpointTarget{Port: model.Port{Number: port, Transport: model.TransportTCP}, Path: "/"})
	if ok {
		t.Error("expected 404 to be rejected")
	}
}

func TestDedupeEndpointTargets(t *testing.T) {
	open := []model.Port{{Number: 80, Transport: model.TransportTCP}, {Number: 443, Transport: model.TransportTCP}}
	extra := []EndpointTarget{
		{Port: model.Port{Number: 80, Transport: model.TransportTCP}, Path: "/"},
		{Port: model.Port{Number: 8006, Transport: model.TransportTCP}, Path: "/api/json"},
	}
	targets := dedupeEndpointTargets(open, extra)
	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3 (80, 443, 8006)", len(targets))
	}
}
