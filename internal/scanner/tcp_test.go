package scanner

import (
	"net"
	"testing"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

func TestProbeTCPOpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	token := cancel.New()

	result := probeTCP(token, "127.0.0.1", port)
	if !result.port.ok {
		t.Fatalf("expected open port %d, got closed", port)
	}
	if result.port.port != (model.Port{Number: port, Transport: model.TransportTCP}) {
		t.Errorf("unexpected port value: %+v", result.port.port)
	}
}

func TestProbeTCPClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	token := cancel.New()
	result := probeTCP(token, "127.0.0.1", port)
	if result.port.ok {
		t.Errorf("expected closed port to report not-open")
	}
	if result.err != nil {
		t.Errorf("connection-refused should not be a critical error: %v", result.err)
	}
}

func TestScanTCPPortsCollectsOpenPorts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	saved := discoveryTCPPorts
	discoveryTCPPorts = []int{port, port + 1}
	defer func() { discoveryTCPPorts = saved }()

	token := cancel.New()
	ports, err := scanTCPPorts(token, "127.0.0.1", 2)
	if err != nil {
		t.Fatalf("unexpected critical error: %v", err)
	}
	if len(ports) != 1 || ports[0].Number != port {
		t.Errorf("ports = %+v, want exactly [%d]", ports, port)
	}
}

type fakeTimeoutErr struct{ timeout bool }

func (e fakeTimeoutErr) Error() string { return "fake" }
func (e fakeTimeoutErr) Timeout() bool { return e.timeout }

func TestIsTimeout(t *testing.T) {
	if !isTimeout(fakeTimeoutErr{timeout: true}) {
		t.Error("expected timeout error to be detected")
	}
	if isTimeout(fakeTimeoutErr{timeout: false}) {
		t.Error("expected non-timeout error to be rejected")
	}
	if isTimeout(errPlain("boom")) {
		t.Error("expected plain error without Timeout() to be rejected")
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }
