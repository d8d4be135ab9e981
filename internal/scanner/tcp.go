package scanner

import (
	"fmt"
	"net"
	"time"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// tcpConnectTimeout and tcpRetryDelay are fixed design parameters (spec.md
// §5 "Timeouts") — implementations must use exactly these values to
// preserve scan-duration envelopes.
const (
	tcpConnectTimeout = 800 * time.Millisecond
	tcpRetryDelay     = 100 * time.Millisecond
)

// tcpResult is the outcome of probing one TCP port.
type tcpResult struct {
	port open
	err  error // non-nil only for a critical error; aborts the whole scan
}

type open struct {
	port model.Port
	ok   bool
}

// probeTCP attempts a connection with an 800ms timeout; on timeout it
// retries once after 100ms. Success means "open" (the connection is
// closed immediately). A critical-error-set match aborts the scan;
// every other failure just means "closed/filtered" (spec.md §4.1 "TCP
// probe").
func probeTCP(token *cancel.Token, ip string, port int) tcpResult {
	addr := fmt.Sprintf("%s:%d", ip, port)

	conn, err := net.DialTimeout("tcp", addr, tcpConnectTimeout)
	if err != nil {
		if IsCriticalError(err) {
			return tcpResult{err: err}
		}
		if isTimeout(err) {
			select {
			case <-time.After(tcpRetryDelay):
			case <-token.Done():
				return tcpResult{}
			}
			conn, err = net.DialTimeout("tcp", addr, tcpConnectTimeout)
			if err != nil {
				if IsCriticalError(err) {
					return tcpResult{err: err}
				}
				return tcpResult{}
			}
		} else {
			return tcpResult{}
		}
	}
	defer conn.Close()

	return tcpResult{port: open{port: model.Port{Number: port, Transport: model.TransportTCP}, ok: true}}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return false
}

// scanTCPPorts runs the TCP probe over every curated discovery port using
// BatchScan at the given batch size. Returns the open ports and the first
// critical error encountered, if any (which the caller should treat as
// aborting the whole scan).
func scanTCPPorts(token *cancel.Token, ip string, batchSize int) ([]model.Port, error) {
	results := BatchScan(discoveryTCPPorts, batchSize, token, func(port int) tcpResult {
		return probeTCP(token, ip, port)
	})

	var openPorts []model.Port
	var firstCritical error
	for _, r := range results {
		if r.err != nil && firstCritical == nil {
			firstCritical = r.err
		}
		if r.port.ok {
			openPorts = append(openPorts, r.port.port)
		}
	}
	return openPorts, firstCritical
}
