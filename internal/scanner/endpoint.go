package scanner

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

const endpointProbeTimeout = 800 * time.Millisecond

// EndpointTarget is one (port, path) tuple to probe over HTTP(S).
type EndpointTarget struct {
	Port model.Port
	Path string
}

// EndpointResponse is a successfully-probed (port, path) with its body,
// kept around for the classifier's Endpoint pattern to substring-match
// against (spec.md §4.1 "record (endpoint, body)").
type EndpointResponse struct {
	Port model.Port
	Path string
	Body string
}

// endpointResult records whether a target answered with a readable 2xx
// body (spec.md §4.1 "Endpoint probe").
type endpointResult struct {
	target    EndpointTarget
	reachable bool
	body      string
}

var insecureEndpointClient = &http.Client{
	Timeout: endpointProbeTimeout,
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// scanEndpoints probes the union of discovered open TCP ports and any
// endpoint-only ports declared by service definitions, deduplicated by
// (port, path). Endpoint concurrency is min(portBatchSize/2, 50).
func scanEndpoints(token *cancel.Token, ip string, openTCP []model.Port, extraTargets []EndpointTarget, portBatchSize int) []EndpointResponse {
	targets := dedupeEndpointTargets(openTCP, extraTargets)
	if len(targets) == 0 {
		return nil
	}

	batchSize := portBatchSize / 2
	if batchSize > 50 {
		batchSize = 50
	}
	if batchSize < 1 {
		batchSize = 1
	}

	results := BatchScan(targets, batchSize, token, func(t EndpointTarget) endpointResult {
		reachable, body := probeEndpoint(token, ip, t)
		return endpointResult{target: t, reachable: reachable, body: body}
	})

	var responses []EndpointResponse
	for _, r := range results {
		if r.reachable {
			responses = append(responses, EndpointResponse{Port: r.target.Port, Path: r.target.Path, Body: r.body})
		}
	}
	return responses
}

func dedupeEndpointTargets(openTCP []model.Port, extra []EndpointTarget) []EndpointTarget {
	seen := make(map[string]bool)
	var targets []EndpointTarget

	add := func(t EndpointTarget) {
		key := fmt.Sprintf("%d|%s", t.Port.Number, t.Path)
		if seen[key] {
			return
		}
		seen[key] = true
		targets = append(targets, t)
	}

	for _, p := range openTCP {
		add(EndpointTarget{Port: p, Path: "/"})
	}
	for _, t := range extra {
		if t.Path == "" {
			t.Path = "/"
		}
		add(t)
	}
	return targets
}

// probeEndpoint issues a GET, preferring HTTPS first for well-known TLS
// ports (falling back to HTTP if that fails) and HTTP only everywhere
// else. Success requires a 2xx status and a readable body, which is
// returned for the classifier's Endpoint pattern to search.
func probeEndpoint(token *cancel.Token, ip string, t EndpointTarget) (bool, string) {
	if wellKnownHTTPSPorts[t.Port.Number] {
		if ok, body := doEndpointGet(token, "https", ip, t); ok {
			return true, body
		}
	}
	return doEndpointGet(token, "http", ip, t)
}

func doEndpointGet(token *cancel.Token, scheme, ip string, t EndpointTarget) (bool, string) {
	url := fmt.Sprintf("%s://%s:%d%s", scheme, ip, t.Port.Number, t.Path)
	ctx, cancelCtx := tokenTimeoutContext(token, endpointProbeTimeout)
	defer cancelCtx()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, ""
	}

	resp, err := insecureEndpointClient.Do(req)
	if err != nil {
		return false, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, ""
	}
	return true, string(body)
}
