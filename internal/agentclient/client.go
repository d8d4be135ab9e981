// Package agentclient is the agent half of the coordinator/agent REST
// link: an outbound client (this file) submitting discovery results and
// progress updates, and an inbound server (server.go) accepting the
// coordinator's initiate/cancel calls. The outbound side is grounded on
// the teacher's internal/cluster/agent/agent.go connection lifecycle
// (enroll once, keep talking, reconnect with backoff) adapted from its
// gRPC bidi-stream to plain bearer-token REST calls, with the retry
// shape borrowed from internal/notify's HTTP delivery notifiers.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/discoveryrun"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

var (
	_ discoveryrun.Coordinator = (*Client)(nil)
)

// Client is the agent's outbound connection to its coordinator.
type Client struct {
	baseURL  string
	apiKey   string
	agentID  string
	tenantID string
	address  string // this agent's own dialable address, sent at registration
	http     *http.Client
	log      *slog.Logger

	mu       sync.Mutex
	daemonID uuid.UUID
}

// New creates a Client for one agent's coordinator connection.
func New(baseURL, apiKey, agentID, tenantID, address string, log *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		agentID:  agentID,
		tenantID: tenantID,
		address:  address,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// CreateSubnet implements discoveryrun.Coordinator.
func (c *Client) CreateSubnet(ctx context.Context, subnet model.Subnet) (model.Subnet, error) {
	subnet.TenantID = c.tenantID
	var out model.Subnet
	err := c.postJSON(ctx, "/api/subnets", subnet, &out)
	return out, err
}

type createHostBody struct {
	Host     model.Host      `json:"host"`
	Services []model.Service `json:"services,omitempty"`
}

// CreateHost implements discoveryrun.Coordinator.
func (c *Client) CreateHost(ctx context.Context, host model.Host, services []model.Service) (model.Host, []model.Service, error) {
	var out createHostBody
	err := c.postJSON(ctx, "/api/hosts", createHostBody{Host: host, Services: services}, &out)
	return out.Host, out.Services, err
}

// UpdateCapabilities implements discoveryrun.Coordinator. It registers
// this agent with the coordinator on first use (the "enroll-once" step
// of the teacher's connection lifecycle) to learn the coordinator-
// assigned daemon id that /update-capabilities is keyed on.
func (c *Client) UpdateCapabilities(ctx context.Context, _ string, hasDockerSocket bool, subnetIDs []uuid.UUID) error {
	id, err := c.ensureRegistered(ctx, hasDockerSocket)
	if err != nil {
		return err
	}
	body := struct {
		HasDockerSocket bool        `json:"hasDockerSocket"`
		SubnetIDs       []uuid.UUID `json:"subnetIds,omitempty"`
	}{HasDockerSocket: hasDockerSocket, SubnetIDs: subnetIDs}
	return c.postJSON(ctx, fmt.Sprintf("/api/daemons/%s/update-capabilities", id), body, nil)
}

// ReportUpdate implements agentsession.Reporter.
func (c *Client) ReportUpdate(ctx context.Context, payload model.UpdatePayload) error {
	return c.postJSON(ctx, fmt.Sprintf("/api/discovery/%s/update", payload.SessionID), payload, nil)
}

// Heartbeat pings the coordinator to refresh this agent's last-seen
// time, registering first if it hasn't yet.
func (c *Client) Heartbeat(ctx context.Context) error {
	id, err := c.ensureRegistered(ctx, false)
	if err != nil {
		return err
	}
	return c.postJSON(ctx, fmt.Sprintf("/api/daemons/%s/heartbeat", id), nil, nil)
}

func (c *Client) ensureRegistered(ctx context.Context, hasDockerSocket bool) (uuid.UUID, error) {
	c.mu.Lock()
	if c.daemonID != uuid.Nil {
		id := c.daemonID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	body := struct {
		AgentID         string `json:"agentId"`
		TenantID        string `json:"tenantId"`
		Address         string `json:"address"`
		HasDockerSocket bool   `json:"hasDockerSocket"`
	}{AgentID: c.agentID, TenantID: c.tenantID, Address: c.address, HasDockerSocket: hasDockerSocket}

	var out model.Daemon
	if err := c.postJSON(ctx, "/api/daemons/register", body, &out); err != nil {
		return uuid.Nil, err
	}

	c.mu.Lock()
	c.daemonID = out.ID
	c.mu.Unlock()
	return out.ID, nil
}

// retryBackoff mirrors the teacher's reconnect backoff
// (internal/cluster/agent/agent.go): 1s, 2s, 4s, ... doubling until it
// stops growing at 16s, applied only to requests that failed to reach the coordinator at all
// (transport errors or 5xx), never to 4xx responses.
type retryBackoff struct {
	attempt int
}

func (b *retryBackoff) next() time.Duration {
	shift := b.attempt
	if shift > 4 {
		shift = 4
	}
	delay := time.Second << uint(shift)
	b.attempt++
	return delay
}

const maxAttempts = 3

// postJSON POSTs body (JSON-encoded, or no body when nil) to path and
// decodes the response into out (when non-nil). Transport errors and 5xx
// responses are retried with backoff up to maxAttempts times; if every
// attempt fails, the last error is logged and returned. A 4xx response is
// returned at once without a retry.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	backoff := &retryBackoff{}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff.next()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, respBody, err := c.doRequest(ctx, path, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 500 {
			lastErr = fmt.Errorf("coordinator returned %d", status)
			continue
		}
		if status >= 400 {
			return fmt.Errorf("coordinator rejected request (%d): %s", status, respBody)
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	if c.log != nil {
		c.log.Error("coordinator request failed after retries", "path", path, "error", lastErr)
	}
	return lastErr
}

func (c *Client) doRequest(ctx context.Context, path string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
