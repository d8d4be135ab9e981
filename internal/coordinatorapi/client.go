package coordinatorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
	"github.com/Will-Luck/Docker-Sentinel/internal/sessionregistry"
)

var _ sessionregistry.AgentDispatcher = (*AgentClient)(nil)

// AgentClient is the coordinator's outbound call to an agent: issue a
// discovery start or a cancellation (spec.md §6 "Coordinator → Agent").
// It resolves an agent id to a dialable address through the same
// DaemonStore the registration endpoint populates.
type AgentClient struct {
	Daemons DaemonStore
	APIKey  string
	HTTP    *http.Client
	Log     *slog.Logger
}

// NewAgentClient creates an AgentClient with sane request timeouts.
func NewAgentClient(daemons DaemonStore, apiKey string, log *slog.Logger) *AgentClient {
	return &AgentClient{
		Daemons: daemons,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Log:     log,
	}
}

// Initiate implements sessionregistry.AgentDispatcher.
func (c *AgentClient) Initiate(ctx context.Context, def model.Definition, sessionID uuid.UUID) error {
	daemon, ok, err := c.resolve(ctx, def.AgentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("agent %s is not registered", def.AgentID)
	}

	req := model.DiscoveryRequest{SessionID: sessionID, DiscoveryType: model.DiscoveryTypeFromDefinition(def)}
	_, _, err = c.post(ctx, daemon.Address, "/api/discovery/initiate", req)
	return err
}

// Cancel implements sessionregistry.AgentDispatcher. Per spec.md §5
// "Cancellation", this returns once the request has been issued — it
// does not wait for the agent's Cancelled update.
func (c *AgentClient) Cancel(ctx context.Context, agentID string, sessionID uuid.UUID) error {
	daemon, ok, err := c.resolve(ctx, agentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("agent %s is not registered", agentID)
	}
	_, _, err = c.post(ctx, daemon.Address, "/api/discovery/cancel", sessionID)
	return err
}

func (c *AgentClient) resolve(ctx context.Context, agentID string) (model.Daemon, bool, error) {
	daemon, ok := c.Daemons.ByAgentID(ctx, agentID)
	return daemon, ok, nil
}

func (c *AgentClient) post(ctx context.Context, address, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+address+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, respBody, fmt.Errorf("agent %s returned %d: %s", address, resp.StatusCode, respBody)
	}
	return resp.StatusCode, respBody, nil
}
