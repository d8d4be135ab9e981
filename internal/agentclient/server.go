package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/agentsession"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// RunnerFactory builds the discovery runner a DiscoveryType names. The
// concrete wiring (which netinfo.Client, docker.API, classifier.Registry,
// and scan budget to close over) lives with the process entrypoint that
// has all of those dependencies in hand.
type RunnerFactory func(discoveryType model.DiscoveryType) (agentsession.Runner, error)

// Dependencies holds what the agent's inbound HTTP server needs to
// accept a coordinator-issued initiate/cancel call.
type Dependencies struct {
	Guard    *agentsession.Guard
	Reporter agentsession.Reporter
	Build    RunnerFactory
	AgentID  string
	TenantID string
	APIKey   string
	Log      *slog.Logger
}

// Server is the agent's inbound HTTP API: the two endpoints a
// coordinator calls to start or cancel a discovery session (spec.md §6
// "Coordinator → Agent"). Routing mirrors coordinatorapi.Server's bare
// http.ServeMux style.
type Server struct {
	deps   Dependencies
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a Server ready to serve.
func NewServer(deps Dependencies) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/discovery/initiate", s.authed(s.handleInitiate))
	s.mux.HandleFunc("POST /api/discovery/cancel", s.authed(s.handleCancel))
	return s
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" || token != s.deps.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		h(w, r)
	}
}

func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) || authHeader[:len(prefix)] != prefix {
		return ""
	}
	return authHeader[len(prefix):]
}

// handleInitiate implements POST /api/discovery/initiate: it rotates in
// a fresh session under the agent's guard (cancelling whatever was
// running before, per spec.md §4.3) and drives the matching runner on
// its own goroutine so the HTTP response returns immediately.
func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req model.DiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := kindOf(req.DiscoveryType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runner, err := s.deps.Build(req.DiscoveryType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, token := s.deps.Guard.StartSessionWithID(req.SessionID, s.deps.AgentID, s.deps.TenantID, kind)
	progress := agentsession.NewProgress(context.Background(), s.deps.Reporter, s.deps.Guard, session, 0)
	if err := progress.Phase(model.PhaseStarted); err != nil && s.deps.Log != nil {
		s.deps.Log.Warn("session start transition failed", "session", session.ID, "error", err)
	}

	go func() {
		defer s.deps.Guard.Clear(session.ID)
		if err := runner.Run(token, progress); err != nil && s.deps.Log != nil {
			s.deps.Log.Error("discovery run failed", "session", session.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]uuid.UUID{"sessionId": req.SessionID})
}

// handleCancel implements POST /api/discovery/cancel: signal the active
// session's token if it matches, returning the id either way (spec.md
// §6 "POST /api/discovery/cancel body UUID → UUID").
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var sessionID uuid.UUID
	if err := json.NewDecoder(r.Body).Decode(&sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if active, ok := s.deps.Guard.Active(); ok && active.ID == sessionID {
		s.deps.Guard.Cancel()
	}
	writeJSON(w, http.StatusOK, sessionID)
}

func kindOf(dt model.DiscoveryType) (model.Kind, error) {
	switch dt.(type) {
	case model.SelfReportRequest:
		return model.KindSelfReport, nil
	case model.NetworkRequest:
		return model.KindNetwork, nil
	case model.DockerRequest:
		return model.KindDocker, nil
	default:
		return "", fmt.Errorf("unknown discovery type %T", dt)
	}
}

// ListenAndServe starts the agent's inbound HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if s.deps.Log != nil {
		s.deps.Log.Info("agent api listening", "addr", addr)
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the agent's inbound HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
