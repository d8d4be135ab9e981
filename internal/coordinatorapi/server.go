// Package coordinatorapi is the coordinator's external HTTP surface:
// the agent-facing submission endpoints and bearer auth from spec.md
// §6, plus the outbound client (client.go) the session registry uses to
// reach agents. Routing follows the teacher's bare http.ServeMux style
// (internal/web/server.go) rather than a router framework; the SSE
// handler is adapted from internal/web/sse.go onto eventbus's
// lag-aware subscription.
package coordinatorapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/eventbus"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// SessionRegistry is the subset of *sessionregistry.Registry the HTTP
// surface needs: apply an agent-reported update, and let the SSE
// handler subscribe to the broadcast feed.
type SessionRegistry interface {
	ApplyUpdate(ctx context.Context, update model.UpdatePayload) error
	Subscribe() *eventbus.Subscription
}

// Dependencies holds everything the coordinator's HTTP server needs,
// mirroring the teacher's internal/web.Dependencies pattern of one
// narrow interface per concern.
type Dependencies struct {
	Registry      SessionRegistry
	Hosts         HostStore
	Subnets       SubnetStore
	Services      ServiceStore
	Groups        GroupStore
	Daemons       DaemonStore
	APIKey        string
	DefaultTenant string
	Log           *slog.Logger
}

// Server is the coordinator's agent- and UI-facing HTTP API.
type Server struct {
	deps   Dependencies
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a Server ready to serve.
func NewServer(deps Dependencies) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/discovery/{session_id}/update", s.authed(s.apiUpdate))
	s.mux.HandleFunc("POST /api/hosts", s.authed(s.apiCreateHost))
	s.mux.HandleFunc("POST /api/subnets", s.authed(s.apiUpsertSubnet))
	s.mux.HandleFunc("POST /api/services", s.authed(s.apiUpsertService))
	s.mux.HandleFunc("POST /api/groups", s.authed(s.apiUpsertGroup))
	s.mux.HandleFunc("POST /api/daemons/register", s.authed(s.apiRegisterDaemon))
	s.mux.HandleFunc("POST /api/daemons/{id}/heartbeat", s.authed(s.apiDaemonHeartbeat))
	s.mux.HandleFunc("POST /api/daemons/{id}/update-capabilities", s.authed(s.apiDaemonUpdateCapabilities))
	s.mux.HandleFunc("GET /api/discovery/stream", s.authed(s.apiSSE))
}

// authed requires the shared bearer API key on every request, per
// spec.md §6 "All requests carry Authorization: Bearer <api-key>".
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

// tenantOf returns the submitted tenant id, falling back to the
// coordinator's default for single-tenant deployments.
func (s *Server) tenantOf(submitted string) string {
	if submitted != "" {
		return submitted
	}
	return s.deps.DefaultTenant
}

func (s *Server) apiUpdate(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	var update model.UpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	update.SessionID = sessionID

	if err := s.deps.Registry.ApplyUpdate(r.Context(), update); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, update)
}

type createHostRequest struct {
	Host     model.Host      `json:"host"`
	Services []model.Service `json:"services,omitempty"`
}

func (s *Server) apiCreateHost(w http.ResponseWriter, r *http.Request) {
	var req createHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	host, services, err := s.deps.Hosts.UpsertHost(r.Context(), s.tenantOf(""), req.Host, req.Services)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, createHostRequest{Host: host, Services: services})
}

func (s *Server) apiUpsertSubnet(w http.ResponseWriter, r *http.Request) {
	var subnet model.Subnet
	if err := json.NewDecoder(r.Body).Decode(&subnet); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.deps.Subnets.UpsertSubnet(r.Context(), s.tenantOf(subnet.TenantID), subnet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) apiUpsertService(w http.ResponseWriter, r *http.Request) {
	var svc model.Service
	if err := json.NewDecoder(r.Body).Decode(&svc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.deps.Services.UpsertService(r.Context(), s.tenantOf(""), svc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) apiUpsertGroup(w http.ResponseWriter, r *http.Request) {
	var g model.Group
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.deps.Groups.UpsertGroup(r.Context(), s.tenantOf(g.TenantID), g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, created)
}

type registerDaemonRequest struct {
	AgentID         string `json:"agentId"`
	TenantID        string `json:"tenantId,omitempty"`
	Address         string `json:"address"`
	HasDockerSocket bool   `json:"hasDockerSocket"`
}

func (s *Server) apiRegisterDaemon(w http.ResponseWriter, r *http.Request) {
	var req registerDaemonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "agentId and address are required")
		return
	}
	d, err := s.deps.Daemons.Register(r.Context(), model.Daemon{
		TenantID:        s.tenantOf(req.TenantID),
		AgentID:         req.AgentID,
		Address:         req.Address,
		HasDockerSocket: req.HasDockerSocket,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) apiDaemonHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid daemon id")
		return
	}
	if err := s.deps.Daemons.Heartbeat(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type updateCapabilitiesRequest struct {
	HasDockerSocket bool        `json:"hasDockerSocket"`
	SubnetIDs       []uuid.UUID `json:"subnetIds,omitempty"`
}

func (s *Server) apiDaemonUpdateCapabilities(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid daemon id")
		return
	}
	var req updateCapabilitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Daemons.UpdateCapabilities(r.Context(), id, req.HasDockerSocket, req.SubnetIDs); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe starts the coordinator HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the SSE stream must not be write-deadlined
		IdleTimeout:  120 * time.Second,
	}
	if s.deps.Log != nil {
		s.deps.Log.Info("coordinator api listening", "addr", addr)
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the coordinator HTTP server.
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
