package coordinatorapi

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// HostStore persists reported hosts. Implemented in-memory here; a real
// deployment would back this with a database, which spec.md §1 places
// out of scope — the same interface-for-injection role the teacher's
// store.Store played for internal/web.
type HostStore interface {
	UpsertHost(ctx context.Context, tenantID string, host model.Host, services []model.Service) (model.Host, []model.Service, error)
}

// SubnetStore persists reported subnets and applies the upsert/merge
// rule from spec.md §6 "Subnet upsert rule".
type SubnetStore interface {
	UpsertSubnet(ctx context.Context, tenantID string, subnet model.Subnet) (model.Subnet, error)
}

// ServiceStore persists classified services independent of their host
// submission, for the standalone POST /api/services upsert path.
type ServiceStore interface {
	UpsertService(ctx context.Context, tenantID string, svc model.Service) (model.Service, error)
}

// GroupStore persists named groups of service bindings.
type GroupStore interface {
	UpsertGroup(ctx context.Context, tenantID string, g model.Group) (model.Group, error)
}

// DaemonStore tracks registered agents and where the coordinator can
// reach each one to issue initiate/cancel calls.
type DaemonStore interface {
	Register(ctx context.Context, d model.Daemon) (model.Daemon, error)
	Heartbeat(ctx context.Context, id uuid.UUID) error
	UpdateCapabilities(ctx context.Context, id uuid.UUID, hasDockerSocket bool, subnetIDs []uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (model.Daemon, bool)
	ByAgentID(ctx context.Context, agentID string) (model.Daemon, bool)
}

// MemoryStore is the in-process reference implementation of every store
// interface above, mirroring sessionregistry.MemoryArchiver's role: good
// enough to exercise and test the full request path without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	hosts       map[uuid.UUID]model.Host
	services    map[uuid.UUID]model.Service
	subnets     map[uuid.UUID]model.Subnet
	groups      map[uuid.UUID]model.Group
	daemons     map[uuid.UUID]model.Daemon
	definitions map[uuid.UUID]model.Definition
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hosts:       make(map[uuid.UUID]model.Host),
		services:    make(map[uuid.UUID]model.Service),
		subnets:     make(map[uuid.UUID]model.Subnet),
		groups:      make(map[uuid.UUID]model.Group),
		daemons:     make(map[uuid.UUID]model.Daemon),
		definitions: make(map[uuid.UUID]model.Definition),
	}
}

// Save implements scheduler.DefinitionStore (structurally — this store
// has no import-time dependency on the scheduler package).
func (m *MemoryStore) Save(_ context.Context, def model.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	m.definitions[def.ID] = def
	return nil
}

// Delete implements scheduler.DefinitionStore.
func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.definitions, id)
	return nil
}

// List implements scheduler.DefinitionStore.
func (m *MemoryStore) List(_ context.Context) ([]model.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Definition, 0, len(m.definitions))
	for _, def := range m.definitions {
		out = append(out, def)
	}
	return out, nil
}

// UpsertHost stores host and its services, assigning an id if the
// submitter didn't already provide one.
func (m *MemoryStore) UpsertHost(_ context.Context, _ string, host model.Host, services []model.Service) (model.Host, []model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if host.ID == uuid.Nil {
		host.ID = uuid.New()
	}
	for i := range services {
		if services[i].ID == uuid.Nil {
			services[i].ID = uuid.New()
		}
		m.services[services[i].ID] = services[i]
	}
	m.hosts[host.ID] = host
	return host, services, nil
}

// UpsertSubnet applies spec.md §6's merge rule: an existing subnet with
// the same tenant+CIDR is returned as-is, unless both the candidate and
// the existing record are Docker-originated from different source
// hosts, in which case Docker bridges sharing a CIDR are treated as
// distinct networks and a new subnet is created.
func (m *MemoryStore) UpsertSubnet(_ context.Context, tenantID string, subnet model.Subnet) (model.Subnet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.subnets {
		if existing.TenantID != tenantID || existing.CIDR != subnet.CIDR {
			continue
		}
		if subnet.FromDocker && existing.FromDocker && existing.SourceHostID != subnet.SourceHostID {
			continue
		}
		return existing, nil
	}

	subnet.TenantID = tenantID
	if subnet.ID == uuid.Nil {
		subnet.ID = uuid.New()
	}
	m.subnets[subnet.ID] = subnet
	return subnet, nil
}

// UpsertService stores svc standalone, assigning an id if absent.
func (m *MemoryStore) UpsertService(_ context.Context, _ string, svc model.Service) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	m.services[svc.ID] = svc
	return svc, nil
}

// UpsertGroup stores g, assigning an id if absent.
func (m *MemoryStore) UpsertGroup(_ context.Context, tenantID string, g model.Group) (model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g.TenantID = tenantID
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	m.groups[g.ID] = g
	return g, nil
}

// Register records a newly-started (or restarted) agent, keyed by its
// stable AgentID rather than a fresh id each time it reconnects.
func (m *MemoryStore) Register(_ context.Context, d model.Daemon) (model.Daemon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.daemons {
		if existing.AgentID == d.AgentID {
			d.ID = existing.ID
			break
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.LastHeartbeat = time.Now()
	m.daemons[d.ID] = d
	return d, nil
}

// Heartbeat bumps the last-seen time for a registered daemon.
func (m *MemoryStore) Heartbeat(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.daemons[id]
	if !ok {
		return errDaemonNotFound(id)
	}
	d.LastHeartbeat = time.Now()
	m.daemons[id] = d
	return nil
}

// UpdateCapabilities records what an agent last reported about itself:
// whether it can see a Docker socket and which subnets its interfaces
// touch (spec.md §6 "update-capabilities").
func (m *MemoryStore) UpdateCapabilities(_ context.Context, id uuid.UUID, hasDockerSocket bool, subnetIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.daemons[id]
	if !ok {
		return errDaemonNotFound(id)
	}
	d.HasDockerSocket = hasDockerSocket
	d.InterfaceSubnetIDs = subnetIDs
	m.daemons[id] = d
	return nil
}

// Get returns a daemon by its coordinator-assigned id.
func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (model.Daemon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.daemons[id]
	return d, ok
}

// ByAgentID looks up a daemon by the stable agent identity it registered
// under, which is how the outbound dispatcher resolves an agent id from
// a discovery definition into a dialable address.
func (m *MemoryStore) ByAgentID(_ context.Context, agentID string) (model.Daemon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.daemons {
		if d.AgentID == agentID {
			return d, true
		}
	}
	return model.Daemon{}, false
}

func errDaemonNotFound(id uuid.UUID) error {
	return &daemonNotFoundError{id: id}
}

type daemonNotFoundError struct{ id uuid.UUID }

func (e *daemonNotFoundError) Error() string {
	return "daemon " + e.id.String() + " not found"
}
