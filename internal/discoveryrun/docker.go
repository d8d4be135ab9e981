package discoveryrun

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/moby/moby/api/types/container"

	"github.com/Will-Luck/Docker-Sentinel/internal/agentsession"
	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
	"github.com/Will-Luck/Docker-Sentinel/internal/classifier"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// DockerAPI is the subset of internal/docker.API this runner needs.
// Declared locally so discoveryrun doesn't depend on the docker package's
// connection-construction concerns, only its data shape.
type DockerAPI interface {
	ListContainers(ctx context.Context) ([]container.Summary, error)
	InspectContainer(ctx context.Context, id string) (container.InspectResponse, error)
}

// Docker is the discovery runner that enumerates local containers,
// binding each container's published and network ports as services on
// a host record of its own (one host per container), with one
// synthesized subnet per Docker network seen (spec.md §4 diagram
// "Docker").
type Docker struct {
	Client         DockerAPI
	Coordinator    Coordinator
	Registry       *classifier.Registry
	AgentID        string
	TenantID       string
	HostID         uuid.UUID
	NamingFallback model.HostNamingFallback
}

var _ agentsession.Runner = (*Docker)(nil)

// Run implements agentsession.Runner.
func (r *Docker) Run(token *cancel.Token, progress *agentsession.Progress) error {
	ctx := progress.Context()

	containers, err := r.Client.ListContainers(ctx)
	if err != nil {
		progress.Fail(fmt.Sprintf("list containers: %v", err))
		return err
	}
	progress.SetTotal(len(containers))
	if len(containers) == 0 {
		progress.Complete()
		return nil
	}

	bridges := make(map[string]model.Subnet) // network id -> synthesized subnet
	type containerEvidence struct {
		candidate classifier.HostCandidate
	}
	var evidence []containerEvidence

	processed := 0
	for _, c := range containers {
		if token.Cancelled() {
			progress.Cancelled()
			return nil
		}

		inspect, err := r.Client.InspectContainer(ctx, c.ID)
		if err != nil {
			processed++
			progress.Advance(processed)
			continue
		}

		candidate := classifier.HostCandidate{
			OpenPorts:      containerPorts(c),
			Hostname:       containerName(c),
			Virtualization: &model.VirtualizationContext{Docker: &model.DockerContext{ContainerID: c.ID, ContainerName: containerName(c)}},
		}

		if inspect.NetworkSettings != nil {
			for netName, ep := range inspect.NetworkSettings.Networks {
				if ep == nil || ep.IPAddress == "" {
					continue
				}
				subnet := bridgeSubnet(bridges, netName, r.TenantID, r.AgentID)
				bridges[netName] = subnet
				candidate.Subnet = subnet
				candidate.Interface = model.Interface{
					ID:       uuid.New(),
					IP:       ep.IPAddress,
					SubnetID: &subnet.ID,
					MAC:      ep.MacAddress,
				}
				break
			}
		}

		evidence = append(evidence, containerEvidence{candidate: candidate})
		processed++
		progress.Advance(processed)
	}

	for netName, subnet := range bridges {
		created, err := r.Coordinator.CreateSubnet(ctx, subnet)
		if err != nil {
			progress.Fail(fmt.Sprintf("submit docker subnet %s: %v", netName, err))
			return err
		}
		bridges[netName] = created
	}

	for _, ev := range evidence {
		if ev.candidate.Interface.SubnetID != nil {
			for _, subnet := range bridges {
				if ev.candidate.Subnet.CIDR == "" {
					continue
				}
				if subnet.CIDR == ev.candidate.Subnet.CIDR {
					id := subnet.ID
					ev.candidate.Subnet = subnet
					ev.candidate.Interface.SubnetID = &id
				}
			}
		}

		classified := classifier.ClassifyHost(r.Registry, progress.SessionID(), ev.candidate, r.NamingFallback)

		host := model.Host{
			ID:        uuid.New(),
			Name:      classified.HostName,
			OpenPorts: classified.UnboundPorts,
			Target:    classified.Target,
		}
		if ev.candidate.Interface.ID != uuid.Nil {
			host.Interfaces = []model.Interface{ev.candidate.Interface}
		}
		for _, svc := range classified.Services {
			host.ServiceIDs = append(host.ServiceIDs, svc.ID)
		}

		if _, _, err := r.Coordinator.CreateHost(ctx, host, classified.Services); err != nil {
			progress.Fail(fmt.Sprintf("submit container host: %v", err))
			return err
		}
	}

	progress.Complete()
	return nil
}

// bridgeSubnet returns the synthesized Docker-bridge subnet for a given
// Docker network name, creating one lazily if this is the first
// container seen on it this run.
func bridgeSubnet(existing map[string]model.Subnet, netName, tenantID, agentID string) model.Subnet {
	if s, ok := existing[netName]; ok {
		return s
	}
	return model.Subnet{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Type:         model.SubnetDockerBridge,
		SourceHostID: agentID,
		FromDocker:   true,
	}
}

func containerName(c container.Summary) string {
	if len(c.Names) > 0 {
		name := c.Names[0]
		if len(name) > 0 && name[0] == '/' {
			return name[1:]
		}
		return name
	}
	return c.ID
}

func containerPorts(c container.Summary) []model.Port {
	seen := make(map[model.Port]bool)
	var out []model.Port
	for _, p := range c.Ports {
		if p.PrivatePort == 0 {
			continue
		}
		transport := model.TransportTCP
		if p.Type == "udp" {
			transport = model.TransportUDP
		}
		port := model.Port{Number: int(p.PrivatePort), Transport: transport}
		if seen[port] {
			continue
		}
		seen[port] = true
		out = append(out, port)
	}
	return out
}
