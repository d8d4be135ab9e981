package model

import (
	"strconv"

	"github.com/google/uuid"
)

// Transport is the L4 protocol a Port was probed over.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

// Port identity is (number, transport) per spec.md §3.
type Port struct {
	Number    int       `json:"number"`
	Transport Transport `json:"transport"`
}

// Less orders ports by (number, transport) for the final sort/dedupe step
// required by spec.md §4.1 "Post-processing" and §8's sortedness invariant.
func (p Port) Less(o Port) bool {
	if p.Number != o.Number {
		return p.Number < o.Number
	}
	return p.Transport < o.Transport
}

// SubnetType classifies a subnet for SubnetIsType pattern matching and
// for skipping Docker-bridge subnets during network scans.
type SubnetType string

const (
	SubnetPhysical     SubnetType = "physical"
	SubnetVPN          SubnetType = "vpn"
	SubnetDockerBridge SubnetType = "docker_bridge"
)

// Subnet is a reported CIDR, optionally typed.
type Subnet struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    string     `json:"tenantId"`
	CIDR        string     `json:"cidr"`
	Type        SubnetType `json:"type,omitempty"`
	SourceHostID string    `json:"sourceHostId,omitempty"`
	FromDocker  bool       `json:"fromDocker,omitempty"`
}

// Interface binds an IP to a subnet, with an optional MAC.
type Interface struct {
	ID       uuid.UUID  `json:"id"`
	IP       string     `json:"ip"`
	SubnetID *uuid.UUID `json:"subnetId,omitempty"`
	MAC      string     `json:"mac,omitempty"`
}

// Target is how other systems should address a host: by hostname, by a
// specific interface IP, or by a particular service binding.
type TargetKind string

const (
	TargetNone            TargetKind = ""
	TargetHostname         TargetKind = "hostname"
	TargetIP               TargetKind = "ip"
	TargetServiceBinding   TargetKind = "service_binding"
)

// Target resolves how to reach a Host.
type Target struct {
	Kind      TargetKind `json:"kind"`
	Value     string     `json:"value,omitempty"`
	ServiceID *uuid.UUID `json:"serviceId,omitempty"`
	BindingID string     `json:"bindingId,omitempty"`
}

// Host is a reported entity: interfaces, unclaimed ports, bound services.
type Host struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name,omitempty"`
	Interfaces []Interface `json:"interfaces"`
	OpenPorts  []Port      `json:"openPorts"`
	ServiceIDs []uuid.UUID `json:"serviceIds"`
	Target     Target      `json:"target"`
}

// BindingKind distinguishes an interface-only binding from a port binding.
type BindingKind string

const (
	BindingInterfaceOnly BindingKind = "interface_only"
	BindingPort          BindingKind = "port"
)

// Binding associates a service with either an interface, or a port plus
// an optional interface. Identity is deterministic within a service: the
// same (kind, port, interface) always yields the same ID.
type Binding struct {
	ID          string      `json:"id"`
	Kind        BindingKind `json:"kind"`
	InterfaceID *uuid.UUID  `json:"interfaceId,omitempty"`
	Port        *Port       `json:"port,omitempty"`
	ViaEndpoint bool        `json:"viaEndpoint,omitempty"`
}

// BindingID computes the deterministic identity for a binding.
func BindingID(kind BindingKind, ifaceID *uuid.UUID, port *Port) string {
	ifaceStr := "-"
	if ifaceID != nil {
		ifaceStr = ifaceID.String()
	}
	portStr := "-"
	if port != nil {
		portStr = string(port.Transport) + ":" + strconv.Itoa(port.Number)
	}
	return string(kind) + "|" + ifaceStr + "|" + portStr
}

// VirtualizationContext carries container-level provenance, e.g. Docker.
type VirtualizationContext struct {
	Docker *DockerContext `json:"docker,omitempty"`
}

// DockerContext identifies the container a service runs inside.
type DockerContext struct {
	ContainerID   string `json:"containerId"`
	ContainerName string `json:"containerName,omitempty"`
}

// Source records how and from what evidence a service was classified.
type Source struct {
	DiscoverySessionID uuid.UUID `json:"discoverySessionId"`
	Reason              string    `json:"reason"`
	Confidence          Confidence `json:"confidence"`
}

// Service is a classified product bound to a host's ports/interfaces.
type Service struct {
	ID             uuid.UUID              `json:"id"`
	DefinitionID   string                 `json:"definitionId"`
	DisplayName    string                 `json:"displayName"`
	Bindings       []Binding              `json:"bindings"`
	Source         Source                 `json:"source"`
	Virtualization *VirtualizationContext `json:"virtualization,omitempty"`
	HasLogo        bool                   `json:"hasLogo,omitempty"`
}
