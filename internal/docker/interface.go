package docker

import (
	"context"

	"github.com/moby/moby/api/types/container"
)

// API defines the subset of Docker operations NetVisor's Docker discovery
// kind needs: enumerate running containers and inspect their published
// ports/labels/networks to build Host/Service records.
type API interface {
	ListContainers(ctx context.Context) ([]container.Summary, error)
	InspectContainer(ctx context.Context, id string) (container.InspectResponse, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify Client implements API at compile time.
var _ API = (*Client)(nil)
