// Package config loads NetVisor's process-local bootstrap settings from
// environment variables: which mode to run in (coordinator or agent), how
// to reach the coordinator, the tenant/network identity an agent reports
// under, and the scan concurrency override described in spec.md §5.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Config holds NetVisor configuration read once at startup. The scan
// concurrency override is the only field mutated at runtime (an operator
// may re-tune it without a restart); it and the DHCP probe policy flag
// are the fields guarded by mu, mirroring the teacher's pattern of narrowly-scoped mutable settings
// (internal/config/config.go's pollInterval/gracePeriod fields).
type Config struct {
	// Mode selects which half of the system this process runs:
	// "coordinator" or "agent".
	Mode string

	// Coordinator-side.
	BindAddr   string
	DBPath     string
	APIKey     string // bearer token agents must present
	TenantID   string // default tenant for self-registering agents

	// Agent-side.
	AgentID         string
	CoordinatorURL  string
	DockerSock      string
	AgentBindAddr   string // where this agent listens for initiate/cancel

	// Logging / metrics.
	LogJSON        bool
	MetricsEnabled bool

	mu                sync.RWMutex
	scanConcurrency   int // 0 = derive from FD budget (spec.md §5)
	dhcpProbeAllHosts bool
}

// Load reads all configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Mode:              envStr("NETVISOR_MODE", "coordinator"),
		BindAddr:          envStr("NETVISOR_BIND_ADDR", ":8080"),
		DBPath:            envStr("NETVISOR_DB_PATH", "/data/netvisor.db"),
		APIKey:            envStr("NETVISOR_API_KEY", ""),
		TenantID:          envStr("NETVISOR_TENANT_ID", "default"),
		AgentID:           envStr("NETVISOR_AGENT_ID", ""),
		CoordinatorURL:    envStr("NETVISOR_COORDINATOR_URL", "http://localhost:8080"),
		DockerSock:        envStr("NETVISOR_DOCKER_SOCK", "/var/run/docker.sock"),
		AgentBindAddr:     envStr("NETVISOR_AGENT_BIND_ADDR", ":8090"),
		LogJSON:           envBool("NETVISOR_LOG_JSON", true),
		MetricsEnabled:    envBool("NETVISOR_METRICS", false),
		scanConcurrency:   envInt("NETVISOR_SCAN_CONCURRENCY", 0),
		dhcpProbeAllHosts: envBool("NETVISOR_DHCP_PROBE_ALL_HOSTS", false),
	}
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "coordinator", "agent":
	default:
		errs = append(errs, fmt.Errorf("NETVISOR_MODE must be coordinator or agent, got %q", c.Mode))
	}
	if c.Mode == "coordinator" && c.APIKey == "" {
		errs = append(errs, errors.New("NETVISOR_API_KEY is required in coordinator mode"))
	}
	if c.Mode == "agent" {
		if c.AgentID == "" {
			errs = append(errs, errors.New("NETVISOR_AGENT_ID is required in agent mode"))
		}
		if c.APIKey == "" {
			errs = append(errs, errors.New("NETVISOR_API_KEY is required in agent mode"))
		}
		if c.CoordinatorURL == "" {
			errs = append(errs, errors.New("NETVISOR_COORDINATOR_URL is required in agent mode"))
		}
	}
	return errors.Join(errs...)
}

// Values returns all configuration as a string map for display.
func (c *Config) Values() map[string]string {
	return map[string]string{
		"NETVISOR_MODE":               c.Mode,
		"NETVISOR_BIND_ADDR":          c.BindAddr,
		"NETVISOR_DB_PATH":            c.DBPath,
		"NETVISOR_TENANT_ID":          c.TenantID,
		"NETVISOR_AGENT_ID":           c.AgentID,
		"NETVISOR_COORDINATOR_URL":    c.CoordinatorURL,
		"NETVISOR_DOCKER_SOCK":        c.DockerSock,
		"NETVISOR_AGENT_BIND_ADDR":    c.AgentBindAddr,
		"NETVISOR_LOG_JSON":           fmt.Sprintf("%t", c.LogJSON),
		"NETVISOR_METRICS":            fmt.Sprintf("%t", c.MetricsEnabled),
		"NETVISOR_SCAN_CONCURRENCY":   fmt.Sprintf("%d", c.ScanConcurrency()),
		"NETVISOR_DHCP_PROBE_ALL_HOSTS": fmt.Sprintf("%t", c.DHCPProbeAllHosts()),
	}
}

// ScanConcurrency returns the operator-configured concurrent-host override,
// or 0 if the scanner should derive it from the FD budget (thread-safe).
func (c *Config) ScanConcurrency() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanConcurrency
}

// SetScanConcurrency updates the concurrency override at runtime.
func (c *Config) SetScanConcurrency(n int) {
	c.mu.Lock()
	c.scanConcurrency = n
	c.mu.Unlock()
}

// DHCPProbeAllHosts reports the runner-level DHCP probe policy decided in
// DESIGN.md's Open Question #3: whether to probe every host or only
// gateway candidates.
func (c *Config) DHCPProbeAllHosts() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dhcpProbeAllHosts
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

