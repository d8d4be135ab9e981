package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/Will-Luck/Docker-Sentinel/internal/agentclient"
	"github.com/Will-Luck/Docker-Sentinel/internal/agentsession"
	"github.com/Will-Luck/Docker-Sentinel/internal/classifier"
	"github.com/Will-Luck/Docker-Sentinel/internal/clock"
	"github.com/Will-Luck/Docker-Sentinel/internal/config"
	"github.com/Will-Luck/Docker-Sentinel/internal/coordinatorapi"
	"github.com/Will-Luck/Docker-Sentinel/internal/discoveryrun"
	"github.com/Will-Luck/Docker-Sentinel/internal/docker"
	"github.com/Will-Luck/Docker-Sentinel/internal/eventbus"
	"github.com/Will-Luck/Docker-Sentinel/internal/logging"
	"github.com/Will-Luck/Docker-Sentinel/internal/model"
	"github.com/Will-Luck/Docker-Sentinel/internal/netinfo"
	"github.com/Will-Luck/Docker-Sentinel/internal/scanner"
	"github.com/Will-Luck/Docker-Sentinel/internal/scheduler"
	"github.com/Will-Luck/Docker-Sentinel/internal/sessionregistry"
)

// version and commit are set at build time via ldflags:
//
//	-X main.version=$(VERSION) -X main.commit=$(COMMIT)
var version = "dev"
var commit = "unknown"

func versionString() string {
	if commit != "" && commit != "unknown" {
		return version + " (" + commit + ")"
	}
	return version
}

func main() {
	// Subcommand dispatch: "sentinel coordinator" or "sentinel agent".
	// Bare "sentinel" defaults to NETVISOR_MODE (coordinator by default).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "coordinator", "agent":
			os.Setenv("NETVISOR_MODE", os.Args[1])
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	fmt.Println("NetVisor " + versionString())
	fmt.Printf("Mode: %s\n", cfg.Mode)
	fmt.Println("=============================================")

	if cfg.Mode == "agent" {
		runAgent(ctx, cfg, log)
		return
	}
	runCoordinator(ctx, cfg, log)
}

// runCoordinator starts NetVisor's coordinator half: the agent-facing
// submission API, the in-process session registry, and the cron
// scheduler that fires scheduled discovery definitions (spec.md §4.4).
func runCoordinator(ctx context.Context, cfg *config.Config, log *logging.Logger) {
	bus := eventbus.New()
	daemons := coordinatorapi.NewMemoryStore()
	dispatcher := coordinatorapi.NewAgentClient(daemons, cfg.APIKey, log.Logger)
	archiver := sessionregistry.NewMemoryArchiver()
	registry := sessionregistry.New(dispatcher, archiver, bus, log)

	sched := scheduler.New(daemons, registry, clock.Real{}, log)
	if err := sched.Load(ctx); err != nil {
		log.Error("failed to load discovery definitions", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := coordinatorapi.NewServer(coordinatorapi.Dependencies{
		Registry:      registry,
		Hosts:         daemons,
		Subnets:       daemons,
		Services:      daemons,
		Groups:        daemons,
		Daemons:       daemons,
		APIKey:        cfg.APIKey,
		DefaultTenant: cfg.TenantID,
		Log:           log.Logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := net.JoinHostPort("", "9090")
		metricsSrv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = metricsSrv.Shutdown(context.Background())
		}()
		if cfg.MetricsEnabled {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", "error", err)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("coordinator started", "addr", cfg.BindAddr, "version", version, "commit", commit)
	if err := srv.ListenAndServe(cfg.BindAddr); err != nil && err != http.ErrServerClosed {
		log.Error("coordinator exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("coordinator shutdown complete")
}

// runAgent starts NetVisor's agent half: the inbound initiate/cancel API
// a coordinator drives, and the outbound client it reports results and
// heartbeats through (spec.md §4 "Coordinator/Agent split").
func runAgent(ctx context.Context, cfg *config.Config, log *logging.Logger) {
	fmt.Printf("NETVISOR_AGENT_ID=%s\n", cfg.AgentID)
	fmt.Printf("NETVISOR_COORDINATOR_URL=%s\n", cfg.CoordinatorURL)

	topo := netinfo.NewClient()
	registry := classifier.NewRegistry(classifier.DefaultDefinitions())

	dockerClient, dockerErr := docker.NewClient(cfg.DockerSock, nil)
	hasDockerSocket := dockerErr == nil
	if dockerErr != nil {
		log.Warn("docker socket unavailable, Docker discovery disabled", "error", dockerErr)
	}

	client := agentclient.New(cfg.CoordinatorURL, cfg.APIKey, cfg.AgentID, cfg.TenantID, agentAddress(cfg), log.Logger)
	guard := agentsession.NewGuard()

	build := func(dt model.DiscoveryType) (agentsession.Runner, error) {
		switch req := dt.(type) {
		case model.SelfReportRequest:
			return &discoveryrun.SelfReport{
				Topology:       topo,
				Coordinator:    client,
				Registry:       registry,
				AgentID:        cfg.AgentID,
				TenantID:       cfg.TenantID,
				NamingFallback: model.FallbackBestService,
				ScanBudget:     func() scanner.Budget { return scanner.CurrentBudget(cfg.ScanConcurrency()) },
				DHCPPolicy:     dhcpPolicy(cfg),
			}, nil
		case model.NetworkRequest:
			return &discoveryrun.Network{
				Topology:       topo,
				Coordinator:    client,
				Registry:       registry,
				AgentID:        cfg.AgentID,
				TenantID:       cfg.TenantID,
				NamingFallback: req.HostNamingFallback,
				ScanBudget:     func() scanner.Budget { return scanner.CurrentBudget(cfg.ScanConcurrency()) },
				DHCPPolicy:     dhcpPolicy(cfg),
				Log:            log.Logger,
				SubnetIDs:      req.SubnetIDs,
			}, nil
		case model.DockerRequest:
			if !hasDockerSocket {
				return nil, fmt.Errorf("docker socket unavailable on this agent")
			}
			return &discoveryrun.Docker{
				Client:         dockerClient,
				Coordinator:    client,
				Registry:       registry,
				AgentID:        cfg.AgentID,
				TenantID:       cfg.TenantID,
				NamingFallback: req.HostNamingFallback,
			}, nil
		default:
			return nil, fmt.Errorf("unsupported discovery type %T", dt)
		}
	}

	srv := agentclient.NewServer(agentclient.Dependencies{
		Guard:    guard,
		Reporter: client,
		Build:    build,
		AgentID:  cfg.AgentID,
		TenantID: cfg.TenantID,
		APIKey:   cfg.APIKey,
		Log:      log.Logger,
	})

	if err := client.UpdateCapabilities(ctx, cfg.AgentID, hasDockerSocket, nil); err != nil {
		log.Warn("initial capability registration failed, will retry on next heartbeat", "error", err)
	}

	heartbeat := cron.New()
	if _, err := heartbeat.AddFunc("@every 30s", func() {
		if err := client.Heartbeat(ctx); err != nil {
			log.Warn("heartbeat failed", "error", err)
		}
	}); err != nil {
		log.Error("failed to schedule heartbeat", "error", err)
	}
	heartbeat.Start()
	defer func() { <-heartbeat.Stop().Done() }()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("agent started", "agentId", cfg.AgentID, "version", version, "commit", commit)
	if err := srv.ListenAndServe(cfg.AgentBindAddr); err != nil && err != http.ErrServerClosed {
		log.Error("agent exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("agent shutdown complete")
}

// agentAddress returns the host:port this agent registers with the
// coordinator as its dialable address, derived from its own bind addr:
// if NETVISOR_AGENT_BIND_ADDR has no host part (the usual ":8090" form),
// the process's own hostname fills it in.
func agentAddress(cfg *config.Config) string {
	host, port, err := net.SplitHostPort(cfg.AgentBindAddr)
	if err != nil {
		return cfg.AgentBindAddr
	}
	if host != "" {
		return cfg.AgentBindAddr
	}
	hostname, hostErr := os.Hostname()
	if hostErr != nil {
		hostname = cfg.AgentID
	}
	return net.JoinHostPort(hostname, port)
}

func dhcpPolicy(cfg *config.Config) scanner.DHCPPolicy {
	if cfg.DHCPProbeAllHosts() {
		return scanner.DHCPProbeAllHosts
	}
	return scanner.DHCPProbeGatewaysOnly
}
