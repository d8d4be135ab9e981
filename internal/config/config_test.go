package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"NETVISOR_MODE", "NETVISOR_BIND_ADDR", "NETVISOR_DB_PATH",
		"NETVISOR_API_KEY", "NETVISOR_TENANT_ID", "NETVISOR_AGENT_ID",
		"NETVISOR_COORDINATOR_URL", "NETVISOR_LOG_JSON",
	} {
		os.Unsetenv(k)
	}

	cfg := Load()
	if cfg.Mode != "coordinator" {
		t.Errorf("Mode = %q, want coordinator", cfg.Mode)
	}
	if cfg.BindAddr != ":8080" {
		t.Errorf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.TenantID != "default" {
		t.Errorf("TenantID = %q, want default", cfg.TenantID)
	}
	if !cfg.LogJSON {
		t.Error("LogJSON = false, want true")
	}
	if cfg.ScanConcurrency() != 0 {
		t.Errorf("ScanConcurrency = %d, want 0 (derive from FD budget)", cfg.ScanConcurrency())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NETVISOR_MODE", "agent")
	t.Setenv("NETVISOR_AGENT_ID", "agent-1")
	t.Setenv("NETVISOR_API_KEY", "secret")
	t.Setenv("NETVISOR_SCAN_CONCURRENCY", "20")
	t.Setenv("NETVISOR_LOG_JSON", "false")

	cfg := Load()
	if cfg.Mode != "agent" {
		t.Errorf("Mode = %q, want agent", cfg.Mode)
	}
	if cfg.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", cfg.AgentID)
	}
	if cfg.ScanConcurrency() != 20 {
		t.Errorf("ScanConcurrency = %d, want 20", cfg.ScanConcurrency())
	}
	if cfg.LogJSON {
		t.Error("LogJSON = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"valid coordinator", &Config{Mode: "coordinator", APIKey: "k"}, false},
		{"coordinator missing api key", &Config{Mode: "coordinator"}, true},
		{"valid agent", &Config{Mode: "agent", AgentID: "a", APIKey: "k", CoordinatorURL: "http://x"}, false},
		{"agent missing id", &Config{Mode: "agent", APIKey: "k", CoordinatorURL: "http://x"}, true},
		{"agent missing coordinator url", &Config{Mode: "agent", AgentID: "a", APIKey: "k"}, true},
		{"invalid mode", &Config{Mode: "bogus"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvStr(t *testing.T) {
	const key = "NV_TEST_ENV_STR"
	t.Setenv(key, "custom")

	if got := envStr(key, "default"); got != "custom" {
		t.Errorf("got %q, want %q", got, "custom")
	}
	if got := envStr("NV_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}
}

func TestEnvInt(t *testing.T) {
	const key = "NV_TEST_ENV_INT"

	t.Setenv(key, "42")
	if got := envInt(key, 0); got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	t.Setenv(key, "notanumber")
	if got := envInt(key, 99); got != 99 {
		t.Errorf("got %d, want 99 (default on parse failure)", got)
	}
}

func TestEnvBool(t *testing.T) {
	const key = "NV_TEST_ENV_BOOL"

	t.Setenv(key, "true")
	if got := envBool(key, false); !got {
		t.Errorf("got false, want true")
	}

	t.Setenv(key, "invalid")
	if got := envBool(key, true); !got {
		t.Errorf("got false, want true (default on parse failure)")
	}
}

func TestSetScanConcurrency(t *testing.T) {
	cfg := &Config{}
	cfg.SetScanConcurrency(12)
	if got := cfg.ScanConcurrency(); got != 12 {
		t.Errorf("ScanConcurrency = %d, want 12", got)
	}
}
