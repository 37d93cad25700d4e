package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadCreatesDefault(t *testing.T) {
	t.Setenv(EnvEnvironment, "")
	t.Setenv(EnvRPCToken, "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	if cfg.DBBackend != "leveldb" || cfg.ChainID != DefaultChainID {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RPCAddress != cfg.RPCAddress || reloaded.EngineAddress != cfg.EngineAddress {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
	engine, err := reloaded.Engine()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if engine != common.HexToAddress(DefaultEngineAddress) {
		t.Fatalf("unexpected engine %s", engine.Hex())
	}
}

func TestLoadParsesSections(t *testing.T) {
	t.Setenv(EnvEnvironment, "")
	t.Setenv(EnvRPCToken, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
DBBackend = "bolt"
GenesisFile = "genesis.json"
ChainID = 42
EngineAddress = "0x00000000000000000000000000000000000e0001"

[rpc]
RateLimitPerSecond = 5.0
AuthToken = "file-token"

[logging]
File = "node.log"

[telemetry]
Endpoint = "collector:4318"
Headers = "x-tenant=rm"
Traces = true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != "bolt" || cfg.ChainID != 42 || cfg.GenesisFile != "genesis.json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RPC.RateLimitBurst != 10 {
		t.Fatalf("expected derived burst 10, got %d", cfg.RPC.RateLimitBurst)
	}
	if cfg.RPC.ReadTimeoutSecs != 15 || cfg.RPC.MaxBodyBytes != 1<<20 {
		t.Fatalf("rpc defaults not applied: %+v", cfg.RPC)
	}
	if cfg.Logging.MaxSizeMB != 100 {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Endpoint != "collector:4318" {
		t.Fatalf("unexpected telemetry: %+v", cfg.Telemetry)
	}
	if cfg.Environment != "local" || cfg.RPC.AuthToken != "file-token" {
		t.Fatalf("unexpected env/token: %q %q", cfg.Environment, cfg.RPC.AuthToken)
	}
	if got := cfg.IndexPath(); got != filepath.Join("./data", "events.db") {
		t.Fatalf("unexpected index path %q", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Setenv(EnvEnvironment, "staging")
	t.Setenv(EnvRPCToken, "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "staging" || cfg.RPC.AuthToken != "env-token" {
		t.Fatalf("env overrides not applied: %q %q", cfg.Environment, cfg.RPC.AuthToken)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("RPCAddress = \":1\"\nValidatorKey = \"abc\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"empty rpc":      func(c *Config) { c.RPCAddress = "" },
		"bad backend":    func(c *Config) { c.DBBackend = "postgres" },
		"zero chain":     func(c *Config) { c.ChainID = 0 },
		"bad engine":     func(c *Config) { c.EngineAddress = "0x1234" },
		"zero engine":    func(c *Config) { c.EngineAddress = "0x0000000000000000000000000000000000000000" },
		"negative rate":  func(c *Config) { c.RPC.RateLimitPerSecond = -1 },
		"missing burst":  func(c *Config) { c.RPC.RateLimitPerSecond = 1; c.RPC.RateLimitBurst = 0 },
		"no data dir":    func(c *Config) { c.DataDir = "" },
		"negative bytes": func(c *Config) { c.RPC.MaxBodyBytes = -1 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	cfg := Default()
	cfg.DBBackend = "memory"
	cfg.DataDir = ""
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("memory backend without data dir: %v", err)
	}
}
