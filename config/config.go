package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// EnvEnvironment overrides Config.Environment.
	EnvEnvironment = "RATEMINT_ENV"
	// EnvRPCToken overrides RPC.AuthToken.
	EnvRPCToken = "RATEMINT_RPC_TOKEN"

	DefaultEngineAddress = "0x00000000000000000000000000000000000e0000"
	DefaultChainID       = uint64(7331)
)

type Config struct {
	RPCAddress    string    `toml:"RPCAddress"`
	DataDir       string    `toml:"DataDir"`
	DBBackend     string    `toml:"DBBackend"` // leveldb, bolt or memory
	GenesisFile   string    `toml:"GenesisFile"`
	ChainID       uint64    `toml:"ChainID"`
	EngineAddress string    `toml:"EngineAddress"`
	Environment   string    `toml:"Environment"`
	IndexerDSN    string    `toml:"IndexerDSN"` // empty keeps the index in DataDir
	RPC           RPC       `toml:"rpc"`
	Logging       Logging   `toml:"logging"`
	Telemetry     Telemetry `toml:"telemetry"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	cfg := &Config{
		RPCAddress:    "127.0.0.1:8545",
		DataDir:       "./ratemint-data",
		DBBackend:     "leveldb",
		ChainID:       DefaultChainID,
		EngineAddress: DefaultEngineAddress,
		Environment:   "local",
	}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from the given path, creating a default file
// when none exists. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		applyEnv(cfg)
		return cfg, ValidateConfig(cfg)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DBBackend) == "" {
		cfg.DBBackend = "leveldb"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.RPC.ReadHeaderTimeoutSecs == 0 {
		cfg.RPC.ReadHeaderTimeoutSecs = 5
	}
	if cfg.RPC.ReadTimeoutSecs == 0 {
		cfg.RPC.ReadTimeoutSecs = 15
	}
	if cfg.RPC.WriteTimeoutSecs == 0 {
		cfg.RPC.WriteTimeoutSecs = 15
	}
	if cfg.RPC.MaxBodyBytes == 0 {
		cfg.RPC.MaxBodyBytes = 1 << 20
	}
	if cfg.RPC.RateLimitPerSecond > 0 && cfg.RPC.RateLimitBurst == 0 {
		cfg.RPC.RateLimitBurst = int(cfg.RPC.RateLimitPerSecond) * 2
		if cfg.RPC.RateLimitBurst < 1 {
			cfg.RPC.RateLimitBurst = 1
		}
	}
	if cfg.Logging.File != "" {
		if cfg.Logging.MaxSizeMB == 0 {
			cfg.Logging.MaxSizeMB = 100
		}
		if cfg.Logging.MaxBackups == 0 {
			cfg.Logging.MaxBackups = 5
		}
	}
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv(EnvEnvironment)); env != "" {
		cfg.Environment = env
	}
	if token := strings.TrimSpace(os.Getenv(EnvRPCToken)); token != "" {
		cfg.RPC.AuthToken = token
	}
}

// IndexPath returns the SQLite DSN used by the event index.
func (c *Config) IndexPath() string {
	if strings.TrimSpace(c.IndexerDSN) != "" {
		return c.IndexerDSN
	}
	return filepath.Join(c.DataDir, "events.db")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
