package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ratemint/crypto"
)

var validBackends = map[string]struct{}{
	"leveldb": {},
	"bolt":    {},
	"memory":  {},
}

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	if _, ok := validBackends[strings.ToLower(cfg.DBBackend)]; !ok {
		return fmt.Errorf("DBBackend %q: expected leveldb, bolt or memory", cfg.DBBackend)
	}
	if strings.ToLower(cfg.DBBackend) != "memory" && strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir must be set for %s", cfg.DBBackend)
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("ChainID must be positive")
	}
	if _, err := cfg.Engine(); err != nil {
		return err
	}
	if cfg.RPC.RateLimitPerSecond < 0 {
		return fmt.Errorf("rpc: RateLimitPerSecond must not be negative")
	}
	if cfg.RPC.RateLimitPerSecond > 0 && cfg.RPC.RateLimitBurst < 1 {
		return fmt.Errorf("rpc: RateLimitBurst must be at least 1")
	}
	if cfg.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: MaxBodyBytes must not be negative")
	}
	return nil
}

// Engine parses EngineAddress.
func (c *Config) Engine() (common.Address, error) {
	addr, err := crypto.ParseAddress(c.EngineAddress)
	if err != nil {
		return common.Address{}, fmt.Errorf("EngineAddress: %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("EngineAddress must not be zero")
	}
	return addr, nil
}
