package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ratemint/config"
	"ratemint/core"
	"ratemint/core/genesis"
	"ratemint/indexer"
	"ratemint/observability/logging"
	telemetry "ratemint/observability/otel"
	"ratemint/rpc"
	"ratemint/storage"
)

const (
	serviceName     = "ratemintd"
	genesisPathEnv  = "RATEMINT_GENESIS"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides RATEMINT_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var fileCfg *logging.FileConfig
	if strings.TrimSpace(cfg.Logging.File) != "" {
		fileCfg = &logging.FileConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	logger := logging.Setup(serviceName, cfg.Environment, fileCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genesisPath := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if err := run(ctx, cfg, genesisPath, logger); err != nil {
		logger.Error("node stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// resolveGenesisPath applies flag > env > config precedence.
func resolveGenesisPath(flagValue, cfgValue string, lookup func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if lookup != nil {
		if v, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(cfgValue)
}

// daemon bundles everything run needs to serve and tear down.
type daemon struct {
	node   *core.Node
	index  *indexer.Store
	server *rpc.Server
	close  func()
}

func run(ctx context.Context, cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:   serviceName,
		Environment:   cfg.Environment,
		ChainID:       cfg.ChainID,
		EngineAddress: engine.Hex(),
		Endpoint:      cfg.Telemetry.Endpoint,
		Insecure:      cfg.Telemetry.Insecure,
		Headers:       telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:       cfg.Telemetry.Metrics,
		Traces:        cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	d, err := assemble(ctx, cfg, genesisPath, logger)
	if err != nil {
		return err
	}
	defer d.close()

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPCAddress, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc shutdown: %w", err)
		}
		return <-serveErr
	}
}

// assemble opens storage and the event index, builds the node, applies
// genesis when one is configured and prepares the RPC server.
func assemble(ctx context.Context, cfg *config.Config, genesisPath string, logger *slog.Logger) (*daemon, error) {
	engine, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.IndexPath()); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			db.Close()
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	index, err := indexer.OpenStore(cfg.IndexPath(), logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	closeAll := func() {
		if err := index.Close(); err != nil {
			logger.Warn("close event index", slog.Any("error", err))
		}
		db.Close()
	}

	node, err := core.NewNode(db, core.NodeConfig{
		ChainID:       cfg.ChainID,
		EngineAddress: engine,
		Sink:          index,
		Logger:        logger,
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	if genesisPath != "" {
		spec, err := genesis.LoadGenesisSpec(genesisPath)
		if err != nil {
			closeAll()
			return nil, err
		}
		applied, err := node.ApplyGenesis(ctx, spec)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
		if applied {
			logger.Info("genesis applied", slog.String("path", genesisPath))
		} else {
			logger.Info("genesis already applied; skipping", slog.String("path", genesisPath))
		}
	}

	server, err := rpc.NewServer(node, index, rpc.ServerConfig{
		AuthToken:          cfg.RPC.AuthToken,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		ReadHeaderTimeout:  seconds(cfg.RPC.ReadHeaderTimeoutSecs),
		ReadTimeout:        seconds(cfg.RPC.ReadTimeoutSecs),
		WriteTimeout:       seconds(cfg.RPC.WriteTimeoutSecs),
	}, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	logger.Info("rpc configured",
		slog.String("address", cfg.RPCAddress),
		logging.MaskField("auth_token", cfg.RPC.AuthToken),
		slog.Float64("rate_limit_per_second", cfg.RPC.RateLimitPerSecond))
	if cfg.RPC.AuthToken == "" {
		logger.Warn("exchange_sendTransaction is open; set " + config.EnvRPCToken + " to require a bearer token")
	}
	return &daemon{node: node, index: index, server: server, close: closeAll}, nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.DBBackend))
	path := filepath.Join(cfg.DataDir, "state")
	switch backend {
	case "memory", "mem":
		return storage.Open(backend, "")
	case "bolt", "bbolt":
		path = filepath.Join(cfg.DataDir, "state.db")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(backend, path)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", backend, err)
	}
	return db, nil
}

func seconds(v uint32) time.Duration {
	return time.Duration(v) * time.Second
}
