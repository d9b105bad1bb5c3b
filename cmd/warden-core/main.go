// Package main is the entry point for the warden-core binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardenai/warden-oss/pkg/config"
	"github.com/wardenai/warden-oss/pkg/gateway"
	"github.com/wardenai/warden-oss/pkg/logging"
	"github.com/wardenai/warden-oss/pkg/policy/authz"
	"github.com/wardenai/warden-oss/pkg/retrieval"
	"github.com/wardenai/warden-oss/pkg/server"
	"github.com/wardenai/warden-oss/pkg/storage"
	"github.com/wardenai/warden-oss/pkg/telemetry"
)

const defaultConfigPath = "warden.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listenAddr := flag.String("listen", "", "Address to listen on (overrides config)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	prettyLogs := flag.Bool("pretty", false, "Enable pretty console logging")
	flag.Parse()

	logger := logging.NewLogger(logging.Config{
		Level:  *logLevel,
		Pretty: *prettyLogs,
	})
	slog.SetDefault(logger)

	logger.Info("Starting warden-core", "config", *configPath)

	cfg, provider := loadConfig(*configPath, logger)
	if provider != nil {
		defer func() {
			if err := provider.Close(); err != nil {
				logger.Error("Failed to close config provider", "error", err)
			}
		}()
	}

	shutdownTracing, err := telemetry.SetupProvider(context.Background(), telemetry.Config{
		ServiceName: "warden-core",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("Tracing shutdown error", "error", err)
		}
	}()

	registry := storage.NewMemoryRegistry()
	policies := storage.NewMemoryPolicyStore()
	events := storage.NewMemoryEventLog()

	if err := seedStores(cfg, registry, policies); err != nil {
		logger.Error("Failed to seed stores from config", "error", err)
		os.Exit(1)
	}
	if provider != nil {
		go watchConfig(provider, registry, policies, logger)
	}

	var evaluator authz.Evaluator = authz.Direct{}
	if cfg.Gateway.AuthzEngine == "opa" {
		engine, err := authz.NewEngine(context.Background(), authz.EngineOptions{})
		if err != nil {
			logger.Error("Failed to initialize OPA authz engine", "error", err)
			os.Exit(1)
		}
		evaluator = engine
		logger.Info("Using OPA authz engine")
	}

	gw := gateway.New(gateway.Options{
		Registry:   registry,
		Policies:   policies,
		Events:     events,
		Model:      gateway.NewHTTPModelClient(cfg.Model.BaseURL, cfg.Model.Name, cfg.Model.Timeout()),
		Retrieval:  retrieval.NewMemoryStore(),
		Authz:      evaluator,
		Logger:     logger,
		RetrievalK: cfg.Gateway.RetrievalK,
	})

	addr := cfg.Server.Address
	if *listenAddr != "" {
		addr = *listenAddr
	}

	srv := startServer(addr, gw, logger)
	waitForShutdown(srv, logger)
}

// loadConfig prefers the watching provider; a missing file falls back to
// built-in defaults without watching.
func loadConfig(path string, logger *slog.Logger) (*config.Config, *config.FileConfigProvider) {
	if _, err := os.Stat(path); err != nil {
		logger.Warn("Config file not found, using defaults", "path", path)
		cfg, err := config.Load("")
		if err != nil {
			logger.Error("Failed to build default config", "error", err)
			os.Exit(1)
		}
		return cfg, nil
	}

	provider, err := config.NewFileConfigProvider(path, logger)
	if err != nil {
		logger.Error("Failed to initialize config provider", "error", err)
		os.Exit(1)
	}
	return provider.Snapshot(), provider
}

func seedStores(cfg *config.Config, registry *storage.MemoryRegistry, policies *storage.MemoryPolicyStore) error {
	ctx := context.Background()
	for _, p := range cfg.Principals {
		if err := registry.SavePrincipal(ctx, p); err != nil {
			return err
		}
	}
	for _, pol := range cfg.Policies {
		if err := policies.SavePolicy(ctx, pol); err != nil {
			return err
		}
	}
	return nil
}

// watchConfig re-seeds principals and policies on each config reload so
// file edits act as the admin toggle surface. In-flight requests keep the
// snapshot they started with.
func watchConfig(provider *config.FileConfigProvider, registry *storage.MemoryRegistry, policies *storage.MemoryPolicyStore, logger *slog.Logger) {
	updates := provider.Subscribe()
	for cfg := range updates {
		if err := seedStores(cfg, registry, policies); err != nil {
			logger.Error("Failed to apply config update", "error", err)
			continue
		}
		logger.Info("Configuration applied", "principals", len(cfg.Principals), "policies", len(cfg.Policies))
	}
}

func startServer(addr string, gw *gateway.Gateway, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Handler:      server.New(gw, logger).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("Failed to bind listener", "addr", addr, "error", err)
		os.Exit(1)
	}

	// Log the actual resolved address (useful when addr is :0)
	logger.Info("Server listening", "addr", listener.Addr().String())

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	return srv
}

func waitForShutdown(srv *http.Server, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	logger.Info("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}
