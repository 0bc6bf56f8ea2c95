package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/eventhub/edge-gateway/internal/config"
	"github.com/eventhub/edge-gateway/internal/gateway"
	"github.com/eventhub/edge-gateway/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Edge Gateway %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	logging.Info("Starting edge gateway",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("deployment", cfg.Upstream.DeploymentID),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	// The route table is frozen at startup. The watcher only reports when the
	// file on disk diverges from what is running.
	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		logging.Warn("Config watcher unavailable", zap.Error(err))
	} else if err := watcher.Start(); err != nil {
		logging.Warn("Config watcher failed to start", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	server, err := gateway.NewServer(cfg, version)
	if err != nil {
		logging.Error("Failed to create gateway", zap.Error(err))
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		logging.Error("Server error", zap.Error(err))
		os.Exit(1)
	}
}
