// Package gateway assembles and serves the pipeline dispatch surface: a
// registry built from scanned manifests, an optional MCP tool bridge, and
// the authenticated gin HTTP server fronting both.
package gateway

import (
	"context"
	"fmt"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/config"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/mcpbridge"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline/builtin"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/version"
)

// Run wires the whole gateway and blocks until shutdown: kind table,
// manifest scan, optional MCP bridge, HTTP server. The scan completes
// before the listener accepts traffic.
func Run(ctx context.Context, cfg *config.Config) error {
	log := logger.SetupLogger(logger.ParseLevel(cfg.Log.Level), cfg.Log.JSON, cfg.Log.Source)
	ctx = logger.ContextWithLogger(ctx, log)

	log.Info("Starting service",
		"name", appName,
		"version", version.Get().Version,
		"pipelines_dir", cfg.Pipelines.Dir)

	if cfg.Auth.APIKey.Value() == "" {
		log.Warn("API_KEY is empty; every guarded request will be rejected with 401")
	}

	kinds := pipeline.NewKinds()
	if err := builtin.Register(kinds); err != nil {
		return fmt.Errorf("registering builtin handler kinds: %w", err)
	}

	registry := pipeline.NewRegistry()
	scan, err := pipeline.NewScanner(kinds).Scan(ctx, registry, cfg.Pipelines.Dir)
	if err != nil {
		return fmt.Errorf("scanning pipelines directory: %w", err)
	}
	log.Info("Pipelines registered", "count", registry.Len(), "ids", registry.IDs(), "load_errors", len(scan.Errors))

	var bridge ToolBridge
	var lifecycle *mcpbridge.Bridge
	if cfg.MCP.BridgeEnabled() {
		headers, err := cfg.MCP.HeadersMap()
		if err != nil {
			return fmt.Errorf("reading MCP headers: %w", err)
		}
		lifecycle = mcpbridge.New(mcpbridge.Config{
			ServerURL:      cfg.MCP.ServerURL,
			Headers:        headers,
			ConnectTimeout: cfg.MCP.ConnectTimeout,
			MaxRetries:     cfg.MCP.MaxRetries,
		})
		lifecycle.Start(ctx)
		bridge = lifecycle
		log.Info("MCP bridge enabled", "server_url", cfg.MCP.ServerURL)
	} else {
		log.Info("MCP bridge disabled; tool routes will answer 502")
	}

	server := NewServer(cfg, NewService(registry, bridge), log)
	runErr := server.Start(ctx)

	if lifecycle != nil {
		if err := lifecycle.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Error("MCP bridge shutdown failed", "error", err)
		}
	}
	return runErr
}
