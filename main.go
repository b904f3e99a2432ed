//	@title			Open WebUI Pipelines API
//	@version		0.1.0
//	@description	Pipeline registry and authenticated dispatch gateway

//	@BasePath	/

//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						x-api-key
//	@description				Shared secret checked on every guarded route

//	@tag.name			Public
//	@tag.description	Unauthenticated service metadata and probes

//	@tag.name			Pipelines
//	@tag.description	Pipeline listing and dispatch

//	@tag.name			Tools
//	@tag.description	Tool listing and invocation over the MCP bridge

//	@tag.name			Diagnostics
//	@tag.description	Runtime state inspection

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/config"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/gateway"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/version"

	_ "github.com/DC-AAIA/open-webui-pipelines/docs"
)

func main() {
	cmd := createRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "open-webui-pipelines",
		Short: "Pipeline registry and authenticated dispatch gateway",
		Long: `Open WebUI Pipelines serves handler pipelines over HTTP.
It scans a directory of pipeline manifests at startup, exposes each pipeline
as an authenticated dispatch route, and optionally bridges tool calls to an
MCP server.`,
		RunE: runGateway,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvironmentFile(cmd)
		},
	}

	root.PersistentFlags().String("env-file", "", "Load environment variables from a file before reading configuration")
	root.Flags().String("host", "", "Override the bind address")
	root.Flags().Int("port", 0, "Override the listen port")
	root.Flags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	root.Flags().Bool("log-json", false, "Emit logs as JSON")
	root.Flags().Bool("log-source", false, "Annotate log lines with source positions")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Printf("open-webui-pipelines version %s\n", info.Version)
			fmt.Printf("commit: %s\n", info.CommitHash)
			fmt.Printf("built: %s\n", info.BuildDate)
		},
	}
	root.AddCommand(versionCmd)

	return root
}

func loadEnvironmentFile(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load environment file %s: %w", envFile, err)
	}
	return nil
}

func runGateway(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.NewLoader().Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}

	return gateway.Run(ctx, cfg)
}

// applyFlagOverrides lets CLI flags win over environment configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("host") {
		host, err := cmd.Flags().GetString("host")
		if err != nil {
			return fmt.Errorf("failed to get host flag: %w", err)
		}
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return fmt.Errorf("failed to get port flag: %w", err)
		}
		cfg.Server.Port = port
	}

	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if cmd.Flags().Changed("log-source") {
		cfg.Log.Source = logSource
	}
	return nil
}
