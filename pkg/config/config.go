package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config represents the complete configuration for the pipelines gateway.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Auth      AuthConfig      `koanf:"auth"`
	Pipelines PipelinesConfig `koanf:"pipelines" validate:"required"`
	MCP       MCPConfig       `koanf:"mcp"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"        env:"HOST"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535" env:"PORT"`
	PathPrefix      string        `koanf:"path_prefix"                                 env:"PATH_PREFIX"`
	CORSOrigins     []string      `koanf:"cors_origins"                                env:"CORS_ALLOWED_ORIGINS"`
	Timeout         time.Duration `koanf:"timeout"                                     env:"SERVER_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"                            env:"SHUTDOWN_TIMEOUT"`
}

// AuthConfig carries the shared-secret credential for guarded routes.
// An empty key rejects every request; the server warns about it at startup.
type AuthConfig struct {
	APIKey SensitiveString `koanf:"api_key" env:"API_KEY" sensitive:"true"`
}

// PipelinesConfig controls pipeline manifest discovery.
type PipelinesConfig struct {
	Dir string `koanf:"dir" validate:"required" env:"PIPELINES_DIR"`
}

// MCPConfig configures the optional bridge to a streamable-HTTP MCP server.
// An empty ServerURL disables the bridge.
type MCPConfig struct {
	ServerURL      string        `koanf:"server_url"      validate:"omitempty,url" env:"MCP_SERVER_URL"`
	Headers        string        `koanf:"headers"                                  env:"MCP_HEADERS"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"                          env:"MCP_CONNECT_TIMEOUT"`
	MaxRetries     int           `koanf:"max_retries"     validate:"min=0,max=20"  env:"MCP_MAX_RETRIES"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"  validate:"omitempty,oneof=debug info warn error disabled" env:"LOG_LEVEL"`
	JSON   bool   `koanf:"json"                                                             env:"LOG_JSON"`
	Source bool   `koanf:"source"                                                           env:"LOG_SOURCE"`
}

// Default returns the built-in configuration values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			PathPrefix:      "/",
			CORSOrigins:     nil,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			APIKey: "",
		},
		Pipelines: PipelinesConfig{
			Dir: "./pipelines",
		},
		MCP: MCPConfig{
			ServerURL:      "",
			Headers:        "",
			ConnectTimeout: 30 * time.Second,
			MaxRetries:     5,
		},
		Log: LogConfig{
			Level:  "info",
			JSON:   false,
			Source: false,
		},
	}
}

// BridgeEnabled reports whether an MCP server URL is configured.
func (c *MCPConfig) BridgeEnabled() bool {
	return strings.TrimSpace(c.ServerURL) != ""
}

// HeadersMap decodes the MCP_HEADERS JSON object into a header map.
// An empty value yields an empty map.
func (c *MCPConfig) HeadersMap() (map[string]string, error) {
	raw := strings.TrimSpace(c.Headers)
	if raw == "" {
		return map[string]string{}, nil
	}
	headers := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, fmt.Errorf("MCP_HEADERS must be a JSON object of string values: %w", err)
	}
	return headers, nil
}

// NormalizedPrefix returns the path prefix with a leading slash and no
// trailing slash; the bare root prefix collapses to the empty string so it
// can be joined directly with route paths.
func (c *ServerConfig) NormalizedPrefix() string {
	prefix := strings.TrimSpace(c.PathPrefix)
	if prefix == "" || prefix == "/" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimRight(prefix, "/")
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
