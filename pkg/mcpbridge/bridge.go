// Package mcpbridge maintains the connection to one upstream MCP server and
// caches its tool catalog for the gateway's tool routes. The bridge degrades
// instead of failing: pipeline serving never waits on it.
package mcpbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sethvargo/go-retry"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/version"
)

var (
	// ErrUnavailable covers every state in which the upstream cannot serve:
	// not configured, not yet connected, or failing mid-call.
	ErrUnavailable = errors.New("mcp bridge unavailable")
	// ErrToolNotFound marks a call to a tool absent from the cached catalog.
	ErrToolNotFound = errors.New("mcp tool not found")
	// ErrToolFailed marks an upstream tool invocation that returned an error
	// result.
	ErrToolFailed = errors.New("mcp tool execution failed")
)

// ToolClient is the slice of the MCP client surface the bridge needs. The
// streamable HTTP client from mcp-go satisfies it.
type ToolClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Config holds the upstream connection settings.
type Config struct {
	ServerURL      string
	Headers        map[string]string
	ConnectTimeout time.Duration
	MaxRetries     int
}

// Status is the bridge section of the diagnostic document.
type Status struct {
	Enabled   bool   `json:"enabled"`
	ServerURL string `json:"server_url,omitempty"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"tool_count"`
	LastError string `json:"last_error,omitempty"`
}

// Bridge owns one upstream client and the tool catalog cached at connect
// time.
type Bridge struct {
	cfg         Config
	dial        func(ctx context.Context) (ToolClient, error)
	backoffBase time.Duration

	mu        sync.RWMutex
	client    ToolClient
	tools     []ToolDefinition
	connected bool
	lastErr   error
}

func New(cfg Config) *Bridge {
	b := &Bridge{cfg: cfg, backoffBase: time.Second}
	b.dial = b.dialStreamable
	return b
}

func (b *Bridge) dialStreamable(ctx context.Context) (ToolClient, error) {
	var opts []transport.StreamableHTTPCOption
	if len(b.cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(b.cfg.Headers))
	}
	c, err := client.NewStreamableHttpClient(b.cfg.ServerURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating mcp client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting mcp transport: %w", err)
	}
	return c, nil
}

// Start connects in the background so the gateway comes up regardless of the
// upstream's state.
func (b *Bridge) Start(ctx context.Context) {
	go func() {
		if err := b.Connect(ctx); err != nil {
			logger.FromContext(ctx).Warn("MCP bridge connection failed, tool routes degraded",
				"server_url", b.cfg.ServerURL,
				"error", err)
		}
	}()
}

// Connect dials, initializes, and caches the tool catalog with bounded
// exponential backoff. Every failure is retried up to MaxRetries.
func (b *Bridge) Connect(ctx context.Context) error {
	backoff := retry.WithMaxRetries(b.maxRetries(), retry.NewExponential(b.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := b.connectOnce(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *Bridge) maxRetries() uint64 {
	if b.cfg.MaxRetries < 0 {
		return 0
	}
	return uint64(b.cfg.MaxRetries)
}

func (b *Bridge) connectOnce(ctx context.Context) error {
	log := logger.FromContext(ctx)
	dialCtx := ctx
	if b.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, b.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := b.dial(dialCtx)
	if err != nil {
		return err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "open-webui-pipelines",
		Version: version.Get().Version,
	}
	if _, err := conn.Initialize(dialCtx, initReq); err != nil {
		_ = conn.Close()
		return fmt.Errorf("initializing mcp session: %w", err)
	}

	listed, err := conn.ListTools(dialCtx, mcp.ListToolsRequest{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("listing mcp tools: %w", err)
	}

	tools := make([]ToolDefinition, 0, len(listed.Tools))
	for i := range listed.Tools {
		tools = append(tools, toolDefinition(&listed.Tools[i]))
	}

	b.mu.Lock()
	if b.client != nil {
		_ = b.client.Close()
	}
	b.client = conn
	b.tools = tools
	b.connected = true
	b.lastErr = nil
	b.mu.Unlock()

	log.Info("MCP bridge connected", "server_url", b.cfg.ServerURL, "tools", len(tools))
	return nil
}

// Stop closes the upstream client. Safe to call when never connected.
func (b *Bridge) Stop(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

// Status reports the connector state for the diagnostic route.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	status := Status{
		Enabled:   true,
		ServerURL: b.cfg.ServerURL,
		Connected: b.connected,
		ToolCount: len(b.tools),
	}
	if b.lastErr != nil {
		status.LastError = b.lastErr.Error()
	}
	return status
}

// ToolNames returns the cached tool names in catalog order.
func (b *Bridge) ToolNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tools))
	for i := range b.tools {
		names = append(names, b.tools[i].Name)
	}
	return names
}

// Tools returns the cached catalog.
func (b *Bridge) Tools() []ToolDefinition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tools := make([]ToolDefinition, len(b.tools))
	copy(tools, b.tools)
	return tools
}

// CallTool forwards arguments to a cataloged tool and maps the result to
// plain JSON values.
func (b *Bridge) CallTool(ctx context.Context, name string, arguments map[string]any) (any, error) {
	b.mu.RLock()
	conn := b.client
	connected := b.connected
	known := false
	for i := range b.tools {
		if b.tools[i].Name == name {
			known = true
			break
		}
	}
	b.mu.RUnlock()

	if !connected || conn == nil {
		return nil, fmt.Errorf("%w: not connected to %s", ErrUnavailable, b.cfg.ServerURL)
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = arguments
	result, err := conn.CallTool(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s: %v", ErrUnavailable, name, err)
	}
	return resultToJSON(result)
}
