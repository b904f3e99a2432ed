package mcpbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolClient struct {
	mu      sync.Mutex
	tools   []mcp.Tool
	initErr error
	listErr error
	result  *mcp.CallToolResult
	callErr error
	calls   []mcp.CallToolRequest
	closed  bool
}

func (f *fakeToolClient) Initialize(_ context.Context, _ mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcp.InitializeResult{}, nil
}

func (f *fakeToolClient) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeToolClient) CallTool(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, request)
	f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func (f *fakeToolClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func newTestBridge(fake *fakeToolClient, dialErrs int) *Bridge {
	bridge := New(Config{ServerURL: "http://mcp.internal/mcp", MaxRetries: 5})
	bridge.backoffBase = time.Millisecond
	remaining := dialErrs
	bridge.dial = func(context.Context) (ToolClient, error) {
		if remaining > 0 {
			remaining--
			return nil, errors.New("dial refused")
		}
		return fake, nil
	}
	return bridge
}

func catalogTool(name string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription("catalog entry for "+name),
		mcp.WithString("subject", mcp.Description("what to act on")),
	)
}

func TestBridge_Connect(t *testing.T) {
	t.Run("Should cache the tool catalog on connect", func(t *testing.T) {
		fake := &fakeToolClient{tools: []mcp.Tool{catalogTool("lookup"), catalogTool("report")}}
		bridge := newTestBridge(fake, 0)

		require.NoError(t, bridge.Connect(t.Context()))

		status := bridge.Status()
		assert.True(t, status.Connected)
		assert.Equal(t, 2, status.ToolCount)
		assert.Empty(t, status.LastError)
		assert.Equal(t, []string{"lookup", "report"}, bridge.ToolNames())

		tools := bridge.Tools()
		require.Len(t, tools, 2)
		assert.Equal(t, "lookup", tools[0].Name)
		assert.Equal(t, "catalog entry for lookup", tools[0].Description)
		require.NotNil(t, tools[0].InputSchema)
		assert.Equal(t, "object", tools[0].InputSchema["type"])
	})

	t.Run("Should retry failed dials with backoff", func(t *testing.T) {
		fake := &fakeToolClient{tools: []mcp.Tool{catalogTool("lookup")}}
		bridge := newTestBridge(fake, 3)

		require.NoError(t, bridge.Connect(t.Context()))
		assert.True(t, bridge.Status().Connected)
	})

	t.Run("Should record the failure once retries are exhausted", func(t *testing.T) {
		bridge := newTestBridge(&fakeToolClient{}, 100)

		err := bridge.Connect(t.Context())
		require.Error(t, err)

		status := bridge.Status()
		assert.False(t, status.Connected)
		assert.Contains(t, status.LastError, "dial refused")
	})

	t.Run("Should treat a failed tool listing as a failed connect", func(t *testing.T) {
		fake := &fakeToolClient{listErr: errors.New("catalog fetch failed")}
		bridge := newTestBridge(fake, 0)
		bridge.cfg.MaxRetries = 0

		err := bridge.Connect(t.Context())
		require.Error(t, err)
		assert.False(t, bridge.Status().Connected)
		assert.True(t, fake.closed, "a half-open client is closed")
	})
}

func TestBridge_CallTool(t *testing.T) {
	connect := func(t *testing.T, fake *fakeToolClient) *Bridge {
		t.Helper()
		bridge := newTestBridge(fake, 0)
		require.NoError(t, bridge.Connect(t.Context()))
		return bridge
	}

	t.Run("Should refuse calls before a connection exists", func(t *testing.T) {
		bridge := newTestBridge(&fakeToolClient{}, 0)
		_, err := bridge.CallTool(t.Context(), "lookup", nil)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("Should refuse tools absent from the catalog", func(t *testing.T) {
		bridge := connect(t, &fakeToolClient{tools: []mcp.Tool{catalogTool("lookup")}})
		_, err := bridge.CallTool(t.Context(), "missing", nil)
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("Should forward arguments and prefer structured content", func(t *testing.T) {
		fake := &fakeToolClient{
			tools:  []mcp.Tool{catalogTool("lookup")},
			result: &mcp.CallToolResult{StructuredContent: map[string]any{"hits": float64(3)}},
		}
		bridge := connect(t, fake)

		out, err := bridge.CallTool(t.Context(), "lookup", map[string]any{"subject": "kestrel"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"hits": float64(3)}, out)

		require.Len(t, fake.calls, 1)
		assert.Equal(t, "lookup", fake.calls[0].Params.Name)
		assert.Equal(t, map[string]any{"subject": "kestrel"}, fake.calls[0].Params.Arguments)
	})

	t.Run("Should decode single text content that parses as JSON", func(t *testing.T) {
		fake := &fakeToolClient{
			tools:  []mcp.Tool{catalogTool("lookup")},
			result: mcp.NewToolResultText(`{"answer": 42}`),
		}
		bridge := connect(t, fake)

		out, err := bridge.CallTool(t.Context(), "lookup", nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"answer": float64(42)}, out)
	})

	t.Run("Should pass non-JSON text through as a string", func(t *testing.T) {
		fake := &fakeToolClient{
			tools:  []mcp.Tool{catalogTool("lookup")},
			result: mcp.NewToolResultText("plain answer"),
		}
		bridge := connect(t, fake)

		out, err := bridge.CallTool(t.Context(), "lookup", nil)
		require.NoError(t, err)
		assert.Equal(t, "plain answer", out)
	})

	t.Run("Should surface error results as tool failures", func(t *testing.T) {
		fake := &fakeToolClient{
			tools:  []mcp.Tool{catalogTool("lookup")},
			result: mcp.NewToolResultError("subject unknown"),
		}
		bridge := connect(t, fake)

		_, err := bridge.CallTool(t.Context(), "lookup", nil)
		require.ErrorIs(t, err, ErrToolFailed)
		assert.Contains(t, err.Error(), "subject unknown")
	})

	t.Run("Should map transport failures to unavailability", func(t *testing.T) {
		fake := &fakeToolClient{
			tools:   []mcp.Tool{catalogTool("lookup")},
			callErr: errors.New("stream reset"),
		}
		bridge := connect(t, fake)

		_, err := bridge.CallTool(t.Context(), "lookup", nil)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestBridge_Stop(t *testing.T) {
	t.Run("Should close the client and drop the connection", func(t *testing.T) {
		fake := &fakeToolClient{tools: []mcp.Tool{catalogTool("lookup")}}
		bridge := newTestBridge(fake, 0)
		require.NoError(t, bridge.Connect(t.Context()))

		require.NoError(t, bridge.Stop(t.Context()))
		assert.True(t, fake.closed)
		assert.False(t, bridge.Status().Connected)

		_, err := bridge.CallTool(t.Context(), "lookup", nil)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("Should be safe without a connection", func(t *testing.T) {
		bridge := New(Config{ServerURL: "http://mcp.internal/mcp"})
		assert.NoError(t, bridge.Stop(t.Context()))
	})
}
