package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/mcpbridge"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

func TestService_RunPipeline(t *testing.T) {
	t.Run("Should pass handler results through", func(t *testing.T) {
		service := NewService(registryWith(staticEntry("greet", map[string]any{"hello": "world"})), nil)

		result, err := service.RunPipeline(t.Context(), "greet", pipeline.Call{Body: map[string]any{}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"hello": "world"}, result)
	})

	t.Run("Should name the missing id on unknown pipelines", func(t *testing.T) {
		service := NewService(registryWith(), nil)

		_, err := service.RunPipeline(t.Context(), "ghost", pipeline.Call{})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "pipeline 'ghost' not found", err.Error())
	})

	t.Run("Should classify handler errors as faults", func(t *testing.T) {
		service := NewService(registryWith(handlerEntry("explode", func(context.Context, pipeline.Call) (any, error) {
			return nil, errors.New("backend unreachable")
		})), nil)

		_, err := service.RunPipeline(t.Context(), "explode", pipeline.Call{})
		require.ErrorIs(t, err, ErrHandlerFault)
		assert.Contains(t, err.Error(), "backend unreachable")
	})

	t.Run("Should survive a panicking handler", func(t *testing.T) {
		service := NewService(registryWith(
			handlerEntry("panic", func(context.Context, pipeline.Call) (any, error) {
				panic("handler exploded")
			}),
			staticEntry("steady", map[string]any{"ok": true}),
		), nil)

		_, err := service.RunPipeline(t.Context(), "panic", pipeline.Call{})
		require.ErrorIs(t, err, ErrHandlerFault)
		assert.Contains(t, err.Error(), "handler exploded")

		result, err := service.RunPipeline(t.Context(), "steady", pipeline.Call{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"ok": true}, result)
	})

	t.Run("Should hand the payload to the handler as body", func(t *testing.T) {
		var seen pipeline.Call
		service := NewService(registryWith(handlerEntry("capture", func(_ context.Context, call pipeline.Call) (any, error) {
			seen = call
			return map[string]any{}, nil
		})), nil)

		payload := map[string]any{
			"user_message": "hi",
			"model_id":     "m1",
			"messages":     []any{map[string]any{"role": "user", "content": "hi"}},
			"extra":        true,
		}
		_, err := service.RunPipeline(t.Context(), "capture", callFromBody(payload))
		require.NoError(t, err)

		assert.Equal(t, "hi", seen.UserMessage)
		assert.Equal(t, "m1", seen.ModelID)
		require.Len(t, seen.Messages, 1)
		assert.Equal(t, "user", seen.Messages[0]["role"])
		assert.Equal(t, payload, seen.Body)
	})
}

func TestCallFromBody(t *testing.T) {
	t.Run("Should default to an empty body", func(t *testing.T) {
		call := callFromBody(nil)
		require.NotNil(t, call.Body)
		assert.Empty(t, call.Body)
	})

	t.Run("Should ignore malformed conventional fields", func(t *testing.T) {
		call := callFromBody(map[string]any{
			"user_message": 42,
			"messages":     "not a list",
		})
		assert.Empty(t, call.UserMessage)
		assert.Empty(t, call.Messages)
	})
}

func TestService_BridgeAccess(t *testing.T) {
	t.Run("Should report bridge routes unavailable without an upstream", func(t *testing.T) {
		service := NewService(registryWith(), nil)

		assert.False(t, service.BridgeEnabled())
		assert.False(t, service.BridgeStatus().Enabled)

		_, err := service.ToolNames()
		assert.ErrorIs(t, err, mcpbridge.ErrUnavailable)
		_, err = service.Tools()
		assert.ErrorIs(t, err, mcpbridge.ErrUnavailable)
		_, err = service.CallTool(t.Context(), "lookup", nil)
		assert.ErrorIs(t, err, mcpbridge.ErrUnavailable)
	})

	t.Run("Should delegate to a configured bridge", func(t *testing.T) {
		bridge := &fakeBridge{
			status: mcpbridge.Status{Enabled: true, Connected: true, ToolCount: 1},
			names:  []string{"lookup"},
			result: map[string]any{"hits": float64(2)},
		}
		service := NewService(registryWith(), bridge)

		assert.True(t, service.BridgeEnabled())
		names, err := service.ToolNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"lookup"}, names)

		result, err := service.CallTool(t.Context(), "lookup", map[string]any{"q": "x"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"hits": float64(2)}, result)
		assert.Equal(t, []string{"lookup"}, bridge.calls)
	})
}
