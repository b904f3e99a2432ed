package gateway

import (
	"context"
	"fmt"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/mcpbridge"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

// ToolBridge is the slice of the MCP bridge the gateway routes need. The
// service holds nil when no upstream is configured.
type ToolBridge interface {
	Status() mcpbridge.Status
	ToolNames() []string
	Tools() []mcpbridge.ToolDefinition
	CallTool(ctx context.Context, name string, arguments map[string]any) (any, error)
}

// Service fronts the pipeline registry and the optional MCP bridge for the
// HTTP handlers.
type Service struct {
	registry *pipeline.Registry
	bridge   ToolBridge
}

func NewService(registry *pipeline.Registry, bridge ToolBridge) *Service {
	return &Service{registry: registry, bridge: bridge}
}

// ListPipelines returns the registered ids, sorted ascending.
func (s *Service) ListPipelines() []string {
	return s.registry.IDs()
}

// PipelineCount reports the registry size for the diagnostic document.
func (s *Service) PipelineCount() int {
	return s.registry.Len()
}

// RunPipeline dispatches one call. Unknown ids map to ErrNotFound; handler
// errors and panics map to ErrHandlerFault so a broken handler never takes
// the process down.
func (s *Service) RunPipeline(ctx context.Context, id string, call pipeline.Call) (result any, err error) {
	entry, ok := s.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("pipeline '%s' %w", id, ErrNotFound)
	}

	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Pipeline handler panicked", "pipeline", id, "panic", r)
			result = nil
			err = fmt.Errorf("%w: panic: %v", ErrHandlerFault, r)
		}
	}()

	result, err = entry.Handler.Invoke(ctx, call)
	if err != nil {
		log.Error("Pipeline handler fault", "pipeline", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrHandlerFault, err)
	}
	return result, nil
}

// BridgeEnabled reports whether an upstream MCP server is configured.
func (s *Service) BridgeEnabled() bool {
	return s.bridge != nil
}

// BridgeStatus returns the connector state for the diagnostic document.
func (s *Service) BridgeStatus() mcpbridge.Status {
	if s.bridge == nil {
		return mcpbridge.Status{Enabled: false}
	}
	return s.bridge.Status()
}

// ToolNames lists the cached upstream tool names.
func (s *Service) ToolNames() ([]string, error) {
	if s.bridge == nil {
		return nil, fmt.Errorf("%w: no MCP server configured", mcpbridge.ErrUnavailable)
	}
	return s.bridge.ToolNames(), nil
}

// Tools lists the cached upstream tool definitions.
func (s *Service) Tools() ([]mcpbridge.ToolDefinition, error) {
	if s.bridge == nil {
		return nil, fmt.Errorf("%w: no MCP server configured", mcpbridge.ErrUnavailable)
	}
	return s.bridge.Tools(), nil
}

// CallTool forwards a tool invocation to the bridge.
func (s *Service) CallTool(ctx context.Context, name string, arguments map[string]any) (any, error) {
	if s.bridge == nil {
		return nil, fmt.Errorf("%w: no MCP server configured", mcpbridge.ErrUnavailable)
	}
	return s.bridge.CallTool(ctx, name, arguments)
}

// callFromBody builds the conventional dispatch call from a request payload.
// The optional fields are lifted from well-known keys; the full payload stays
// available as Body.
func callFromBody(body map[string]any) pipeline.Call {
	if body == nil {
		body = map[string]any{}
	}
	call := pipeline.Call{Body: body}
	if s, ok := body["user_message"].(string); ok {
		call.UserMessage = s
	}
	if s, ok := body["model_id"].(string); ok {
		call.ModelID = s
	}
	if raw, ok := body["messages"].([]any); ok {
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				call.Messages = append(call.Messages, m)
			}
		}
	}
	return call
}
