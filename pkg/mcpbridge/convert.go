package mcpbridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDefinition is the catalog entry served on the tool listing routes.
// Schemas keep the upstream's wire shape.
type ToolDefinition struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// toolDefinition flattens an mcp.Tool through its own JSON encoding so the
// cached schemas match what the upstream advertised.
func toolDefinition(tool *mcp.Tool) ToolDefinition {
	def := ToolDefinition{Name: tool.Name, Description: tool.Description}
	raw, err := json.Marshal(tool)
	if err != nil {
		return def
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return def
	}
	if schema, ok := full["inputSchema"].(map[string]any); ok {
		def.InputSchema = schema
	}
	if schema, ok := full["outputSchema"].(map[string]any); ok {
		def.OutputSchema = schema
	}
	return def
}

// resultToJSON maps a tool result to plain JSON values: structured content
// wins, otherwise text content is decoded when it parses as JSON.
func resultToJSON(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	if result.IsError {
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, flattenText(result))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	values := make([]any, 0, len(result.Content))
	for _, content := range result.Content {
		text, ok := textOf(content)
		if !ok {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err == nil {
			values = append(values, parsed)
		} else {
			values = append(values, text)
		}
	}
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	default:
		return values, nil
	}
}

func textOf(content mcp.Content) (string, bool) {
	switch tc := content.(type) {
	case mcp.TextContent:
		return tc.Text, true
	case *mcp.TextContent:
		return tc.Text, true
	default:
		return "", false
	}
}

func flattenText(result *mcp.CallToolResult) string {
	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if text, ok := textOf(content); ok {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "tool returned an error result"
	}
	return strings.Join(parts, "; ")
}
