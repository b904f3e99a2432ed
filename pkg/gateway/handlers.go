package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/config"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/version"
)

const (
	appName        = "Open WebUI Pipelines"
	appDescription = "Pipeline registry and authenticated dispatch gateway"
)

// Handlers provides the HTTP handlers for the gateway routes.
type Handlers struct {
	service *Service
	cfg     *config.Config
}

func NewHandlers(service *Service, cfg *config.Config) *Handlers {
	return &Handlers{service: service, cfg: cfg}
}

// RootHandler handles GET / - service identity and document locations
// @Summary Service identity
// @Description Report the service name, version, and documentation URLs
// @Tags Public
// @Produce json
// @Success 200 {object} map[string]interface{} "Service identity"
// @Router / [get]
func (h *Handlers) RootHandler(c *gin.Context) {
	prefix := h.cfg.Server.NormalizedPrefix()
	c.JSON(http.StatusOK, gin.H{
		"name":        appName,
		"version":     version.Get().Version,
		"description": appDescription,
		"docs":        prefix + "/docs",
		"openapi":     prefix + "/openapi.json",
	})
}

// HealthHandler handles GET /health - liveness probe
// @Summary Health check
// @Description Report service liveness
// @Tags Public
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is healthy"
// @Router /health [get]
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"name":    appName,
		"version": version.Get().Version,
	})
}

// PingHandler handles GET /ping - trivial reachability probe
// @Summary Ping
// @Description Trivial reachability probe
// @Tags Public
// @Produce json
// @Success 200 {object} map[string]interface{} "Pong"
// @Router /ping [get]
func (h *Handlers) PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pong": true})
}

// ListPipelinesHandler handles GET /pipelines - registered pipeline ids
// @Summary List pipelines
// @Description List the registered pipeline ids in ascending order
// @Tags Pipelines
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "Pipeline ids"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Router /pipelines [get]
func (h *Handlers) ListPipelinesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pipelines": h.service.ListPipelines()})
}

// RunPipelineHandler handles POST /pipelines/{id} - dispatch one invocation
// @Summary Run a pipeline
// @Description Invoke a pipeline handler with the JSON body as its payload
// @Tags Pipelines
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Pipeline id"
// @Param body body map[string]interface{} false "Invocation payload"
// @Success 200 {object} map[string]interface{} "Handler result"
// @Failure 400 {object} map[string]interface{} "Invalid payload"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 404 {object} map[string]interface{} "Unknown pipeline"
// @Failure 500 {object} map[string]interface{} "Handler fault"
// @Router /pipelines/{id} [post]
func (h *Handlers) RunPipelineHandler(c *gin.Context) {
	id := c.Param("id")

	payload := map[string]any{}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeErrorResponse(c, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	result, err := h.service.RunPipeline(c.Request.Context(), id, callFromBody(payload))
	if err != nil {
		switch classifyError(err) {
		case errorNotFound:
			writeErrorResponse(c, http.StatusNotFound, err.Error(), nil)
		default:
			writeErrorResponse(c, http.StatusInternalServerError, "Pipeline execution failed", err)
		}
		return
	}

	if body, ok := result.(map[string]any); ok {
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// ToolsHandler handles GET /_tools - upstream MCP tool names
// @Summary List MCP tool names
// @Description List the tool names cached from the upstream MCP server
// @Tags Tools
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "Tool names"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 502 {object} map[string]interface{} "Bridge unavailable"
// @Router /_tools [get]
func (h *Handlers) ToolsHandler(c *gin.Context) {
	names, err := h.service.ToolNames()
	if err != nil {
		writeErrorResponse(c, http.StatusBadGateway, "MCP bridge unavailable", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"tools": names})
}

// ToolsFullHandler handles GET /_tools_full - upstream MCP tool definitions
// @Summary List MCP tool definitions
// @Description List the full tool definitions cached from the upstream MCP server
// @Tags Tools
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "Tool definitions"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 502 {object} map[string]interface{} "Bridge unavailable"
// @Router /_tools_full [get]
func (h *Handlers) ToolsFullHandler(c *gin.Context) {
	tools, err := h.service.Tools()
	if err != nil {
		writeErrorResponse(c, http.StatusBadGateway, "MCP bridge unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": tools})
}

// CallToolHandler handles POST /tools/{name} - invoke one MCP tool
// @Summary Call an MCP tool
// @Description Forward the JSON body as arguments to an upstream MCP tool
// @Tags Tools
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "Tool name"
// @Param body body map[string]interface{} false "Tool arguments"
// @Success 200 {object} map[string]interface{} "Tool result"
// @Failure 400 {object} map[string]interface{} "Invalid payload"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 404 {object} map[string]interface{} "Unknown tool"
// @Failure 502 {object} map[string]interface{} "Bridge or tool failure"
// @Router /tools/{name} [post]
func (h *Handlers) CallToolHandler(c *gin.Context) {
	name := c.Param("name")

	arguments := map[string]any{}
	if err := c.ShouldBindJSON(&arguments); err != nil && !errors.Is(err, io.EOF) {
		writeErrorResponse(c, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	result, err := h.service.CallTool(c.Request.Context(), name, arguments)
	if err != nil {
		switch classifyError(err) {
		case errorToolNotFound:
			writeErrorResponse(c, http.StatusNotFound, err.Error(), nil)
		case errorToolFailed:
			writeErrorResponse(c, http.StatusBadGateway, "MCP tool execution failed", err)
		case errorBridgeUnavailable:
			writeErrorResponse(c, http.StatusBadGateway, "MCP bridge unavailable", err)
		default:
			writeErrorResponse(c, http.StatusInternalServerError, "Tool call failed", err)
		}
		return
	}

	if body, ok := result.(map[string]any); ok {
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// DiagnosticHandler handles GET /_diagnostic - app, bridge, and registry state
// @Summary Diagnostic document
// @Description Report application, MCP bridge, and registry status
// @Tags Diagnostics
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "Diagnostic document"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Router /_diagnostic [get]
func (h *Handlers) DiagnosticHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app": gin.H{
			"name":        appName,
			"version":     version.Get().Version,
			"path_prefix": h.cfg.Server.PathPrefix,
		},
		"mcp": h.service.BridgeStatus(),
		"pipelines": gin.H{
			"count": h.service.PipelineCount(),
			"ids":   h.service.ListPipelines(),
		},
	})
}
