package gateway

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/mcpbridge"
)

var (
	// ErrUnauthorized is the uniform credential failure; it carries no hint
	// about which part of the credential was wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks dispatch against an id absent from the registry.
	// Wrapped as `pipeline '<id>' not found` so the message names the id.
	ErrNotFound = errors.New("not found")
	// ErrHandlerFault marks an invocation that errored or panicked. The
	// process survives these; they surface as 500s.
	ErrHandlerFault = errors.New("pipeline handler fault")
)

// errorClassification represents different fault classes for switch statements
type errorClassification int

const (
	errorUnknown errorClassification = iota
	errorUnauthorized
	errorNotFound
	errorHandlerFault
	errorToolNotFound
	errorToolFailed
	errorBridgeUnavailable
)

// classifyError determines the fault class for switch statement usage
func classifyError(err error) errorClassification {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return errorUnauthorized
	case errors.Is(err, ErrNotFound):
		return errorNotFound
	case errors.Is(err, ErrHandlerFault):
		return errorHandlerFault
	case errors.Is(err, mcpbridge.ErrToolNotFound):
		return errorToolNotFound
	case errors.Is(err, mcpbridge.ErrToolFailed):
		return errorToolFailed
	case errors.Is(err, mcpbridge.ErrUnavailable):
		return errorBridgeUnavailable
	default:
		return errorUnknown
	}
}

// writeErrorResponse writes a structured error body to the client
func writeErrorResponse(c *gin.Context, statusCode int, message string, details error) {
	response := gin.H{"error": message}
	if details != nil {
		response["details"] = details.Error()
	}
	c.JSON(statusCode, response)
}
