package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/config"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/mcpbridge"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

const testAPIKey = "test-secret"

var ginModeOnce sync.Once

func ensureGinTestMode() {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})
}

func newTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.APIKey = config.SensitiveString(testAPIKey)
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, service *Service) *Server {
	t.Helper()
	ensureGinTestMode()
	return NewServer(cfg, service, logger.NewLogger(logger.TestConfig()))
}

func registryWith(entries ...*pipeline.Entry) *pipeline.Registry {
	next := make(map[string]*pipeline.Entry, len(entries))
	for _, entry := range entries {
		next[entry.ID] = entry
	}
	reg := pipeline.NewRegistry()
	reg.Replace(next)
	return reg
}

func handlerEntry(id string, fn func(ctx context.Context, call pipeline.Call) (any, error)) *pipeline.Entry {
	return &pipeline.Entry{
		ID:      id,
		Kind:    id,
		Handler: pipeline.HandlerFunc{Name: id, Fn: fn},
	}
}

func staticEntry(id string, result any) *pipeline.Entry {
	return handlerEntry(id, func(context.Context, pipeline.Call) (any, error) {
		return result, nil
	})
}

func performRequest(t *testing.T, router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, path, reader)
	require.NoError(t, err)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func authedRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return performRequest(t, router, method, path, body, map[string]string{"x-api-key": testAPIKey})
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

type fakeBridge struct {
	mu     sync.Mutex
	status mcpbridge.Status
	names  []string
	tools  []mcpbridge.ToolDefinition
	result any
	err    error
	calls  []string
	args   []map[string]any
}

func (f *fakeBridge) Status() mcpbridge.Status { return f.status }

func (f *fakeBridge) ToolNames() []string { return f.names }

func (f *fakeBridge) Tools() []mcpbridge.ToolDefinition { return f.tools }

func (f *fakeBridge) CallTool(_ context.Context, name string, arguments map[string]any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.args = append(f.args, arguments)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
