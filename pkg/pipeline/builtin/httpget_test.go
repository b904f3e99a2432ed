package builtin

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

func TestHTTPGetHandler(t *testing.T) {
	def := &pipeline.Definition{ID: "http_get"}

	t.Run("Should decode a JSON response body", func(t *testing.T) {
		var capturedAgent atomic.Pointer[string]
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			agent := req.UserAgent()
			capturedAgent.Store(&agent)
			w.Header().Set("X-Test", "true")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok": true}`))
		}))
		t.Cleanup(server.Close)

		out := invoke(t, newHTTPGet, def, map[string]any{"url": server.URL})

		assert.Equal(t, http.StatusOK, out["status"])
		assert.Equal(t, map[string]any{"ok": true}, out["json"])
		assert.NotContains(t, out, "text")

		headers, ok := out["headers"].(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "true", headers["X-Test"])

		agent := capturedAgent.Load()
		require.NotNil(t, agent)
		assert.Equal(t, "pipelines/0.1", *agent)
	})

	t.Run("Should fall back to text for non-JSON bodies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("plain payload"))
		}))
		t.Cleanup(server.Close)

		out := invoke(t, newHTTPGet, def, map[string]any{"url": server.URL})

		assert.Equal(t, http.StatusOK, out["status"])
		assert.Equal(t, "plain payload", out["text"])
		assert.NotContains(t, out, "json")
	})

	t.Run("Should map server error statuses to an HTTPError result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}))
		t.Cleanup(server.Close)

		out := invoke(t, newHTTPGet, def, map[string]any{"url": server.URL})
		assert.Equal(t, map[string]any{"error": "HTTPError 503: Service Unavailable"}, out)
	})

	t.Run("Should map client error statuses to an HTTPError result", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(server.Close)

		out := invoke(t, newHTTPGet, def, map[string]any{"url": server.URL})
		assert.Equal(t, map[string]any{"error": "HTTPError 404: Not Found"}, out)
	})

	t.Run("Should require a string url in the body", func(t *testing.T) {
		expected := map[string]any{"error": "body.url (string) is required"}
		assert.Equal(t, expected, invoke(t, newHTTPGet, def, map[string]any{}))
		assert.Equal(t, expected, invoke(t, newHTTPGet, def, map[string]any{"url": 42}))
		assert.Equal(t, expected, invoke(t, newHTTPGet, def, map[string]any{"url": "   "}))
	})

	t.Run("Should surface transport failures in the result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		server.Close()

		out := invoke(t, newHTTPGet, def, map[string]any{"url": server.URL})
		msg, ok := out["error"].(string)
		require.True(t, ok)
		assert.NotEmpty(t, msg)
	})

	t.Run("Should honor a with.timeout override", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("slow"))
		}))
		t.Cleanup(server.Close)

		tuned := &pipeline.Definition{ID: "http_get", With: map[string]any{"timeout": "50ms"}}
		out := invoke(t, newHTTPGet, tuned, map[string]any{"url": server.URL})
		assert.Contains(t, out, "error")
	})

	t.Run("Should honor a with.user_agent override", func(t *testing.T) {
		var capturedAgent atomic.Pointer[string]
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			agent := req.UserAgent()
			capturedAgent.Store(&agent)
			_, _ = w.Write([]byte("ok"))
		}))
		t.Cleanup(server.Close)

		tuned := &pipeline.Definition{ID: "http_get", With: map[string]any{"user_agent": "custom/9"}}
		invoke(t, newHTTPGet, tuned, map[string]any{"url": server.URL})

		agent := capturedAgent.Load()
		require.NotNil(t, agent)
		assert.Equal(t, "custom/9", *agent)
	})

	t.Run("Should reject malformed with options at construction", func(t *testing.T) {
		_, err := newHTTPGet(&pipeline.Definition{ID: "http_get", With: map[string]any{"timeout": "soon"}})
		require.Error(t, err)

		_, err = newHTTPGet(&pipeline.Definition{ID: "http_get", With: map[string]any{"user_agent": ""}})
		require.Error(t, err)
	})
}
