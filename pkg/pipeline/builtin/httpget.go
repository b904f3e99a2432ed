package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

const (
	httpGetTimeout   = 15 * time.Second
	httpGetUserAgent = "pipelines/0.1"
)

// newHTTPGet builds the outbound GET handler. A manifest's `with` block may
// override `timeout` (duration string) and `user_agent`. Missing input and
// transport failures are reported in the result so a bad upstream never
// counts as an invocation fault; a completed response with status 400 or
// above maps to an HTTPError result instead of a rendered body.
func newHTTPGet(def *pipeline.Definition) (pipeline.Handler, error) {
	timeout := httpGetTimeout
	userAgent := httpGetUserAgent
	if raw, ok := def.With["timeout"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("with.timeout must be a duration string")
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("with.timeout: %w", err)
		}
		timeout = d
	}
	if raw, ok := def.With["user_agent"]; ok {
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("with.user_agent must be a non-empty string")
		}
		userAgent = s
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)

	return pipeline.HandlerFunc{Name: def.DerivedID(), Fn: func(ctx context.Context, call pipeline.Call) (any, error) {
		target, ok := call.Body["url"].(string)
		if !ok || strings.TrimSpace(target) == "" {
			return map[string]any{"error": "body.url (string) is required"}, nil
		}
		resp, err := client.R().SetContext(ctx).Get(target)
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		if code := resp.StatusCode(); code >= http.StatusBadRequest {
			return map[string]any{"error": fmt.Sprintf("HTTPError %d: %s", code, http.StatusText(code))}, nil
		}
		out := map[string]any{
			"status":  resp.StatusCode(),
			"headers": flattenHeaders(resp.Header()),
		}
		body := resp.Body()
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			out["json"] = parsed
		} else {
			out["text"] = string(body)
		}
		return out, nil
	}}, nil
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for key, values := range header {
		flat[key] = strings.Join(values, ", ")
	}
	return flat
}
