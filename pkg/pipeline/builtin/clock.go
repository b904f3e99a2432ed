package builtin

import (
	"context"
	"time"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

const (
	isoLayout   = "2006-01-02T15:04:05Z"
	utcLayout   = "Mon, 02 Jan 2006 15:04:05 UTC"
	localLayout = "Mon, 02 Jan 2006 15:04:05 MST"
)

// newTime reports the current UTC time and mirrors body.echo back when the
// caller sends one.
func newTime(def *pipeline.Definition) (pipeline.Handler, error) {
	return pipeline.HandlerFunc{Name: def.DerivedID(), Fn: func(_ context.Context, call pipeline.Call) (any, error) {
		out := map[string]any{"time": time.Now().UTC().Format(time.RFC3339)}
		if echo, ok := call.Body["echo"]; ok {
			out["echo"] = echo
		}
		return out, nil
	}}, nil
}

func newTimeUnix(def *pipeline.Definition) (pipeline.Handler, error) {
	return pipeline.HandlerFunc{Name: def.DerivedID(), Fn: func(context.Context, pipeline.Call) (any, error) {
		now := time.Now().UTC()
		return map[string]any{
			"epoch": now.Unix(),
			"time":  now.Format(time.RFC3339),
		}, nil
	}}, nil
}

// newTimeInfo renders one clock snapshot in several representations.
// epoch_millis is second-derived, not sub-second precise.
func newTimeInfo(def *pipeline.Definition) (pipeline.Handler, error) {
	return pipeline.HandlerFunc{Name: def.DerivedID(), Fn: func(context.Context, pipeline.Call) (any, error) {
		now := time.Now()
		zone, _ := now.Zone()
		return map[string]any{
			"iso":           now.UTC().Format(isoLayout),
			"utc":           now.UTC().Format(utcLayout),
			"local":         now.Format(localLayout),
			"tz":            zone,
			"epoch_seconds": now.Unix(),
			"epoch_millis":  now.Unix() * 1000,
		}, nil
	}}, nil
}
