package builtin

import (
	"context"
	"encoding/json"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

const mathAddUsage = "body.values must be a list of numbers"

// newMathAdd sums body.values. An absent values key counts as an empty list
// and sums to zero; a present non-list or non-numeric element is a
// handler-level validation failure reported in the result, not an
// invocation fault.
func newMathAdd(def *pipeline.Definition) (pipeline.Handler, error) {
	return pipeline.HandlerFunc{Name: def.DerivedID(), Fn: func(_ context.Context, call pipeline.Call) (any, error) {
		raw, present := call.Body["values"]
		if !present {
			raw = []any{}
		}
		values, ok := raw.([]any)
		if !ok {
			return map[string]any{"error": mathAddUsage}, nil
		}
		var sum float64
		for _, v := range values {
			n, ok := asNumber(v)
			if !ok {
				return map[string]any{"error": mathAddUsage}, nil
			}
			sum += n
		}
		return map[string]any{"sum": sum}, nil
	}}, nil
}

// asNumber accepts the numeric shapes JSON and YAML decoding produce.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
