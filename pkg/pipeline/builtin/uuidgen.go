package builtin

import (
	"context"

	"github.com/google/uuid"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

func newUUID(def *pipeline.Definition) (pipeline.Handler, error) {
	return pipeline.HandlerFunc{Name: def.DerivedID(), Fn: func(context.Context, pipeline.Call) (any, error) {
		return map[string]any{"uuid": uuid.NewString()}, nil
	}}, nil
}
