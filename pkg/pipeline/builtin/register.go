// Package builtin ships the handler kinds available to pipeline manifests
// out of the box. Each kind is a factory; manifests bind to a kind by name
// and may tune it through their `with` block.
package builtin

import (
	"fmt"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/pipeline"
)

// Kind names accepted in a manifest's `handler` field.
const (
	KindTime     = "time"
	KindTimeUnix = "time_unix"
	KindTimeInfo = "time_info"
	KindMathAdd  = "math_add"
	KindHTTPGet  = "http_get"
	KindUUID     = "uuid"
)

// Register installs every builtin kind into the table. It is called once
// from the composition root before the first manifest scan.
func Register(kinds *pipeline.Kinds) error {
	for _, reg := range []struct {
		name    string
		factory pipeline.Factory
	}{
		{KindTime, newTime},
		{KindTimeUnix, newTimeUnix},
		{KindTimeInfo, newTimeInfo},
		{KindMathAdd, newMathAdd},
		{KindHTTPGet, newHTTPGet},
		{KindUUID, newUUID},
	} {
		if err := kinds.Register(reg.name, reg.factory); err != nil {
			return fmt.Errorf("registering builtin kind %q: %w", reg.name, err)
		}
	}
	return nil
}
