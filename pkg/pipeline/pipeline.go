package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ResourcePipeline is the marker a manifest must carry to be treated as a
// pipeline definition; files without it are skipped during a scan.
const ResourcePipeline = "pipeline"

var (
	// ErrInvalidDefinition marks manifests that carry the pipeline marker but
	// cannot be resolved to a handler.
	ErrInvalidDefinition = errors.New("invalid pipeline definition")
	// ErrKindRegistered is returned when a handler kind name is registered twice.
	ErrKindRegistered = errors.New("handler kind already registered")
)

// Call carries the conventional dispatch arguments. Body is the request
// payload; the remaining fields predate the pipeline-only calling convention
// and stay part of the contract so handlers written against it keep working.
type Call struct {
	UserMessage string
	ModelID     string
	Messages    []map[string]any
	Body        map[string]any
}

// Handler is the capability a discovered unit must provide: a stable id and
// a synchronous invocation taking the request payload.
//
// Invoke returns the value serialized to the client. A map result is passed
// through as the response body; anything else is wrapped by the dispatcher.
// Handler-level validation failures belong in the result value (for example
// a map with an "error" key), not in the error return; a non-nil error means
// the invocation itself faulted.
type Handler interface {
	ID() string
	Invoke(ctx context.Context, call Call) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	Name string
	Fn   func(ctx context.Context, call Call) (any, error)
}

func (h HandlerFunc) ID() string { return h.Name }

func (h HandlerFunc) Invoke(ctx context.Context, call Call) (any, error) {
	return h.Fn(ctx, call)
}

// Definition is one parsed pipeline manifest.
type Definition struct {
	Resource    string         `yaml:"resource"`
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Handler     string         `yaml:"handler"`
	Description string         `yaml:"description"`
	With        map[string]any `yaml:"with"`

	// SourcePath is the manifest location, set by the scanner.
	SourcePath string `yaml:"-"`
}

// DerivedID resolves the entry id: declared id first, then the declared
// name, then the manifest's base filename.
func (d *Definition) DerivedID() string {
	if id := strings.TrimSpace(d.ID); id != "" {
		return id
	}
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	base := filepath.Base(d.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// KindName resolves which registered handler kind the manifest binds to,
// defaulting to the derived id when no handler field is declared.
func (d *Definition) KindName() string {
	if kind := strings.TrimSpace(d.Handler); kind != "" {
		return kind
	}
	return d.DerivedID()
}

// Factory builds a handler instance from a parsed definition.
type Factory func(def *Definition) (Handler, error)
