package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
)

// manifestPattern matches the recognized manifest suffixes at the top level
// of the scan directory.
const manifestPattern = "*.{yaml,yml}"

// Scanner discovers pipeline manifests and rebuilds a registry from them.
type Scanner struct {
	kinds *Kinds
}

func NewScanner(kinds *Kinds) *Scanner {
	return &Scanner{kinds: kinds}
}

// ScanResult aggregates the outcome of one scan.
type ScanResult struct {
	FilesProcessed int
	Loaded         int
	Errors         []LoadError
}

// LoadError records a manifest that could not be loaded. Load faults are
// diagnostics, never surfaced to HTTP clients.
type LoadError struct {
	File string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// Scan rebuilds the registry from the manifests under dir. A missing or
// non-directory path empties the registry and is not an error. Faults in
// individual manifests are recorded and logged but never abort the scan;
// the registry swap at the end is atomic for concurrent readers.
func (s *Scanner) Scan(ctx context.Context, registry *Registry, dir string) (*ScanResult, error) {
	log := logger.FromContext(ctx)
	result := &ScanResult{Errors: make([]LoadError, 0)}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Info("Pipelines directory not present, serving an empty registry", "dir", dir)
		registry.Replace(nil)
		return result, nil
	}

	files, err := doublestar.FilepathGlob(filepath.Join(dir, manifestPattern))
	if err != nil {
		return result, fmt.Errorf("manifest discovery failed for %s: %w", dir, err)
	}
	// Lexical order decides which definition wins an id collision.
	sort.Strings(files)

	next := make(map[string]*Entry)
	for _, file := range files {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		result.FilesProcessed++
		entry, skip, err := s.loadManifest(file)
		if err != nil {
			result.Errors = append(result.Errors, LoadError{File: file, Err: err})
			log.Warn("Skipping pipeline manifest due to load error", "file", file, "error", err)
			continue
		}
		if skip {
			log.Debug("Manifest does not declare a pipeline, skipping", "file", file)
			continue
		}
		if prior, exists := next[entry.ID]; exists {
			log.Warn("Duplicate pipeline id, later definition wins",
				"id", entry.ID,
				"kept", entry.SourcePath,
				"replaced", prior.SourcePath)
		}
		next[entry.ID] = entry
		result.Loaded++
	}

	registry.Replace(next)
	log.Info("Pipeline scan complete",
		"dir", dir,
		"files_processed", result.FilesProcessed,
		"pipelines", len(next),
		"errors", len(result.Errors))
	return result, nil
}

// loadManifest parses one manifest file and resolves it to a registry entry.
// skip is true for files that do not carry the pipeline marker.
func (s *Scanner) loadManifest(file string) (entry *Entry, skip bool, err error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, false, fmt.Errorf("reading manifest: %w", err)
	}

	def := &Definition{SourcePath: file}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, false, fmt.Errorf("parsing manifest: %w", err)
	}
	if def.Resource != ResourcePipeline {
		return nil, true, nil
	}

	kind := def.KindName()
	factory, ok := s.kinds.Lookup(kind)
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown handler kind %q", ErrInvalidDefinition, kind)
	}
	handler, err := factory(def)
	if err != nil {
		return nil, false, fmt.Errorf("%w: constructing %q: %v", ErrInvalidDefinition, kind, err)
	}
	if handler == nil {
		return nil, false, fmt.Errorf("%w: kind %q produced no handler", ErrInvalidDefinition, kind)
	}

	return &Entry{
		ID:          def.DerivedID(),
		Kind:        kind,
		Description: def.Description,
		SourcePath:  file,
		Handler:     handler,
	}, false, nil
}
