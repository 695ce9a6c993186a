package workflow

import (
	"context"
	"fmt"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source extracts raw records from an external system. One
// implementation per source type lives in workflow/sources/.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "string" | "select" | "textarea" | "password" | "file"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"` // for "select" type
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type and its required config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is the interface every data source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Discover introspects the source and returns the expected schema.
	Discover(ctx context.Context, cfg SourceConfig) (*Schema, error)

	// Read streams records from the source into a channel.
	// The channel is closed when all records have been read or ctx is
	// cancelled. Errors are sent on the error channel (buffered size 1).
	Read(ctx context.Context, cfg SourceConfig) (<-chan Record, <-chan error)
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
// Called from init() in each source implementation file.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	return specs
}

// ── Registry-backed Fetcher ────────────────────────────────

// SourceFetcher resolves FromDefs against the source registry:
// format sources by their registered type, entity sources through the
// "entity" source with the from clause's type and filter.
type SourceFetcher struct{}

// Fetch collects the full record sequence for a from clause.
func (SourceFetcher) Fetch(ctx context.Context, from FromDef) ([]Record, error) {
	var (
		src Source
		cfg SourceConfig
		err error
	)
	switch from.Type {
	case FromFormat:
		src, err = GetSource(from.Source)
		cfg = SourceConfig(from.Config)
	case FromEntity:
		src, err = GetSource("entity")
		cfg = SourceConfig{"entityType": from.Entity, "filter": from.Filter}
	case FromPreviousStep:
		return nil, &UnsupportedOperationError{What: "previous_step source has no fetch"}
	default:
		return nil, &UnsupportedOperationError{What: fmt.Sprintf("source type %q", from.Type)}
	}
	if err != nil {
		return nil, err
	}

	recCh, errCh := src.Read(ctx, cfg)
	var records []Record
	for rec := range recCh {
		records = append(records, rec)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return records, nil
}
