package sources

import (
	"context"
	"fmt"

	"masterdata/internal/workflow"
)

// ── Entity Source ──────────────────────────────────────────
// Reads records from the platform's own entity store, optionally
// filtered by exact field match. The store is reached through a
// provider interface injected at startup to keep this package free of
// storage imports.

// EntityProvider abstracts access to the entity store.
type EntityProvider interface {
	// ListEntityRecords returns every record of the given entity type.
	ListEntityRecords(ctx context.Context, typeName string) ([]workflow.Record, error)
}

var entityProvider EntityProvider

// SetEntityProvider is called by the service layer at startup.
func SetEntityProvider(p EntityProvider) { entityProvider = p }

type entitySource struct{}

func init() { workflow.RegisterSource(&entitySource{}) }

func (s *entitySource) Spec() workflow.SourceSpec {
	return workflow.SourceSpec{
		Type:  "entity",
		Label: "Entity Store",
		ConfigFields: []workflow.ConfigField{
			{Key: "entityType", Label: "Entity Type", Type: "string", Required: true, Help: "Name of the entity type to read"},
			{Key: "filter", Label: "Filter", Type: "textarea", Required: false, Help: "JSON object of field → value equality filters"},
		},
	}
}

func (s *entitySource) Discover(ctx context.Context, cfg workflow.SourceConfig) (*workflow.Schema, error) {
	records, err := readEntities(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *entitySource) Read(ctx context.Context, cfg workflow.SourceConfig) (<-chan workflow.Record, <-chan error) {
	out := make(chan workflow.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		records, err := readEntities(ctx, cfg)
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

func readEntities(ctx context.Context, cfg workflow.SourceConfig) ([]workflow.Record, error) {
	typeName, _ := cfg["entityType"].(string)
	if typeName == "" {
		return nil, fmt.Errorf("entityType is required")
	}
	if entityProvider == nil {
		return nil, fmt.Errorf("entity provider not initialized")
	}

	records, err := entityProvider.ListEntityRecords(ctx, typeName)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	filter, _ := cfg["filter"].(map[string]any)
	if len(filter) == 0 {
		return records, nil
	}

	want := workflow.RecordFromAny(filter)
	var filtered []workflow.Record
	for _, rec := range records {
		if matchesFilter(rec, want) {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func matchesFilter(rec, want workflow.Record) bool {
	for k, wv := range want {
		rv, ok := rec[k]
		if !ok || !rv.Equal(wv) {
			return false
		}
	}
	return true
}
