package service

import (
	"context"
	"encoding/json"
	"fmt"

	"masterdata/internal/domain"
	"masterdata/internal/workflow"
)

// ─────────────────────────────────────────────────────────────
// Entity Service — business logic for master-data entities
// ─────────────────────────────────────────────────────────────

// EntityService manages entity types and their records. It also
// implements the entity source provider so workflows can read from
// the store.
type EntityService struct {
	store   domain.EntityStore
	emitter EventEmitter
}

// NewEntityService creates an EntityService.
func NewEntityService(store domain.EntityStore, emitter EventEmitter) *EntityService {
	return &EntityService{store: store, emitter: emitter}
}

// ── Entity types ───────────────────────────────────────────

type CreateEntityTypeInput struct {
	Name   string            `json:"name"`
	Label  string            `json:"label"`
	Config domain.TypeConfig `json:"config"`
}

func (s *EntityService) CreateType(ctx context.Context, input CreateEntityTypeInput) (*domain.EntityType, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("entity type name is required")
	}
	cfg, err := json.Marshal(input.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal type config: %w", err)
	}

	t := &domain.EntityType{
		Name:       input.Name,
		Label:      input.Label,
		ConfigJSON: string(cfg),
	}
	if t.Label == "" {
		t.Label = t.Name
	}
	if err := s.store.CreateType(t); err != nil {
		return nil, fmt.Errorf("create entity type: %w", err)
	}
	return t, nil
}

func (s *EntityService) GetType(name string) (*domain.EntityType, error) {
	return s.store.GetType(name)
}

func (s *EntityService) ListTypes() ([]domain.EntityType, error) {
	return s.store.ListTypes()
}

func (s *EntityService) UpdateType(ctx context.Context, name string, input CreateEntityTypeInput) error {
	t, err := s.store.GetType(name)
	if err != nil {
		return err
	}
	cfg, err := json.Marshal(input.Config)
	if err != nil {
		return fmt.Errorf("marshal type config: %w", err)
	}
	t.Label = input.Label
	t.ConfigJSON = string(cfg)
	return s.store.UpdateType(t)
}

func (s *EntityService) DeleteType(ctx context.Context, name string) error {
	err := s.store.DeleteType(name)
	if err == nil {
		s.emitter.Emit(ctx, "entities:updated", map[string]string{"typeName": name})
	}
	return err
}

// TypeConfig decodes the ConfigJSON of a type.
func (s *EntityService) TypeConfig(name string) (*domain.TypeConfig, error) {
	t, err := s.store.GetType(name)
	if err != nil {
		return nil, err
	}
	cfg := &domain.TypeConfig{}
	if t.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(t.ConfigJSON), cfg); err != nil {
			return nil, fmt.Errorf("parse type config for %s: %w", name, err)
		}
	}
	return cfg, nil
}

// ── Entity records ─────────────────────────────────────────

func (s *EntityService) CreateEntity(ctx context.Context, typeName string, data map[string]any) (*domain.Entity, error) {
	if _, err := s.store.GetType(typeName); err != nil {
		return nil, err
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal entity data: %w", err)
	}

	e := &domain.Entity{
		TypeName: typeName,
		DataJSON: string(dataJSON),
	}
	if cfg, err := s.TypeConfig(typeName); err == nil && cfg.KeyField != "" {
		if kv, ok := data[cfg.KeyField]; ok {
			e.Key = fmt.Sprintf("%v", kv)
		}
	}

	if err := s.store.CreateEntity(e); err != nil {
		return nil, fmt.Errorf("create entity: %w", err)
	}
	s.emitter.Emit(ctx, "entities:updated", map[string]string{"typeName": typeName})
	return e, nil
}

func (s *EntityService) GetEntity(id string) (*domain.Entity, error) {
	return s.store.GetEntity(id)
}

func (s *EntityService) ListEntities(typeName string) ([]domain.Entity, error) {
	return s.store.ListEntities(typeName)
}

func (s *EntityService) DeleteEntity(ctx context.Context, id string) error {
	return s.store.DeleteEntity(id)
}

// ── Source provider ────────────────────────────────────────

// ListEntityRecords returns every record of a type as workflow
// records, decoded from each entity's stored data.
func (s *EntityService) ListEntityRecords(ctx context.Context, typeName string) ([]workflow.Record, error) {
	entities, err := s.store.ListEntities(typeName)
	if err != nil {
		return nil, err
	}

	records := make([]workflow.Record, 0, len(entities))
	for _, e := range entities {
		var data map[string]any
		if err := json.Unmarshal([]byte(e.DataJSON), &data); err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", e.ID, err)
		}
		records = append(records, workflow.RecordFromAny(data))
	}
	return records, nil
}
