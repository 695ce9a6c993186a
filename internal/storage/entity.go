package storage

import (
	"database/sql"
	"fmt"
	"time"

	"masterdata/internal/domain"

	"github.com/google/uuid"
)

// EntityStore implements domain.EntityStore on SQLite.
type EntityStore struct {
	db *DB
}

// NewEntityStore creates a new EntityStore.
func NewEntityStore(db *DB) *EntityStore {
	return &EntityStore{db: db}
}

// ── Entity types ───────────────────────────────────────────

func (s *EntityStore) CreateType(t *domain.EntityType) error {
	now := time.Now()
	t.ID = uuid.New().String()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.conn.Exec(
		`INSERT INTO entity_types (id, name, label, config_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Label, t.ConfigJSON, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *EntityStore) GetType(name string) (*domain.EntityType, error) {
	t := &domain.EntityType{}
	err := s.db.conn.QueryRow(
		`SELECT id, name, label, config_json, created_at, updated_at
		 FROM entity_types WHERE name = ?`, name,
	).Scan(&t.ID, &t.Name, &t.Label, &t.ConfigJSON, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity type not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *EntityStore) ListTypes() ([]domain.EntityType, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, name, label, config_json, created_at, updated_at
		 FROM entity_types ORDER BY name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []domain.EntityType
	for rows.Next() {
		var t domain.EntityType
		if err := rows.Scan(&t.ID, &t.Name, &t.Label, &t.ConfigJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *EntityStore) UpdateType(t *domain.EntityType) error {
	t.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE entity_types SET label=?, config_json=?, updated_at=? WHERE name=?`,
		t.Label, t.ConfigJSON, t.UpdatedAt, t.Name,
	)
	return err
}

func (s *EntityStore) DeleteType(name string) error {
	// Delete records first.
	if _, err := s.db.conn.Exec(`DELETE FROM entities WHERE type_name = ?`, name); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM entity_types WHERE name = ?`, name)
	return err
}

// ── Entity records ─────────────────────────────────────────

func (s *EntityStore) CreateEntity(e *domain.Entity) error {
	now := time.Now()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.conn.Exec(
		`INSERT INTO entities (id, type_name, key, data_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.TypeName, e.Key, e.DataJSON, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// UpsertEntityByKey updates the record with the same (type, key) pair
// if one exists, otherwise inserts a new one.
func (s *EntityStore) UpsertEntityByKey(e *domain.Entity) error {
	var existingID string
	err := s.db.conn.QueryRow(
		`SELECT id FROM entities WHERE type_name = ? AND key = ?`,
		e.TypeName, e.Key,
	).Scan(&existingID)
	if err == sql.ErrNoRows {
		return s.CreateEntity(e)
	}
	if err != nil {
		return err
	}

	e.ID = existingID
	e.UpdatedAt = time.Now()
	_, err = s.db.conn.Exec(
		`UPDATE entities SET data_json=?, updated_at=? WHERE id=?`,
		e.DataJSON, e.UpdatedAt, e.ID,
	)
	return err
}

func (s *EntityStore) GetEntity(id string) (*domain.Entity, error) {
	e := &domain.Entity{}
	err := s.db.conn.QueryRow(
		`SELECT id, type_name, key, data_json, created_at, updated_at
		 FROM entities WHERE id = ?`, id,
	).Scan(&e.ID, &e.TypeName, &e.Key, &e.DataJSON, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EntityStore) ListEntities(typeName string) ([]domain.Entity, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, type_name, key, data_json, created_at, updated_at
		 FROM entities WHERE type_name = ? ORDER BY created_at ASC`, typeName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.TypeName, &e.Key, &e.DataJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *EntityStore) DeleteEntity(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM entities WHERE id = ?`, id)
	return err
}

func (s *EntityStore) DeleteEntitiesByType(typeName string) error {
	_, err := s.db.conn.Exec(`DELETE FROM entities WHERE type_name = ?`, typeName)
	return err
}
