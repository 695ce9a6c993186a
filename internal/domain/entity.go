package domain

import "time"

// FieldType defines the data type of an entity field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDatetime FieldType = "datetime"
)

// FieldDef describes one field of an entity type.
type FieldDef struct {
	Name  string    `json:"name"`
	Label string    `json:"label,omitempty"`
	Type  FieldType `json:"type"`
}

// TypeConfig is the decoded form of EntityType.ConfigJSON.
type TypeConfig struct {
	KeyField string     `json:"keyField,omitempty"`
	Fields   []FieldDef `json:"fields"`
}

// EntityType is a master-data entity class (customer, product, …).
// ConfigJSON holds the field definitions and the key field name.
type EntityType struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"` // unique, referenced by workflow definitions
	Label      string    `json:"label"`
	ConfigJSON string    `json:"configJson"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Entity is a single master-data record of some entity type.
// DataJSON stores field values as { "field_name": value }.
type Entity struct {
	ID        string    `json:"id"`
	TypeName  string    `json:"typeName"`
	Key       string    `json:"key"` // value of the type's key field, used for upserts
	DataJSON  string    `json:"dataJson"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityStore manages CRUD for entity types and their records.
type EntityStore interface {
	CreateType(t *EntityType) error
	GetType(name string) (*EntityType, error)
	ListTypes() ([]EntityType, error)
	UpdateType(t *EntityType) error
	DeleteType(name string) error

	CreateEntity(e *Entity) error
	UpsertEntityByKey(e *Entity) error
	GetEntity(id string) (*Entity, error)
	ListEntities(typeName string) ([]Entity, error)
	DeleteEntity(id string) error
	DeleteEntitiesByType(typeName string) error
}
