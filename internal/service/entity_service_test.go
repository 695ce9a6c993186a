package service_test

import (
	"context"
	"testing"

	"masterdata/internal/domain"
	"masterdata/internal/service"
	"masterdata/internal/storage"
	"masterdata/internal/workflow"
)

func newEntityService(t *testing.T) (*service.EntityService, *service.MockEmitter) {
	t.Helper()
	emitter := &service.MockEmitter{}
	return service.NewEntityService(storage.NewEntityStore(openDB(t)), emitter), emitter
}

func TestEntityService_CreateType(t *testing.T) {
	svc, _ := newEntityService(t)

	typ, err := svc.CreateType(context.Background(), service.CreateEntityTypeInput{
		Name: "customers",
		Config: domain.TypeConfig{
			KeyField: "email",
			Fields: []domain.FieldDef{
				{Name: "email", Type: domain.FieldTypeText},
				{Name: "age", Type: domain.FieldTypeNumber},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Label falls back to the name.
	if typ.Label != "customers" {
		t.Errorf("label = %q", typ.Label)
	}

	cfg, err := svc.TypeConfig("customers")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KeyField != "email" || len(cfg.Fields) != 2 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestEntityService_CreateTypeRequiresName(t *testing.T) {
	svc, _ := newEntityService(t)
	if _, err := svc.CreateType(context.Background(), service.CreateEntityTypeInput{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEntityService_CreateEntityResolvesKey(t *testing.T) {
	svc, emitter := newEntityService(t)
	ctx := context.Background()

	_, err := svc.CreateType(ctx, service.CreateEntityTypeInput{
		Name:   "customers",
		Config: domain.TypeConfig{KeyField: "email"},
	})
	if err != nil {
		t.Fatal(err)
	}

	e, err := svc.CreateEntity(ctx, "customers", map[string]any{
		"email": "ada@example.com",
		"name":  "Ada",
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Key != "ada@example.com" {
		t.Errorf("key = %q", e.Key)
	}

	last := emitter.Events[len(emitter.Events)-1]
	if last.Event != "entities:updated" {
		t.Errorf("event = %q", last.Event)
	}
}

func TestEntityService_CreateEntityUnknownType(t *testing.T) {
	svc, _ := newEntityService(t)
	if _, err := svc.CreateEntity(context.Background(), "ghosts", nil); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestEntityService_ListEntityRecords(t *testing.T) {
	svc, _ := newEntityService(t)
	ctx := context.Background()

	_, err := svc.CreateType(ctx, service.CreateEntityTypeInput{
		Name:   "products",
		Config: domain.TypeConfig{KeyField: "sku"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, data := range []map[string]any{
		{"sku": "W-1", "price": 9.5},
		{"sku": "W-2", "price": 12.0},
	} {
		if _, err := svc.CreateEntity(ctx, "products", data); err != nil {
			t.Fatal(err)
		}
	}

	records, err := svc.ListEntityRecords(ctx, "products")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if !records[0]["price"].Equal(workflow.Number(9.5)) {
		t.Errorf("price = %v", records[0]["price"])
	}
}

func TestEntityService_DeleteTypeEmits(t *testing.T) {
	svc, emitter := newEntityService(t)
	ctx := context.Background()

	if _, err := svc.CreateType(ctx, service.CreateEntityTypeInput{Name: "orders"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteType(ctx, "orders"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetType("orders"); err == nil {
		t.Error("type still exists")
	}
	last := emitter.Events[len(emitter.Events)-1]
	if last.Event != "entities:updated" {
		t.Errorf("event = %q", last.Event)
	}
}
