package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"masterdata/internal/secret"
	"masterdata/internal/service"
	"masterdata/internal/storage"
)

// App wires storage, secrets, and services together. The CLI and the
// MCP server both run on top of it.
type App struct {
	db      *storage.DB
	secrets secret.SecretStore
	emitter service.EventEmitter

	Workflows *service.WorkflowService
	Entities  *service.EntityService
	Database  *service.DatabaseService
}

// logEmitter writes lifecycle events to the process log. Headless
// runs have no event transport, so the log is the record.
type logEmitter struct{}

func (logEmitter) Emit(_ context.Context, event string, data any) {
	log.Printf("event %s: %v", event, data)
}

// New opens the database under dataDir and wires all services.
func New(dataDir string) (*App, error) {
	dbPath := filepath.Join(dataDir, "masterdata.db")

	db, err := storage.New(dbPath, dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	secrets, err := secret.NewFileStore(dataDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open secret store: %w", err)
	}

	emitter := logEmitter{}

	workflowStore := storage.NewWorkflowStore(db)
	entityStore := storage.NewEntityStore(db)
	connStore := storage.NewDBConnectionStore(db)

	a := &App{
		db:      db,
		secrets: secrets,
		emitter: emitter,

		Entities: service.NewEntityService(entityStore, emitter),
		Database: service.NewDatabaseService(connStore, secrets),
	}
	a.Workflows = service.NewWorkflowService(workflowStore, entityStore, emitter)

	wireSourceProviders(a)

	return a, nil
}

// StartWatchers begins cron scheduling and file watching for enabled jobs.
func (a *App) StartWatchers(ctx context.Context) {
	a.Workflows.RestartWatchers(ctx)
}

// Close shuts down watchers, waits for running jobs, and releases
// all connections.
func (a *App) Close(ctx context.Context) error {
	a.Workflows.Stop()
	a.Workflows.WaitRunning(ctx)
	a.Database.Close()
	return a.db.Close()
}
