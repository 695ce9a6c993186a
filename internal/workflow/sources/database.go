package sources

import (
	"context"
	"fmt"

	"masterdata/internal/workflow"
)

// ── Database Source ────────────────────────────────────────
// Reads data from a registered external database connection.
// Reuses the dbclient.Connector infrastructure via a provider interface.

// QueryPage mirrors dbclient.QueryPage to avoid circular imports.
type QueryPage struct {
	Columns []string
	Rows    [][]any
	HasMore bool
}

// DBProvider abstracts how we get connector access.
// The service layer implements this and injects it at startup.
type DBProvider interface {
	ExecuteSourceQuery(ctx context.Context, connID, query string, fetchSize int) (*QueryPage, error)
	FetchMoreSourceRows(ctx context.Context, connID string, fetchSize int) (*QueryPage, error)
}

var dbProvider DBProvider

// SetDBProvider is called by the service layer at startup.
func SetDBProvider(p DBProvider) { dbProvider = p }

type databaseSource struct{}

func init() { workflow.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() workflow.SourceSpec {
	return workflow.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: []workflow.ConfigField{
			{Key: "connectionId", Label: "Connection", Type: "string", Required: true, Help: "ID of a registered database connection"},
			{Key: "query", Label: "Query", Type: "textarea", Required: true, Help: "Read query to execute (SQL, or JSON for MongoDB)"},
		},
	}
}

func resolveDBConfig(cfg workflow.SourceConfig) (string, string, error) {
	connID, _ := cfg["connectionId"].(string)
	query, _ := cfg["query"].(string)
	if connID == "" || query == "" {
		return "", "", fmt.Errorf("connectionId and query are required")
	}
	return connID, query, nil
}

func (s *databaseSource) Discover(ctx context.Context, cfg workflow.SourceConfig) (*workflow.Schema, error) {
	connID, query, err := resolveDBConfig(cfg)
	if err != nil {
		return nil, err
	}
	if dbProvider == nil {
		return nil, fmt.Errorf("database provider not initialized")
	}

	page, err := dbProvider.ExecuteSourceQuery(ctx, connID, query, 1)
	if err != nil {
		return nil, err
	}

	schema := &workflow.Schema{Fields: make([]workflow.Field, len(page.Columns))}
	for i, col := range page.Columns {
		schema.Fields[i] = workflow.Field{Name: col, Type: "text"}
	}
	return schema, nil
}

func (s *databaseSource) Read(ctx context.Context, cfg workflow.SourceConfig) (<-chan workflow.Record, <-chan error) {
	out := make(chan workflow.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		connID, query, err := resolveDBConfig(cfg)
		if err != nil {
			errCh <- err
			return
		}
		if dbProvider == nil {
			errCh <- fmt.Errorf("database provider not initialized")
			return
		}

		page, err := dbProvider.ExecuteSourceQuery(ctx, connID, query, 500)
		if err != nil {
			errCh <- fmt.Errorf("execute: %w", err)
			return
		}

		if !emitPage(ctx, out, page) {
			return
		}

		for page.HasMore {
			page, err = dbProvider.FetchMoreSourceRows(ctx, connID, 500)
			if err != nil {
				errCh <- fmt.Errorf("fetch more: %w", err)
				return
			}
			if !emitPage(ctx, out, page) {
				return
			}
		}
	}()

	return out, errCh
}

func emitPage(ctx context.Context, out chan<- workflow.Record, page *QueryPage) bool {
	for _, row := range page.Rows {
		rec := make(workflow.Record, len(page.Columns))
		for i, col := range page.Columns {
			if i < len(row) {
				rec[col] = workflow.FromAny(row[i])
			}
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
