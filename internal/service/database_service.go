package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"masterdata/internal/dbclient"
	"masterdata/internal/domain"
	"masterdata/internal/secret"
	"masterdata/internal/storage"
	"masterdata/internal/workflow/sources"
)

// ─────────────────────────────────────────────────────────────
// Database Service — external database connections for workflows
// ─────────────────────────────────────────────────────────────

// CreateDBConnInput is the service-layer DTO for creating/updating connections.
type CreateDBConnInput struct {
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

// DatabaseService manages external database connections and query
// execution. It uses a connector pool to reuse live connections and
// implements the database source provider for workflows.
type DatabaseService struct {
	connStore *storage.DBConnectionStore
	secrets   secret.SecretStore

	mu               sync.Mutex
	activeConnectors map[string]*connEntry
}

type connEntry struct {
	connector dbclient.Connector
	createdAt time.Time
}

// NewDatabaseService creates a DatabaseService.
func NewDatabaseService(connStore *storage.DBConnectionStore, secrets secret.SecretStore) *DatabaseService {
	return &DatabaseService{
		connStore:        connStore,
		secrets:          secrets,
		activeConnectors: make(map[string]*connEntry),
	}
}

// ── Connection CRUD ────────────────────────────────────────

func (s *DatabaseService) ListConnections() ([]domain.DatabaseConnection, error) {
	return s.connStore.ListConnections()
}

func (s *DatabaseService) CreateConnection(input CreateDBConnInput) (*domain.DatabaseConnection, error) {
	conn := &domain.DatabaseConnection{
		Name:     input.Name,
		Driver:   domain.DatabaseDriver(input.Driver),
		Host:     input.Host,
		Port:     input.Port,
		Database: input.Database,
		Username: input.Username,
		SSLMode:  input.SSLMode,
	}
	if err := s.connStore.CreateConnection(conn); err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	if input.Password != "" && s.secrets != nil {
		_ = s.secrets.Set("db:"+conn.ID, []byte(input.Password))
	}
	return conn, nil
}

func (s *DatabaseService) UpdateConnection(id string, input CreateDBConnInput) error {
	conn, err := s.connStore.GetConnection(id)
	if err != nil {
		return err
	}
	conn.Name = input.Name
	conn.Driver = domain.DatabaseDriver(input.Driver)
	conn.Host = input.Host
	conn.Port = input.Port
	conn.Database = input.Database
	conn.Username = input.Username
	conn.SSLMode = input.SSLMode
	if err := s.connStore.UpdateConnection(conn); err != nil {
		return err
	}
	if input.Password != "" && s.secrets != nil {
		_ = s.secrets.Set("db:"+id, []byte(input.Password))
	}
	// Invalidate cached connector so next query re-connects with new config.
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		_ = e.connector.Close()
		delete(s.activeConnectors, id)
	}
	s.mu.Unlock()
	return nil
}

func (s *DatabaseService) DeleteConnection(id string) error {
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		_ = e.connector.Close()
		delete(s.activeConnectors, id)
	}
	s.mu.Unlock()
	if s.secrets != nil {
		_ = s.secrets.Delete("db:" + id)
	}
	return s.connStore.DeleteConnection(id)
}

// ── Test + Introspect ──────────────────────────────────────

func (s *DatabaseService) TestConnection(ctx context.Context, id string) error {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return err
	}
	return connector.TestConnection(ctx)
}

func (s *DatabaseService) Introspect(ctx context.Context, connectionID string) (*dbclient.SchemaInfo, error) {
	connector, err := s.getOrCreate(connectionID)
	if err != nil {
		return nil, err
	}
	return connector.Introspect(ctx)
}

// ── Source provider ────────────────────────────────────────

// ExecuteSourceQuery runs a query on a connection for a workflow source.
func (s *DatabaseService) ExecuteSourceQuery(ctx context.Context, connID, query string, fetchSize int) (*sources.QueryPage, error) {
	connector, err := s.getOrCreate(connID)
	if err != nil {
		return nil, err
	}
	page, err := connector.Execute(ctx, query, fetchSize)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return toSourcePage(page), nil
}

// FetchMoreSourceRows continues an active cursor for a workflow source.
func (s *DatabaseService) FetchMoreSourceRows(ctx context.Context, connID string, fetchSize int) (*sources.QueryPage, error) {
	s.mu.Lock()
	entry, ok := s.activeConnectors[connID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no active query for connection %s", connID)
	}
	page, err := entry.connector.FetchMore(ctx, fetchSize)
	if err != nil {
		return nil, err
	}
	return toSourcePage(page), nil
}

func toSourcePage(page *dbclient.QueryPage) *sources.QueryPage {
	return &sources.QueryPage{
		Columns: page.Columns,
		Rows:    page.Rows,
		HasMore: page.HasMore,
	}
}

// ── Connector Pool ─────────────────────────────────────────

func (s *DatabaseService) getOrCreate(id string) (dbclient.Connector, error) {
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		s.mu.Unlock()
		return e.connector, nil
	}
	s.mu.Unlock()

	conn, err := s.connStore.GetConnection(id)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}

	var password string
	if s.secrets != nil {
		if pw, err := s.secrets.Get("db:" + id); err == nil {
			password = string(pw)
		}
	}

	connector, err := dbclient.NewConnector(conn, password)
	if err != nil {
		return nil, fmt.Errorf("open db connection: %w", err)
	}

	s.mu.Lock()
	s.activeConnectors[id] = &connEntry{connector: connector, createdAt: time.Now()}
	s.mu.Unlock()
	return connector, nil
}

// Close tears down all active database connectors.
func (s *DatabaseService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.activeConnectors {
		_ = entry.connector.Close()
		delete(s.activeConnectors, id)
	}
}
