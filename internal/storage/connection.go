package storage

import (
	"database/sql"
	"fmt"
	"time"

	"masterdata/internal/domain"

	"github.com/google/uuid"
)

// DBConnectionStore implements domain.DatabaseConnectionStore on SQLite.
type DBConnectionStore struct {
	db *DB
}

// NewDBConnectionStore creates a new DBConnectionStore.
func NewDBConnectionStore(db *DB) *DBConnectionStore {
	return &DBConnectionStore{db: db}
}

func (s *DBConnectionStore) CreateConnection(c *domain.DatabaseConnection) error {
	now := time.Now()
	c.ID = uuid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now

	if c.ExtraJSON == "" {
		c.ExtraJSON = "{}"
	}

	_, err := s.db.conn.Exec(
		`INSERT INTO db_connections (id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Driver), c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.ExtraJSON,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *DBConnectionStore) GetConnection(id string) (*domain.DatabaseConnection, error) {
	c := &domain.DatabaseConnection{}
	var driver string
	err := s.db.conn.QueryRow(
		`SELECT id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at
		 FROM db_connections WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &driver, &c.Host, &c.Port, &c.Database, &c.Username, &c.SSLMode, &c.ExtraJSON,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("connection not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	c.Driver = domain.DatabaseDriver(driver)
	return c, nil
}

func (s *DBConnectionStore) ListConnections() ([]domain.DatabaseConnection, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at
		 FROM db_connections ORDER BY name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []domain.DatabaseConnection
	for rows.Next() {
		var c domain.DatabaseConnection
		var driver string
		if err := rows.Scan(&c.ID, &c.Name, &driver, &c.Host, &c.Port, &c.Database, &c.Username, &c.SSLMode, &c.ExtraJSON,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Driver = domain.DatabaseDriver(driver)
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *DBConnectionStore) UpdateConnection(c *domain.DatabaseConnection) error {
	c.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE db_connections SET name=?, driver=?, host=?, port=?, database_name=?, username=?, ssl_mode=?, extra_json=?, updated_at=?
		 WHERE id=?`,
		c.Name, string(c.Driver), c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.ExtraJSON,
		c.UpdatedAt, c.ID,
	)
	return err
}

func (s *DBConnectionStore) DeleteConnection(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM db_connections WHERE id = ?`, id)
	return err
}
