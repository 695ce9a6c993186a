package dbclient

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"masterdata/internal/domain"
)

func TestIsReadQuery(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM users", true},
		{"  select 1", true},
		{"WITH cte AS (SELECT 1) SELECT * FROM cte", true},
		{"SHOW TABLES", true},
		{"EXPLAIN SELECT 1", true},
		{"PRAGMA table_info('users')", true},
		{"INSERT INTO users VALUES (1)", false},
		{"UPDATE users SET name='x'", false},
		{"DELETE FROM users", false},
		{"CREATE TABLE t (id INT)", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isReadQuery(tc.query); got != tc.want {
			t.Errorf("isReadQuery(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	if got := formatValue([]byte("hello")); got != "hello" {
		t.Errorf("bytes = %v", got)
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := formatValue(ts); got != "2026-03-01T12:00:00Z" {
		t.Errorf("time = %v", got)
	}
	if got := formatValue(nil); got != nil {
		t.Errorf("nil = %v", got)
	}
	if got := formatValue(int64(7)); got != int64(7) {
		t.Errorf("int64 = %v", got)
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	conn := &domain.DatabaseConnection{
		Host: "db.internal", Database: "shop", Username: "app",
	}
	dsn := buildMySQLDSN(conn, "s3cret")
	want := "app:s3cret@tcp(db.internal:3306)/shop?parseTime=true&charset=utf8mb4"
	if dsn != want {
		t.Errorf("dsn = %q, want %q", dsn, want)
	}

	conn.Port = 3307
	conn.SSLMode = "require"
	dsn = buildMySQLDSN(conn, "s3cret")
	want = "app:s3cret@tcp(db.internal:3307)/shop?parseTime=true&charset=utf8mb4&tls=true"
	if dsn != want {
		t.Errorf("dsn = %q, want %q", dsn, want)
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	conn := &domain.DatabaseConnection{
		Host: "localhost", Port: 5433, Database: "analytics",
		Username: "reader", SSLMode: "disable",
	}
	dsn := buildPostgresDSN(conn, "pw")
	fields := map[string]bool{}
	for _, f := range strings.Fields(dsn) {
		fields[f] = true
	}
	for _, part := range []string{"host=localhost", "port=5433", "dbname=analytics", "user=reader", "password=pw", "sslmode=disable"} {
		if !fields[part] {
			t.Errorf("dsn %q missing %q", dsn, part)
		}
	}
}

// ── SQLite connector (exercises the shared SQL path end to end) ──

func openSQLiteConnector(t *testing.T) Connector {
	t.Helper()
	conn := &domain.DatabaseConnection{
		Driver: domain.DatabaseDriverSQLite,
		Host:   filepath.Join(t.TempDir(), "test.db"),
	}
	c, err := NewConnector(conn, "")
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLiteConnector_ExecuteAndFetch(t *testing.T) {
	c := openSQLiteConnector(t)
	ctx := context.Background()

	page, err := c.Execute(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !page.IsWrite {
		t.Error("DDL not reported as write")
	}

	page, err = c.Execute(ctx, "INSERT INTO items (name) VALUES ('a'), ('b'), ('c')", 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.AffectedRows != 3 {
		t.Errorf("affected = %d", page.AffectedRows)
	}

	page, err = c.Execute(ctx, "SELECT id, name FROM items ORDER BY id", 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.IsWrite {
		t.Error("SELECT reported as write")
	}
	if len(page.Columns) != 2 || page.Columns[1] != "name" {
		t.Errorf("columns = %v", page.Columns)
	}
	if len(page.Rows) != 2 || !page.HasMore || page.TotalFetched != 2 {
		t.Fatalf("first page = %+v", page)
	}

	page, err = c.FetchMore(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 1 || page.HasMore || page.TotalFetched != 3 {
		t.Fatalf("second page = %+v", page)
	}
	if page.Rows[0][1] != "c" {
		t.Errorf("row = %v", page.Rows[0])
	}

	// Cursor is exhausted and closed.
	if _, err := c.FetchMore(ctx, 2); err == nil {
		t.Error("expected error after cursor close")
	}
}

func TestSQLiteConnector_Introspect(t *testing.T) {
	c := openSQLiteConnector(t)
	ctx := context.Background()

	if _, err := c.Execute(ctx, "CREATE TABLE products (sku TEXT, price REAL)", 0); err != nil {
		t.Fatal(err)
	}

	schema, err := c.Introspect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(schema.Tables) != 1 || schema.Tables[0].Name != "products" {
		t.Fatalf("schema = %+v", schema)
	}
	cols := schema.Tables[0].Columns
	if len(cols) != 2 || cols[0].Name != "sku" || cols[1].Type != "REAL" {
		t.Errorf("columns = %+v", cols)
	}
}

func TestNewConnector_UnknownDriver(t *testing.T) {
	_, err := NewConnector(&domain.DatabaseConnection{Driver: "oracle"}, "")
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
