package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sadopc/sqlsense/internal/adapter"
)

// Default DSN for a local PostgreSQL.
// Override with SQLSENSE_PG_DSN env var.
const defaultTestDSN = "postgres://localhost:5432/sqlsense_test?sslmode=disable"

func testDSN() string {
	if dsn := os.Getenv("SQLSENSE_PG_DSN"); dsn != "" {
		return dsn
	}
	return defaultTestDSN
}

func connectForTest(t *testing.T) adapter.Connection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &postgresAdapter{}
	conn, err := a.Connect(ctx, testDSN())
	if err != nil {
		t.Skipf("skipping: cannot connect to PostgreSQL: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestIntegration_ConnectAndPing(t *testing.T) {
	conn := connectForTest(t)

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if conn.AdapterName() != "postgres" {
		t.Errorf("AdapterName() = %q, want %q", conn.AdapterName(), "postgres")
	}
	if conn.DatabaseName() == "" {
		t.Error("DatabaseName() is empty")
	}
}

func TestIntegration_Execute(t *testing.T) {
	conn := connectForTest(t)
	ctx := context.Background()

	conn.Execute(ctx, "DROP TABLE IF EXISTS sqlsense_items")
	t.Cleanup(func() { conn.Execute(context.Background(), "DROP TABLE IF EXISTS sqlsense_items") })

	if _, err := conn.Execute(ctx, "CREATE TABLE sqlsense_items (id serial PRIMARY KEY, name text)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	r, err := conn.Execute(ctx, "INSERT INTO sqlsense_items (name) VALUES ('a'), (NULL)")
	if err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
	if r.RowCount != 2 {
		t.Errorf("INSERT RowCount = %d, want 2", r.RowCount)
	}

	r, err = conn.Execute(ctx, "SELECT name FROM sqlsense_items ORDER BY id")
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if !r.IsSelect || len(r.Rows) != 2 {
		t.Fatalf("SELECT = %+v, want 2 rows", r)
	}
	if r.Rows[1][0] != "NULL" {
		t.Errorf("NULL cell = %q, want NULL", r.Rows[1][0])
	}
	if r.Columns[0].Type != "text" {
		t.Errorf("column type = %q, want text", r.Columns[0].Type)
	}
}

func TestIntegration_UseDatabase(t *testing.T) {
	conn := connectForTest(t)
	ctx := context.Background()

	conn.Execute(ctx, "CREATE SCHEMA IF NOT EXISTS sqlsense_s")
	t.Cleanup(func() { conn.Execute(context.Background(), "DROP SCHEMA IF EXISTS sqlsense_s") })

	db := conn.DatabaseName()
	if err := conn.UseDatabase(ctx, "sqlsense_s"); err != nil {
		t.Fatalf("UseDatabase failed: %v", err)
	}
	if conn.DatabaseName() != db {
		t.Errorf("DatabaseName() = %q, want %q", conn.DatabaseName(), db)
	}
	r, err := conn.Execute(ctx, "SELECT current_schema()")
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if r.Rows[0][0] != "sqlsense_s" {
		t.Errorf("current_schema() = %q, want sqlsense_s", r.Rows[0][0])
	}
}
