package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/loader"
)

func TestOpenThroughRegistry(t *testing.T) {
	conn, err := adapter.Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open(sqlite) error: %v", err)
	}
	defer conn.Close()

	if got := conn.AdapterName(); got != "sqlite" {
		t.Errorf("AdapterName() = %q, want %q", got, "sqlite")
	}
	if got := conn.DatabaseName(); got != ":memory:" {
		t.Errorf("DatabaseName() = %q, want %q", got, ":memory:")
	}
}

func TestConnect_MemoryUsesOneConnection(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if got := conn.(*sqliteConn).DB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("MaxOpenConnections = %d, want 1", got)
	}
	if _, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE error: %v", err)
	}

	// A second pooled connection would open a fresh, empty database.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := conn.Execute(ctx, "SELECT count(*) FROM t")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent SELECT error: %v", err)
		}
	}
}

func TestConnect_FileDSNForms(t *testing.T) {
	dir := t.TempDir()
	for _, tt := range []struct {
		name string
		dsn  func(path string) string
	}{
		{"plain path", func(p string) string { return p }},
		{"sqlite scheme", func(p string) string { return "sqlite://" + p }},
		{"file prefix", func(p string) string { return "file:" + p }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".db")
			conn, err := (&sqliteAdapter{}).Connect(context.Background(), tt.dsn(path))
			if err != nil {
				t.Fatalf("Connect error: %v", err)
			}
			defer conn.Close()

			if got := conn.DatabaseName(); got != filepath.Base(path) {
				t.Errorf("DatabaseName() = %q, want %q", got, filepath.Base(path))
			}
			if got := conn.(*sqliteConn).DB.Stats().MaxOpenConnections; got != 0 {
				t.Errorf("file pool MaxOpenConnections = %d, want unlimited", got)
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("database file not created: %v", err)
			}
		})
	}
}

func TestConnect_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "x.db")
	if _, err := (&sqliteAdapter{}).Connect(context.Background(), path); err == nil {
		t.Fatal("expected error for a path in a missing directory")
	}
}

func TestConnect_ForeignKeysEnabled(t *testing.T) {
	conn := openMemory(t)
	res, err := conn.Execute(context.Background(), "PRAGMA foreign_keys")
	if err != nil {
		t.Fatalf("PRAGMA error: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "1" {
		t.Errorf("foreign_keys = %v, want 1", res.Rows)
	}
}

func TestUseDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")
	conn, err := (&sqliteAdapter{}).Connect(context.Background(), path)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	for _, name := range []string{MainSchema, "shop.db"} {
		if err := conn.UseDatabase(ctx, name); err != nil {
			t.Errorf("UseDatabase(%q) error: %v", name, err)
		}
	}
	err = conn.UseDatabase(ctx, "other")
	if !errors.Is(err, adapter.ErrUnsupported) {
		t.Errorf("UseDatabase(other) error = %v, want ErrUnsupported", err)
	}
}

func TestExecute_RowStatementDetection(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	if _, err := conn.Execute(ctx, "CREATE TABLE t (b TEXT, a INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE error: %v", err)
	}

	tests := []struct {
		stmt     string
		isSelect bool
	}{
		{"SELECT 'main'", true},
		{"  (select 1)", true},
		{"with x as (select 1) select * from x", true},
		{"PRAGMA table_info('t')", true},
		{"VALUES (1), (2)", true},
		{"INSERT INTO t VALUES ('x', 1)", false},
		{"UPDATE t SET a = 2", false},
		{"CREATE VIEW v AS SELECT a FROM t", false},
	}
	for _, tt := range tests {
		res, err := conn.Execute(ctx, tt.stmt)
		if err != nil {
			t.Errorf("%q: %v", tt.stmt, err)
			continue
		}
		if res.IsSelect != tt.isSelect {
			t.Errorf("%q: IsSelect = %v, want %v", tt.stmt, res.IsSelect, tt.isSelect)
		}
	}
}

func TestExecute_AffectedRowsAndNull(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	if _, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER, note TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error: %v", err)
	}

	res, err := conn.Execute(ctx, "INSERT INTO t VALUES (1, 'a'), (2, NULL)")
	if err != nil {
		t.Fatalf("INSERT error: %v", err)
	}
	if res.RowCount != 2 || res.Message != "2 row(s) affected" {
		t.Errorf("INSERT result = %d %q", res.RowCount, res.Message)
	}

	res, err = conn.Execute(ctx, "SELECT note FROM t ORDER BY id")
	if err != nil {
		t.Fatalf("SELECT error: %v", err)
	}
	want := [][]string{{"a"}, {"NULL"}}
	if len(res.Rows) != 2 || res.Rows[0][0] != want[0][0] || res.Rows[1][0] != want[1][0] {
		t.Errorf("rows = %v, want %v", res.Rows, want)
	}
}

func TestExecute_AfterClose(t *testing.T) {
	conn := openMemory(t)
	conn.Close()
	if _, err := conn.Execute(context.Background(), "SELECT 1"); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestLoaderReadsMainSchema(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE orders (total REAL, id INTEGER PRIMARY KEY)",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE VIEW big AS SELECT id FROM orders WHERE total > 100",
	} {
		if _, err := conn.Execute(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	cache, err := loader.New().Load(ctx, conn)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := cache.ActiveDatabase(); got != MainSchema {
		t.Errorf("ActiveDatabase() = %q, want %q", got, MainSchema)
	}
	if got := cache.Tables(MainSchema); !slices.Equal(got, []string{"orders", "users"}) {
		t.Errorf("Tables = %v", got)
	}
	if got := cache.Views(MainSchema); !slices.Equal(got, []string{"big"}) {
		t.Errorf("Views = %v", got)
	}
	if got := cache.Columns(MainSchema, "orders"); !slices.Equal(got, []string{"total", "id"}) {
		t.Errorf("Columns(orders) = %v, want declaration order", got)
	}
}

// openMemory creates an in-memory SQLite connection closed at test end.
func openMemory(t *testing.T) adapter.Connection {
	t.Helper()
	conn, err := (&sqliteAdapter{}).Connect(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Connect(:memory:) error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
