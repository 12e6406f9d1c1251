package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sadopc/sqlsense/internal/adapter"

	_ "modernc.org/sqlite"
)

// MainSchema is the schema name SQLite gives the primary database file.
const MainSchema = "main"

func init() {
	adapter.Register(&sqliteAdapter{})
}

// sqliteAdapter implements adapter.Adapter for SQLite databases.
type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string     { return "sqlite" }
func (a *sqliteAdapter) DefaultPort() int { return 0 }

func (a *sqliteAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	dsn = normalizeDSN(dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection to :memory: would see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite enable foreign keys: %w", err)
	}

	dbName := dsn
	if dsn != ":memory:" {
		dbName = filepath.Base(dsn)
	}

	return &sqliteConn{
		SQLConn: adapter.SQLConn{DB: db},
		dbName:  dbName,
	}, nil
}

// normalizeDSN strips common SQLite URI prefixes.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	if strings.HasPrefix(dsn, "file:") {
		return strings.TrimPrefix(dsn, "file:")
	}
	return dsn
}

// sqliteConn implements adapter.Connection.
type sqliteConn struct {
	adapter.SQLConn
	dbName string
}

func (c *sqliteConn) AdapterName() string  { return "sqlite" }
func (c *sqliteConn) DatabaseName() string { return c.dbName }

// UseDatabase accepts only the main schema: a SQLite connection is bound to
// the file it was opened with.
func (c *sqliteConn) UseDatabase(_ context.Context, name string) error {
	if name == MainSchema || name == c.dbName {
		return nil
	}
	return fmt.Errorf("sqlite: use %s: %w", name, adapter.ErrUnsupported)
}
