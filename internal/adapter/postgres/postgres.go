package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/sqlsense/internal/adapter"
)

func init() {
	adapter.Register(&postgresAdapter{})
}

// postgresAdapter implements adapter.Adapter for PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string     { return "postgres" }
func (a *postgresAdapter) DefaultPort() int { return 5432 }

func (a *postgresAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &pgConn{
		pool:   pool,
		cfg:    cfg,
		dbName: cfg.ConnConfig.Database,
	}, nil
}

func connect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// pgConn implements adapter.Connection for PostgreSQL.
type pgConn struct {
	mu     sync.Mutex
	pool   *pgxpool.Pool
	cfg    *pgxpool.Config
	dbName string
}

func (c *pgConn) AdapterName() string { return "postgres" }

func (c *pgConn) DatabaseName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dbName
}

func (c *pgConn) current() *pgxpool.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool
}

func (c *pgConn) Ping(ctx context.Context) error {
	return c.current().Ping(ctx)
}

func (c *pgConn) Close() error {
	c.current().Close()
	return nil
}

// UseDatabase makes name the first schema on the search path. Schemas are
// the namespaces completion treats as databases; the setting is applied by
// reconnecting so that every pooled session picks it up.
func (c *pgConn) UseDatabase(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.cfg.Copy()
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = adapter.QuoteIdent("postgres", name)
	pool, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("postgres: use %s: %w", name, err)
	}

	old := c.pool
	c.pool = pool
	c.cfg = cfg
	old.Close()
	return nil
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func (c *pgConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	start := time.Now()
	if adapter.IsRowStatement(stripLeadingComments(query)) {
		return c.executeSelect(ctx, query, start)
	}
	return c.executeNonSelect(ctx, query, start)
}

func (c *pgConn) executeSelect(ctx context.Context, query string, start time.Time) (*adapter.QueryResult, error) {
	rows, err := c.current().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	cols := fieldDescToMeta(rows.FieldDescriptions())

	var (
		result    [][]string
		truncated bool
	)
	for rows.Next() {
		if len(result) >= adapter.DefaultMaxRows {
			truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("execute values: %w", err)
		}
		result = append(result, valuesToStrings(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execute rows: %w", err)
	}

	return &adapter.QueryResult{
		Columns:   cols,
		Rows:      result,
		RowCount:  int64(len(result)),
		Duration:  time.Since(start),
		IsSelect:  true,
		Truncated: truncated,
	}, nil
}

func (c *pgConn) executeNonSelect(ctx context.Context, query string, start time.Time) (*adapter.QueryResult, error) {
	tag, err := c.current().Exec(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	return &adapter.QueryResult{
		RowCount: tag.RowsAffected(),
		Duration: time.Since(start),
		IsSelect: false,
		Message:  tag.String(),
	}, nil
}

// stripLeadingComments removes leading -- and /* */ comments.
func stripLeadingComments(query string) string {
	q := strings.TrimSpace(query)
	for {
		if strings.HasPrefix(q, "--") {
			if idx := strings.Index(q, "\n"); idx >= 0 {
				q = strings.TrimSpace(q[idx+1:])
				continue
			}
			return ""
		}
		if strings.HasPrefix(q, "/*") {
			if idx := strings.Index(q, "*/"); idx >= 0 {
				q = strings.TrimSpace(q[idx+2:])
				continue
			}
			return ""
		}
		return q
	}
}

func fieldDescToMeta(fds []pgconn.FieldDescription) []adapter.ColumnMeta {
	cols := make([]adapter.ColumnMeta, len(fds))
	for i, fd := range fds {
		cols[i] = adapter.ColumnMeta{
			Name: fd.Name,
			Type: pgTypeOIDToName(fd.DataTypeOID),
		}
	}
	return cols
}

// valuesToStrings converts a row of values to strings.
func valuesToStrings(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = valueToString(v)
	}
	return out
}

// valueToString converts a single database value to a string representation.
func valueToString(v any) string {
	if v == nil {
		return "NULL"
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case bool:
		if val {
			return "true"
		}
		return "false"
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []string:
		return "{" + strings.Join(val, ",") + "}"
	case pgtype.Numeric:
		dv, err := val.Value()
		if err != nil || dv == nil {
			return "NULL"
		}
		if s, ok := dv.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", dv)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// pgTypeOIDToName maps common PostgreSQL type OIDs to human-readable names.
func pgTypeOIDToName(oid uint32) string {
	switch oid {
	case 16:
		return "bool"
	case 17:
		return "bytea"
	case 19:
		return "name"
	case 20:
		return "int8"
	case 21:
		return "int2"
	case 23:
		return "int4"
	case 25:
		return "text"
	case 114:
		return "json"
	case 700:
		return "float4"
	case 701:
		return "float8"
	case 1043:
		return "varchar"
	case 1082:
		return "date"
	case 1114:
		return "timestamp"
	case 1184:
		return "timestamptz"
	case 1700:
		return "numeric"
	case 2950:
		return "uuid"
	case 3802:
		return "jsonb"
	default:
		return fmt.Sprintf("oid:%d", oid)
	}
}
