package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLConn executes statements over a database/sql pool and renders every
// cell as a string. Driver-specific adapters embed it and add Connect,
// UseDatabase and naming.
type SQLConn struct {
	DB *sql.DB
}

// Execute runs query and materialises up to DefaultMaxRows rows.
func (c *SQLConn) Execute(ctx context.Context, query string) (*QueryResult, error) {
	if c.DB == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	if IsRowStatement(query) {
		return c.executeSelect(ctx, query, start)
	}
	return c.executeExec(ctx, query, start)
}

// Ping verifies the pool is reachable.
func (c *SQLConn) Ping(ctx context.Context) error {
	if c.DB == nil {
		return ErrNotConnected
	}
	return c.DB.PingContext(ctx)
}

// Close closes the underlying pool. Closing a nil pool is a no-op.
func (c *SQLConn) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

func (c *SQLConn) executeSelect(ctx context.Context, query string, start time.Time) (*QueryResult, error) {
	rows, err := c.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	columns := make([]ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		columns[i].Name = ct.Name()
		columns[i].Type = ct.DatabaseTypeName()
		if n, ok := ct.Nullable(); ok {
			columns[i].Nullable = n
		}
	}

	resultRows, truncated, err := ScanRows(rows, len(columns), DefaultMaxRows)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  int64(len(resultRows)),
		Duration:  time.Since(start),
		IsSelect:  true,
		Truncated: truncated,
	}, nil
}

func (c *SQLConn) executeExec(ctx context.Context, query string, start time.Time) (*QueryResult, error) {
	result, err := c.DB.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	affected, _ := result.RowsAffected()

	return &QueryResult{
		RowCount: affected,
		Duration: time.Since(start),
		IsSelect: false,
		Message:  fmt.Sprintf("%d row(s) affected", affected),
	}, nil
}

// ScanRows reads at most limit rows of nCols columns, rendering NULL cells
// as "NULL". The second return reports whether rows were left unread.
func ScanRows(rows *sql.Rows, nCols, limit int) ([][]string, bool, error) {
	var out [][]string
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			return out, true, rows.Err()
		}
		values := make([]sql.NullString, nCols)
		ptrs := make([]any, nCols)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		row := make([]string, nCols)
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		out = append(out, row)
	}
	return out, false, rows.Err()
}

// IsRowStatement returns true if the trimmed query starts with a keyword
// that produces a result set.
func IsRowStatement(query string) bool {
	upper := strings.ToUpper(strings.TrimLeft(query, " \t\r\n("))
	for _, prefix := range []string{"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "PRAGMA", "VALUES", "TABLE"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
