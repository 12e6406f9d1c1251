// Package loader builds schema caches by running a fixed battery of
// metadata statements over an adapter.Connection.
package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/schema"
)

// Loader builds a schema.Cache from a live connection. It holds no state
// between loads and is safe for concurrent use.
type Loader struct {
	tableFormats []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithTableFormats sets the table formats offered after \T.
func WithTableFormats(formats []string) Option {
	return func(l *Loader) { l.tableFormats = formats }
}

// New returns a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Static returns the static lists a cache for dialect is built with.
func (l *Loader) Static(dialect string) schema.Static {
	return schema.StaticFor(dialect, l.tableFormats)
}

// Load runs the battery for conn's dialect and returns the resulting cache.
// Any failing statement aborts the load.
func (l *Loader) Load(ctx context.Context, conn adapter.Connection) (*schema.Cache, error) {
	dialect := conn.AdapterName()
	bat, err := BatteryFor(dialect)
	if err != nil {
		return nil, err
	}

	b := schema.NewBuilder(dialect, l.Static(dialect))
	q := querier{ctx: ctx, conn: conn}

	active, err := q.currentDatabase(bat.CurrentDatabase)
	if err != nil {
		return nil, err
	}
	b.SetActiveDatabase(active)

	if err := q.names(bat.Databases, b.AddDatabase); err != nil {
		return nil, err
	}

	if err := q.rows(bat.Tables, 3, func(row []string) {
		if strings.Contains(strings.ToUpper(row[2]), "VIEW") {
			b.AddView(row[0], row[1])
		} else {
			b.AddTable(row[0], row[1])
		}
	}); err != nil {
		return nil, err
	}

	// Columns and functions are scoped to the active database; with none
	// selected there is nothing to list.
	if active != "" {
		if err := q.rows(bat.columns(active), 2, func(row []string) {
			b.AddColumn(active, row[0], row[1])
		}); err != nil {
			return nil, err
		}
		if err := q.names(bat.functions(active), func(name string) {
			b.AddFunction(active, name)
		}); err != nil {
			return nil, err
		}
	}

	if err := q.names(bat.Users, b.AddUser); err != nil {
		return nil, err
	}

	if err := q.names(bat.ShowItems, func(name string) {
		b.AddShowItem(strings.TrimPrefix(name, bat.ShowPrefix))
	}); err != nil {
		return nil, err
	}

	return b.Build(), nil
}

type querier struct {
	ctx  context.Context
	conn adapter.Connection
}

// rows executes stmt and calls fn with every row. Rows are guaranteed to
// hold at least minCols cells.
func (q querier) rows(stmt string, minCols int, fn func(row []string)) error {
	if stmt == "" {
		return nil
	}
	res, err := q.conn.Execute(q.ctx, stmt)
	if err != nil {
		return &TransportError{Statement: stmt, Err: err}
	}
	if res == nil || !res.IsSelect {
		return &ParseError{Statement: stmt, Reason: "response is not tabular"}
	}
	if len(res.Columns) < minCols {
		return &ParseError{
			Statement: stmt,
			Reason:    fmt.Sprintf("expected %d columns, got %d", minCols, len(res.Columns)),
		}
	}
	for i, row := range res.Rows {
		if len(row) < minCols {
			return &ParseError{
				Statement: stmt,
				Reason:    fmt.Sprintf("row %d has %d cells, expected %d", i, len(row), minCols),
			}
		}
		fn(row)
	}
	return nil
}

func (q querier) names(stmt string, fn func(name string)) error {
	return q.rows(stmt, 1, func(row []string) { fn(row[0]) })
}

func (q querier) currentDatabase(stmt string) (string, error) {
	var name string
	err := q.rows(stmt, 1, func(row []string) {
		if name == "" && row[0] != "NULL" {
			name = row[0]
		}
	})
	return name, err
}
