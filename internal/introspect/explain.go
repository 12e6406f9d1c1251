package introspect

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sadopc/sqlsense/internal/adapter"
	"github.com/sadopc/sqlsense/internal/schema"
	"github.com/sadopc/sqlsense/internal/sqlctx"
)

// DefaultSampleRows is how many rows Explain shows for tables and columns.
const DefaultSampleRows = 5

// Explainer renders a Classification as human-readable text. Row samples
// and column types are read through the connection; without one only the
// cache is consulted.
type Explainer struct {
	conn       adapter.Connection
	sampleRows int
	label      lipgloss.Style
	tableStyle table.Style
	logger     *slog.Logger
}

// ExplainOption configures an Explainer.
type ExplainOption func(*Explainer)

// WithSampleRows sets the number of sample rows. Values below one disable
// sampling.
func WithSampleRows(n int) ExplainOption {
	return func(e *Explainer) { e.sampleRows = n }
}

// WithLabelStyle sets the style of the kind label heading each explanation.
func WithLabelStyle(s lipgloss.Style) ExplainOption {
	return func(e *Explainer) { e.label = s }
}

// WithTableStyle sets the go-pretty style of nested tables.
func WithTableStyle(s table.Style) ExplainOption {
	return func(e *Explainer) { e.tableStyle = s }
}

// WithLogger sets the logger. Sampling failures are logged, not returned.
func WithLogger(l *slog.Logger) ExplainOption {
	return func(e *Explainer) { e.logger = l }
}

// NewExplainer returns an Explainer reading samples through conn, which
// may be nil.
func NewExplainer(conn adapter.Connection, opts ...ExplainOption) *Explainer {
	e := &Explainer{
		conn:       conn,
		sampleRows: DefaultSampleRows,
		label:      lipgloss.NewStyle().Bold(true),
		tableStyle: table.StyleLight,
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Explain describes cls: a label for keywords and functions, the table
// listing of a database, the column schema and first rows of a table, and
// the type and first values of a column.
func (e *Explainer) Explain(ctx context.Context, cache *schema.Cache, cls Classification) string {
	var b strings.Builder
	b.WriteString(e.label.Render(cls.Kind.String()))
	b.WriteByte('\n')

	switch cls.Kind {
	case sqlctx.KindDatabase:
		e.explainDatabase(&b, cache, cls.Word)
	case sqlctx.KindTable:
		if cls.Database != "" {
			e.explainTable(ctx, &b, cache, cls.Database, cls.Word)
		}
	case sqlctx.KindColumn:
		if cls.Database != "" && cls.Table != "" {
			e.explainColumn(ctx, &b, cls.Database, cls.Table, cls.Word)
		}
	}
	return b.String()
}

func (e *Explainer) explainDatabase(b *strings.Builder, cache *schema.Cache, db string) {
	t := e.newTable(b)
	t.AppendHeader(table.Row{"table", "type", "columns"})
	for _, name := range cache.Tables(db) {
		t.AppendRow(table.Row{name, "table", len(cache.Columns(db, name))})
	}
	for _, name := range cache.Views(db) {
		t.AppendRow(table.Row{name, "view", len(cache.Columns(db, name))})
	}
	if t.Length() == 0 {
		b.WriteString("(no tables)\n")
		return
	}
	t.Render()
}

func (e *Explainer) explainTable(ctx context.Context, b *strings.Builder, cache *schema.Cache, db, tbl string) {
	res := e.sample(ctx, db, tbl, "")

	t := e.newTable(b)
	t.AppendHeader(table.Row{"column", "type", "nullable"})
	if res != nil && len(res.Columns) > 0 {
		for _, c := range res.Columns {
			t.AppendRow(table.Row{c.Name, c.Type, strconv.FormatBool(c.Nullable)})
		}
	} else {
		for _, c := range cache.Columns(db, tbl) {
			t.AppendRow(table.Row{c, "", ""})
		}
	}
	t.Render()

	if res == nil {
		return
	}
	fmt.Fprintf(b, "%s\n", e.label.Render(fmt.Sprintf("first %d rows of %s", e.sampleRows, tbl)))
	e.renderRows(b, res)
}

func (e *Explainer) explainColumn(ctx context.Context, b *strings.Builder, db, tbl, col string) {
	res := e.sample(ctx, db, tbl, col)
	if res == nil {
		fmt.Fprintf(b, "%s.%s\n", tbl, col)
		return
	}

	typ := ""
	if len(res.Columns) > 0 {
		typ = res.Columns[0].Type
	}
	fmt.Fprintf(b, "%s.%s %s\n", tbl, col, typ)
	fmt.Fprintf(b, "%s\n", e.label.Render(fmt.Sprintf("first %d values of %s", e.sampleRows, col)))
	e.renderRows(b, res)
}

func (e *Explainer) renderRows(b *strings.Builder, res *adapter.QueryResult) {
	t := e.newTable(b)
	header := make(table.Row, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c.Name
	}
	t.AppendHeader(header)
	for _, r := range res.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.Render()
	fmt.Fprintf(b, "(%d rows)\n", len(res.Rows))
}

// sample selects the first rows of column col of db.tbl, or of all
// columns when col is empty. It returns nil when there is no connection or
// the query fails.
func (e *Explainer) sample(ctx context.Context, db, tbl, col string) *adapter.QueryResult {
	if e.conn == nil || e.sampleRows < 1 {
		return nil
	}
	cols := "*"
	if col != "" {
		cols = e.quote(col)
	}
	q := fmt.Sprintf("SELECT %s FROM %s.%s LIMIT %d", cols, e.quote(db), e.quote(tbl), e.sampleRows)
	res, err := e.conn.Execute(ctx, q)
	if err != nil {
		e.logger.Warn("explain sample failed", "table", db+"."+tbl, "err", err)
		return nil
	}
	if !res.IsSelect {
		return nil
	}
	return res
}

func (e *Explainer) quote(ident string) string {
	return adapter.QuoteIdent(e.conn.AdapterName(), ident)
}

func (e *Explainer) newTable(b *strings.Builder) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(b)
	t.SetStyle(e.tableStyle)
	return t
}
