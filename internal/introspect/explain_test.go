package introspect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlsense/internal/adapter"
	_ "github.com/sadopc/sqlsense/internal/adapter/sqlite"
	"github.com/sadopc/sqlsense/internal/loader"
	"github.com/sadopc/sqlsense/internal/schema"
	"github.com/sadopc/sqlsense/internal/sqlctx"
	"github.com/sadopc/sqlsense/internal/testutil"
)

func openFixture(t *testing.T) (adapter.Connection, *schema.Cache) {
	t.Helper()
	ctx := context.Background()
	conn, err := adapter.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	for _, stmt := range []string{
		"CREATE TABLE tbl1 (id INTEGER PRIMARY KEY, col1 TEXT)",
		"INSERT INTO tbl1 (col1) VALUES ('alpha'), ('beta'), (NULL)",
		"CREATE VIEW v1 AS SELECT col1 FROM tbl1",
	} {
		_, err := conn.Execute(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	cache, err := loader.New().Load(ctx, conn)
	require.NoError(t, err)
	return conn, cache
}

func TestExplain_Labels(t *testing.T) {
	e := NewExplainer(nil)
	c := schema.Empty("sqlite", schema.StaticFor("sqlite", nil))

	assert.Contains(t, e.Explain(context.Background(), c, Classification{Word: "select", Kind: sqlctx.KindKeyword}), "keyword")
	assert.Contains(t, e.Explain(context.Background(), c, Classification{Word: "min", Kind: sqlctx.KindFunction}), "function")
}

func TestExplain_Database(t *testing.T) {
	_, cache := openFixture(t)
	out := NewExplainer(nil).Explain(context.Background(), cache, Classification{Word: "main", Kind: sqlctx.KindDatabase})

	assert.Contains(t, out, "database")
	assert.Contains(t, out, "tbl1")
	assert.Contains(t, out, "v1")
	assert.Contains(t, out, "view")
}

func TestExplain_DatabaseWithoutTables(t *testing.T) {
	c := schema.Empty("sqlite", schema.StaticFor("sqlite", nil))
	out := NewExplainer(nil).Explain(context.Background(), c, Classification{Word: "empty", Kind: sqlctx.KindDatabase})
	assert.Contains(t, out, "(no tables)")
}

func TestExplain_Table(t *testing.T) {
	conn, cache := openFixture(t)
	e := NewExplainer(conn, WithSampleRows(2), WithLogger(testutil.NewTestLogger(t)))

	out := e.Explain(context.Background(), cache, Classification{Word: "tbl1", Kind: sqlctx.KindTable, Database: "main"})

	assert.Contains(t, out, "table")
	assert.Contains(t, out, "INTEGER")
	assert.Contains(t, out, "first 2 rows of tbl1")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "beta")
	assert.Contains(t, out, "(2 rows)")
}

func TestExplain_Column(t *testing.T) {
	conn, cache := openFixture(t)
	e := NewExplainer(conn, WithLogger(testutil.NewTestLogger(t)))

	out := e.Explain(context.Background(), cache, Classification{
		Word: "col1", Kind: sqlctx.KindColumn, Database: "main", Table: "tbl1",
	})

	assert.Contains(t, out, "tbl1.col1 TEXT")
	assert.Contains(t, out, "first 5 values of col1")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(3 rows)")
}

func TestExplain_WithoutConnectionUsesCache(t *testing.T) {
	_, cache := openFixture(t)
	e := NewExplainer(nil)

	out := e.Explain(context.Background(), cache, Classification{Word: "tbl1", Kind: sqlctx.KindTable, Database: "main"})
	assert.Contains(t, out, "col1")
	assert.NotContains(t, out, "first")

	out = e.Explain(context.Background(), cache, Classification{Word: "col1", Kind: sqlctx.KindColumn, Database: "main", Table: "tbl1"})
	assert.Contains(t, out, "tbl1.col1")
}

func TestExplain_SampleFailureIsNotFatal(t *testing.T) {
	conn, cache := openFixture(t)
	e := NewExplainer(conn, WithLogger(testutil.NewTestLogger(t)))

	out := e.Explain(context.Background(), cache, Classification{Word: "gone", Kind: sqlctx.KindTable, Database: "main"})
	assert.Contains(t, out, "COLUMN", "schema header still rendered")
	assert.NotContains(t, out, "first")
}

func TestExplain_ResolvedToken(t *testing.T) {
	conn, cache := openFixture(t)
	text := "select col1 from tbl1"

	cls, ok := Resolve(text, 9, cache)
	require.True(t, ok)
	assert.Equal(t, Classification{Word: "col1", Kind: sqlctx.KindColumn, Database: "main", Table: "tbl1"}, cls)

	out := NewExplainer(conn).Explain(context.Background(), cache, cls)
	assert.Contains(t, out, "alpha")
}
