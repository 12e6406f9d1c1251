package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotConnected = errors.New("not connected to database")
	ErrUnsupported  = errors.New("operation not supported by adapter")
	ErrUnknown      = errors.New("unknown adapter")
)

// DefaultMaxRows caps the number of rows materialised for a single statement.
const DefaultMaxRows = 10000

// Adapter creates database connections.
type Adapter interface {
	Connect(ctx context.Context, dsn string) (Connection, error)
	Name() string
	DefaultPort() int
}

// Connection represents an active database connection. It executes one
// statement at a time and returns tabular results as strings.
type Connection interface {
	// Execute runs a single statement and returns either a tabular result
	// (IsSelect == true) or an acknowledgement.
	Execute(ctx context.Context, query string) (*QueryResult, error)

	// UseDatabase switches the active database of the connection.
	UseDatabase(ctx context.Context, name string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Info
	DatabaseName() string
	AdapterName() string
}

// QueryResult holds the result of a statement execution.
type QueryResult struct {
	Columns   []ColumnMeta
	Rows      [][]string
	RowCount  int64 // -1 if unknown
	Duration  time.Duration
	IsSelect  bool
	Truncated bool
	Message   string
}

// ColumnIndex returns the position of the named result column
// (case-insensitive), or -1.
func (r *QueryResult) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnMeta holds metadata about a result column.
type ColumnMeta struct {
	Name     string
	Type     string
	Nullable bool
}

// Registry holds registered adapters by name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	Registry[a.Name()] = a
}

// Names returns the registered adapter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects through the named adapter. "mariadb" is accepted as an
// alias for "mysql".
func Open(ctx context.Context, name, dsn string) (Connection, error) {
	if name == "mariadb" {
		name = "mysql"
	}
	a, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
	return a.Connect(ctx, dsn)
}

// QuoteLiteral renders s as a single-quoted SQL string literal for the given
// adapter. MySQL treats backslash as an escape inside literals; the others
// do not.
func QuoteLiteral(adapterName, s string) string {
	if adapterName == "mysql" || adapterName == "mariadb" {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdent quotes an identifier for the given adapter: backticks for
// MySQL/MariaDB, double quotes elsewhere.
func QuoteIdent(adapterName, ident string) string {
	switch adapterName {
	case "mysql", "mariadb":
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}
