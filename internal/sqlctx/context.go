// Package sqlctx classifies what kind of SQL object is expected at the
// cursor. It is a lexical, best-effort analysis and never rejects input.
package sqlctx

// Kind identifies a completion category.
type Kind int

// KindNone tags completions offered without context analysis.
const KindNone Kind = -1

const (
	KindKeyword Kind = iota
	KindFunction
	KindDatabase
	KindTable
	KindView
	KindColumn
	KindAlias
	KindShow
	KindChange
	KindUser
	KindSpecial
	KindTableFormat
	KindFileName
	KindFavorite
)

var kindNames = [...]string{
	KindKeyword:     "keyword",
	KindFunction:    "function",
	KindDatabase:    "database",
	KindTable:       "table",
	KindView:        "view",
	KindColumn:      "column",
	KindAlias:       "alias",
	KindShow:        "show",
	KindChange:      "change",
	KindUser:        "user",
	KindSpecial:     "special",
	KindTableFormat: "table_format",
	KindFileName:    "file_name",
	KindFavorite:    "favorite_query",
}

func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// TableRef is a table named in a FROM, JOIN, INTO or UPDATE clause.
type TableRef struct {
	Schema string
	Name   string
	Alias  string
}

// Ref returns the name the table is referred to by in the statement.
func (t TableRef) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// identifiedBy reports whether qualifier names this table, either by
// alias, by name, or as schema.name.
func (t TableRef) identifiedBy(qualifier string) bool {
	return qualifier == t.Alias ||
		qualifier == t.Name ||
		(t.Schema != "" && qualifier == t.Schema+"."+t.Name)
}

// Context is one kind of object that may appear at the cursor. The
// concrete types below are the only implementations.
type Context interface {
	Kind() Kind
	isContext()
}

type (
	Keyword struct{}

	// Function expects a function name, optionally qualified by Schema.
	Function struct{ Schema string }

	Database struct{}

	Table struct{ Schema string }

	View struct{ Schema string }

	// Column expects a column of one of Tables. With DropUnique only
	// columns shared by more than one table qualify (JOIN ... USING).
	Column struct {
		Tables     []TableRef
		DropUnique bool
	}

	Alias struct{ Aliases []string }

	Show        struct{}
	Change      struct{}
	User        struct{}
	Special     struct{}
	TableFormat struct{}
	FileName    struct{}
	Favorite    struct{}
)

func (Keyword) Kind() Kind     { return KindKeyword }
func (Function) Kind() Kind    { return KindFunction }
func (Database) Kind() Kind    { return KindDatabase }
func (Table) Kind() Kind       { return KindTable }
func (View) Kind() Kind        { return KindView }
func (Column) Kind() Kind      { return KindColumn }
func (Alias) Kind() Kind       { return KindAlias }
func (Show) Kind() Kind        { return KindShow }
func (Change) Kind() Kind      { return KindChange }
func (User) Kind() Kind        { return KindUser }
func (Special) Kind() Kind     { return KindSpecial }
func (TableFormat) Kind() Kind { return KindTableFormat }
func (FileName) Kind() Kind    { return KindFileName }
func (Favorite) Kind() Kind    { return KindFavorite }

func (Keyword) isContext()     {}
func (Function) isContext()    {}
func (Database) isContext()    {}
func (Table) isContext()       {}
func (View) isContext()        {}
func (Column) isContext()      {}
func (Alias) isContext()       {}
func (Show) isContext()        {}
func (Change) isContext()      {}
func (User) isContext()        {}
func (Special) isContext()     {}
func (TableFormat) isContext() {}
func (FileName) isContext()    {}
func (Favorite) isContext()    {}
