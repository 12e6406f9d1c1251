// Package schema holds the immutable metadata snapshot consulted by
// completion and introspection.
package schema

import (
	"slices"
	"strings"
)

// Static holds the reference lists that do not depend on the live database.
type Static struct {
	Keywords        []string
	Functions       []string
	SpecialCommands []string
	TableFormats    []string
	ChangeItems     []string
}

// Counts summarises a Cache for logging.
type Counts struct {
	Databases int
	Tables    int
	Views     int
	Columns   int
	Functions int
	Users     int
}

type tableKey struct {
	db    string
	table string
}

// Cache is a snapshot of a connection's introspectable objects. A Cache is
// never modified after Build returns it, so it is safe for concurrent use.
type Cache struct {
	dialect   string
	activeDB  string
	databases []string
	tables    map[string][]string
	views     map[string][]string
	columns   map[tableKey][]string
	functions map[string][]string
	users     []string
	showItems []string
	static    Static

	keywordSet  map[string]struct{}
	functionSet map[string]struct{}
}

// Empty returns a cache with only the static lists for dialect. It is what
// callers see before the first load completes.
func Empty(dialect string, static Static) *Cache {
	return NewBuilder(dialect, static).Build()
}

func (c *Cache) Dialect() string        { return c.dialect }
func (c *Cache) ActiveDatabase() string { return c.activeDB }

// Databases returns the database names in lexicographic order.
func (c *Cache) Databases() []string { return slices.Clone(c.databases) }

// HasDatabase reports whether name is a known database.
func (c *Cache) HasDatabase(name string) bool {
	_, ok := slices.BinarySearch(c.databases, name)
	return ok
}

// Tables returns the base tables of db in lexicographic order.
func (c *Cache) Tables(db string) []string { return slices.Clone(c.tables[db]) }

// Views returns the views of db in lexicographic order.
func (c *Cache) Views(db string) []string { return slices.Clone(c.views[db]) }

// HasTable reports whether db has a table or view named name.
func (c *Cache) HasTable(db, name string) bool {
	if _, ok := slices.BinarySearch(c.tables[db], name); ok {
		return true
	}
	_, ok := slices.BinarySearch(c.views[db], name)
	return ok
}

// Columns returns the columns of db.table in declaration order.
func (c *Cache) Columns(db, table string) []string {
	return slices.Clone(c.columns[tableKey{db, table}])
}

// HasColumn reports whether db.table declares column.
func (c *Cache) HasColumn(db, table, column string) bool {
	return slices.Contains(c.columns[tableKey{db, table}], column)
}

// Functions returns the user-defined functions of db in lexicographic order.
func (c *Cache) Functions(db string) []string { return slices.Clone(c.functions[db]) }

func (c *Cache) Users() []string     { return slices.Clone(c.users) }
func (c *Cache) ShowItems() []string { return slices.Clone(c.showItems) }

func (c *Cache) Keywords() []string        { return slices.Clone(c.static.Keywords) }
func (c *Cache) StaticFunctions() []string { return slices.Clone(c.static.Functions) }
func (c *Cache) SpecialCommands() []string { return slices.Clone(c.static.SpecialCommands) }
func (c *Cache) TableFormats() []string    { return slices.Clone(c.static.TableFormats) }
func (c *Cache) ChangeItems() []string     { return slices.Clone(c.static.ChangeItems) }

// IsKeyword reports whether word is a keyword, ignoring case.
func (c *Cache) IsKeyword(word string) bool {
	_, ok := c.keywordSet[strings.ToLower(word)]
	return ok
}

// IsFunction reports whether word names a built-in function or a
// user-defined function of db, ignoring case.
func (c *Cache) IsFunction(db, word string) bool {
	lw := strings.ToLower(word)
	if _, ok := c.functionSet[lw]; ok {
		return true
	}
	for _, f := range c.functions[db] {
		if strings.ToLower(f) == lw {
			return true
		}
	}
	return false
}

// AllCompletions returns every completion string the cache knows about,
// sorted and without duplicates. Schema objects are limited to the active
// database. Table formats and change items are left out: they only make
// sense as arguments to the commands that take them.
func (c *Cache) AllCompletions() []string {
	var all []string
	all = append(all, c.static.Keywords...)
	all = append(all, c.static.Functions...)
	all = append(all, c.static.SpecialCommands...)
	all = append(all, c.databases...)
	all = append(all, c.tables[c.activeDB]...)
	all = append(all, c.views[c.activeDB]...)
	all = append(all, c.functions[c.activeDB]...)
	for k, cols := range c.columns {
		if k.db == c.activeDB {
			all = append(all, cols...)
		}
	}
	all = append(all, c.users...)
	all = append(all, c.showItems...)
	slices.Sort(all)
	return slices.Compact(all)
}

// Counts returns the number of objects held by the cache.
func (c *Cache) Counts() Counts {
	n := Counts{Databases: len(c.databases), Users: len(c.users)}
	for _, t := range c.tables {
		n.Tables += len(t)
	}
	for _, v := range c.views {
		n.Views += len(v)
	}
	for _, cols := range c.columns {
		n.Columns += len(cols)
	}
	for _, f := range c.functions {
		n.Functions += len(f)
	}
	return n
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// Builder accumulates metadata and produces a Cache. A Builder is not safe
// for concurrent use.
type Builder struct {
	dialect   string
	activeDB  string
	static    Static
	databases map[string]struct{}
	tables    map[string]map[string]struct{}
	views     map[string]map[string]struct{}
	columns   map[tableKey][]string
	functions map[string]map[string]struct{}
	users     map[string]struct{}
	showItems map[string]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder(dialect string, static Static) *Builder {
	return &Builder{
		dialect:   dialect,
		static:    static,
		databases: map[string]struct{}{},
		tables:    map[string]map[string]struct{}{},
		views:     map[string]map[string]struct{}{},
		columns:   map[tableKey][]string{},
		functions: map[string]map[string]struct{}{},
		users:     map[string]struct{}{},
		showItems: map[string]struct{}{},
	}
}

func (b *Builder) SetActiveDatabase(name string) { b.activeDB = name }

func (b *Builder) AddDatabase(name string) { b.databases[name] = struct{}{} }

func (b *Builder) AddTable(db, name string) { addTo(b.tables, db, name) }

func (b *Builder) AddView(db, name string) { addTo(b.views, db, name) }

// AddColumn appends column to db.table. Calls must follow declaration order.
func (b *Builder) AddColumn(db, table, column string) {
	k := tableKey{db, table}
	if slices.Contains(b.columns[k], column) {
		return
	}
	b.columns[k] = append(b.columns[k], column)
}

func (b *Builder) AddFunction(db, name string) { addTo(b.functions, db, name) }

func (b *Builder) AddUser(name string) { b.users[name] = struct{}{} }

func (b *Builder) AddShowItem(name string) { b.showItems[name] = struct{}{} }

// Build returns a new Cache holding copies of everything added so far.
func (b *Builder) Build() *Cache {
	c := &Cache{
		dialect:     b.dialect,
		activeDB:    b.activeDB,
		databases:   sortedKeys(b.databases),
		tables:      sortedGroups(b.tables),
		views:       sortedGroups(b.views),
		columns:     make(map[tableKey][]string, len(b.columns)),
		functions:   sortedGroups(b.functions),
		users:       sortedKeys(b.users),
		showItems:   sortedKeys(b.showItems),
		static:      cloneStatic(b.static),
		keywordSet:  lowerSet(b.static.Keywords),
		functionSet: lowerSet(b.static.Functions),
	}
	for k, cols := range b.columns {
		c.columns[k] = slices.Clone(cols)
	}
	return c
}

func addTo(m map[string]map[string]struct{}, group, name string) {
	set, ok := m[group]
	if !ok {
		set = map[string]struct{}{}
		m[group] = set
	}
	set[name] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func sortedGroups(m map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, set := range m {
		out[k] = sortedKeys(set)
	}
	return out
}

func lowerSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

func cloneStatic(s Static) Static {
	return Static{
		Keywords:        slices.Clone(s.Keywords),
		Functions:       slices.Clone(s.Functions),
		SpecialCommands: slices.Clone(s.SpecialCommands),
		TableFormats:    slices.Clone(s.TableFormats),
		ChangeItems:     slices.Clone(s.ChangeItems),
	}
}
