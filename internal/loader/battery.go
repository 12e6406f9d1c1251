package loader

import (
	"fmt"

	"github.com/sadopc/sqlsense/internal/adapter"
)

// Battery is the set of metadata statements issued for one dialect. An
// empty statement means the dialect has no such category and it is skipped.
//
// Expected result shapes:
//   - CurrentDatabase: one row, one column (NULL when none is selected)
//   - Databases, Functions, Users, ShowItems: one name per row
//   - Tables: schema, name, type ("VIEW" / "SYSTEM VIEW" for views)
//   - Columns: table, column, ordered by table then declaration position
type Battery struct {
	CurrentDatabase string
	Databases       string
	Tables          string
	Columns         func(db string) string
	Functions       func(db string) string
	Users           string
	ShowItems       string
	// ShowPrefix is stripped from every show item.
	ShowPrefix string
}

func (b Battery) columns(db string) string {
	if b.Columns == nil {
		return ""
	}
	return b.Columns(db)
}

func (b Battery) functions(db string) string {
	if b.Functions == nil {
		return ""
	}
	return b.Functions(db)
}

// Batteries maps adapter names to their metadata statements.
var Batteries = map[string]Battery{
	"mysql":    mysqlBattery,
	"mariadb":  mysqlBattery,
	"postgres": postgresBattery,
	"sqlite":   sqliteBattery,
}

// BatteryFor returns the battery registered for adapterName.
func BatteryFor(adapterName string) (Battery, error) {
	b, ok := Batteries[adapterName]
	if !ok {
		return Battery{}, fmt.Errorf("loader: no metadata queries for %q: %w", adapterName, adapter.ErrUnsupported)
	}
	return b, nil
}

var mysqlBattery = Battery{
	CurrentDatabase: "SELECT DATABASE()",
	Databases:       "SHOW DATABASES",
	Tables: "SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE FROM information_schema.TABLES " +
		"ORDER BY TABLE_SCHEMA, TABLE_NAME",
	Columns: func(db string) string {
		return "SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.COLUMNS " +
			"WHERE TABLE_SCHEMA = " + adapter.QuoteLiteral("mysql", db) +
			" ORDER BY TABLE_NAME, ORDINAL_POSITION"
	},
	Functions: func(db string) string {
		return "SELECT ROUTINE_NAME FROM information_schema.ROUTINES " +
			"WHERE ROUTINE_TYPE = 'FUNCTION' AND ROUTINE_SCHEMA = " + adapter.QuoteLiteral("mysql", db)
	},
	Users:      "SELECT CONCAT('''', user, '''@''', host, '''') FROM mysql.user",
	ShowItems:  "SELECT name FROM mysql.help_topic WHERE name LIKE 'SHOW %'",
	ShowPrefix: "SHOW ",
}

// PostgreSQL schemas play the role of MySQL databases: they are what a
// qualifier such as public.users names.
var postgresBattery = Battery{
	CurrentDatabase: "SELECT current_schema()",
	Databases: "SELECT schema_name FROM information_schema.schemata " +
		"WHERE schema_name NOT LIKE 'pg_toast%' ORDER BY schema_name",
	Tables: "SELECT table_schema, table_name, table_type FROM information_schema.tables " +
		"ORDER BY table_schema, table_name",
	Columns: func(db string) string {
		return "SELECT table_name, column_name FROM information_schema.columns " +
			"WHERE table_schema = " + adapter.QuoteLiteral("postgres", db) +
			" ORDER BY table_name, ordinal_position"
	},
	Functions: func(db string) string {
		return "SELECT routine_name FROM information_schema.routines " +
			"WHERE routine_type = 'FUNCTION' AND routine_schema = " + adapter.QuoteLiteral("postgres", db)
	},
	Users: "SELECT usename FROM pg_catalog.pg_user ORDER BY usename",
}

var sqliteBattery = Battery{
	CurrentDatabase: "SELECT 'main'",
	Databases:       "SELECT name FROM pragma_database_list ORDER BY seq",
	Tables: "SELECT 'main', name, CASE type WHEN 'view' THEN 'VIEW' ELSE 'BASE TABLE' END " +
		"FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name",
	// Columns of attached databases are not introspected.
	Columns: func(string) string {
		return "SELECT m.name, p.name FROM sqlite_master m JOIN pragma_table_info(m.name) p " +
			"WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%' ORDER BY m.name, p.cid"
	},
}
