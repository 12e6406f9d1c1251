package schema

// CommonKeywords are SQL keywords shared across all dialects.
var CommonKeywords = []string{
	"SELECT", "FROM", "WHERE", "JOIN", "LEFT", "RIGHT", "INNER", "OUTER",
	"FULL", "CROSS", "ON", "USING", "AND", "OR", "NOT", "IN", "EXISTS", "BETWEEN",
	"LIKE", "IS", "NULL", "AS", "CASE", "WHEN", "THEN", "ELSE",
	"END", "INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "CREATE",
	"ALTER", "DROP", "TABLE", "VIEW", "INDEX", "UNIQUE", "PRIMARY", "KEY",
	"FOREIGN", "REFERENCES", "CONSTRAINT", "DEFAULT", "CHECK", "CASCADE",
	"RESTRICT", "GROUP", "BY", "ORDER", "ASC", "DESC", "HAVING", "LIMIT",
	"OFFSET", "DISTINCT", "ALL", "ANY", "SOME", "UNION", "INTERSECT",
	"EXCEPT", "WITH", "RECURSIVE", "BEGIN", "COMMIT",
	"ROLLBACK", "TRANSACTION", "GRANT", "REVOKE", "EXPLAIN", "ANALYZE",
	"TRUNCATE", "IF", "TEMPORARY", "DATABASE", "TO", "FOR", "COLUMN",
	"ADD", "RENAME", "TRIGGER", "PROCEDURE", "FUNCTION", "RETURNS",
}

// CommonFunctions are SQL functions shared across all dialects.
var CommonFunctions = []string{
	"COUNT", "SUM", "AVG", "MIN", "MAX", "COALESCE", "NULLIF", "CAST",
	"LOWER", "UPPER", "TRIM", "LTRIM", "RTRIM", "LENGTH",
	"SUBSTRING", "REPLACE", "CONCAT", "ABS", "CEIL", "FLOOR", "ROUND",
	"NOW", "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "EXTRACT",
	"ROW_NUMBER", "RANK", "DENSE_RANK", "LAG", "LEAD", "FIRST_VALUE",
	"LAST_VALUE", "NTILE",
}

// PostgresKeywords are additional keywords specific to PostgreSQL.
var PostgresKeywords = []string{
	"SERIAL", "BIGSERIAL", "RETURNING", "ILIKE", "SIMILAR", "LATERAL",
	"MATERIALIZED", "CONCURRENTLY", "TABLESPACE", "SCHEMA", "EXTENSION",
	"SEQUENCE", "OWNED", "NOTIFY", "LISTEN", "PERFORM", "RAISE", "COPY",
	"VACUUM",
}

// PostgresFunctions are functions specific to PostgreSQL.
var PostgresFunctions = []string{
	"DATE_TRUNC", "TO_CHAR", "TO_DATE", "TO_NUMBER", "STRING_AGG",
	"ARRAY_AGG", "JSON_AGG", "BOOL_AND", "BOOL_OR", "EVERY",
}

// MySQLKeywords are additional keywords specific to MySQL and MariaDB.
var MySQLKeywords = []string{
	"AUTO_INCREMENT", "ENGINE", "CHARSET", "COLLATE", "SHOW", "DESCRIBE",
	"USE", "DATABASES", "TABLES", "COLUMNS", "STATUS", "VARIABLES",
	"PROCESSLIST", "BINARY", "UNSIGNED", "ZEROFILL", "ENUM", "MEDIUMTEXT",
	"LONGTEXT", "TINYINT", "MEDIUMINT", "CHANGE", "MASTER", "REPLACE",
	"IGNORE", "DUPLICATE", "LOCK", "UNLOCK", "FLUSH", "KILL", "OPTIMIZE",
	"REPAIR", "USER", "IDENTIFIED", "PRIVILEGES", "STRAIGHT_JOIN",
	"SQL_CALC_FOUND_ROWS", "REGEXP", "RLIKE", "DIV", "XOR",
}

// MySQLFunctions are functions specific to MySQL and MariaDB.
var MySQLFunctions = []string{
	"GROUP_CONCAT", "IFNULL", "DATE_FORMAT", "STR_TO_DATE", "DATE_ADD",
	"DATE_SUB", "DATEDIFF", "UNIX_TIMESTAMP", "FROM_UNIXTIME", "JSON_EXTRACT",
	"JSON_OBJECT", "JSON_ARRAY", "LAST_INSERT_ID", "FOUND_ROWS", "UUID",
	"MD5", "SHA1", "SHA2", "INSTR", "LOCATE", "LPAD", "RPAD",
}

// SQLiteKeywords are additional keywords specific to SQLite.
var SQLiteKeywords = []string{
	"PRAGMA", "AUTOINCREMENT", "GLOB", "ATTACH", "DETACH", "REINDEX",
	"INDEXED", "WITHOUT", "ROWID", "STRICT", "VACUUM",
}

// SQLiteFunctions are functions specific to SQLite.
var SQLiteFunctions = []string{
	"IFNULL", "INSTR", "GROUP_CONCAT", "JSON_EXTRACT", "PRINTF", "STRFTIME",
	"DATE", "TIME", "DATETIME", "JULIANDAY", "TYPEOF", "RANDOM",
}

// SpecialCommands are the client-side commands recognised after a
// backslash or as a bare word at the start of a statement.
var SpecialCommands = []string{
	"\\?", "\\.", "\\G", "\\T", "\\dt", "\\e", "\\f", "\\fd", "\\fs",
	"\\l", "\\q", "\\r", "\\u", "\\timing", "connect", "delimiter", "edit",
	"exit", "help", "nopager", "pager", "quit", "rehash", "source",
	"status", "system", "tableformat", "tee", "notee", "use", "warnings",
	"nowarnings",
}

// ChangeItems complete the options of CHANGE MASTER TO.
var ChangeItems = []string{
	"MASTER_BIND", "MASTER_HOST", "MASTER_USER", "MASTER_PASSWORD",
	"MASTER_PORT", "MASTER_CONNECT_RETRY", "MASTER_HEARTBEAT_PERIOD",
	"MASTER_LOG_FILE", "MASTER_LOG_POS", "RELAY_LOG_FILE", "RELAY_LOG_POS",
	"MASTER_SSL", "MASTER_SSL_CA", "MASTER_SSL_CAPATH", "MASTER_SSL_CERT",
	"MASTER_SSL_KEY", "MASTER_SSL_CIPHER", "MASTER_SSL_VERIFY_SERVER_CERT",
	"IGNORE_SERVER_IDS",
}

// DefaultTableFormats are the result formats offered after \T.
var DefaultTableFormats = []string{"ascii", "csv", "html", "json", "markdown", "tsv", "vertical"}

// KeywordsForDialect returns CommonKeywords combined with dialect-specific keywords.
func KeywordsForDialect(dialect string) []string {
	result := make([]string, len(CommonKeywords))
	copy(result, CommonKeywords)

	switch dialect {
	case "postgres", "postgresql":
		result = append(result, PostgresKeywords...)
	case "mysql", "mariadb":
		result = append(result, MySQLKeywords...)
	case "sqlite":
		result = append(result, SQLiteKeywords...)
	}

	return dedupe(result)
}

// FunctionsForDialect returns the built-in function list for the given dialect.
func FunctionsForDialect(dialect string) []string {
	result := make([]string, len(CommonFunctions))
	copy(result, CommonFunctions)

	switch dialect {
	case "postgres", "postgresql":
		result = append(result, PostgresFunctions...)
	case "mysql", "mariadb":
		result = append(result, MySQLFunctions...)
	case "sqlite":
		result = append(result, SQLiteFunctions...)
	}

	return dedupe(result)
}

// StaticFor returns the static reference lists for dialect. A nil
// tableFormats selects DefaultTableFormats.
func StaticFor(dialect string, tableFormats []string) Static {
	if tableFormats == nil {
		tableFormats = DefaultTableFormats
	}
	return Static{
		Keywords:        KeywordsForDialect(dialect),
		Functions:       FunctionsForDialect(dialect),
		SpecialCommands: append([]string(nil), SpecialCommands...),
		TableFormats:    append([]string(nil), tableFormats...),
		ChangeItems:     append([]string(nil), ChangeItems...),
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
