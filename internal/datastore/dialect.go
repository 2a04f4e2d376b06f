package datastore

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Dialect holds the SQL flavor rules the statement factory needs.
type Dialect struct {
	Name string

	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder func(n int) string

	// QuoteIdentifier quotes a single identifier part.
	QuoteIdentifier func(name string) string

	// DefaultValuesInsert is appended to "INSERT INTO t " when a new row has
	// no non-NULL values.
	DefaultValuesInsert string

	// BinaryLiteral renders a byte slice as a literal for scripts.
	BinaryLiteral func(b []byte) string
}

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func questionPlaceholder(int) string { return "?" }

func doubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func backtickQuote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Postgres is the dialect for PostgreSQL.
var Postgres = Dialect{
	Name:                "postgres",
	Placeholder:         dollarPlaceholder,
	QuoteIdentifier:     doubleQuote,
	DefaultValuesInsert: "DEFAULT VALUES",
	BinaryLiteral: func(b []byte) string {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`
	},
}

// SQLite is the dialect for SQLite.
var SQLite = Dialect{
	Name:                "sqlite",
	Placeholder:         questionPlaceholder,
	QuoteIdentifier:     doubleQuote,
	DefaultValuesInsert: "DEFAULT VALUES",
	BinaryLiteral: func(b []byte) string {
		return "X'" + hex.EncodeToString(b) + "'"
	},
}

// MySQL is the dialect for MySQL and MariaDB.
var MySQL = Dialect{
	Name:                "mysql",
	Placeholder:         questionPlaceholder,
	QuoteIdentifier:     backtickQuote,
	DefaultValuesInsert: "() VALUES ()",
	BinaryLiteral: func(b []byte) string {
		return "X'" + hex.EncodeToString(b) + "'"
	},
}

// DialectByName returns the predefined dialect with the given name.
func DialectByName(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	case "mysql", "mariadb":
		return MySQL, true
	}
	return Dialect{}, false
}

// QuoteTable quotes a possibly schema-qualified table name part by part.
func (d Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
