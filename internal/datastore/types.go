// Package datastore provides an in-memory, updatable result-set cache.
//
// A [DataStore] holds the rows of a query result together with a per-row
// modification status. Local edits are replayed against the database later:
// the store generates the DELETE, UPDATE and INSERT statements from the
// difference between current and original values, and [DataStore.Apply]
// executes them in that order inside a single transaction.
//
// # Row Lifecycle
//
//   - Fetched rows start as [StatusOriginal].
//   - Rows created with [DataStore.AddRow] start as [StatusNew].
//   - Changing a value of an original row makes it [StatusModified].
//   - Deleting a new row discards it; deleting any other row moves it to the
//     deleted set until the database delete is committed.
//
// # Primary Keys
//
// UPDATE and DELETE statements identify rows by their primary-key columns.
// When the result columns carry no key information, [DataStore.ResolvePrimaryKeys]
// asks a [KeyResolver] (usually backed by database metadata). Generating an
// UPDATE or DELETE without any key column fails with [ErrNoPrimaryKey].
//
// # Concurrency
//
// A DataStore is not safe for concurrent use. The only exception is
// [DataStore.Cancel], which may be called from any goroutine to stop a running
// fetch or apply between two rows.
package datastore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoPrimaryKey is returned when an UPDATE or DELETE is required but no
	// primary-key column is known for the update table.
	ErrNoPrimaryKey = errors.New("no primary key columns defined")

	// ErrNoUpdateTable is returned when DML is requested for a read-only result.
	ErrNoUpdateTable = errors.New("no update table defined")

	// ErrColumnNotUpdateable is returned when writing to a computed or
	// read-only column.
	ErrColumnNotUpdateable = errors.New("column is not updateable")

	// ErrCancelled is returned by Fetch when the cancel flag was set.
	ErrCancelled = errors.New("operation cancelled")

	// ErrRowNotFound is recorded when an UPDATE or DELETE matched no row,
	// usually because another client changed or removed it.
	ErrRowNotFound = errors.New("statement matched no rows")
)

// RowStatus is the modification state of a row.
type RowStatus int

const (
	StatusOriginal RowStatus = iota
	StatusModified
	StatusNew
)

func (s RowStatus) String() string {
	switch s {
	case StatusOriginal:
		return "original"
	case StatusModified:
		return "modified"
	case StatusNew:
		return "new"
	default:
		return "unknown"
	}
}

// ValueKind is a coarse classification of a column's type. It drives value
// conversion at the edges (JSON input, literal rendering) and never the SQL
// generated for a statement.
type ValueKind int

const (
	KindOther ValueKind = iota
	KindText
	KindInteger
	KindNumeric
	KindBool
	KindTime
	KindBinary
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindNumeric:
		return "numeric"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBinary:
		return "binary"
	default:
		return "other"
	}
}

// KindFromTypeName maps a database type name to a ValueKind.
// Unknown names map to KindOther.
func KindFromTypeName(typeName string) ValueKind {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "text", "varchar", "char", "character", "character varying", "bpchar",
		"name", "uuid", "citext", "json", "jsonb", "string", "clob", "nvarchar", "nchar",
		"tinytext", "mediumtext", "longtext", "enum":
		return KindText
	case "int", "integer", "int2", "int4", "int8", "smallint", "bigint", "tinyint",
		"mediumint", "serial", "bigserial", "smallserial":
		return KindInteger
	case "numeric", "decimal", "real", "float", "float4", "float8", "double",
		"double precision", "money":
		return KindNumeric
	case "bool", "boolean":
		return KindBool
	case "date", "time", "timestamp", "timestamptz", "datetime", "timetz",
		"timestamp with time zone", "timestamp without time zone", "year":
		return KindTime
	case "bytea", "blob", "binary", "varbinary", "tinyblob", "mediumblob", "longblob":
		return KindBinary
	}
	return KindOther
}

// ColumnInfo describes one column of a result.
type ColumnInfo struct {
	Name       string
	TypeName   string
	Kind       ValueKind
	Nullable   bool
	PrimaryKey bool
	Updateable bool
}

// ResultInfo describes the columns of a result and the table that DML is
// generated for. An empty UpdateTable makes the result read-only.
type ResultInfo struct {
	Columns     []ColumnInfo
	UpdateTable string
}

// NewResultInfo builds a ResultInfo for the given table and columns.
// Columns with a name are marked updateable.
func NewResultInfo(table string, columns ...ColumnInfo) ResultInfo {
	cols := make([]ColumnInfo, len(columns))
	for i, c := range columns {
		if c.Kind == KindOther && c.TypeName != "" {
			c.Kind = KindFromTypeName(c.TypeName)
		}
		if c.Name != "" {
			c.Updateable = true
		}
		cols[i] = c
	}
	return ResultInfo{Columns: cols, UpdateTable: table}
}

// ColumnIndex returns the position of the named column (case-insensitive),
// or -1 if no such column exists.
func (ri ResultInfo) ColumnIndex(name string) int {
	for i, c := range ri.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// HasPrimaryKey reports whether at least one column is a key column.
func (ri ResultInfo) HasPrimaryKey() bool {
	for _, c := range ri.Columns {
		if c.PrimaryKey {
			return true
		}
	}
	return false
}

// KeyColumns returns the indexes of the primary-key columns.
func (ri ResultInfo) KeyColumns() []int {
	var idx []int
	for i, c := range ri.Columns {
		if c.PrimaryKey {
			idx = append(idx, i)
		}
	}
	return idx
}

// KeyResolver looks up the primary-key column names of a table.
type KeyResolver interface {
	PrimaryKeyColumns(ctx context.Context, table string) ([]string, error)
}

// KeyResolverFunc adapts a function to the KeyResolver interface.
type KeyResolverFunc func(ctx context.Context, table string) ([]string, error)

func (f KeyResolverFunc) PrimaryKeyColumns(ctx context.Context, table string) ([]string, error) {
	return f(ctx, table)
}

// RowSource is the minimal cursor a DataStore can be filled from.
// pgx.Rows satisfies it directly.
type RowSource interface {
	Next() bool
	Values() ([]any, error)
	Err() error
}

// Executor runs generated statements. Exec returns the number of rows the
// statement matched, or -1 when the driver cannot tell. Commit and Rollback
// end the transaction the statements ran in.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
