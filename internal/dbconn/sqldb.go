package dbconn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/shopspring/decimal"
)

func (d *Database) querySQL(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("column types: %w", err)
	}

	cols := make([]datastore.ColumnInfo, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		if !ok {
			nullable = true
		}
		cols[i] = datastore.ColumnInfo{
			Name:     ct.Name(),
			TypeName: ct.DatabaseTypeName(),
			Nullable: nullable,
		}
	}
	info := datastore.NewResultInfo("", cols...)

	return &Result{
		Info:  info,
		Rows:  &sqlSource{rows: rows, columns: info.Columns},
		close: func() { _ = rows.Close() },
	}, nil
}

// sqlSource adapts *sql.Rows to datastore.RowSource.
type sqlSource struct {
	rows    *sql.Rows
	columns []datastore.ColumnInfo
}

func (s *sqlSource) Next() bool { return s.rows.Next() }
func (s *sqlSource) Err() error { return s.rows.Err() }

func (s *sqlSource) Values() ([]any, error) {
	values := make([]any, len(s.columns))
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		values[i] = normalize(s.columns[i].Kind, v)
	}
	return values, nil
}

// normalize maps driver values onto the types the row store compares and
// renders: text as string, numerics as decimal.Decimal.
func normalize(kind datastore.ValueKind, v any) any {
	switch kind {
	case datastore.KindNumeric:
		switch n := v.(type) {
		case []byte:
			if d, err := decimal.NewFromString(string(n)); err == nil {
				return d
			}
			return string(n)
		case string:
			if d, err := decimal.NewFromString(n); err == nil {
				return d
			}
		case int64:
			return decimal.NewFromInt(n)
		case float64:
			return decimal.NewFromFloat(n)
		}
	case datastore.KindBinary:
		if b, ok := v.([]byte); ok {
			return append([]byte(nil), b...)
		}
	default:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	}
	return v
}

func (d *Database) sqliteKeys(ctx context.Context, table string) ([]string, error) {
	schema, name := splitTable(table)
	query := `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`
	args := []any{name}
	if schema != "" {
		query = `SELECT name FROM pragma_table_info(?, ?) WHERE pk > 0 ORDER BY pk`
		args = append(args, schema)
	}
	return d.collectStrings(ctx, query, args...)
}

const mysqlKeyQuery = `
SELECT COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
ORDER BY ORDINAL_POSITION`

func (d *Database) mysqlKeys(ctx context.Context, table string) ([]string, error) {
	schema, name := splitTable(table)
	if schema == "" {
		schema = d.schema
	}
	if schema == "" {
		return d.collectStrings(ctx, `
SELECT COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
ORDER BY ORDINAL_POSITION`, name)
	}
	return d.collectStrings(ctx, mysqlKeyQuery, schema, name)
}

func (d *Database) collectStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("read primary key: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read primary key: %w", err)
	}
	return out, nil
}

// sqlExecutor runs statements in a lazily started database/sql transaction.
// SQLite and MySQL keep a transaction usable after a failed statement, so no
// savepoints are needed.
type sqlExecutor struct {
	db *sql.DB
	tx *sql.Tx
}

func (e *sqlExecutor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if e.tx == nil {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin: %w", err)
		}
		e.tx = tx
	}
	res, err := e.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

func (e *sqlExecutor) Commit(context.Context) error {
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	return tx.Commit()
}

func (e *sqlExecutor) Rollback(context.Context) error {
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	return tx.Rollback()
}
