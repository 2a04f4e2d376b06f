package dbconn

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/datastore/internal/config"
	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Database{driver: DriverPostgres, dialect: datastore.Postgres, pool: pool}, nil
}

// NewPostgres wraps an existing pgx pool.
func NewPostgres(pool *pgxpool.Pool) *Database {
	return &Database{driver: DriverPostgres, dialect: datastore.Postgres, pool: pool}
}

func (d *Database) queryPostgres(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	typeMap := rows.Conn().TypeMap()
	fields := rows.FieldDescriptions()
	cols := make([]datastore.ColumnInfo, len(fields))
	for i, f := range fields {
		typeName := ""
		if t, ok := typeMap.TypeForOID(f.DataTypeOID); ok {
			typeName = t.Name
		}
		cols[i] = datastore.ColumnInfo{
			Name:     f.Name,
			TypeName: typeName,
			Kind:     datastore.KindFromTypeName(typeName),
			Nullable: true,
		}
	}

	return &Result{
		Info:  datastore.NewResultInfo("", cols...),
		Rows:  &pgxSource{Rows: rows},
		close: rows.Close,
	}, nil
}

// pgxSource converts pgx numerics to decimals so edits compare by value.
type pgxSource struct {
	pgx.Rows
}

func (s *pgxSource) Values() ([]any, error) {
	values, err := s.Rows.Values()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if n, ok := v.(pgtype.Numeric); ok {
			values[i] = numericToDecimal(n)
		}
	}
	return values, nil
}

// numericToDecimal converts a pgtype.Numeric. NULL becomes nil; NaN and
// infinities stay pgtype.Numeric.
func numericToDecimal(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return n
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

const postgresKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = $1::regclass AND i.indisprimary
ORDER BY a.attnum`

func (d *Database) postgresKeys(ctx context.Context, table string) ([]string, error) {
	rows, err := d.pool.Query(ctx, postgresKeyQuery, table)
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read primary key: %w", err)
	}
	return keys, nil
}

// pgxExecutor runs statements in a lazily started transaction. Every
// statement runs inside its own savepoint so a failed row leaves the
// transaction usable for the rows after it.
type pgxExecutor struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (e *pgxExecutor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if e.tx == nil {
		tx, err := e.pool.Begin(ctx)
		if err != nil {
			return 0, fmt.Errorf("begin: %w", err)
		}
		e.tx = tx
	}

	sp, err := e.tx.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("savepoint: %w", err)
	}
	tag, err := sp.Exec(ctx, sql, args...)
	if err != nil {
		_ = sp.Rollback(ctx)
		return 0, err
	}
	if err := sp.Commit(ctx); err != nil {
		return 0, fmt.Errorf("release savepoint: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (e *pgxExecutor) Commit(ctx context.Context) error {
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	return tx.Commit(ctx)
}

func (e *pgxExecutor) Rollback(ctx context.Context) error {
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	return tx.Rollback(ctx)
}
