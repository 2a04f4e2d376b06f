// Package dbconn connects the row store to a live database.
//
// Three drivers are supported:
//
//   - postgres: jackc/pgx/v5 connection pool
//   - sqlite:   modernc.org/sqlite through database/sql
//   - mysql:    go-sql-driver/mysql through database/sql
//
// A [Database] runs queries into [datastore.RowSource] values, hands out
// transaction-scoped [datastore.Executor] values for applying changes, and
// resolves primary keys from the catalog of the connected database.
package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/datastore/internal/config"
	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// ErrUnsupportedDriver is returned by Open for unknown driver names.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Database is an open connection pool of one of the supported drivers.
type Database struct {
	driver  string
	dialect datastore.Dialect

	pool *pgxpool.Pool
	db   *sql.DB

	// schema is the default schema for catalog lookups (MySQL only).
	schema string
}

// Result is an open query result. Close must be called once the rows have
// been consumed.
type Result struct {
	Info datastore.ResultInfo
	Rows datastore.RowSource

	close func()
}

// Close releases the underlying cursor.
func (r *Result) Close() {
	if r.close != nil {
		r.close()
		r.close = nil
	}
}

// Open connects to the database described by cfg and verifies the
// connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "":
		return openPostgres(ctx, cfg)
	case DriverSQLite:
		db, err := sql.Open("sqlite", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection keeps in-memory databases shared and matches
		// SQLite's single-writer model.
		db.SetMaxOpenConns(1)
		return finishSQL(ctx, db, DriverSQLite, datastore.SQLite, "")
	case DriverMySQL:
		mcfg, err := mysql.ParseDSN(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		// Report matched rather than changed rows, so an UPDATE that writes
		// the stored value again still counts as one row.
		mcfg.ClientFoundRows = true
		db, err := sql.Open("mysql", mcfg.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MinConns)
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
		return finishSQL(ctx, db, DriverMySQL, datastore.MySQL, mcfg.DBName)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
}

func finishSQL(ctx context.Context, db *sql.DB, driver string, dialect datastore.Dialect, schema string) (*Database, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Database{driver: driver, dialect: dialect, db: db, schema: schema}, nil
}

// NewSQL wraps an already open database/sql handle. driver selects the
// dialect and catalog queries.
func NewSQL(db *sql.DB, driver string) (*Database, error) {
	dialect, ok := datastore.DialectByName(driver)
	if !ok || dialect.Name == DriverPostgres {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	return &Database{driver: dialect.Name, dialect: dialect, db: db}, nil
}

// Driver returns the driver name.
func (d *Database) Driver() string { return d.driver }

// Dialect returns the SQL dialect of the connected database.
func (d *Database) Dialect() datastore.Dialect { return d.dialect }

// SQLDB exposes the database/sql handle, nil for PostgreSQL.
func (d *Database) SQLDB() *sql.DB { return d.db }

// Ping verifies the connection.
func (d *Database) Ping(ctx context.Context) error {
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.db.PingContext(ctx)
}

// Close closes the pool.
func (d *Database) Close() {
	if d.pool != nil {
		d.pool.Close()
		return
	}
	_ = d.db.Close()
}

// Query runs a query and describes its columns. The result's UpdateTable is
// left empty; callers that know the source table set it.
func (d *Database) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	if d.pool != nil {
		return d.queryPostgres(ctx, query, args...)
	}
	return d.querySQL(ctx, query, args...)
}

// Executor returns a transaction-scoped executor. The transaction starts
// with the first statement and ends with Commit or Rollback.
func (d *Database) Executor() datastore.Executor {
	if d.pool != nil {
		return &pgxExecutor{pool: d.pool}
	}
	return &sqlExecutor{db: d.db}
}

// PrimaryKeyColumns returns the primary-key columns of table in key order.
// It implements datastore.KeyResolver.
func (d *Database) PrimaryKeyColumns(ctx context.Context, table string) ([]string, error) {
	switch d.driver {
	case DriverPostgres:
		return d.postgresKeys(ctx, table)
	case DriverSQLite:
		return d.sqliteKeys(ctx, table)
	case DriverMySQL:
		return d.mysqlKeys(ctx, table)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, d.driver)
}

// splitTable splits "schema.table" into its parts. The schema is empty for
// unqualified names.
func splitTable(name string) (schema, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
