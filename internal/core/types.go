package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/JonMunkholm/datastore/internal/dbconn"
)

// Database is what the service needs from a connection.
// Satisfied by *dbconn.Database.
type Database interface {
	Query(ctx context.Context, query string, args ...any) (*dbconn.Result, error)
	Executor() datastore.Executor
	Dialect() datastore.Dialect
	PrimaryKeyColumns(ctx context.Context, table string) ([]string, error)
}

// OpenRequest describes the rows to load into a new session.
type OpenRequest struct {
	Table string `json:"table"` // Table that edits are written back to: "orders" or "sales.orders"

	// Query optionally replaces the default SELECT * FROM Table. It must be
	// a SELECT whose columns come from Table.
	Query string `json:"query,omitempty"`

	// KeyColumns overrides primary-key discovery.
	KeyColumns []string `json:"key_columns,omitempty"`

	// MaxRows caps the fetch; 0 uses the configured default.
	MaxRows int `json:"max_rows,omitempty"`
}

// SessionInfo summarizes an open session.
type SessionInfo struct {
	ID       string       `json:"id"`
	Table    string       `json:"table"`
	Dialect  string       `json:"dialect"`
	Columns  []ColumnView `json:"columns"`
	Rows     int          `json:"rows"`
	Pending  PendingView  `json:"pending"`
	ReadOnly bool         `json:"read_only"` // no key columns: inserts only
	Opened   time.Time    `json:"opened"`
	LastUsed time.Time    `json:"last_used"`
	Client   Client       `json:"client"`
}

// ColumnView describes a column for clients.
type ColumnView struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Kind       string `json:"kind"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
	Updateable bool   `json:"updateable"`
}

// PendingView counts unsaved changes.
type PendingView struct {
	Deleted  int `json:"deleted"`
	Modified int `json:"modified"`
	Inserted int `json:"inserted"`
}

// RowView is one live row.
type RowView struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
	Values []any  `json:"values"`
}

// Page is a window of live rows.
type Page struct {
	Offset  int         `json:"offset"`
	Total   int         `json:"total"`
	Rows    []RowView   `json:"rows"`
	Pending PendingView `json:"pending"`
}

// StatementView is a generated statement with its bound arguments.
type StatementView struct {
	Type string `json:"type"`
	Row  int    `json:"row"`
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// FailureView is a statement that failed during Apply.
type FailureView struct {
	Type  string      `json:"type"`
	Row   int         `json:"row"`
	SQL   string      `json:"sql"`
	Error string      `json:"error"`
	User  UserMessage `json:"user"`
}

// ApplyReport is the outcome of one batch.
type ApplyReport struct {
	At       time.Time `json:"at"`
	Policy   string    `json:"policy"`
	Deleted  int       `json:"deleted"`
	Updated  int       `json:"updated"`
	Inserted int       `json:"inserted"`
	Failed   int       `json:"failed"`
	// RowsAffected is the database row count of the successful statements.
	RowsAffected int64         `json:"rows_affected"`
	Aborted      bool          `json:"aborted"`
	Cancelled    bool          `json:"cancelled"`
	Failures     []FailureView `json:"failures,omitempty"`
	Pending      PendingView   `json:"pending"`
	Duration     time.Duration `json:"duration_ns"`
}

func columnViews(info datastore.ResultInfo) []ColumnView {
	out := make([]ColumnView, len(info.Columns))
	for i, c := range info.Columns {
		out[i] = ColumnView{
			Name:       c.Name,
			Type:       c.TypeName,
			Kind:       c.Kind.String(),
			Nullable:   c.Nullable,
			PrimaryKey: c.PrimaryKey,
			Updateable: c.Updateable,
		}
	}
	return out
}

func pendingView(ds *datastore.DataStore) PendingView {
	d, m, i := ds.PendingCounts()
	return PendingView{Deleted: d, Modified: m, Inserted: i}
}

func statementViews(stmts []datastore.DmlStatement) []StatementView {
	out := make([]StatementView, len(stmts))
	for i, st := range stmts {
		out[i] = StatementView{
			Type: st.Type.String(),
			Row:  st.RowNumber,
			SQL:  st.SQL,
			Args: st.Args,
		}
	}
	return out
}

func newApplyReport(policy string, res datastore.ApplyResult, ds *datastore.DataStore, elapsed time.Duration) ApplyReport {
	report := ApplyReport{
		Policy:       policy,
		Deleted:      res.Deleted,
		Updated:      res.Updated,
		Inserted:     res.Inserted,
		Failed:       res.Failed,
		RowsAffected: res.RowsAffected,
		Aborted:      res.Aborted,
		Cancelled:    res.Cancelled,
		Pending:      pendingView(ds),
		Duration:     elapsed,
	}
	for _, f := range res.Failures {
		report.Failures = append(report.Failures, FailureView{
			Type:  f.Type.String(),
			Row:   f.RowNumber,
			SQL:   f.SQL,
			Error: f.Err.Error(),
			User:  MapError(f.Err),
		})
	}
	return report
}
