package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/datastore/internal/logging"
)

// Decision is an error handler's verdict on a failed statement.
type Decision int

const (
	// DecisionAbort stops the batch and rolls the transaction back.
	DecisionAbort Decision = iota
	// DecisionContinue skips the failed row and carries on.
	DecisionContinue
	// DecisionIgnoreAll skips the failed row and every later failure in the
	// same batch without asking again.
	DecisionIgnoreAll
)

func (d Decision) String() string {
	switch d {
	case DecisionAbort:
		return "abort"
	case DecisionContinue:
		return "continue"
	case DecisionIgnoreAll:
		return "ignore_all"
	default:
		return "unknown"
	}
}

// ParseDecision converts a policy name to a Decision.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "abort", "":
		return DecisionAbort, nil
	case "continue":
		return DecisionContinue, nil
	case "ignore_all", "ignore":
		return DecisionIgnoreAll, nil
	}
	return DecisionAbort, fmt.Errorf("invalid error policy: %q", s)
}

// ErrorHandler decides how a batch proceeds after a statement failed.
// row is the statement's RowNumber, column and value identify the row and
// message is the database error text.
type ErrorHandler interface {
	Decide(row int, column string, value any, message string) Decision
}

// HandlerFunc adapts a function to the ErrorHandler interface.
type HandlerFunc func(row int, column string, value any, message string) Decision

func (f HandlerFunc) Decide(row int, column string, value any, message string) Decision {
	return f(row, column, value, message)
}

// FixedHandler returns a handler that always answers d.
func FixedHandler(d Decision) ErrorHandler {
	return HandlerFunc(func(int, string, any, string) Decision { return d })
}

var (
	AbortOnError    = FixedHandler(DecisionAbort)
	ContinueOnError = FixedHandler(DecisionContinue)
	IgnoreAllErrors = FixedHandler(DecisionIgnoreAll)
)

// RowFailure records a statement that failed during Apply.
type RowFailure struct {
	Type      StatementType
	RowNumber int
	SQL       string
	Err       error
}

// ApplyResult summarizes a batch.
type ApplyResult struct {
	Deleted  int
	Updated  int
	Inserted int
	Failed   int

	// RowsAffected is the database's row count summed over the successful
	// statements. Statements whose driver reports no count add nothing.
	RowsAffected int64

	// Aborted is set when the handler stopped the batch or the context was
	// cancelled; the transaction was rolled back.
	Aborted bool

	// Cancelled is set when Cancel stopped the batch between two rows; the
	// statements executed so far were committed.
	Cancelled bool

	// Statements lists the statements that executed successfully.
	Statements []DmlStatement
	Failures   []RowFailure
}

// Applied returns the number of statements that executed successfully.
func (r ApplyResult) Applied() int {
	return r.Deleted + r.Updated + r.Inserted
}

// Apply writes all pending changes through exec: deletes, then updates, then
// inserts. A failed statement is passed to handler; a nil handler aborts on
// the first error. Unless aborted, the batch ends with exactly one Commit,
// even when nothing was pending. An abort ends with a Rollback.
//
// An UPDATE or DELETE that matches no row fails with ErrRowNotFound and goes
// through handler like any database error, so the change stays pending.
//
// Rows whose statement succeeded are reset (or purged, for deletes) after
// the commit, so a second Apply only retries the rows that failed.
//
// Apply logs through logging.FromContext(ctx).
func (ds *DataStore) Apply(ctx context.Context, exec Executor, handler ErrorHandler) (ApplyResult, error) {
	ds.cancelled.Store(false)

	var res ApplyResult

	stmts, err := ds.Statements()
	if err != nil {
		return res, err
	}

	logger := logging.FromContext(ctx)
	ignoreAll := false

	for _, st := range stmts {
		if ds.cancelled.Load() {
			res.Cancelled = true
			break
		}
		if err := ctx.Err(); err != nil {
			res.Aborted = true
			return res, ds.rollback(ctx, exec, fmt.Errorf("apply: %w", err))
		}

		n, err := exec.Exec(ctx, st.SQL, st.Args...)
		if err == nil && n == 0 && st.Type != StatementInsert {
			err = ErrRowNotFound
		}
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, RowFailure{
				Type:      st.Type,
				RowNumber: st.RowNumber,
				SQL:       st.SQL,
				Err:       err,
			})
			logger.Debug("statement failed",
				"type", st.Type.String(),
				"row", st.RowNumber,
				"error", err,
			)

			if ignoreAll {
				continue
			}

			decision := DecisionAbort
			if handler != nil {
				decision = handler.Decide(st.RowNumber, st.Column, st.Value, err.Error())
			}

			switch decision {
			case DecisionContinue:
				continue
			case DecisionIgnoreAll:
				ignoreAll = true
				continue
			default:
				res.Aborted = true
				return res, ds.rollback(ctx, exec,
					fmt.Errorf("%s row %d: %w", st.Type, st.RowNumber, err))
			}
		}

		switch st.Type {
		case StatementDelete:
			res.Deleted++
		case StatementUpdate:
			res.Updated++
		case StatementInsert:
			res.Inserted++
		}
		if n > 0 {
			res.RowsAffected += n
		}
		res.Statements = append(res.Statements, st)
	}

	if err := exec.Commit(ctx); err != nil {
		return res, ds.rollback(ctx, exec, fmt.Errorf("commit: %w", err))
	}

	ds.purgeApplied(res.Statements)

	logger.Info("changes applied",
		"deleted", res.Deleted,
		"updated", res.Updated,
		"inserted", res.Inserted,
		"failed", res.Failed,
		"rows_affected", res.RowsAffected,
		"cancelled", res.Cancelled,
	)
	return res, nil
}

// rollback ends the transaction after cause and returns cause joined with
// any rollback error. It runs even when ctx is already cancelled.
func (ds *DataStore) rollback(ctx context.Context, exec Executor, cause error) error {
	if err := exec.Rollback(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}

// purgeApplied removes committed changes from the pending buckets.
func (ds *DataStore) purgeApplied(applied []DmlStatement) {
	done := make(map[*Row]bool, len(applied))
	for _, st := range applied {
		done[st.row] = true
	}

	if len(ds.deleted) > 0 {
		kept := ds.deleted[:0]
		for _, r := range ds.deleted {
			if !done[r] {
				kept = append(kept, r)
			}
		}
		clear(ds.deleted[len(kept):])
		ds.deleted = kept
	}

	for _, r := range ds.rows {
		switch {
		case done[r]:
			r.accept()
		case r.status == StatusModified && len(r.changedColumns()) == 0:
			r.accept()
		}
	}
}
