package datastore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/datastore/internal/logging"
)

// fakeExecutor records executed statements and fails those matched by failOn.
type fakeExecutor struct {
	executed  []string
	failOn    func(sql string, args []any) error
	commits   int
	rollbacks int
	commitErr error
	onExec    func()
	// affected overrides the row count of a successful statement.
	affected func(sql string, args []any) int64
}

func (f *fakeExecutor) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	if f.onExec != nil {
		f.onExec()
	}
	if f.failOn != nil {
		if err := f.failOn(sql, args); err != nil {
			return 0, err
		}
	}
	f.executed = append(f.executed, sql)
	if f.affected != nil {
		return f.affected(sql, args), nil
	}
	return 1, nil
}

func (f *fakeExecutor) Commit(context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakeExecutor) Rollback(context.Context) error {
	f.rollbacks++
	return nil
}

// countingHandler counts invocations and answers with a fixed decision.
type countingHandler struct {
	calls    int
	decision Decision
	rows     []int
	messages []string
}

func (h *countingHandler) Decide(row int, _ string, _ any, message string) Decision {
	h.calls++
	h.rows = append(h.rows, row)
	h.messages = append(h.messages, message)
	return h.decision
}

// largeStore returns a store with n deleted, m modified and k new rows.
func largeStore(t *testing.T, n, m, k int) *DataStore {
	t.Helper()
	ds := New(personInfo(), Postgres)
	src := &sliceSource{}
	for i := 0; i < n+m; i++ {
		src.rows = append(src.rows, []any{int64(i + 1), "name", nil})
	}
	if _, err := ds.Fetch(context.Background(), src, 0); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	for i := 0; i < n; i++ {
		ds.DeleteRow(0)
	}
	for i := 0; i < m; i++ {
		_ = ds.SetValue(i, 1, "changed")
	}
	for i := 0; i < k; i++ {
		row := ds.AddRow()
		_ = ds.SetValue(row, 0, int64(1000+i))
	}
	return ds
}

func failIDs(ids ...int64) func(string, []any) error {
	return func(_ string, args []any) error {
		for _, a := range args {
			for _, id := range ids {
				if a == id {
					return errors.New("duplicate key value violates unique constraint")
				}
			}
		}
		return nil
	}
}

// ============================================================================
// Apply Ordering Tests
// ============================================================================

func TestApply_OrderAndCounts(t *testing.T) {
	ds := largeStore(t, 2, 3, 4)
	exec := &fakeExecutor{}

	res, err := ds.Apply(context.Background(), exec, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(exec.executed) != 9 {
		t.Fatalf("executed %d statements, want 9", len(exec.executed))
	}
	prefixes := []string{"DELETE", "DELETE", "UPDATE", "UPDATE", "UPDATE", "INSERT", "INSERT", "INSERT", "INSERT"}
	for i, p := range prefixes {
		if !strings.HasPrefix(exec.executed[i], p) {
			t.Errorf("statement %d = %q, want %s", i, exec.executed[i], p)
		}
	}

	if res.Deleted != 2 || res.Updated != 3 || res.Inserted != 4 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 deleted, 3 updated, 4 inserted", res)
	}
	if res.Applied() != 9 {
		t.Errorf("Applied() = %d, want 9", res.Applied())
	}
	if res.RowsAffected != 9 {
		t.Errorf("RowsAffected = %d, want 9", res.RowsAffected)
	}
	if exec.commits != 1 || exec.rollbacks != 0 {
		t.Errorf("commits = %d, rollbacks = %d, want 1 and 0", exec.commits, exec.rollbacks)
	}
	if ds.IsModified() {
		t.Error("IsModified() = true after successful apply")
	}
	if ds.DeletedCount() != 0 {
		t.Errorf("DeletedCount() = %d, want 0", ds.DeletedCount())
	}
}

func TestApply_CommitsWithoutChanges(t *testing.T) {
	ds := newPersonStore(t)
	exec := &fakeExecutor{}

	res, err := ds.Apply(context.Background(), exec, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Applied() != 0 {
		t.Errorf("Applied() = %d, want 0", res.Applied())
	}
	if exec.commits != 1 {
		t.Errorf("commits = %d, want 1", exec.commits)
	}
}

func TestApply_PreconditionFailsBeforeExecution(t *testing.T) {
	ds := New(NewResultInfo("person", ColumnInfo{Name: "id"}, ColumnInfo{Name: "name"}), Postgres)
	_, _ = ds.Fetch(context.Background(), &sliceSource{rows: [][]any{{int64(1), "a"}}}, 0)
	ds.AddRow()
	_ = ds.SetValue(0, 1, "b")
	exec := &fakeExecutor{}

	_, err := ds.Apply(context.Background(), exec, nil)
	if !errors.Is(err, ErrNoPrimaryKey) {
		t.Fatalf("Apply() error = %v, want ErrNoPrimaryKey", err)
	}
	if len(exec.executed) != 0 || exec.commits != 0 || exec.rollbacks != 0 {
		t.Errorf("executor touched: %d stmts, %d commits, %d rollbacks", len(exec.executed), exec.commits, exec.rollbacks)
	}
	if !ds.IsModified() {
		t.Error("IsModified() = false, pending changes were lost")
	}
}

// ============================================================================
// Error Handler Tests
// ============================================================================

func TestApply_AbortWithoutHandler(t *testing.T) {
	ds := largeStore(t, 1, 2, 1)
	exec := &fakeExecutor{failOn: failIDs(3)}

	res, err := ds.Apply(context.Background(), exec, nil)
	if err == nil {
		t.Fatal("Apply() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "violates unique constraint") {
		t.Errorf("Apply() error = %v, want database error", err)
	}
	if !res.Aborted {
		t.Error("Aborted = false, want true")
	}
	if res.Deleted != 1 || res.Updated != 1 {
		t.Errorf("result = %+v, want 1 delete and 1 update before abort", res)
	}
	if exec.commits != 0 || exec.rollbacks != 1 {
		t.Errorf("commits = %d, rollbacks = %d, want 0 and 1", exec.commits, exec.rollbacks)
	}

	d, m, n := ds.PendingCounts()
	if d != 1 || m != 2 || n != 1 {
		t.Errorf("PendingCounts() = (%d, %d, %d), want everything still pending", d, m, n)
	}
}

func TestApply_Continue(t *testing.T) {
	ds := largeStore(t, 0, 3, 0)
	exec := &fakeExecutor{failOn: failIDs(1, 3)}
	handler := &countingHandler{decision: DecisionContinue}

	res, err := ds.Apply(context.Background(), exec, handler)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if handler.calls != 2 {
		t.Errorf("handler calls = %d, want 2", handler.calls)
	}
	if res.Updated != 1 || res.Failed != 2 {
		t.Errorf("result = %+v, want 1 updated and 2 failed", res)
	}
	if exec.commits != 1 {
		t.Errorf("commits = %d, want 1", exec.commits)
	}

	if ds.Status(0) != StatusModified || ds.Status(1) != StatusOriginal || ds.Status(2) != StatusModified {
		t.Errorf("statuses = %v %v %v, want modified original modified",
			ds.Status(0), ds.Status(1), ds.Status(2))
	}

	// A retry only re-applies the rows that failed.
	retry := &fakeExecutor{}
	res, err = ds.Apply(context.Background(), retry, nil)
	if err != nil {
		t.Fatalf("retry Apply() error = %v", err)
	}
	if len(retry.executed) != 2 || res.Updated != 2 {
		t.Errorf("retry executed %d statements, updated %d, want 2 and 2", len(retry.executed), res.Updated)
	}
}

func TestApply_IgnoreAll(t *testing.T) {
	ds := largeStore(t, 2, 2, 2)
	exec := &fakeExecutor{failOn: func(sql string, _ []any) error {
		if strings.HasPrefix(sql, "UPDATE") || strings.HasPrefix(sql, "INSERT") {
			return errors.New("permission denied")
		}
		return nil
	}}
	handler := &countingHandler{decision: DecisionIgnoreAll}

	res, err := ds.Apply(context.Background(), exec, handler)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if handler.calls != 1 {
		t.Errorf("handler calls = %d, want 1", handler.calls)
	}
	if res.Failed != 4 {
		t.Errorf("Failed = %d, want 4", res.Failed)
	}
	if res.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2", res.Deleted)
	}
	if len(res.Failures) != 4 || res.Failures[0].Type != StatementUpdate {
		t.Errorf("Failures = %+v", res.Failures)
	}
	if exec.commits != 1 || exec.rollbacks != 0 {
		t.Errorf("commits = %d, rollbacks = %d, want 1 and 0", exec.commits, exec.rollbacks)
	}
	if handler.messages[0] != "permission denied" {
		t.Errorf("handler message = %q", handler.messages[0])
	}
}

func TestApply_HandlerAbortAfterContinue(t *testing.T) {
	ds := largeStore(t, 0, 3, 0)
	exec := &fakeExecutor{failOn: failIDs(1, 2)}
	calls := 0
	handler := HandlerFunc(func(row int, column string, value any, _ string) Decision {
		calls++
		if column != "id" {
			t.Errorf("column = %q, want id", column)
		}
		if calls == 1 {
			return DecisionContinue
		}
		return DecisionAbort
	})

	res, err := ds.Apply(context.Background(), exec, handler)
	if err == nil {
		t.Fatal("Apply() error = nil, want error")
	}
	if !res.Aborted || res.Failed != 2 || res.Updated != 0 {
		t.Errorf("result = %+v", res)
	}
	if exec.rollbacks != 1 || exec.commits != 0 {
		t.Errorf("commits = %d, rollbacks = %d, want 0 and 1", exec.commits, exec.rollbacks)
	}
}

func TestApply_CommitFailure(t *testing.T) {
	ds := largeStore(t, 1, 0, 0)
	exec := &fakeExecutor{commitErr: errors.New("connection reset by peer")}

	_, err := ds.Apply(context.Background(), exec, nil)
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("Apply() error = %v, want commit error", err)
	}
	if ds.DeletedCount() != 1 {
		t.Errorf("DeletedCount() = %d, want 1", ds.DeletedCount())
	}
	if exec.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1", exec.rollbacks)
	}
}

// ============================================================================
// Row Count Tests
// ============================================================================

// goneIDs reports zero affected rows for statements touching ids.
func goneIDs(ids ...int64) func(string, []any) int64 {
	return func(_ string, args []any) int64 {
		for _, a := range args {
			for _, id := range ids {
				if a == id {
					return 0
				}
			}
		}
		return 1
	}
}

func TestApply_ZeroRowsKeepsChangesPending(t *testing.T) {
	ds := newPersonStore(t)
	_ = ds.SetValue(0, 1, "Trillian")
	ds.DeleteRow(2)
	exec := &fakeExecutor{affected: goneIDs(1, 3)}

	res, err := ds.Apply(context.Background(), exec, ContinueOnError)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Updated != 0 || res.Deleted != 0 || res.Failed != 2 {
		t.Errorf("result = %+v, want 2 failed and nothing applied", res)
	}
	for _, f := range res.Failures {
		if !errors.Is(f.Err, ErrRowNotFound) {
			t.Errorf("failure %s row %d error = %v, want ErrRowNotFound", f.Type, f.RowNumber, f.Err)
		}
	}
	if !ds.IsModified() {
		t.Fatal("IsModified() = false, the edit was lost")
	}
	if d, m, _ := ds.PendingCounts(); d != 1 || m != 1 {
		t.Errorf("PendingCounts() = (%d, %d), want 1 delete and 1 update pending", d, m)
	}
}

func TestApply_ZeroRowsAbortsByDefault(t *testing.T) {
	ds := newPersonStore(t)
	_ = ds.SetValue(0, 1, "Trillian")
	exec := &fakeExecutor{affected: goneIDs(1)}

	res, err := ds.Apply(context.Background(), exec, nil)
	if !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("Apply() error = %v, want ErrRowNotFound", err)
	}
	if !res.Aborted || exec.rollbacks != 1 {
		t.Errorf("result = %+v, rollbacks = %d", res, exec.rollbacks)
	}
}

func TestApply_UnknownRowCountSucceeds(t *testing.T) {
	ds := largeStore(t, 1, 1, 1)
	exec := &fakeExecutor{affected: func(string, []any) int64 { return -1 }}

	res, err := ds.Apply(context.Background(), exec, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Applied() != 3 || res.RowsAffected != 0 {
		t.Errorf("Applied() = %d, RowsAffected = %d, want 3 and 0", res.Applied(), res.RowsAffected)
	}
}

func TestApply_LogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "debug", "text").With("session_id", "sess-9")
	ctx := logging.NewContext(context.Background(), logger)

	ds := largeStore(t, 0, 1, 0)
	exec := &fakeExecutor{failOn: failIDs(1)}
	if _, err := ds.Apply(ctx, exec, ContinueOnError); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"statement failed", "changes applied", "session_id=sess-9"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

// ============================================================================
// Cancellation Tests
// ============================================================================

func TestApply_CancelCommitsAppliedRows(t *testing.T) {
	ds := largeStore(t, 0, 0, 3)
	exec := &fakeExecutor{}
	exec.onExec = func() {
		if len(exec.executed) == 0 {
			ds.Cancel()
		}
	}

	res, err := ds.Apply(context.Background(), exec, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if res.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", res.Inserted)
	}
	if exec.commits != 1 {
		t.Errorf("commits = %d, want 1", exec.commits)
	}
	if _, _, n := ds.PendingCounts(); n != 2 {
		t.Errorf("pending inserts = %d, want 2", n)
	}
}

func TestApply_ContextCancelledRollsBack(t *testing.T) {
	ds := largeStore(t, 0, 2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	exec := &fakeExecutor{onExec: cancel}

	res, err := ds.Apply(ctx, exec, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Apply() error = %v, want context.Canceled", err)
	}
	if !res.Aborted || exec.rollbacks != 1 || exec.commits != 0 {
		t.Errorf("result = %+v, rollbacks = %d, commits = %d", res, exec.rollbacks, exec.commits)
	}
	if _, m, _ := ds.PendingCounts(); m != 2 {
		t.Errorf("pending updates = %d, want 2", m)
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    Decision
		wantErr bool
	}{
		{"", DecisionAbort, false},
		{"abort", DecisionAbort, false},
		{"continue", DecisionContinue, false},
		{"ignore", DecisionIgnoreAll, false},
		{"ignore_all", DecisionIgnoreAll, false},
		{"retry", DecisionAbort, true},
	}
	for _, tt := range tests {
		got, err := ParseDecision(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDecision(%q) = %v, %v", tt.in, got, err)
		}
	}
}
