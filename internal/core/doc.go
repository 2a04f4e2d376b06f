// Package core manages editing sessions over database tables.
//
// This package holds the domain logic independent of any transport. It can
// be used by web handlers, CLI tools, or tests without modification.
//
// # Sessions
//
// A session is a row store loaded from one table (or a SELECT over it) and
// addressed by a UUID. Clients edit cells, insert and delete rows, preview
// the DML that would be generated, and finally apply it:
//
//	info, _ := svc.OpenTable(ctx, core.OpenRequest{Table: "person"})
//	_ = svc.SetValue(ctx, info.ID, core.CellEdit{Row: 0, Column: "salary", Value: "1,200.00"})
//	report, err := svc.Apply(ctx, info.ID, "continue")
//
// Every operation on a session holds that session's lock, so one session is
// worked on by one goroutine at a time. Cancel is the exception: it only
// raises the store's cancel flag and returns.
//
// # Applying Changes
//
// Apply runs deletes, then updates, then inserts in one transaction. The
// error policy decides what happens when a statement fails:
//
//   - abort: roll back and stop (the default)
//   - continue: skip the row, keep it pending, carry on
//   - ignore_all: like continue, for this and every later failure
//
// The number of batches running at once is bounded by a [BatchLimiter].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB008: Database errors (duplicates, constraints, connections)
//   - DS001-DS007: Row store errors (missing key, read-only column)
//   - VAL001-VAL005: Value conversion errors
//   - SES001-SES005: Session errors (expired, limits, cancellation)
//   - TBL001-TBL002: Table errors
package core
