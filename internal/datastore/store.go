package datastore

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// DataStore is an updatable, in-memory copy of a query result.
type DataStore struct {
	info    ResultInfo
	dialect Dialect

	rows    []*Row
	deleted []*Row

	cancelled atomic.Bool
}

// New creates an empty DataStore for the given result layout.
func New(info ResultInfo, dialect Dialect) *DataStore {
	info.Columns = append([]ColumnInfo(nil), info.Columns...)
	return &DataStore{
		info:    info,
		dialect: dialect,
	}
}

// Info returns a copy of the result layout, including resolved key flags.
func (ds *DataStore) Info() ResultInfo {
	info := ds.info
	info.Columns = append([]ColumnInfo(nil), ds.info.Columns...)
	return info
}

// Dialect returns the SQL dialect statements are generated for.
func (ds *DataStore) Dialect() Dialect {
	return ds.dialect
}

// RowCount returns the number of live rows. Deleted rows are not counted.
func (ds *DataStore) RowCount() int {
	return len(ds.rows)
}

// ColumnCount returns the number of columns.
func (ds *DataStore) ColumnCount() int {
	return len(ds.info.Columns)
}

// DeletedCount returns the number of rows waiting for a database delete.
func (ds *DataStore) DeletedCount() int {
	return len(ds.deleted)
}

func (ds *DataStore) row(i int) *Row {
	if i < 0 || i >= len(ds.rows) {
		panic(fmt.Sprintf("datastore: row index %d out of range [0:%d]", i, len(ds.rows)))
	}
	return ds.rows[i]
}

func (ds *DataStore) checkColumn(col int) {
	if col < 0 || col >= len(ds.info.Columns) {
		panic(fmt.Sprintf("datastore: column index %d out of range [0:%d]", col, len(ds.info.Columns)))
	}
}

// Value returns the current value of a cell.
func (ds *DataStore) Value(row, col int) any {
	ds.checkColumn(col)
	return ds.row(row).values[col]
}

// OriginalValue returns the value a cell had when it was fetched.
// New rows have no original values and always return nil.
func (ds *DataStore) OriginalValue(row, col int) any {
	ds.checkColumn(col)
	r := ds.row(row)
	if r.original == nil {
		return nil
	}
	return r.original[col]
}

// RowValues returns a copy of the current values of a row.
func (ds *DataStore) RowValues(row int) []any {
	return cloneValues(ds.row(row).values)
}

// Status returns the modification status of a row.
func (ds *DataStore) Status(row int) RowStatus {
	return ds.row(row).status
}

// IsModified reports whether the store holds any change that has not been
// written to the database.
func (ds *DataStore) IsModified() bool {
	if len(ds.deleted) > 0 {
		return true
	}
	for _, r := range ds.rows {
		if r.status != StatusOriginal {
			return true
		}
	}
	return false
}

// PendingCounts returns the number of deleted, modified and new rows.
func (ds *DataStore) PendingCounts() (deleted, modified, inserted int) {
	for _, r := range ds.rows {
		switch r.status {
		case StatusModified:
			modified++
		case StatusNew:
			inserted++
		}
	}
	return len(ds.deleted), modified, inserted
}

// SetValue changes a cell. Writing the current value again is a no-op.
// Rows that are not new become modified. Writes to columns without a name
// (computed expressions) or flagged read-only are rejected.
func (ds *DataStore) SetValue(row, col int, value any) error {
	ds.checkColumn(col)
	r := ds.row(row)

	c := ds.info.Columns[col]
	if strings.TrimSpace(c.Name) == "" || !c.Updateable {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("#%d", col+1)
		}
		return fmt.Errorf("%w: %s", ErrColumnNotUpdateable, name)
	}

	if valuesEqual(r.values[col], value) {
		return nil
	}

	r.values[col] = value
	if r.status == StatusOriginal {
		r.status = StatusModified
	}
	return nil
}

// SetValueByName changes a cell addressed by column name.
func (ds *DataStore) SetValueByName(row int, column string, value any) error {
	col := ds.info.ColumnIndex(column)
	if col < 0 {
		return fmt.Errorf("column not found: %s", column)
	}
	return ds.SetValue(row, col, value)
}

// AddRow appends a new, empty row and returns its index.
func (ds *DataStore) AddRow() int {
	ds.rows = append(ds.rows, newEmptyRow(len(ds.info.Columns)))
	return len(ds.rows) - 1
}

// InsertRowAt inserts a new, empty row before position i. An index equal to
// RowCount appends.
func (ds *DataStore) InsertRowAt(i int) int {
	if i == len(ds.rows) {
		return ds.AddRow()
	}
	ds.row(i)
	ds.rows = append(ds.rows, nil)
	copy(ds.rows[i+1:], ds.rows[i:])
	ds.rows[i] = newEmptyRow(len(ds.info.Columns))
	return i
}

// DeleteRow removes a row from the live set. New rows are discarded; all
// other rows are kept in the deleted set until the delete is committed.
func (ds *DataStore) DeleteRow(i int) {
	r := ds.row(i)
	ds.rows = append(ds.rows[:i], ds.rows[i+1:]...)
	if r.status == StatusNew {
		return
	}
	ds.deleted = append(ds.deleted, r)
}

// RestoreOriginalValues reverts every change: modified rows get their
// fetched values back, deleted rows return to the live set and new rows are
// dropped.
func (ds *DataStore) RestoreOriginalValues() {
	live := make([]*Row, 0, len(ds.rows)+len(ds.deleted))
	for _, r := range ds.rows {
		if r.restore() {
			live = append(live, r)
		}
	}
	for _, r := range ds.deleted {
		r.restore()
		live = append(live, r)
	}
	ds.rows = live
	ds.deleted = nil
}

// ResetStatus accepts the current state as the database state: all rows
// become original and the deleted set is emptied.
func (ds *DataStore) ResetStatus() {
	for _, r := range ds.rows {
		r.accept()
	}
	ds.deleted = nil
}

// Cancel asks a running Fetch or Apply to stop before the next row.
// It is safe to call from any goroutine.
func (ds *DataStore) Cancel() {
	ds.cancelled.Store(true)
}

// Fetch appends rows read from src. A maxRows value <= 0 means no limit.
// It returns the number of rows read; on cancellation the rows read so far
// are kept and ErrCancelled is returned.
func (ds *DataStore) Fetch(ctx context.Context, src RowSource, maxRows int) (int, error) {
	ds.cancelled.Store(false)

	n := 0
	for {
		if ds.cancelled.Load() {
			return n, ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if maxRows > 0 && n >= maxRows {
			break
		}
		if !src.Next() {
			break
		}

		values, err := src.Values()
		if err != nil {
			return n, fmt.Errorf("read row %d: %w", n+1, err)
		}
		if len(values) != len(ds.info.Columns) {
			return n, fmt.Errorf("read row %d: got %d values, want %d", n+1, len(values), len(ds.info.Columns))
		}

		ds.rows = append(ds.rows, newFetchedRow(cloneValues(values)))
		n++
	}

	if err := src.Err(); err != nil {
		return n, fmt.Errorf("fetch: %w", err)
	}
	return n, nil
}

// ResolvePrimaryKeys marks the key columns of the update table. Key flags
// already present on the columns win; otherwise the resolver is asked.
// Every key column the resolver names must be in the result: a partial key
// does not identify a single row, so ErrNoPrimaryKey is returned and no
// column is flagged.
func (ds *DataStore) ResolvePrimaryKeys(ctx context.Context, resolver KeyResolver) error {
	if ds.info.UpdateTable == "" {
		return ErrNoUpdateTable
	}
	if ds.info.HasPrimaryKey() {
		return nil
	}
	if resolver == nil {
		return fmt.Errorf("%w for table %s", ErrNoPrimaryKey, ds.info.UpdateTable)
	}

	names, err := resolver.PrimaryKeyColumns(ctx, ds.info.UpdateTable)
	if err != nil {
		return fmt.Errorf("resolve primary key for %s: %w", ds.info.UpdateTable, err)
	}

	if len(names) == 0 {
		return fmt.Errorf("%w for table %s", ErrNoPrimaryKey, ds.info.UpdateTable)
	}

	idx := make([]int, 0, len(names))
	var missing []string
	for _, name := range names {
		i := ds.info.ColumnIndex(name)
		if i < 0 {
			missing = append(missing, name)
			continue
		}
		idx = append(idx, i)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for table %s: key columns %s not in result",
			ErrNoPrimaryKey, ds.info.UpdateTable, strings.Join(missing, ", "))
	}

	for _, i := range idx {
		ds.info.Columns[i].PrimaryKey = true
	}
	return nil
}

// SetPrimaryKeys marks the named columns as the key, replacing any previous
// key definition. Unknown names are an error.
func (ds *DataStore) SetPrimaryKeys(names ...string) error {
	idx := make([]int, 0, len(names))
	for _, name := range names {
		i := ds.info.ColumnIndex(name)
		if i < 0 {
			return fmt.Errorf("column not found: %s", name)
		}
		idx = append(idx, i)
	}
	for i := range ds.info.Columns {
		ds.info.Columns[i].PrimaryKey = false
	}
	for _, i := range idx {
		ds.info.Columns[i].PrimaryKey = true
	}
	return nil
}
