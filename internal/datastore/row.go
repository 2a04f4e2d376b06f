package datastore

// Row is one tuple of a DataStore together with the values it was fetched
// with. New rows have no original values.
type Row struct {
	values   []any
	original []any
	status   RowStatus
}

func newFetchedRow(values []any) *Row {
	return &Row{
		values:   values,
		original: cloneValues(values),
		status:   StatusOriginal,
	}
}

func newEmptyRow(columns int) *Row {
	return &Row{
		values: make([]any, columns),
		status: StatusNew,
	}
}

// changedColumns returns the indexes whose current value differs from the
// original one. New rows report no changes; they are inserted as a whole.
func (r *Row) changedColumns() []int {
	if r.status != StatusModified {
		return nil
	}
	var changed []int
	for i, v := range r.values {
		if !valuesEqual(v, r.original[i]) {
			changed = append(changed, i)
		}
	}
	return changed
}

// accept makes the current values the new original values.
func (r *Row) accept() {
	r.original = cloneValues(r.values)
	r.status = StatusOriginal
}

// restore reverts the row to its original values. It reports false for new
// rows, which have nothing to revert to.
func (r *Row) restore() bool {
	if r.status == StatusNew {
		return false
	}
	r.values = cloneValues(r.original)
	r.status = StatusOriginal
	return true
}
