package datastore

import (
	"fmt"
	"strings"
)

// StatementType identifies the kind of DML generated for a row.
type StatementType int

const (
	StatementDelete StatementType = iota
	StatementUpdate
	StatementInsert
)

func (t StatementType) String() string {
	switch t {
	case StatementDelete:
		return "delete"
	case StatementUpdate:
		return "update"
	case StatementInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// DmlStatement is a parameterized statement generated for one row.
type DmlStatement struct {
	Type StatementType
	SQL  string
	Args []any

	// RowNumber is the index of the row in the deleted set for deletes and
	// in the live set for updates and inserts.
	RowNumber int

	// Column and Value identify the row for error reporting: the first key
	// column for deletes and updates, the first inserted column for inserts.
	Column string
	Value  any

	row *Row
}

// binder turns a value into the SQL text that stands for it.
type binder interface {
	bind(v any) string
}

type paramBinder struct {
	dialect Dialect
	args    []any
}

func (b *paramBinder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

type literalBinder struct {
	dialect Dialect
}

func (b literalBinder) bind(v any) string {
	return b.dialect.Literal(v)
}

// NeedPrimaryKey reports whether the pending changes include an UPDATE or
// DELETE, which can only be generated with key columns.
func (ds *DataStore) NeedPrimaryKey() bool {
	if len(ds.deleted) > 0 {
		return true
	}
	for _, r := range ds.rows {
		if len(r.changedColumns()) > 0 {
			return true
		}
	}
	return false
}

// checkPreconditions validates that DML can be generated for the pending
// changes at all.
func (ds *DataStore) checkPreconditions() error {
	if !ds.IsModified() {
		return nil
	}
	if ds.info.UpdateTable == "" {
		return ErrNoUpdateTable
	}
	if ds.NeedPrimaryKey() && !ds.info.HasPrimaryKey() {
		return fmt.Errorf("%w for table %s", ErrNoPrimaryKey, ds.info.UpdateTable)
	}
	return nil
}

// Statements returns the parameterized statements for all pending changes:
// deletes first, then updates, then inserts. Modified rows whose values
// match their originals again produce no statement.
func (ds *DataStore) Statements() ([]DmlStatement, error) {
	if err := ds.checkPreconditions(); err != nil {
		return nil, err
	}

	var stmts []DmlStatement
	for i, r := range ds.deleted {
		b := &paramBinder{dialect: ds.dialect}
		st := ds.buildDelete(r, b)
		st.RowNumber, st.Args = i, b.args
		stmts = append(stmts, st)
	}
	for i, r := range ds.rows {
		if r.status != StatusModified {
			continue
		}
		b := &paramBinder{dialect: ds.dialect}
		st, ok := ds.buildUpdate(r, b)
		if !ok {
			continue
		}
		st.RowNumber, st.Args = i, b.args
		stmts = append(stmts, st)
	}
	for i, r := range ds.rows {
		if r.status != StatusNew {
			continue
		}
		b := &paramBinder{dialect: ds.dialect}
		st := ds.buildInsert(r, b)
		st.RowNumber, st.Args = i, b.args
		stmts = append(stmts, st)
	}
	return stmts, nil
}

// UpdateStatement returns the UPDATE for a single live row. The boolean is
// false when the row has no changed column.
func (ds *DataStore) UpdateStatement(row int) (DmlStatement, bool, error) {
	r := ds.row(row)
	if ds.info.UpdateTable == "" {
		return DmlStatement{}, false, ErrNoUpdateTable
	}
	if !ds.info.HasPrimaryKey() {
		return DmlStatement{}, false, fmt.Errorf("%w for table %s", ErrNoPrimaryKey, ds.info.UpdateTable)
	}
	b := &paramBinder{dialect: ds.dialect}
	st, ok := ds.buildUpdate(r, b)
	st.RowNumber, st.Args = row, b.args
	return st, ok, nil
}

// DeleteStatement returns the DELETE that would remove a live row.
func (ds *DataStore) DeleteStatement(row int) (DmlStatement, error) {
	r := ds.row(row)
	if ds.info.UpdateTable == "" {
		return DmlStatement{}, ErrNoUpdateTable
	}
	if !ds.info.HasPrimaryKey() {
		return DmlStatement{}, fmt.Errorf("%w for table %s", ErrNoPrimaryKey, ds.info.UpdateTable)
	}
	b := &paramBinder{dialect: ds.dialect}
	st := ds.buildDelete(r, b)
	st.RowNumber, st.Args = row, b.args
	return st, nil
}

// Script renders all pending changes as a SQL script with literal values,
// one statement per line.
func (ds *DataStore) Script() (string, error) {
	if err := ds.checkPreconditions(); err != nil {
		return "", err
	}

	b := literalBinder{dialect: ds.dialect}
	var sb strings.Builder
	write := func(st DmlStatement) {
		sb.WriteString(st.SQL)
		sb.WriteString(";\n")
	}
	for _, r := range ds.deleted {
		write(ds.buildDelete(r, b))
	}
	for _, r := range ds.rows {
		if r.status != StatusModified {
			continue
		}
		if st, ok := ds.buildUpdate(r, b); ok {
			write(st)
		}
	}
	for _, r := range ds.rows {
		if r.status == StatusNew {
			write(ds.buildInsert(r, b))
		}
	}
	return sb.String(), nil
}

// whereClause builds the key condition from the original values of a row.
func (ds *DataStore) whereClause(r *Row, b binder) (string, string, any) {
	keys := ds.info.KeyColumns()
	conditions := make([]string, 0, len(keys))
	for _, k := range keys {
		col := ds.dialect.QuoteIdentifier(ds.info.Columns[k].Name)
		v := r.original[k]
		if v == nil {
			conditions = append(conditions, col+" IS NULL")
			continue
		}
		conditions = append(conditions, col+" = "+b.bind(v))
	}
	first := ds.info.Columns[keys[0]].Name
	return strings.Join(conditions, " AND "), first, r.original[keys[0]]
}

func (ds *DataStore) buildDelete(r *Row, b binder) DmlStatement {
	where, col, val := ds.whereClause(r, b)
	return DmlStatement{
		Type:   StatementDelete,
		SQL:    fmt.Sprintf("DELETE FROM %s WHERE %s", ds.dialect.QuoteTable(ds.info.UpdateTable), where),
		Column: col,
		Value:  val,
		row:    r,
	}
}

func (ds *DataStore) buildUpdate(r *Row, b binder) (DmlStatement, bool) {
	changed := r.changedColumns()
	if len(changed) == 0 {
		return DmlStatement{}, false
	}

	sets := make([]string, 0, len(changed))
	for _, i := range changed {
		c := ds.info.Columns[i]
		if !c.Updateable {
			continue
		}
		sets = append(sets, ds.dialect.QuoteIdentifier(c.Name)+" = "+b.bind(r.values[i]))
	}
	if len(sets) == 0 {
		return DmlStatement{}, false
	}

	where, col, val := ds.whereClause(r, b)
	return DmlStatement{
		Type: StatementUpdate,
		SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s",
			ds.dialect.QuoteTable(ds.info.UpdateTable),
			strings.Join(sets, ", "),
			where,
		),
		Column: col,
		Value:  val,
		row:    r,
	}, true
}

func (ds *DataStore) buildInsert(r *Row, b binder) DmlStatement {
	table := ds.dialect.QuoteTable(ds.info.UpdateTable)
	st := DmlStatement{Type: StatementInsert, row: r}

	var cols, vals []string
	for i, c := range ds.info.Columns {
		if !c.Updateable || r.values[i] == nil {
			continue
		}
		if st.Column == "" {
			st.Column, st.Value = c.Name, r.values[i]
		}
		cols = append(cols, ds.dialect.QuoteIdentifier(c.Name))
		vals = append(vals, b.bind(r.values[i]))
	}

	if len(cols) == 0 {
		st.SQL = fmt.Sprintf("INSERT INTO %s %s", table, ds.dialect.DefaultValuesInsert)
		return st
	}
	st.SQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(vals, ", "))
	return st
}
