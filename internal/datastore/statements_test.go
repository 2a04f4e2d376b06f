package datastore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Statement Generation Tests
// ============================================================================

func TestStatements_Order(t *testing.T) {
	ds := newPersonStore(t)
	row := ds.AddRow()
	_ = ds.SetValue(row, 0, int64(4))
	_ = ds.SetValue(row, 1, "Marvin")
	_ = ds.SetValue(2, 1, "Beeblebrox")
	ds.DeleteRow(0)

	stmts, err := ds.Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}

	var got []StatementType
	for _, st := range stmts {
		got = append(got, st.Type)
	}
	want := []StatementType{StatementDelete, StatementUpdate, StatementInsert}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("statement types = %v, want %v", got, want)
	}
}

func TestStatements_Postgres(t *testing.T) {
	ds := newPersonStore(t)
	_ = ds.SetValue(1, 1, "Prefect")
	_ = ds.SetValue(1, 2, dec("7.5"))
	ds.DeleteRow(0)
	row := ds.AddRow()
	_ = ds.SetValue(row, 0, int64(9))
	_ = ds.SetValue(row, 1, "Eddie")

	stmts, err := ds.Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("len(Statements()) = %d, want 3", len(stmts))
	}

	tests := []struct {
		sql  string
		args []any
	}{
		{`DELETE FROM "person" WHERE "id" = $1`, []any{int64(1)}},
		{`UPDATE "person" SET "name" = $1, "salary" = $2 WHERE "id" = $3`, []any{"Prefect", dec("7.5"), int64(2)}},
		{`INSERT INTO "person" ("id", "name") VALUES ($1, $2)`, []any{int64(9), "Eddie"}},
	}
	for i, tt := range tests {
		if stmts[i].SQL != tt.sql {
			t.Errorf("stmt[%d].SQL = %q, want %q", i, stmts[i].SQL, tt.sql)
		}
		if len(stmts[i].Args) != len(tt.args) {
			t.Errorf("stmt[%d].Args = %v, want %v", i, stmts[i].Args, tt.args)
			continue
		}
		for j := range tt.args {
			if !valuesEqual(stmts[i].Args[j], tt.args[j]) {
				t.Errorf("stmt[%d].Args[%d] = %v, want %v", i, j, stmts[i].Args[j], tt.args[j])
			}
		}
	}

	if stmts[0].Column != "id" || stmts[0].Value != int64(1) {
		t.Errorf("delete identifies row as %s=%v, want id=1", stmts[0].Column, stmts[0].Value)
	}
}

func TestStatements_UpdateUsesOriginalKey(t *testing.T) {
	ds := newPersonStore(t)
	_ = ds.SetValue(0, 0, int64(100))

	st, ok, err := ds.UpdateStatement(0)
	if err != nil || !ok {
		t.Fatalf("UpdateStatement() = %v, %v", ok, err)
	}
	if st.SQL != `UPDATE "person" SET "id" = $1 WHERE "id" = $2` {
		t.Errorf("SQL = %q", st.SQL)
	}
	if st.Args[0] != int64(100) || st.Args[1] != int64(1) {
		t.Errorf("Args = %v, want [100 1]", st.Args)
	}
}

func TestStatements_NullKeyUsesIsNull(t *testing.T) {
	info := NewResultInfo("link",
		ColumnInfo{Name: "a", PrimaryKey: true},
		ColumnInfo{Name: "b", PrimaryKey: true},
	)
	ds := New(info, SQLite)
	_, _ = ds.Fetch(context.Background(), &sliceSource{rows: [][]any{{int64(1), nil}}}, 0)
	ds.DeleteRow(0)

	stmts, err := ds.Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	if got := stmts[0].SQL; got != `DELETE FROM "link" WHERE "a" = ? AND "b" IS NULL` {
		t.Errorf("SQL = %q", got)
	}
	if len(stmts[0].Args) != 1 {
		t.Errorf("Args = %v, want one argument", stmts[0].Args)
	}
}

func TestStatements_RevertedValueProducesNoUpdate(t *testing.T) {
	ds := newPersonStore(t)
	_ = ds.SetValue(0, 1, "Trillian")
	_ = ds.SetValue(0, 1, "Arthur")

	if ds.Status(0) != StatusModified {
		t.Fatalf("Status(0) = %v, want modified", ds.Status(0))
	}
	stmts, err := ds.Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	if len(stmts) != 0 {
		t.Errorf("Statements() = %v, want none", stmts)
	}
}

func TestStatements_InsertDefaultValues(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{Postgres, `INSERT INTO "person" DEFAULT VALUES`},
		{SQLite, `INSERT INTO "person" DEFAULT VALUES`},
		{MySQL, "INSERT INTO `person` () VALUES ()"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			ds := New(personInfo(), tt.dialect)
			ds.AddRow()
			stmts, err := ds.Statements()
			if err != nil {
				t.Fatalf("Statements() error = %v", err)
			}
			if stmts[0].SQL != tt.want {
				t.Errorf("SQL = %q, want %q", stmts[0].SQL, tt.want)
			}
		})
	}
}

func TestStatements_QualifiedTable(t *testing.T) {
	info := NewResultInfo("sales.orders", ColumnInfo{Name: "id", PrimaryKey: true})
	ds := New(info, MySQL)
	_, _ = ds.Fetch(context.Background(), &sliceSource{rows: [][]any{{int64(5)}}}, 0)
	ds.DeleteRow(0)

	stmts, err := ds.Statements()
	if err != nil {
		t.Fatalf("Statements() error = %v", err)
	}
	if got := stmts[0].SQL; got != "DELETE FROM `sales`.`orders` WHERE `id` = ?" {
		t.Errorf("SQL = %q", got)
	}
}

// ============================================================================
// Precondition Tests
// ============================================================================

func TestStatements_NoPrimaryKey(t *testing.T) {
	info := NewResultInfo("person",
		ColumnInfo{Name: "id"},
		ColumnInfo{Name: "name"},
	)

	tests := []struct {
		name    string
		mutate  func(ds *DataStore)
		wantErr error
	}{
		{"update", func(ds *DataStore) { _ = ds.SetValue(0, 1, "x") }, ErrNoPrimaryKey},
		{"delete", func(ds *DataStore) { ds.DeleteRow(0) }, ErrNoPrimaryKey},
		{"insert only", func(ds *DataStore) { ds.AddRow() }, nil},
		{"no changes", func(ds *DataStore) {}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := New(info, Postgres)
			_, _ = ds.Fetch(context.Background(), &sliceSource{rows: [][]any{{int64(1), "a"}}}, 0)
			tt.mutate(ds)

			stmts, err := ds.Statements()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Statements() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil && stmts != nil {
				t.Errorf("Statements() returned %v alongside error", stmts)
			}
			if _, err := ds.Script(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Script() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSingleStatements_NoPrimaryKey(t *testing.T) {
	ds := New(NewResultInfo("person", ColumnInfo{Name: "id"}), Postgres)
	_, _ = ds.Fetch(context.Background(), &sliceSource{rows: [][]any{{int64(1)}}}, 0)

	if _, err := ds.DeleteStatement(0); !errors.Is(err, ErrNoPrimaryKey) {
		t.Errorf("DeleteStatement() error = %v, want ErrNoPrimaryKey", err)
	}
	if _, _, err := ds.UpdateStatement(0); !errors.Is(err, ErrNoPrimaryKey) {
		t.Errorf("UpdateStatement() error = %v, want ErrNoPrimaryKey", err)
	}
}

func TestStatements_ReadOnlyResult(t *testing.T) {
	ds := New(NewResultInfo("", ColumnInfo{Name: "id", PrimaryKey: true}), Postgres)
	ds.AddRow()

	if _, err := ds.Statements(); !errors.Is(err, ErrNoUpdateTable) {
		t.Errorf("Statements() error = %v, want ErrNoUpdateTable", err)
	}
}

// ============================================================================
// Script Tests
// ============================================================================

func TestScript(t *testing.T) {
	ds := newPersonStore(t)
	_ = ds.SetValue(1, 1, "O'Brien")
	ds.DeleteRow(2)
	row := ds.AddRow()
	_ = ds.SetValue(row, 0, int64(7))
	_ = ds.SetValue(row, 2, dec("12.30"))

	script, err := ds.Script()
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}

	want := strings.Join([]string{
		`DELETE FROM "person" WHERE "id" = 3;`,
		`UPDATE "person" SET "name" = 'O''Brien' WHERE "id" = 2;`,
		`INSERT INTO "person" ("id", "salary") VALUES (7, 12.3);`,
		"",
	}, "\n")
	if script != want {
		t.Errorf("Script() =\n%s\nwant\n%s", script, want)
	}
}

func TestLiteral(t *testing.T) {
	ts := time.Date(2024, 3, 1, 13, 45, 30, 0, time.UTC)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		dialect Dialect
		value   any
		want    string
	}{
		{"nil", Postgres, nil, "NULL"},
		{"string", Postgres, "it's", "'it''s'"},
		{"bool", SQLite, true, "TRUE"},
		{"int", MySQL, 42, "42"},
		{"int64", MySQL, int64(-7), "-7"},
		{"float", Postgres, 1.25, "1.25"},
		{"decimal", Postgres, dec("10.500"), "10.5"},
		{"timestamp", Postgres, ts, "'2024-03-01 13:45:30'"},
		{"date", Postgres, day, "'2024-03-01'"},
		{"bytes postgres", Postgres, []byte{0xde, 0xad}, `'\xdead'::bytea`},
		{"bytes sqlite", SQLite, []byte{0xbe, 0xef}, "X'beef'"},
		{"nil bytes", SQLite, []byte(nil), "NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.Literal(tt.value); got != tt.want {
				t.Errorf("Literal(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestKindFromTypeName(t *testing.T) {
	tests := []struct {
		in   string
		want ValueKind
	}{
		{"VARCHAR(20)", KindText},
		{"int8", KindInteger},
		{"NUMERIC(10,2)", KindNumeric},
		{"timestamp with time zone", KindTime},
		{"bytea", KindBinary},
		{"BOOLEAN", KindBool},
		{"geometry", KindOther},
	}
	for _, tt := range tests {
		if got := KindFromTypeName(tt.in); got != tt.want {
			t.Errorf("KindFromTypeName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDialectByName(t *testing.T) {
	for _, name := range []string{"postgres", "pgx", "SQLITE", "mariadb"} {
		if _, ok := DialectByName(name); !ok {
			t.Errorf("DialectByName(%q) not found", name)
		}
	}
	if _, ok := DialectByName("oracle"); ok {
		t.Error("DialectByName(oracle) found, want not found")
	}
}
