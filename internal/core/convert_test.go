package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/shopspring/decimal"
)

func column(name string, kind datastore.ValueKind) datastore.ColumnInfo {
	return datastore.ColumnInfo{Name: name, Kind: kind, Updateable: true}
}

// =============================================================================
// ConvertValue
// =============================================================================

func TestConvertValue_Null(t *testing.T) {
	for _, kind := range []datastore.ValueKind{
		datastore.KindText, datastore.KindInteger, datastore.KindNumeric,
		datastore.KindBool, datastore.KindTime, datastore.KindBinary, datastore.KindOther,
	} {
		got, err := ConvertValue(column("c", kind), nil)
		if err != nil || got != nil {
			t.Errorf("ConvertValue(%s, nil) = %v, %v; want nil, nil", kind, got, err)
		}
	}
}

func TestConvertValue_Integer(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int64
	}{
		{"json number", json.Number("42"), 42},
		{"float64 integral", float64(7), 7},
		{"string", "1,024", 1024},
		{"accounting negative", "(15)", -15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(column("id", datastore.KindInteger), tt.raw)
			if err != nil {
				t.Fatalf("ConvertValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ConvertValue() = %#v, want %d", got, tt.want)
			}
		})
	}

	for _, bad := range []any{"abc", float64(1.5), json.Number("1.5"), true} {
		if _, err := ConvertValue(column("id", datastore.KindInteger), bad); err == nil {
			t.Errorf("ConvertValue(%#v) expected error", bad)
		}
	}
}

func TestConvertValue_Numeric(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"json number", json.Number("100.50"), "100.5"},
		{"currency", "$1,234.56", "1234.56"},
		{"euro", "€99", "99"},
		{"accounting negative", "(123.45)", "-123.45"},
		{"scientific", "1e3", "1000"},
		{"float64", float64(0.25), "0.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(column("salary", datastore.KindNumeric), tt.raw)
			if err != nil {
				t.Fatalf("ConvertValue() error = %v", err)
			}
			d, ok := got.(decimal.Decimal)
			if !ok {
				t.Fatalf("ConvertValue() = %T, want decimal.Decimal", got)
			}
			if d.String() != tt.want {
				t.Errorf("ConvertValue() = %s, want %s", d.String(), tt.want)
			}
		})
	}

	_, err := ConvertValue(column("salary", datastore.KindNumeric), "ten dollars")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "salary" || verr.Message != "invalid number" {
		t.Errorf("ValidationError = %+v", verr)
	}
}

func TestConvertValue_Bool(t *testing.T) {
	tests := []struct {
		raw  any
		want bool
	}{
		{true, true},
		{"yes", true},
		{"N", false},
		{"0", false},
		{json.Number("1"), true},
		{float64(0), false},
	}
	for _, tt := range tests {
		got, err := ConvertValue(column("active", datastore.KindBool), tt.raw)
		if err != nil {
			t.Errorf("ConvertValue(%#v) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ConvertValue(%#v) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := ConvertValue(column("active", datastore.KindBool), "maybe"); err == nil {
		t.Error("expected error for \"maybe\"")
	}
}

func TestConvertValue_Time(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"Jan 15, 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ConvertValue(column("born", datastore.KindTime), tt.raw)
		if err != nil {
			t.Errorf("ConvertValue(%q) error = %v", tt.raw, err)
			continue
		}
		if tm, ok := got.(time.Time); !ok || !tm.Equal(tt.want) {
			t.Errorf("ConvertValue(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	now := time.Now().Year()
	future := (now + TwoDigitYearPivot + 1) % 100
	got, err := ConvertValue(column("born", datastore.KindTime), fmt.Sprintf("3/4/%02d", future))
	if err != nil {
		t.Fatalf("two-digit year error = %v", err)
	}
	if year := got.(time.Time).Year(); year > now+TwoDigitYearPivot {
		t.Errorf("two-digit year %02d parsed as %d, want previous century", future, year)
	}

	if _, err := ConvertValue(column("born", datastore.KindTime), "yesterday"); err == nil {
		t.Error("expected error for \"yesterday\"")
	}
}

func TestConvertValue_TextAndBinary(t *testing.T) {
	got, err := ConvertValue(column("name", datastore.KindText), json.Number("12"))
	if err != nil || got != "12" {
		t.Errorf("text from number = %#v, %v", got, err)
	}

	got, err = ConvertValue(column("blob", datastore.KindBinary), "AQID")
	if err != nil {
		t.Fatalf("binary error = %v", err)
	}
	if b, ok := got.([]byte); !ok || len(b) != 3 || b[2] != 3 {
		t.Errorf("binary = %#v", got)
	}

	if _, err := ConvertValue(column("blob", datastore.KindBinary), "!!"); err == nil {
		t.Error("expected error for invalid base64")
	}

	got, err = ConvertValue(column("misc", datastore.KindOther), json.Number("3"))
	if err != nil || got != "3" {
		t.Errorf("other from number = %#v, %v", got, err)
	}
}

// =============================================================================
// Parsers
// =============================================================================

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"1,000", true, "1000"},
		{" $ 5.00 ", true, "5"},
		{"£-3", true, "-3"},
		{"", false, ""},
		{"1.2.3", false, ""},
	}
	for _, tt := range tests {
		d, ok := ParseNumeric(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseNumeric(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && d.String() != tt.want {
			t.Errorf("ParseNumeric(%q) = %s, want %s", tt.in, d.String(), tt.want)
		}
	}
}
