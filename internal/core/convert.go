package core

// convert.go turns values decoded from JSON requests into the Go types the
// row store holds for each column kind.
//
// Clients send whatever JSON gives them: strings, json.Number, booleans and
// nulls. Conversion is lenient in the same places users are sloppy:
//   - Currency symbols, thousands separators and accounting negatives in numbers
//   - Several date layouts besides RFC 3339
//   - Various boolean representations (yes/no, true/false, 1/0)
//
// A JSON null always becomes a SQL NULL.

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// timeLayouts are tried in order after RFC 3339.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

// twoDigitYearLayouts are tried last; their years go through the pivot.
var twoDigitYearLayouts = []string{
	"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
}

// TwoDigitYearPivot decides the century of two-digit years: a year more
// than this many years past the current one is moved back a century.
// With a pivot of 20 in 2025, "46" is 1946 and "24" is 2024.
var TwoDigitYearPivot = 20

// ConvertValue converts raw to the representation used for col.
func ConvertValue(col datastore.ColumnInfo, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	invalid := func(msg string) error {
		return ValidationError{Field: col.Name, Value: fmt.Sprint(raw), Message: msg}
	}

	switch col.Kind {
	case datastore.KindText:
		switch v := raw.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		case bool:
			return strconv.FormatBool(v), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}

	case datastore.KindInteger:
		switch v := raw.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, nil
			}
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case string:
			s, ok := cleanNumeric(v)
			if !ok {
				break
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
		}
		return nil, invalid("invalid number")

	case datastore.KindNumeric:
		switch v := raw.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(v.String()); err == nil {
				return d, nil
			}
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case decimal.Decimal:
			return v, nil
		case string:
			if d, ok := ParseNumeric(v); ok {
				return d, nil
			}
		}
		return nil, invalid("invalid number")

	case datastore.KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			if b, ok := ParseBool(v); ok {
				return b, nil
			}
		case json.Number:
			if b, ok := ParseBool(v.String()); ok {
				return b, nil
			}
		case float64:
			if v == 0 || v == 1 {
				return v == 1, nil
			}
		}
		return nil, invalid("invalid boolean")

	case datastore.KindTime:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			if t, ok := ParseTime(v); ok {
				return t, nil
			}
		}
		return nil, invalid("invalid date")

	case datastore.KindBinary:
		switch v := raw.(type) {
		case []byte:
			return v, nil
		case string:
			if b, err := base64.StdEncoding.DecodeString(v); err == nil {
				return b, nil
			}
		}
		return nil, invalid("invalid binary value")
	}

	if n, ok := raw.(json.Number); ok {
		return n.String(), nil
	}
	return raw, nil
}

// cleanNumeric strips currency symbols and thousands separators and turns
// accounting negatives "(123.45)" into "-123.45".
func cleanNumeric(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return "", false
	}
	return s, true
}

// ParseNumeric parses a user-entered number into a decimal.
func ParseNumeric(s string) (decimal.Decimal, bool) {
	clean, ok := cleanNumeric(s)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// ParseTime parses RFC 3339 timestamps and a handful of common date layouts.
// Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}
