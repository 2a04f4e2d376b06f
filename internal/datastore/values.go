package datastore

import (
	"bytes"
	"database/sql/driver"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// valuesEqual reports whether two cell values are the same for change
// detection. Types the database drivers hand out with non-comparable or
// representation-dependent layouts are compared by meaning.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case decimal.Decimal:
		switch bv := b.(type) {
		case decimal.Decimal:
			return av.Equal(bv)
		case string:
			d, err := decimal.NewFromString(bv)
			return err == nil && av.Equal(d)
		}
		return false
	case string:
		if bv, ok := b.(decimal.Decimal); ok {
			d, err := decimal.NewFromString(av)
			return err == nil && d.Equal(bv)
		}
	case driver.Valuer:
		bv, ok := b.(driver.Valuer)
		if !ok || reflect.TypeOf(a) != reflect.TypeOf(b) {
			return false
		}
		x, errA := av.Value()
		y, errB := bv.Value()
		if errA != nil || errB != nil {
			return false
		}
		return valuesEqual(x, y)
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// cloneValues copies a row tuple. Byte slices are copied so edits to one
// tuple never leak into the other.
func cloneValues(src []any) []any {
	if src == nil {
		return nil
	}
	dst := make([]any, len(src))
	for i, v := range src {
		if b, ok := v.([]byte); ok && b != nil {
			c := make([]byte, len(b))
			copy(c, b)
			dst[i] = c
			continue
		}
		dst[i] = v
	}
	return dst
}
