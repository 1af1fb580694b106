// Package record holds the widget's authoritative record store: an
// append-only mapping from primary-key value to record that remembers the
// order in which keys were first seen.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Key is the canonical text form of a primary-key value. Integral numbers
// render without a fraction so 1, 1.0, json.Number("1") and "1" address
// the same row.
type Key string

// Record is an open attribute mapping (field name -> value).
type Record map[string]any

// KeyOf canonicalizes a primary-key value. It reports false for nil.
func KeyOf(v any) (Key, bool) {
	if v == nil {
		return "", false
	}
	return Key(Text(v)), true
}

// Key extracts the record's identity using the given primary-key field.
func (r Record) Key(pkField string) (Key, bool) {
	v, ok := r[pkField]
	if !ok {
		return "", false
	}
	return KeyOf(v)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Text formats a field value for display and for key canonicalization.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := x.Float64(); err == nil {
			return formatFloat(f)
		}
		return x.String()
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
