package query

import (
	"strings"
	"time"
)

type valueKind int

const (
	kindAbsent valueKind = iota
	kindNumber
	kindText
)

// Value is a sortable field value. Absent values sort after present ones
// in either direction.
type Value struct {
	kind valueKind
	num  float64
	text string
}

// Number wraps a numeric field
func Number(f float64) Value {
	return Value{kind: kindNumber, num: f}
}

// Text wraps a textual field, compared case-insensitively
func Text(s string) Value {
	return Value{kind: kindText, text: s}
}

// Time wraps a timestamp; the zero time is absent
func Time(t time.Time) Value {
	if t.IsZero() {
		return Absent()
	}
	return Number(float64(t.UnixNano()))
}

// Absent marks a field with no value for this row
func Absent() Value {
	return Value{kind: kindAbsent}
}

// IsAbsent reports whether the row has no value for the field
func (v Value) IsAbsent() bool {
	return v.kind == kindAbsent
}

// compare orders two present values: -1, 0 or 1
func (v Value) compare(o Value) int {
	if v.kind == kindText || o.kind == kindText {
		return strings.Compare(strings.ToLower(v.text), strings.ToLower(o.text))
	}
	switch {
	case v.num < o.num:
		return -1
	case v.num > o.num:
		return 1
	}
	return 0
}
