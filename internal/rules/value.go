package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind identifies which field of a Value is populated.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindNumber
	KindString
	KindDate
	// KindUnsupported holds a JSON value of another type (bool, object,
	// array) verbatim so validation can report it.
	KindUnsupported
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindUnsupported:
		return "unsupported"
	default:
		return "none"
	}
}

// dateLayout is the calendar-date form used on the wire.
const dateLayout = "2006-01-02"

// Value is the right-hand side of a Condition: a number, a string or a date.
// The zero Value has KindNone and fails validation.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	t    time.Time
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Date returns a date Value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Kind reports the populated kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether no value was set.
func (v Value) IsZero() bool { return v.kind == KindNone }

// Num returns the numeric payload and whether v is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Time returns v as a date. String values holding a calendar date or an
// RFC 3339 timestamp are accepted, since JSON carries dates as strings.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.t, true
	case KindString:
		t, err := ParseDate(v.str)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

// Interface returns the payload as a plain Go value (float64, string or
// time.Time), or nil for the zero Value.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindDate:
		return v.t
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindDate:
		return formatWireDate(v.t)
	case KindUnsupported:
		return v.str
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers and strings and dates as JSON
// strings. Unsupported values are written back as they were read.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindUnsupported:
		return []byte(v.str), nil
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindDate:
		return json.Marshal(formatWireDate(v.t))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any JSON value. Numbers and strings decode to their
// kinds; dates stay strings until a vocabulary decides the criteria is
// date-typed. Other well-formed values become KindUnsupported.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("value %s: %w", data, err)
		}
		*v = Number(f)
		return nil
	default:
		if !json.Valid(data) {
			return fmt.Errorf("value %s is not valid JSON", data)
		}
		*v = Value{kind: KindUnsupported, str: string(data)}
		return nil
	}
}

// ValueOf converts a plain Go value into a Value. Unsupported types yield
// the zero Value.
func ValueOf(x any) Value {
	switch n := x.(type) {
	case Value:
		return n
	case int:
		return Number(float64(n))
	case int32:
		return Number(float64(n))
	case int64:
		return Number(float64(n))
	case float32:
		return Number(float64(n))
	case float64:
		return Number(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return Value{}
		}
		return Number(f)
	case string:
		return String(n)
	case time.Time:
		return Date(n)
	default:
		return Value{}
	}
}

// ParseDate parses a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatWireDate(t time.Time) string {
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}
