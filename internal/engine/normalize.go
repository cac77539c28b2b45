package engine

import (
	"time"

	"github.com/0888060509/champong-admin/internal/rules"
)

// Normalize converts a raw record value into the canonical Go type for its
// criteria: float64 for numbers, time.Time for dates, []string for
// list-valued fields and string otherwise. ok is false when the value can't
// be represented.
func Normalize(c rules.Criteria, v any) (any, bool) {
	if c.Multi {
		list, ok := toStringSlice(v)
		return list, ok
	}
	switch c.Type {
	case rules.TypeNumber:
		f, ok := toFloat64(v)
		return f, ok
	case rules.TypeDate:
		t, ok := toTime(v)
		if !ok {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		s, ok := v.(string)
		return s, ok
	}
}
