package engine

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/0888060509/champong-admin/internal/rules"
)

// OperatorHandler evaluates one condition operator against a record value.
type OperatorHandler interface {
	Check(recordValue any, ruleValue rules.Value) bool
}

var operatorHandlers = map[rules.Operator]OperatorHandler{
	rules.OpEq:       equalsHandler{},
	rules.OpNeq:      notEqualsHandler{},
	rules.OpGte:      orderHandler{cmp: func(c int) bool { return c >= 0 }},
	rules.OpLte:      orderHandler{cmp: func(c int) bool { return c <= 0 }},
	rules.OpContains: containsHandler{},
	rules.OpBefore:   dateOrderHandler{cmp: func(c int) bool { return c < 0 }},
	rules.OpAfter:    dateOrderHandler{cmp: func(c int) bool { return c > 0 }},
}

func getOperatorHandler(op rules.Operator) (OperatorHandler, bool) {
	h, ok := operatorHandlers[normalizeOperator(op)]
	return h, ok
}

// normalizeOperator applies the codec's spelling rules, so trees built in
// code accept the same symbols as decoded ones.
func normalizeOperator(op rules.Operator) rules.Operator {
	return rules.ParseOperator(string(op))
}

type equalsHandler struct{}

func (equalsHandler) Check(recordValue any, ruleValue rules.Value) bool {
	if list, ok := toStringSlice(recordValue); ok {
		rule, ok := ruleValue.Str()
		if !ok {
			return false
		}
		for _, item := range list {
			if item == rule {
				return true
			}
		}
		return false
	}
	c, ok := compare(recordValue, ruleValue)
	return ok && c == 0
}

type notEqualsHandler struct{}

func (notEqualsHandler) Check(recordValue any, ruleValue rules.Value) bool {
	return !equalsHandler{}.Check(recordValue, ruleValue)
}

// orderHandler implements gte and lte over numbers and dates.
type orderHandler struct {
	cmp func(int) bool
}

func (h orderHandler) Check(recordValue any, ruleValue rules.Value) bool {
	c, ok := compare(recordValue, ruleValue)
	return ok && h.cmp(c)
}

// dateOrderHandler implements strict date ordering for before and after.
type dateOrderHandler struct {
	cmp func(int) bool
}

func (h dateOrderHandler) Check(recordValue any, ruleValue rules.Value) bool {
	rec, ok := toTime(recordValue)
	if !ok {
		return false
	}
	rule, ok := ruleValue.Time()
	if !ok {
		return false
	}
	return h.cmp(rec.Compare(rule))
}

// containsHandler is case-sensitive substring containment. For list-valued
// fields any element may contain the substring.
type containsHandler struct{}

func (containsHandler) Check(recordValue any, ruleValue rules.Value) bool {
	rule, ok := ruleValue.Str()
	if !ok {
		return false
	}
	if list, ok := toStringSlice(recordValue); ok {
		for _, item := range list {
			if strings.Contains(item, rule) {
				return true
			}
		}
		return false
	}
	rec, ok := recordValue.(string)
	if !ok {
		return false
	}
	return strings.Contains(rec, rule)
}

// compare orders a record value against a rule value. Numbers compare
// numerically, dates chronologically, strings lexically. ok is false when
// the two sides are not comparable.
func compare(recordValue any, ruleValue rules.Value) (int, bool) {
	if rule, ok := ruleValue.Num(); ok {
		rec, ok := toFloat64(recordValue)
		if !ok {
			return 0, false
		}
		return compareFloat(rec, rule), true
	}

	if _, isTime := recordValue.(time.Time); isTime || ruleValue.Kind() == rules.KindDate {
		rec, ok := toTime(recordValue)
		if !ok {
			return 0, false
		}
		rule, ok := ruleValue.Time()
		if !ok {
			return 0, false
		}
		return rec.Compare(rule), true
	}

	if rule, ok := ruleValue.Str(); ok {
		rec, ok := recordValue.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(rec, rule), true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		parsed, err := rules.ParseDate(t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func toStringSlice(v any) ([]string, bool) {
	switch values := v.(type) {
	case []string:
		return values, true
	case []any:
		result := make([]string, 0, len(values))
		for _, item := range values {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	default:
		return nil, false
	}
}
