package targeting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/rules"
)

// Compile translates a validated rule tree into a JSON Logic expression.
// The tree is validated against d first; placeholders must already be
// resolved. The result agrees with engine.Evaluate for records carrying
// every referenced field.
func Compile(d *rules.Domain, root *rules.Group) (json.RawMessage, error) {
	if res := d.Validate(root); !res.Valid() {
		return nil, res.Err()
	}
	expr, err := compileNode(d, root)
	if err != nil {
		return nil, err
	}
	return marshalRaw(expr)
}

// marshalRaw encodes v without HTML escaping so operators such as ">=" stay
// literal.
func marshalRaw(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func compileNode(d *rules.Domain, node rules.Node) (any, error) {
	switch n := node.(type) {
	case *rules.Group:
		children := make([]any, 0, len(n.Conditions))
		for _, child := range n.Conditions {
			c, err := compileNode(d, child)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		op := "and"
		if n.Logic == rules.LogicOr {
			op = "or"
		}
		return map[string]any{op: children}, nil
	case *rules.Condition:
		return compileCondition(d, n)
	default:
		return nil, fmt.Errorf("unsupported node %T", node)
	}
}

func compileCondition(d *rules.Domain, c *rules.Condition) (any, error) {
	crit, _ := d.Lookup(c.Criteria)
	field := map[string]any{"var": c.Criteria}
	value, err := literal(crit, c.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Criteria, err)
	}

	if crit.Multi {
		switch c.Operator {
		case rules.OpEq:
			return op("in", value, field), nil
		case rules.OpNeq:
			return map[string]any{"!": op("in", value, field)}, nil
		case rules.OpContains:
			return op("some", field, op("in", value, map[string]any{"var": ""})), nil
		}
	}

	switch c.Operator {
	case rules.OpEq:
		return op("==", field, value), nil
	case rules.OpNeq:
		return op("!=", field, value), nil
	case rules.OpGte:
		return op(">=", field, value), nil
	case rules.OpLte:
		return op("<=", field, value), nil
	case rules.OpBefore:
		return op("<", field, value), nil
	case rules.OpAfter:
		return op(">", field, value), nil
	case rules.OpContains:
		return op("in", value, field), nil
	default:
		return nil, fmt.Errorf("%w: %s", rules.ErrInvalidOperator, c.Operator)
	}
}

func op(name string, args ...any) map[string]any {
	return map[string]any{name: args}
}

// literal converts a rule value to its JSON Logic representation.
func literal(crit rules.Criteria, v rules.Value) (any, error) {
	if crit.Type == rules.TypeDate {
		t, ok := v.Time()
		if !ok {
			return nil, fmt.Errorf("%w: expected a date, got %s", rules.ErrInvalidValueType, v)
		}
		return unixSeconds(t), nil
	}
	return v.Interface(), nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// DataFor builds the data object for record, covering the criteria of d.
// Missing fields are omitted.
func DataFor(d *rules.Domain, record engine.Record) Data {
	data := make(Data)
	for _, crit := range d.Criteria() {
		raw, ok := record.Field(crit.Name)
		if !ok {
			continue
		}
		v, ok := engine.Normalize(crit, raw)
		if !ok {
			continue
		}
		if t, isTime := v.(time.Time); isTime {
			v = unixSeconds(t)
		}
		data[crit.Name] = v
	}
	return data
}
