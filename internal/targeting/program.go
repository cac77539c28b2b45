// Package targeting exports rule trees as JSON Logic (jsonlogic.com) so that
// storefront clients can evaluate segments and collections locally, and runs
// such expressions against record data.
package targeting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/rules"
)

// Data is the JSON Logic data object for one record. Numbers are float64,
// dates are Unix seconds and list fields are []string.
type Data map[string]any

var (
	ErrEmptyExpression   = errors.New("empty JSON Logic expression")
	ErrInvalidExpression = errors.New("invalid JSON Logic expression")
)

// Program is a checked JSON Logic expression.
type Program struct {
	rule json.RawMessage
}

// Parse checks that expression is well-formed JSON Logic.
func Parse(expression []byte) (*Program, error) {
	expression = bytes.TrimSpace(expression)
	if len(expression) == 0 {
		return nil, ErrEmptyExpression
	}
	if !json.Valid(expression) || !jsonlogic.IsValid(bytes.NewReader(expression)) {
		return nil, ErrInvalidExpression
	}
	return &Program{rule: json.RawMessage(expression)}, nil
}

// MustCompile compiles a tree the caller knows to be valid, panicking
// otherwise. Intended for fixtures.
func MustCompile(d *rules.Domain, root *rules.Group) *Program {
	raw, err := Compile(d, root)
	if err != nil {
		panic(err)
	}
	return &Program{rule: raw}
}

// Run reports whether data satisfies the expression.
func (p *Program) Run(data Data) (bool, error) {
	in, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("encode data: %w", err)
	}
	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(p.rule), bytes.NewReader(in), &out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	var result any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return false, fmt.Errorf("decode result: %w", err)
	}
	return truthy(result), nil
}

// Match runs the expression against record's fields in d.
func (p *Program) Match(d *rules.Domain, record engine.Record) (bool, error) {
	return p.Run(DataFor(d, record))
}

// MarshalJSON emits the expression unchanged.
func (p *Program) MarshalJSON() ([]byte, error) {
	return p.rule, nil
}

func (p *Program) String() string {
	return string(p.rule)
}

// truthy follows JSON Logic truthiness: empty strings, zero, null and empty
// arrays are false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	default:
		return true
	}
}
