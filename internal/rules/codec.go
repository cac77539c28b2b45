package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Node type discriminants on the wire.
const (
	typeCondition = "condition"
	typeGroup     = "group"
)

// ErrMalformedTree is returned when a tree cannot be decoded.
var ErrMalformedTree = errors.New("malformed rule tree")

type wireCondition struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Criteria string   `json:"criteria"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

type wireGroup struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"`
	Logic      Logic             `json:"logic"`
	Conditions []json.RawMessage `json:"conditions"`
}

type wireGroupOut struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Logic      Logic  `json:"logic"`
	Conditions []Node `json:"conditions"`
}

// operatorAliases maps symbols accepted on input to operator names.
var operatorAliases = map[string]Operator{
	"=":  OpEq,
	"==": OpEq,
	"!=": OpNeq,
	">=": OpGte,
	"<=": OpLte,
}

// ParseOperator maps an operator name (any case) or one of its symbols onto
// the operator. Anything else is returned lower-cased for the validator to
// report.
func ParseOperator(s string) Operator {
	s = strings.TrimSpace(s)
	if alias, ok := operatorAliases[s]; ok {
		return alias
	}
	return Operator(strings.ToLower(s))
}

// UnmarshalJSON accepts what ParseOperator accepts.
func (op *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: operator must be a string", ErrMalformedTree)
	}
	*op = ParseOperator(s)
	return nil
}

// MarshalJSON adds the "condition" discriminant.
func (c *Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCondition{
		Type:     typeCondition,
		ID:       c.ID,
		Criteria: c.Criteria,
		Operator: c.Operator,
		Value:    c.Value,
	})
}

// UnmarshalJSON decodes a condition, accepting a missing discriminant.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var w wireCondition
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if w.Type != "" && w.Type != typeCondition {
		return fmt.Errorf("%w: expected type %q, got %q", ErrMalformedTree, typeCondition, w.Type)
	}
	*c = Condition{ID: w.ID, Criteria: w.Criteria, Operator: w.Operator, Value: w.Value}
	return nil
}

// MarshalJSON adds the "group" discriminant and always emits a conditions
// array, never null.
func (g *Group) MarshalJSON() ([]byte, error) {
	children := g.Conditions
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(wireGroupOut{
		Type:       typeGroup,
		ID:         g.ID,
		Logic:      g.Logic,
		Conditions: children,
	})
}

// UnmarshalJSON decodes a group and, recursively, its children.
func (g *Group) UnmarshalJSON(data []byte) error {
	var w wireGroup
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if w.Type != "" && w.Type != typeGroup {
		return fmt.Errorf("%w: expected type %q, got %q", ErrMalformedTree, typeGroup, w.Type)
	}

	children := make([]Node, 0, len(w.Conditions))
	for i, raw := range w.Conditions {
		child, err := decodeNode(raw)
		if err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
		children = append(children, child)
	}

	*g = Group{
		ID:         w.ID,
		Logic:      Logic(strings.ToUpper(string(w.Logic))),
		Conditions: children,
	}
	return nil
}

func decodeNode(raw json.RawMessage) (Node, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}

	switch probe.Type {
	case typeCondition:
		c := &Condition{}
		if err := c.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		return c, nil
	case typeGroup:
		g := &Group{}
		if err := g.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", ErrMalformedTree, probe.Type)
	}
}

// ParseTree decodes a JSON rule tree. The root must be a group.
func ParseTree(data []byte) (*Group, error) {
	node, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	root, ok := node.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: root must be a group", ErrMalformedTree)
	}
	return root, nil
}
