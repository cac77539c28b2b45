// Package engine evaluates rule trees against records.
//
// Evaluation is total: a condition whose field is absent from the record is a
// non-match, never an error. Check is the strict variant that reports the
// first missing field instead.
package engine

import (
	"fmt"

	"github.com/0888060509/champong-admin/internal/rules"
)

// Record exposes the fields a rule tree can reference.
type Record interface {
	// Field returns the value of the named criteria and whether it exists.
	Field(name string) (any, bool)
}

// MapRecord is a Record backed by a map, as decoded from JSON.
type MapRecord map[string]any

// Field implements Record.
func (m MapRecord) Field(name string) (any, bool) {
	v, ok := m[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// MissingFieldError reports a condition whose criteria the record lacks.
type MissingFieldError struct {
	Path     rules.Path
	Criteria string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: record has no field %q", e.Path, e.Criteria)
}

// Unwrap returns rules.ErrMissingField.
func (e *MissingFieldError) Unwrap() error { return rules.ErrMissingField }

// Empty groups evaluate to the identity of their combinator: an AND over no
// children is true, an OR over no children is false. Validation rejects
// empty groups before a tree is stored.
const (
	emptyAnd = true
	emptyOr  = false
)

// Evaluate reports whether record matches node. Missing fields and unknown
// operators make the condition false.
func Evaluate(node rules.Node, record Record) bool {
	ev := evaluator{record: record}
	return ev.eval(node, nil)
}

// Check evaluates like Evaluate but stops at the first condition whose field
// is missing from the record and returns a *MissingFieldError. Conditions
// skipped by short-circuiting are not inspected.
func Check(node rules.Node, record Record) (bool, error) {
	ev := evaluator{record: record, strict: true}
	matched := ev.eval(node, nil)
	if ev.missing != nil {
		return false, ev.missing
	}
	return matched, nil
}

// Explain evaluates node and returns the result together with every
// condition that was skipped because its field was missing.
func Explain(node rules.Node, record Record) (bool, []*MissingFieldError) {
	ev := evaluator{record: record, collect: true}
	matched := ev.eval(node, nil)
	return matched, ev.all
}

type evaluator struct {
	record  Record
	strict  bool
	collect bool
	missing *MissingFieldError
	all     []*MissingFieldError
}

func (ev *evaluator) eval(node rules.Node, path rules.Path) bool {
	if ev.missing != nil {
		return false
	}
	switch n := node.(type) {
	case *rules.Group:
		return ev.evalGroup(n, path)
	case *rules.Condition:
		return ev.evalCondition(n, path)
	default:
		return false
	}
}

func (ev *evaluator) evalGroup(g *rules.Group, path rules.Path) bool {
	if g == nil {
		return false
	}
	switch g.Logic {
	case rules.LogicAnd:
		if len(g.Conditions) == 0 {
			return emptyAnd
		}
		for i, child := range g.Conditions {
			if !ev.eval(child, path.Child(i)) {
				return false
			}
		}
		return true
	case rules.LogicOr:
		if len(g.Conditions) == 0 {
			return emptyOr
		}
		for i, child := range g.Conditions {
			if ev.eval(child, path.Child(i)) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (ev *evaluator) evalCondition(c *rules.Condition, path rules.Path) bool {
	if c == nil {
		return false
	}
	if ev.record == nil {
		ev.noteMissing(c, path)
		return false
	}
	value, ok := ev.record.Field(c.Criteria)
	if !ok {
		ev.noteMissing(c, path)
		return false
	}
	handler, ok := getOperatorHandler(c.Operator)
	if !ok {
		return false
	}
	return handler.Check(value, c.Value)
}

func (ev *evaluator) noteMissing(c *rules.Condition, path rules.Path) {
	err := &MissingFieldError{Path: path, Criteria: c.Criteria}
	if ev.strict {
		ev.missing = err
	}
	if ev.collect {
		ev.all = append(ev.all, err)
	}
}

// Filter returns the records matching root, preserving order.
func Filter[R Record](root rules.Node, records []R) []R {
	matched := make([]R, 0, len(records))
	for _, r := range records {
		if Evaluate(root, r) {
			matched = append(matched, r)
		}
	}
	return matched
}
