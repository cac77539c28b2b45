// Package expr compiles rule trees into CEL programs for bulk filtering of
// records on the server.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/rules"
)

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Program is a compiled rule tree.
type Program struct {
	// Source is the CEL expression the tree compiled to.
	Source string

	domain   *rules.Domain
	criteria []string
	program  cel.Program
}

// Compile validates root against d and compiles it to CEL.
func Compile(d *rules.Domain, root *rules.Group) (*Program, error) {
	if res := d.Validate(root); !res.Valid() {
		return nil, res.Err()
	}

	var b strings.Builder
	if err := writeNode(&b, d, root); err != nil {
		return nil, err
	}
	source := b.String()

	celMutex.Lock()
	defer celMutex.Unlock()

	env, err := cel.NewEnv(declarations(d)...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return &Program{
		Source:   source,
		domain:   d,
		criteria: rules.ReferencedCriteria(root),
		program:  program,
	}, nil
}

// Eval runs the program against record. A referenced field the record lacks
// yields an error wrapping rules.ErrMissingField.
func (p *Program) Eval(record engine.Record) (bool, error) {
	vars := make(map[string]any, len(p.criteria))
	for _, name := range p.criteria {
		crit, _ := p.domain.Lookup(name)
		raw, ok := record.Field(name)
		if !ok {
			return false, fmt.Errorf("%w: %s", rules.ErrMissingField, name)
		}
		v, ok := engine.Normalize(crit, raw)
		if !ok {
			return false, fmt.Errorf("%s: unsupported value %T", name, raw)
		}
		vars[name] = v
	}

	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out.Value())
	}
	return matched, nil
}

// Filter returns the records the program matches. Records missing a
// referenced field do not match.
func Filter[R engine.Record](p *Program, records []R) []R {
	out := make([]R, 0, len(records))
	for _, r := range records {
		if ok, err := p.Eval(r); err == nil && ok {
			out = append(out, r)
		}
	}
	return out
}

func declarations(d *rules.Domain) []cel.EnvOption {
	opts := make([]cel.EnvOption, 0, len(d.Criteria()))
	for _, crit := range d.Criteria() {
		var typ *cel.Type
		switch {
		case crit.Multi:
			typ = cel.ListType(cel.StringType)
		case crit.Type == rules.TypeNumber:
			typ = cel.DoubleType
		case crit.Type == rules.TypeDate:
			typ = cel.TimestampType
		default:
			typ = cel.StringType
		}
		opts = append(opts, cel.Variable(crit.Name, typ))
	}
	return opts
}

var logicOps = map[rules.Logic]string{
	rules.LogicAnd: " && ",
	rules.LogicOr:  " || ",
}

func writeNode(b *strings.Builder, d *rules.Domain, node rules.Node) error {
	switch n := node.(type) {
	case *rules.Group:
		b.WriteByte('(')
		for i, child := range n.Conditions {
			if i > 0 {
				b.WriteString(logicOps[n.Logic])
			}
			if err := writeNode(b, d, child); err != nil {
				return err
			}
		}
		b.WriteByte(')')
		return nil
	case *rules.Condition:
		return writeCondition(b, d, n)
	default:
		return fmt.Errorf("unsupported node %T", node)
	}
}

func writeCondition(b *strings.Builder, d *rules.Domain, c *rules.Condition) error {
	crit, _ := d.Lookup(c.Criteria)
	lit, err := literal(crit, c.Value)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Criteria, err)
	}
	field := c.Criteria

	if crit.Multi {
		switch c.Operator {
		case rules.OpEq:
			fmt.Fprintf(b, "%s in %s", lit, field)
			return nil
		case rules.OpNeq:
			fmt.Fprintf(b, "!(%s in %s)", lit, field)
			return nil
		case rules.OpContains:
			fmt.Fprintf(b, "%s.exists(t, t.contains(%s))", field, lit)
			return nil
		}
	}

	switch c.Operator {
	case rules.OpEq:
		fmt.Fprintf(b, "%s == %s", field, lit)
	case rules.OpNeq:
		fmt.Fprintf(b, "%s != %s", field, lit)
	case rules.OpGte:
		fmt.Fprintf(b, "%s >= %s", field, lit)
	case rules.OpLte:
		fmt.Fprintf(b, "%s <= %s", field, lit)
	case rules.OpBefore:
		fmt.Fprintf(b, "%s < %s", field, lit)
	case rules.OpAfter:
		fmt.Fprintf(b, "%s > %s", field, lit)
	case rules.OpContains:
		fmt.Fprintf(b, "%s.contains(%s)", field, lit)
	default:
		return fmt.Errorf("%w: %s", rules.ErrInvalidOperator, c.Operator)
	}
	return nil
}

// literal renders a rule value as a CEL literal of the criteria's type.
func literal(crit rules.Criteria, v rules.Value) (string, error) {
	switch crit.Type {
	case rules.TypeNumber:
		n, ok := v.Num()
		if !ok {
			return "", fmt.Errorf("%w: expected a number, got %s", rules.ErrInvalidValueType, v)
		}
		s := strconv.FormatFloat(n, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	case rules.TypeDate:
		t, ok := v.Time()
		if !ok {
			return "", fmt.Errorf("%w: expected a date, got %s", rules.ErrInvalidValueType, v)
		}
		return fmt.Sprintf("timestamp(%s)", strconv.Quote(t.UTC().Format(time.RFC3339Nano))), nil
	default:
		s, ok := v.Str()
		if !ok {
			return "", fmt.Errorf("%w: expected a string, got %s", rules.ErrInvalidValueType, v)
		}
		return strconv.Quote(s), nil
	}
}
