package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors, one per issue kind. Issues unwrap to these so callers can
// use errors.Is on a *ValidationError.
var (
	ErrInvalidCriteria  = errors.New("invalid criteria")
	ErrInvalidOperator  = errors.New("invalid operator")
	ErrInvalidValueType = errors.New("invalid value type")
	ErrInvalidLogic     = errors.New("invalid logic")
	ErrEmptyGroup       = errors.New("empty group")
	ErrMissingField     = errors.New("missing field")
)

// IssueKind classifies a validation issue.
type IssueKind string

const (
	InvalidCriteria  IssueKind = "InvalidCriteria"
	InvalidOperator  IssueKind = "InvalidOperator"
	InvalidValueType IssueKind = "InvalidValueType"
	InvalidLogic     IssueKind = "InvalidLogic"
	EmptyGroup       IssueKind = "EmptyGroup"
)

var issueSentinels = map[IssueKind]error{
	InvalidCriteria:  ErrInvalidCriteria,
	InvalidOperator:  ErrInvalidOperator,
	InvalidValueType: ErrInvalidValueType,
	InvalidLogic:     ErrInvalidLogic,
	EmptyGroup:       ErrEmptyGroup,
}

// Path locates a node by child indexes from the root. The empty Path is the
// root itself.
type Path []int

// Child returns a new Path extended by index i.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

func (p Path) String() string {
	if len(p) == 0 {
		return "root"
	}
	var b strings.Builder
	for i, idx := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString("conditions[")
		b.WriteString(strconv.Itoa(idx))
		b.WriteByte(']')
	}
	return b.String()
}

// Issue is one validation failure inside a tree.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Path    Path      `json:"path"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// Key is the field-level form of the issue location, e.g.
// "conditions[1].operator".
func (i Issue) Key() string {
	if i.Field == "" {
		return i.Path.String()
	}
	if len(i.Path) == 0 {
		return i.Field
	}
	return i.Path.String() + "." + i.Field
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.Key(), i.Message)
}

// Unwrap returns the sentinel error for the issue kind.
func (i Issue) Unwrap() error { return issueSentinels[i.Kind] }

// ValidationResult holds every issue found in a tree.
type ValidationResult struct {
	Issues []Issue `json:"issues"`
}

// Valid reports whether no issue was found.
func (r ValidationResult) Valid() bool { return len(r.Issues) == 0 }

// Fields maps each issue location to its message.
func (r ValidationResult) Fields() map[string]string {
	fields := make(map[string]string, len(r.Issues))
	for _, issue := range r.Issues {
		if _, exists := fields[issue.Key()]; !exists {
			fields[issue.Key()] = issue.Message
		}
	}
	return fields
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Issues: r.Issues}
}

func (r *ValidationResult) add(kind IssueKind, path Path, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Kind:    kind,
		Path:    path,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// ValidationError is the error form of an invalid ValidationResult.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid rule tree: " + e.Issues[0].Error()
	}
	return fmt.Sprintf("invalid rule tree: %s (and %d more)", e.Issues[0].Error(), len(e.Issues)-1)
}

// Unwrap exposes every issue to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for i, issue := range e.Issues {
		errs[i] = issue
	}
	return errs
}

// Validate checks the structure of node against the domain vocabulary.
// It is a pure function: it never mutates node and needs no record.
func (d *Domain) Validate(node Node) ValidationResult {
	var result ValidationResult
	if node == nil {
		result.add(EmptyGroup, nil, "", "rule tree is empty")
		return result
	}
	d.validateNode(node, nil, &result)
	return result
}

func (d *Domain) validateNode(node Node, path Path, result *ValidationResult) {
	switch n := node.(type) {
	case *Group:
		d.validateGroup(n, path, result)
	case *Condition:
		d.validateCondition(n, path, result)
	default:
		result.add(InvalidCriteria, path, "", "unsupported node %T", node)
	}
}

func (d *Domain) validateGroup(g *Group, path Path, result *ValidationResult) {
	if g == nil {
		result.add(EmptyGroup, path, "conditions", "group must have at least one condition")
		return
	}
	if g.Logic != LogicAnd && g.Logic != LogicOr {
		result.add(InvalidLogic, path, "logic", "logic %q must be AND or OR", g.Logic)
	}
	if len(g.Conditions) == 0 {
		result.add(EmptyGroup, path, "conditions", "group must have at least one condition")
		return
	}
	for i, child := range g.Conditions {
		d.validateNode(child, path.Child(i), result)
	}
}

func (d *Domain) validateCondition(c *Condition, path Path, result *ValidationResult) {
	if c == nil {
		result.add(InvalidCriteria, path, "criteria", "condition is nil")
		return
	}
	crit, ok := d.Lookup(c.Criteria)
	if !ok {
		result.add(InvalidCriteria, path, "criteria", "criteria %q is not a %s field", c.Criteria, d.Name)
		return
	}
	if !crit.Allows(c.Operator) {
		result.add(InvalidOperator, path, "operator", "operator %q is not allowed for %s", c.Operator, crit.Label)
	}
	if msg := checkValueType(crit, c.Value); msg != "" {
		result.add(InvalidValueType, path, "value", "%s", msg)
	}
}

// checkValueType returns an empty string when v fits the criteria's type.
func checkValueType(crit Criteria, v Value) string {
	switch crit.Type {
	case TypeNumber:
		if _, ok := v.Num(); !ok {
			return fmt.Sprintf("%s requires a number, got %s", crit.Label, v.Kind())
		}
	case TypeDate:
		if _, ok := v.Time(); !ok {
			if s, isStr := v.Str(); isStr && IsPlaceholder(s) {
				return fmt.Sprintf("%s placeholder %q was not resolved", crit.Label, s)
			}
			return fmt.Sprintf("%s requires a date, got %s", crit.Label, v.Kind())
		}
	case TypeString:
		if _, ok := v.Str(); !ok {
			return fmt.Sprintf("%s requires a string, got %s", crit.Label, v.Kind())
		}
	case TypeEnum:
		s, ok := v.Str()
		if !ok || s == "" {
			return fmt.Sprintf("%s requires a non-empty string, got %s", crit.Label, v.Kind())
		}
		if len(crit.Enum) > 0 && !contains(crit.Enum, s) {
			return fmt.Sprintf("%s must be one of %s, got %q", crit.Label, strings.Join(crit.Enum, ", "), s)
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
