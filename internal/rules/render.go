package rules

import (
	"strconv"
	"strings"
)

// displayDateLayout mirrors the en-US short date the admin UI shows.
const displayDateLayout = "1/2/2006"

var operatorSymbols = map[Operator]string{
	OpEq:       "=",
	OpNeq:      "!=",
	OpGte:      ">=",
	OpLte:      "<=",
	OpContains: "contains",
	OpBefore:   "before",
	OpAfter:    "after",
}

// Symbol returns the display symbol of op, or op itself when unknown.
func (op Operator) Symbol() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return string(op)
}

// Render returns the canonical human-readable form of node, e.g.
// "(Total Spend >= 1000 AND Last Visit after 1/1/2024)". A nil Domain
// renders raw criteria names.
func (d *Domain) Render(node Node) string {
	var b strings.Builder
	d.render(&b, node)
	return b.String()
}

func (d *Domain) render(b *strings.Builder, node Node) {
	switch n := node.(type) {
	case *Group:
		b.WriteByte('(')
		if n != nil {
			sep := " " + string(n.Logic) + " "
			for i, child := range n.Conditions {
				if i > 0 {
					b.WriteString(sep)
				}
				d.render(b, child)
			}
		}
		b.WriteByte(')')
	case *Condition:
		if n == nil {
			return
		}
		b.WriteString(d.Label(n.Criteria))
		b.WriteByte(' ')
		b.WriteString(n.Operator.Symbol())
		b.WriteByte(' ')
		b.WriteString(d.formatValue(n.Criteria, n.Value))
	}
}

func (d *Domain) formatValue(criteria string, v Value) string {
	dateTyped := false
	if d != nil {
		if c, ok := d.Lookup(criteria); ok && c.Type == TypeDate {
			dateTyped = true
		}
	}

	switch v.Kind() {
	case KindNumber:
		f, _ := v.Num()
		return strconv.FormatFloat(f, 'f', -1, 64)
	case KindDate:
		t, _ := v.Time()
		return t.Format(displayDateLayout)
	case KindString:
		if dateTyped {
			if t, ok := v.Time(); ok {
				return t.Format(displayDateLayout)
			}
		}
		s, _ := v.Str()
		return "'" + s + "'"
	case KindUnsupported:
		return v.String()
	default:
		return "''"
	}
}
