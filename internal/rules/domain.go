package rules

import (
	"fmt"
	"strings"
)

// DomainName identifies a closed criteria vocabulary.
type DomainName string

const (
	DomainCustomer DomainName = "customer"
	DomainProduct  DomainName = "product"
)

// ValueType is the type a criteria expects on the right-hand side.
type ValueType string

const (
	TypeNumber ValueType = "number"
	TypeString ValueType = "string"
	TypeDate   ValueType = "date"
	TypeEnum   ValueType = "enum"
)

// Criteria describes one field of a record type that rules may reference.
type Criteria struct {
	Name      string
	Label     string
	Type      ValueType
	Operators []Operator
	// Enum lists accepted values for TypeEnum. An empty list accepts any
	// non-empty string.
	Enum []string
	// Multi marks list-valued record fields. eq tests membership and
	// contains matches when any element contains the substring.
	Multi bool
}

// Allows reports whether op is legal for the criteria.
func (c Criteria) Allows(op Operator) bool {
	for _, allowed := range c.Operators {
		if allowed == op {
			return true
		}
	}
	return false
}

// Domain is a vocabulary of criteria. Customer segmentation and product
// collections are separate vocabularies.
type Domain struct {
	Name     DomainName
	criteria map[string]Criteria
	order    []string
}

// NewDomain builds a Domain from its criteria, preserving declaration order.
func NewDomain(name DomainName, criteria ...Criteria) *Domain {
	d := &Domain{Name: name, criteria: make(map[string]Criteria, len(criteria))}
	for _, c := range criteria {
		d.criteria[c.Name] = c
		d.order = append(d.order, c.Name)
	}
	return d
}

// Lookup returns the criteria named name.
func (d *Domain) Lookup(name string) (Criteria, bool) {
	c, ok := d.criteria[name]
	return c, ok
}

// Criteria returns all criteria in declaration order.
func (d *Domain) Criteria() []Criteria {
	out := make([]Criteria, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.criteria[name])
	}
	return out
}

// Label returns the display name of a criteria, or the raw name when unknown.
func (d *Domain) Label(name string) string {
	if d == nil {
		return name
	}
	if c, ok := d.criteria[name]; ok {
		return c.Label
	}
	return name
}

// Describe returns a one-line-per-criteria summary of the vocabulary, used
// in suggestion prompts and CLI help.
func (d *Domain) Describe() string {
	var b strings.Builder
	for _, c := range d.Criteria() {
		ops := make([]string, len(c.Operators))
		for i, op := range c.Operators {
			ops[i] = string(op)
		}
		typ := string(c.Type)
		if c.Type == TypeEnum && len(c.Enum) > 0 {
			typ = fmt.Sprintf("enum(%s)", strings.Join(c.Enum, ","))
		}
		fmt.Fprintf(&b, "- %s (%s): %s; operators: %s\n", c.Name, c.Label, typ, strings.Join(ops, ", "))
	}
	return b.String()
}

var numericOps = []Operator{OpGte, OpLte, OpEq}

// Customer is the customer segmentation vocabulary.
var Customer = NewDomain(DomainCustomer,
	Criteria{Name: "totalSpend", Label: "Total Spend", Type: TypeNumber, Operators: numericOps},
	Criteria{Name: "orderFrequency", Label: "Order Frequency", Type: TypeNumber, Operators: numericOps},
	Criteria{Name: "lastVisit", Label: "Last Visit", Type: TypeDate, Operators: []Operator{OpBefore, OpAfter}},
	Criteria{Name: "membershipLevel", Label: "Membership Level", Type: TypeEnum, Operators: []Operator{OpEq, OpNeq}, Enum: []string{"Bronze", "Silver", "Gold"}},
)

// Product is the product collection vocabulary.
var Product = NewDomain(DomainProduct,
	Criteria{Name: "price", Label: "Price", Type: TypeNumber, Operators: numericOps},
	Criteria{Name: "profit_margin", Label: "Profit Margin", Type: TypeNumber, Operators: numericOps},
	Criteria{Name: "stock_level", Label: "Stock Level", Type: TypeNumber, Operators: numericOps},
	Criteria{Name: "category", Label: "Category", Type: TypeEnum, Operators: []Operator{OpEq, OpNeq}},
	Criteria{Name: "tags", Label: "Tags", Type: TypeString, Operators: []Operator{OpEq, OpNeq, OpContains}, Multi: true},
)

// LookupDomain resolves a domain by name. "segment(s)" and "collection(s)"
// are accepted as aliases.
func LookupDomain(name string) (*Domain, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(DomainCustomer), "customers", "segment", "segments":
		return Customer, true
	case string(DomainProduct), "products", "collection", "collections":
		return Product, true
	default:
		return nil, false
	}
}
