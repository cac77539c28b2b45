package rules

// Operator represents a comparison operator used in a Condition.
type Operator string

// Supported operators (string values for clean JSON serialization).
const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpBefore   Operator = "before"
	OpAfter    Operator = "after"
)

// Logic is the combinator of a Group.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Node is either a *Condition or a *Group. The set of implementations is
// closed; callers switch on the concrete type.
type Node interface {
	node()
}

// Condition is a leaf comparison over one named field of a record.
type Condition struct {
	// ID is an opaque handle used by editors to reconcile lists. It carries
	// no meaning for validation, evaluation or rendering.
	ID       string   `json:"id,omitempty"`
	Criteria string   `json:"criteria"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

// Group combines its children with AND or OR semantics, in order.
// The root of every rule tree is a Group.
type Group struct {
	ID         string `json:"id,omitempty"`
	Logic      Logic  `json:"logic"`
	Conditions []Node `json:"conditions"`
}

func (*Condition) node() {}
func (*Group) node()     {}

// Cond is shorthand for building a Condition.
func Cond(criteria string, op Operator, v Value) *Condition {
	return &Condition{Criteria: criteria, Operator: op, Value: v}
}

// And builds an AND group of children.
func And(children ...Node) *Group {
	return &Group{Logic: LogicAnd, Conditions: children}
}

// Or builds an OR group of children.
func Or(children ...Node) *Group {
	return &Group{Logic: LogicOr, Conditions: children}
}
