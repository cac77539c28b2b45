package rules

import "fmt"

// FromSuggestion accepts a generated tree into editable state. The
// generator already returns a typed tree; this is the structural
// validation pass that guards acceptance. The returned tree is a copy.
func (d *Domain) FromSuggestion(root *Group) (*Group, ValidationResult) {
	if root == nil {
		var result ValidationResult
		result.add(EmptyGroup, nil, "", "suggestion has no conditions")
		return nil, result
	}
	result := d.Validate(root)
	if !result.Valid() {
		return nil, result
	}
	accepted, ok := Clone(root).(*Group)
	if !ok {
		result.add(InvalidCriteria, nil, "", "suggestion root is %T", root)
		return nil, result
	}
	return accepted, result
}

// MustParse decodes and validates a tree, panicking on failure. It is meant
// for static templates and tests.
func (d *Domain) MustParse(data string) *Group {
	root, err := ParseTree([]byte(data))
	if err != nil {
		panic(fmt.Sprintf("rules: parse %s tree: %v", d.Name, err))
	}
	if err := d.Validate(root).Err(); err != nil {
		panic(fmt.Sprintf("rules: %s tree: %v", d.Name, err))
	}
	return root
}
