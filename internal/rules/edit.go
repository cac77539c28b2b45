package rules

import (
	"errors"
	"fmt"
)

// ErrPathNotFound is returned when a Path does not address a node.
var ErrPathNotFound = errors.New("path not found")

// Map returns a new tree with fn applied to every condition. Groups are
// rebuilt; the input tree is never modified. fn may return its argument
// unchanged.
func Map(node Node, fn func(*Condition) *Condition) Node {
	switch n := node.(type) {
	case *Group:
		if n == nil {
			return n
		}
		out := &Group{ID: n.ID, Logic: n.Logic, Conditions: make([]Node, len(n.Conditions))}
		for i, child := range n.Conditions {
			out.Conditions[i] = Map(child, fn)
		}
		return out
	case *Condition:
		if n == nil {
			return n
		}
		return fn(n)
	default:
		return node
	}
}

// Clone returns a deep copy of node.
func Clone(node Node) Node {
	return Map(node, func(c *Condition) *Condition {
		out := *c
		return &out
	})
}

// At returns the node addressed by path.
func At(root Node, path Path) (Node, error) {
	node := root
	for depth, idx := range path {
		g, ok := node.(*Group)
		if !ok || g == nil || idx < 0 || idx >= len(g.Conditions) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path[:depth+1])
		}
		node = g.Conditions[idx]
	}
	return node, nil
}

// ReplaceAt returns a new tree in which the node at path is replaced by
// replacement. Siblings and unrelated subtrees are shared with the input.
// Replacing the root (empty path) requires a *Group.
func ReplaceAt(root *Group, path Path, replacement Node) (*Group, error) {
	if len(path) == 0 {
		g, ok := replacement.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: root must be a group", ErrMalformedTree)
		}
		return g, nil
	}
	out, err := replaceAt(root, path, replacement)
	if err != nil {
		return nil, err
	}
	return out.(*Group), nil
}

func replaceAt(node Node, path Path, replacement Node) (Node, error) {
	if len(path) == 0 {
		return replacement, nil
	}
	g, ok := node.(*Group)
	if !ok || g == nil || path[0] < 0 || path[0] >= len(g.Conditions) {
		return nil, fmt.Errorf("%w: index %d", ErrPathNotFound, path[0])
	}
	child, err := replaceAt(g.Conditions[path[0]], path[1:], replacement)
	if err != nil {
		return nil, err
	}
	children := make([]Node, len(g.Conditions))
	copy(children, g.Conditions)
	children[path[0]] = child
	return &Group{ID: g.ID, Logic: g.Logic, Conditions: children}, nil
}

// Walk visits every node depth-first, parents before children.
func Walk(node Node, visit func(Node, Path)) {
	walk(node, nil, visit)
}

func walk(node Node, path Path, visit func(Node, Path)) {
	visit(node, path)
	if g, ok := node.(*Group); ok && g != nil {
		for i, child := range g.Conditions {
			walk(child, path.Child(i), visit)
		}
	}
}

// ReferencedCriteria returns the distinct criteria names referenced by node, in
// first-seen order.
func ReferencedCriteria(node Node) []string {
	seen := make(map[string]struct{})
	var out []string
	Walk(node, func(n Node, _ Path) {
		c, ok := n.(*Condition)
		if !ok || c == nil {
			return
		}
		if _, dup := seen[c.Criteria]; dup {
			return
		}
		seen[c.Criteria] = struct{}{}
		out = append(out, c.Criteria)
	})
	return out
}
