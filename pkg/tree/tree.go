package tree

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// Node is one entry of the hierarchy.
type Node struct {
	Code        string
	DisplayText string
	ParentCode  string
	Extension   json.RawMessage
	Children    []*Node
	Parent      *Node
	Expanded    bool
}

// Expandable reports whether the node has children.
func (n *Node) Expandable() bool { return len(n.Children) > 0 }

// Level returns the depth of the node, 0 for roots.
func (n *Node) Level() int {
	level := 0
	for p := n.Parent; p != nil; p = p.Parent {
		level++
	}
	return level
}

// FlatNode is one visible row of a flattened forest.
type FlatNode struct {
	Node       *Node
	Level      int
	Expandable bool
}

// Forest is a set of root nodes with a code index.
type Forest struct {
	roots    []*Node
	index    map[string]*Node
	selected string
}

// Build groups values by parent code. Values whose parent is missing, or
// whose parent chain loops back on itself, become roots. The first value
// wins when codes repeat. Sibling order follows input order.
func Build(values []options.DomainValue) *Forest {
	f := &Forest{index: make(map[string]*Node, len(values))}
	order := make([]*Node, 0, len(values))
	for _, v := range values {
		if _, dup := f.index[v.Code]; dup {
			continue
		}
		n := &Node{
			Code:        v.Code,
			DisplayText: v.DisplayText,
			ParentCode:  v.ParentCode,
			Extension:   v.Extension,
		}
		f.index[v.Code] = n
		order = append(order, n)
	}

	for _, n := range order {
		parent, ok := f.index[n.ParentCode]
		if n.ParentCode == "" || !ok || f.loops(n) {
			f.roots = append(f.roots, n)
			continue
		}
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}
	return f
}

// FromOptions converts static `{label, value}` options into a flat forest of
// roots.
func FromOptions(opts []schema.Option) *Forest {
	return Build(options.StaticOptions(opts))
}

// loops reports whether following parent codes from n returns to n.
func (f *Forest) loops(n *Node) bool {
	seen := map[string]bool{n.Code: true}
	code := n.ParentCode
	for code != "" {
		if seen[code] {
			return code == n.Code
		}
		seen[code] = true
		next, ok := f.index[code]
		if !ok {
			return false
		}
		code = next.ParentCode
	}
	return false
}

// Roots returns the top-level nodes.
func (f *Forest) Roots() []*Node {
	return append([]*Node(nil), f.roots...)
}

// Find returns the node registered under code.
func (f *Forest) Find(code string) (*Node, bool) {
	n, ok := f.index[code]
	return n, ok
}

// Len returns the number of nodes.
func (f *Forest) Len() int { return len(f.index) }

// Ancestors returns the chain from the root down to the parent of code.
func (f *Forest) Ancestors(code string) []*Node {
	n, ok := f.index[code]
	if !ok {
		return nil
	}
	var chain []*Node
	for p := n.Parent; p != nil; p = p.Parent {
		chain = append([]*Node{p}, chain...)
	}
	return chain
}

// Select marks code as selected and expands every ancestor so it stays
// visible. It returns false for unknown codes.
func (f *Forest) Select(code string) bool {
	if _, ok := f.index[code]; !ok {
		return false
	}
	f.selected = code
	for _, a := range f.Ancestors(code) {
		a.Expanded = true
	}
	return true
}

// Selected returns the selected code.
func (f *Forest) Selected() string { return f.selected }

// Toggle flips the expanded state of an expandable node.
func (f *Forest) Toggle(code string) {
	if n, ok := f.index[code]; ok && n.Expandable() {
		n.Expanded = !n.Expanded
	}
}

// ExpandAll expands every branch.
func (f *Forest) ExpandAll() { f.setExpanded(true) }

// CollapseAll collapses every branch.
func (f *Forest) CollapseAll() { f.setExpanded(false) }

func (f *Forest) setExpanded(expanded bool) {
	for _, n := range f.index {
		n.Expanded = expanded && n.Expandable()
	}
}

// Filter returns a pruned copy holding the nodes whose display text or code
// contains term (case-insensitive) together with their full ancestor chain.
// Every surviving branch is expanded. An empty term copies the forest.
func (f *Forest) Filter(term string) *Forest {
	term = strings.ToLower(strings.TrimSpace(term))
	out := &Forest{index: make(map[string]*Node), selected: f.selected}
	for _, root := range f.roots {
		if kept := prune(root, term, nil, out.index); kept != nil {
			out.roots = append(out.roots, kept)
		}
	}
	if _, ok := out.index[out.selected]; !ok {
		out.selected = ""
	}
	return out
}

// prune copies n when it or a descendant matches term.
func prune(n *Node, term string, parent *Node, index map[string]*Node) *Node {
	cp := &Node{
		Code:        n.Code,
		DisplayText: n.DisplayText,
		ParentCode:  n.ParentCode,
		Extension:   n.Extension,
		Parent:      parent,
		Expanded:    n.Expanded,
	}
	for _, child := range n.Children {
		if kept := prune(child, term, cp, index); kept != nil {
			cp.Children = append(cp.Children, kept)
		}
	}
	if term != "" {
		if len(cp.Children) == 0 && !matches(n, term) {
			return nil
		}
		cp.Expanded = len(cp.Children) > 0
	}
	index[cp.Code] = cp
	return cp
}

func matches(n *Node, term string) bool {
	return strings.Contains(strings.ToLower(n.DisplayText), term) ||
		strings.Contains(strings.ToLower(n.Code), term)
}

// Flatten lists the visible nodes depth-first: roots and the children of
// expanded nodes.
func (f *Forest) Flatten() []FlatNode {
	var out []FlatNode
	var visit func(n *Node, level int)
	visit = func(n *Node, level int) {
		out = append(out, FlatNode{Node: n, Level: level, Expandable: n.Expandable()})
		if !n.Expanded {
			return
		}
		for _, child := range n.Children {
			visit(child, level+1)
		}
	}
	for _, root := range f.roots {
		visit(root, 0)
	}
	return out
}
