/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lookup.go
Description: Tree navigation: name resolution for relations, sibling traversal, full
names and ancestry checks.
*/

package dom

import "strings"

// Root returns the top of the tree containing e
func Root(e Element) Element {
	for e.Parent() != nil {
		e = e.Parent()
	}
	return e
}

// FullName returns the dotted path of e from the root
func FullName(e Element) string {
	var parts []string
	for cur := e; cur != nil; {
		parts = append(parts, cur.Name())
		p := cur.Parent()
		if p == nil {
			break
		}
		cur = p
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// IsAncestor reports whether ancestor is a strict ancestor of e
func IsAncestor(ancestor, e Element) bool {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if Element(p) == ancestor {
			return true
		}
	}
	return false
}

// NextSibling returns the element after e in its parent, nil when e is last.
// Choice alternatives have no siblings.
func NextSibling(e Element) Element {
	parent := e.Parent()
	if parent == nil {
		return nil
	}
	if _, ok := parent.(*Choice); ok {
		return nil
	}
	children := parent.Children()
	for i, c := range children {
		if c == e && i+1 < len(children) {
			return children[i+1]
		}
	}
	return nil
}

// Find resolves a dotted name from the point of view of from. Each ancestor,
// innermost first, is tried as the starting scope; a path whose first part
// names the root is resolved from the root; a single name falls back to a
// breadth first search of the whole tree.
func Find(from Element, name string) Element {
	if name == "" {
		return nil
	}
	parts := strings.Split(name, ".")

	for scope := from.Parent(); scope != nil; scope = scope.Parent() {
		if e := descend(scope, parts); e != nil {
			return e
		}
	}

	root := Root(from)
	if root.Name() == parts[0] {
		if len(parts) == 1 {
			return root
		}
		if c, ok := root.(Container); ok {
			if e := descend(c, parts[1:]); e != nil {
				return e
			}
		}
	}

	if len(parts) == 1 {
		return search(root, parts[0])
	}
	return nil
}

func descend(scope Container, parts []string) Element {
	var cur Element = scope
	for _, part := range parts {
		c, ok := cur.(Container)
		if !ok {
			return nil
		}
		var next Element
		for _, child := range c.Children() {
			if child.Name() == part {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func search(root Element, name string) Element {
	queue := []Element{root}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e.Name() == name {
			return e
		}
		if c, ok := e.(Container); ok {
			queue = append(queue, c.Children()...)
		}
	}
	return nil
}

// Walk visits e and its current children depth first until fn returns false
func Walk(e Element, fn func(Element) bool) bool {
	if !fn(e) {
		return false
	}
	if c, ok := e.(Container); ok {
		for _, child := range c.Children() {
			if !Walk(child, fn) {
				return false
			}
		}
	}
	return true
}
