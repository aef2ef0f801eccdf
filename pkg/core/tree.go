/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: tree.go
Description: Serialisable snapshots of cracked element trees. A Node carries each
element's name, type, absolute bit span and rendered value.
*/

package core

import (
	"encoding/hex"
	"fmt"

	"github.com/kleascm/akaylee-cracker/pkg/cracker"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// Node is one element of a cracked tree
type Node struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Start    uint64  `json:"start_bit"`
	Stop     uint64  `json:"stop_bit"`
	Value    string  `json:"value,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// LengthBits returns the width of the node's span
func (n *Node) LengthBits() uint64 {
	return n.Stop - n.Start
}

// Snapshot captures root as cracked by c. Elements without a span (a choice's
// unselected alternatives, for example) are left out.
func Snapshot(root dom.Element, c *cracker.Cracker) *Node {
	span, ok := c.Span(root)
	if !ok {
		return nil
	}
	node := &Node{
		Name:  root.Name(),
		Type:  dom.TypeName(root),
		Start: span.Start,
		Stop:  span.Stop,
	}
	if container, ok := root.(dom.Container); ok {
		for _, child := range container.Children() {
			if n := Snapshot(child, c); n != nil {
				node.Children = append(node.Children, n)
			}
		}
		return node
	}
	node.Value = FormatValue(root.Base().DefaultValue)
	return node
}

// FormatValue renders an element value for display
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return hex.EncodeToString(val)
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Walk visits n and its descendants depth first with their depth
func (n *Node) Walk(fn func(node *Node, depth int)) {
	var visit func(*Node, int)
	visit = func(node *Node, depth int) {
		fn(node, depth)
		for _, c := range node.Children {
			visit(c, depth+1)
		}
	}
	visit(n, 0)
}
