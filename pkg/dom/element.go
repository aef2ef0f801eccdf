/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: element.go
Description: Data model element tree for the Akaylee Cracker. Defines the closed set of
element variants (Block, Choice, Array, Flags, Flag, String, Number, Blob), the shared
element attributes and the analyzer hook that may replace a cracked leaf with a sub-tree.
*/

package dom

import "fmt"

// Element is a node of the data model. The variant set is closed: only the
// types in this package implement it.
type Element interface {
	Name() string
	SetName(name string)
	Parent() Container
	SetParent(parent Container)
	Base() *ElementBase

	// cloneElement deep copies the element and its subtree
	cloneElement() Element
}

// Container is an element that owns children
type Container interface {
	Element
	Children() []Element
	ReplaceChild(old, replacement Element) error
}

// Analyzer is a post-crack hook invoked on a leaf with its raw bytes. It may
// return a replacement element (spliced in place of the leaf) or nil to keep
// the leaf as is. Analyzers are shared between model clones and must not
// keep per-call state.
type Analyzer interface {
	Name() string
	Analyze(leaf Element, raw []byte) (Element, error)
}

// LengthType is the unit of an explicit length
type LengthType int

const (
	LengthBytes LengthType = iota
	LengthBits
	LengthChars
)

// String returns the schema spelling of the length unit
func (t LengthType) String() string {
	switch t {
	case LengthBits:
		return "bits"
	case LengthChars:
		return "chars"
	default:
		return "bytes"
	}
}

// ParseLengthType parses a schema length unit
func ParseLengthType(s string) (LengthType, error) {
	switch s {
	case "", "bytes":
		return LengthBytes, nil
	case "bits":
		return LengthBits, nil
	case "chars":
		return LengthChars, nil
	}
	return LengthBytes, fmt.Errorf("unknown length type: %s", s)
}

// ElementBase holds the attributes every element shares
type ElementBase struct {
	name   string
	parent Container

	IsToken    bool       // cracked value must equal DefaultValue
	HasLength  bool       // Length is set
	Length     uint64     // explicit length in LengthType units
	LengthType LengthType // unit of Length
	Relations  []*Relation
	Analyzer   Analyzer

	// DefaultValue is the declared value before cracking and the cracked
	// value afterwards
	DefaultValue any
}

// Name returns the element name
func (b *ElementBase) Name() string {
	return b.name
}

// SetName renames the element
func (b *ElementBase) SetName(name string) {
	b.name = name
}

// Parent returns the owning container, nil for the root
func (b *ElementBase) Parent() Container {
	return b.parent
}

// SetParent sets the non-owning back reference
func (b *ElementBase) SetParent(parent Container) {
	b.parent = parent
}

// Base gives access to the shared attributes
func (b *ElementBase) Base() *ElementBase {
	return b
}

// RelationsOfKind returns the relations this element declares of one kind
func (b *ElementBase) RelationsOfKind(kind RelationKind) []*Relation {
	var out []*Relation
	for _, r := range b.Relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// AddRelation attaches a relation declared by this element
func (b *ElementBase) AddRelation(r *Relation) {
	b.Relations = append(b.Relations, r)
}

// SetLength sets an explicit length
func (b *ElementBase) SetLength(length uint64, unit LengthType) {
	b.HasLength = true
	b.Length = length
	b.LengthType = unit
}

func (b *ElementBase) copyBase() ElementBase {
	c := *b
	c.parent = nil
	if len(b.Relations) > 0 {
		c.Relations = make([]*Relation, len(b.Relations))
		for i, r := range b.Relations {
			rc := *r
			c.Relations[i] = &rc
		}
	}
	if raw, ok := b.DefaultValue.([]byte); ok {
		c.DefaultValue = append([]byte(nil), raw...)
	}
	return c
}

// Clone deep copies an element subtree. The copy has no parent.
func Clone(e Element) Element {
	return e.cloneElement()
}

// TypeName returns the schema name of an element's variant
func TypeName(e Element) string {
	switch e.(type) {
	case *Block:
		return "block"
	case *Choice:
		return "choice"
	case *Array:
		return "array"
	case *Flags:
		return "flags"
	case *Flag:
		return "flag"
	case *String:
		return "string"
	case *Number:
		return "number"
	case *Blob:
		return "blob"
	}
	return fmt.Sprintf("%T", e)
}
