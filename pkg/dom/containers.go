/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: containers.go
Description: Container element variants. Block is an ordered sequence, Choice holds
mutually exclusive alternatives, Array repeats a template and Flags packs bit fields
into a fixed width region.
*/

package dom

import "fmt"

// Block is an ordered sequence of children, also used as the data model root
type Block struct {
	ElementBase
	children []Element
}

// NewBlock creates a block and adopts the given children
func NewBlock(name string, children ...Element) *Block {
	b := &Block{ElementBase: ElementBase{name: name}}
	for _, c := range children {
		b.Append(c)
	}
	return b
}

// Append adds a child at the end
func (b *Block) Append(child Element) {
	child.SetParent(b)
	b.children = append(b.children, child)
}

// Children returns the children in declaration order
func (b *Block) Children() []Element {
	return b.children
}

// Child returns the direct child with the given name
func (b *Block) Child(name string) Element {
	for _, c := range b.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// ReplaceChild swaps old for replacement in place
func (b *Block) ReplaceChild(old, replacement Element) error {
	for i, c := range b.children {
		if c == old {
			replacement.SetParent(b)
			b.children[i] = replacement
			return nil
		}
	}
	return fmt.Errorf("element %s is not a child of %s", old.Name(), b.Name())
}

func (b *Block) cloneElement() Element {
	c := &Block{ElementBase: b.copyBase()}
	for _, child := range b.children {
		c.Append(child.cloneElement())
	}
	return c
}

// Choice selects exactly one of its alternatives when cracked
type Choice struct {
	ElementBase
	alternatives []Element

	// Selected is the cracked instance of the winning alternative
	Selected Element
}

// NewChoice creates a choice over alternatives tried in declaration order
func NewChoice(name string, alternatives ...Element) *Choice {
	c := &Choice{ElementBase: ElementBase{name: name}}
	for _, a := range alternatives {
		c.AddAlternative(a)
	}
	return c
}

// AddAlternative appends an alternative template
func (c *Choice) AddAlternative(alt Element) {
	alt.SetParent(c)
	c.alternatives = append(c.alternatives, alt)
}

// Alternatives returns the alternative templates in declaration order
func (c *Choice) Alternatives() []Element {
	return c.alternatives
}

// Children returns the selected alternative once cracked, the templates otherwise
func (c *Choice) Children() []Element {
	if c.Selected != nil {
		return []Element{c.Selected}
	}
	return c.alternatives
}

// ReplaceChild replaces the selected alternative
func (c *Choice) ReplaceChild(old, replacement Element) error {
	if c.Selected != old {
		return fmt.Errorf("element %s is not the selected alternative of %s", old.Name(), c.Name())
	}
	replacement.SetParent(c)
	c.Selected = replacement
	return nil
}

func (c *Choice) cloneElement() Element {
	n := &Choice{ElementBase: c.copyBase()}
	for _, alt := range c.alternatives {
		n.AddAlternative(alt.cloneElement())
	}
	if c.Selected != nil {
		n.Selected = c.Selected.cloneElement()
		n.Selected.SetParent(n)
	}
	return n
}

// Unbounded is the MaxOccurs value for arrays without an upper limit
const Unbounded = -1

// Array repeats a template element between MinOccurs and MaxOccurs times
type Array struct {
	ElementBase
	Template  Element
	MinOccurs int
	MaxOccurs int

	// Items holds the cracked instances, named <array>_<n>
	Items []Element
}

// NewArray creates an array over template
func NewArray(name string, template Element, minOccurs, maxOccurs int) *Array {
	a := &Array{
		ElementBase: ElementBase{name: name},
		Template:    template,
		MinOccurs:   minOccurs,
		MaxOccurs:   maxOccurs,
	}
	template.SetParent(a)
	return a
}

// Children returns the cracked items
func (a *Array) Children() []Element {
	return a.Items
}

// AppendItem adopts a cracked instance
func (a *Array) AppendItem(item Element) {
	item.SetParent(a)
	a.Items = append(a.Items, item)
}

// ReplaceChild swaps an item in place
func (a *Array) ReplaceChild(old, replacement Element) error {
	for i, it := range a.Items {
		if it == old {
			replacement.SetParent(a)
			a.Items[i] = replacement
			return nil
		}
	}
	return fmt.Errorf("element %s is not an item of %s", old.Name(), a.Name())
}

func (a *Array) cloneElement() Element {
	n := &Array{
		ElementBase: a.copyBase(),
		Template:    a.Template.cloneElement(),
		MinOccurs:   a.MinOccurs,
		MaxOccurs:   a.MaxOccurs,
	}
	n.Template.SetParent(n)
	for _, it := range a.Items {
		n.AppendItem(it.cloneElement())
	}
	return n
}

// Flags is a fixed width bit region whose children sit at declared bit offsets
type Flags struct {
	ElementBase
	Size         int // total width in bits
	LittleEndian bool
	flags        []*Flag
}

// NewFlags creates a flags region of size bits
func NewFlags(name string, size int, flags ...*Flag) *Flags {
	f := &Flags{ElementBase: ElementBase{name: name}, Size: size}
	for _, fl := range flags {
		f.AddFlag(fl)
	}
	return f
}

// AddFlag adopts a flag
func (f *Flags) AddFlag(flag *Flag) {
	flag.SetParent(f)
	f.flags = append(f.flags, flag)
}

// Flags returns the flags in declaration order
func (f *Flags) Flags() []*Flag {
	return f.flags
}

// Children returns the flags as elements
func (f *Flags) Children() []Element {
	out := make([]Element, len(f.flags))
	for i, fl := range f.flags {
		out[i] = fl
	}
	return out
}

// ReplaceChild is not supported; flags are always leaves of the region
func (f *Flags) ReplaceChild(old, replacement Element) error {
	return fmt.Errorf("flags %s does not support replacing %s", f.Name(), old.Name())
}

func (f *Flags) cloneElement() Element {
	n := &Flags{ElementBase: f.copyBase(), Size: f.Size, LittleEndian: f.LittleEndian}
	for _, fl := range f.flags {
		n.AddFlag(fl.cloneElement().(*Flag))
	}
	return n
}
