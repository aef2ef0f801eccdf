/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dom_test.go
Description: Tests for tree construction, name resolution, cloning, relation
expressions and string encodings.
*/

package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Block {
	length := NewNumber("length", 8, false)
	length.AddRelation(NewRelation(RelationSize, "payload"))

	header := NewBlock("header", NewNumber("magic", 16, false), length)
	body := NewBlock("body", NewBlob("payload"), NewString("trailer"))
	return NewBlock("Packet", header, body)
}

// TestFindResolvesFromAncestors tests scoped and fallback name lookup
func TestFindResolvesFromAncestors(t *testing.T) {
	root := sampleTree()
	header := root.Child("header").(*Block)
	length := header.Child("length")

	payload := Find(length, "payload")
	require.NotNil(t, payload)
	assert.Equal(t, "Packet.body.payload", FullName(payload))

	assert.Equal(t, "Packet.header.magic", FullName(Find(length, "magic")))
	assert.Equal(t, "Packet.body.trailer", FullName(Find(length, "body.trailer")))
	assert.Equal(t, "Packet.body.trailer", FullName(Find(length, "Packet.body.trailer")))
	assert.Equal(t, root, Find(length, "Packet"))
	assert.Nil(t, Find(length, "missing"))
	assert.Nil(t, Find(length, "body.missing"))
}

// TestSiblingsAndAncestry tests NextSibling and IsAncestor
func TestSiblingsAndAncestry(t *testing.T) {
	root := sampleTree()
	header := root.Child("header").(*Block)
	magic := header.Child("magic")

	assert.Equal(t, header.Child("length"), NextSibling(magic))
	assert.Nil(t, NextSibling(header.Child("length")))
	assert.Equal(t, root.Child("body"), NextSibling(header))
	assert.True(t, IsAncestor(root, magic))
	assert.True(t, IsAncestor(header, magic))
	assert.False(t, IsAncestor(magic, header))

	choice := NewChoice("c", NewBlob("a"), NewBlob("b"))
	assert.Nil(t, NextSibling(choice.Alternatives()[0]))
}

// TestCloneIsDeep tests that clones share no mutable state with the original
func TestCloneIsDeep(t *testing.T) {
	root := sampleTree()
	blob := Find(root.Child("body"), "payload")
	blob.Base().DefaultValue = []byte{1, 2, 3}

	clone := Clone(root).(*Block)
	assert.Nil(t, clone.Parent())
	assert.Equal(t, "Packet", clone.Name())

	cloneBlob := Find(clone.Child("body"), "payload")
	require.NotNil(t, cloneBlob)
	assert.NotSame(t, blob, cloneBlob)
	assert.Equal(t, []byte{1, 2, 3}, cloneBlob.Base().DefaultValue)

	cloneBlob.Base().DefaultValue.([]byte)[0] = 9
	assert.Equal(t, byte(1), blob.Base().DefaultValue.([]byte)[0])

	length := Find(clone.Child("header"), "length")
	require.Len(t, length.Base().Relations, 1)
	orig := Find(root.Child("header"), "length")
	assert.NotSame(t, orig.Base().Relations[0], length.Base().Relations[0])
	assert.Equal(t, clone, Root(length))
}

// TestReplaceChild tests in-place replacement for each container kind
func TestReplaceChild(t *testing.T) {
	root := sampleTree()
	body := root.Child("body").(*Block)
	old := body.Child("trailer")
	repl := NewBlock("trailer")

	require.NoError(t, body.ReplaceChild(old, repl))
	assert.Equal(t, repl, body.Child("trailer"))
	assert.Equal(t, Container(body), repl.Parent())
	assert.Error(t, body.ReplaceChild(old, repl))

	choice := NewChoice("c", NewBlob("a"))
	sel := NewBlob("a")
	choice.Selected = sel
	require.NoError(t, choice.ReplaceChild(sel, NewString("a")))
	assert.IsType(t, &String{}, choice.Selected)

	flags := NewFlags("f", 8, NewFlag("x", 0, 1))
	assert.Error(t, flags.ReplaceChild(flags.Flags()[0], NewBlob("x")))
}

// TestRelationExpressions tests HCL value transforms on relations
func TestRelationExpressions(t *testing.T) {
	r := NewRelation(RelationSize, "payload")
	v, err := r.Apply(10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	r.ExpressionGet = "size - 4"
	v, err = r.Apply(10)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	r = NewRelation(RelationCount, "items")
	r.ExpressionGet = "max(value * 2, 3)"
	v, err = r.Apply(1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	r = NewRelation(RelationOffset, "data")
	r.ExpressionGet = "value / 3"
	v, err = r.Apply(10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	bad := NewRelation(RelationSize, "x")
	bad.ExpressionGet = "value +"
	assert.Error(t, bad.Compile())

	str := NewRelation(RelationSize, "x")
	str.ExpressionGet = `"text"`
	_, err = str.Apply(1)
	assert.Error(t, err)
}

// TestStringCodecs tests UTF-16 encode/decode in both byte orders
func TestStringCodecs(t *testing.T) {
	s := NewString("s")
	s.Encoding = EncodingUTF16
	raw, err := s.Encode("Hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x48, 0x00, 0x69, 0x00}, raw)

	text, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Hi", text)

	s.Encoding = EncodingUTF16BE
	raw, err = s.Encode("Hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x48, 0x00, 0x69}, raw)
}

// TestValuesEqual tests token comparison across representations
func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(uint64(255), 255))
	assert.True(t, ValuesEqual(int64(-1), -1))
	assert.False(t, ValuesEqual(uint64(16), 255))
	assert.True(t, ValuesEqual([]byte("ab"), "ab"))
	assert.True(t, ValuesEqual("ab", []byte("ab")))
	assert.False(t, ValuesEqual("ab", "abc"))
	assert.False(t, ValuesEqual([]byte{1}, 1))
}

// TestNumberEncode tests token byte patterns for numbers
func TestNumberEncode(t *testing.T) {
	n := NewNumber("n", 16, false)
	raw, err := n.Encode(0x1234)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, raw)

	n.LittleEndian = true
	raw, err = n.Encode(0x1234)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12}, raw)

	n.Size = 12
	_, err = n.Encode(1)
	assert.Error(t, err)
}
