/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cracker_test.go
Description: Tests for the cracking engine: relations, choices, flags, arrays,
lookahead, tokens, events and analyzers.
*/

package cracker

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crackBytes(root dom.Element, data []byte, observers ...Observer) (*Cracker, error) {
	c := New(nil, observers...)
	return c, c.Crack(root, bitstream.New(data))
}

func sizeOf(from dom.Element, of string) *dom.Relation {
	r := dom.NewRelation(dom.RelationSize, of)
	from.Base().AddRelation(r)
	return r
}

func token(e dom.Element, value any) dom.Element {
	e.Base().IsToken = true
	e.Base().DefaultValue = value
	return e
}

func withLength(e dom.Element, n uint64, unit dom.LengthType) dom.Element {
	e.Base().SetLength(n, unit)
	return e
}

// TestLengthPrefixedPayload tests a size field followed by the payload it sizes
func TestLengthPrefixedPayload(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "payload")
	payload := dom.NewBlob("payload")
	root := dom.NewBlock("Packet", length, payload)

	c, err := crackBytes(root, []byte{0x05, 'H', 'e', 'l', 'l', 'o', 0xEE})
	require.NoError(t, err)

	assert.Equal(t, uint64(5), length.DefaultValue)
	assert.Equal(t, []byte("Hello"), payload.DefaultValue)

	span, ok := c.Span(payload)
	require.True(t, ok)
	assert.Equal(t, Span{Start: 8, Stop: 48}, span)
	assert.Equal(t, uint64(40), span.LengthBits())
}

// TestRelationExpression tests a size field adjusted by an expression
func TestRelationExpression(t *testing.T) {
	length := dom.NewNumber("len", 16, false)
	sizeOf(length, "body").ExpressionGet = "value - 2"
	body := dom.NewBlob("body")
	root := dom.NewBlock("Frame", length, body, dom.NewNumber("crc", 8, false))

	_, err := crackBytes(root, []byte{0x00, 0x05, 'a', 'b', 'c', 0x42})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), body.DefaultValue)
	assert.Equal(t, uint64(0x42), root.Child("crc").Base().DefaultValue)
}

// TestChoiceSkipsFailedToken tests that a token mismatch moves on to the next alternative
func TestChoiceSkipsFailedToken(t *testing.T) {
	choice := dom.NewChoice("c",
		token(dom.NewNumber("marker", 8, false), 0xFF),
		dom.NewBlob("raw"),
	)
	root := dom.NewBlock("Root", choice)

	_, err := crackBytes(root, []byte{0x10})
	require.NoError(t, err)

	require.NotNil(t, choice.Selected)
	assert.Equal(t, "raw", choice.Selected.Name())
	assert.Equal(t, []byte{0x10}, choice.Selected.Base().DefaultValue)
	assert.Equal(t, dom.Container(choice), choice.Selected.Parent())

	// templates stay untouched
	assert.Nil(t, choice.Alternatives()[1].Base().DefaultValue)
}

// TestChoiceDeterminism tests that the first matching alternative always wins
func TestChoiceDeterminism(t *testing.T) {
	for i := 0; i < 5; i++ {
		choice := dom.NewChoice("c",
			token(dom.NewNumber("first", 8, false), 0x01),
			dom.NewNumber("second", 8, false),
			dom.NewBlob("third"),
		)
		root := dom.NewBlock("Root", choice)

		_, err := crackBytes(root, []byte{0x02})
		require.NoError(t, err)
		assert.Equal(t, "second", choice.Selected.Name())
	}
}

// TestChoiceNoAlternative tests the failure when every alternative fails
func TestChoiceNoAlternative(t *testing.T) {
	choice := dom.NewChoice("c",
		token(dom.NewNumber("a", 8, false), 0x01),
		token(dom.NewNumber("b", 8, false), 0x02),
	)
	root := dom.NewBlock("Root", choice)

	_, err := crackBytes(root, []byte{0x03})
	require.Error(t, err)

	var failure *CrackingFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, NoAlternative, failure.Kind)
	assert.Equal(t, "Root.c", failure.Path)
	assert.Nil(t, choice.Selected)

	kind, ok := KindOf(failure.Err)
	require.True(t, ok)
	assert.Equal(t, TokenMismatch, kind)
}

// TestChoiceInsideSizedWindow tests alternatives cracked against a bounded window
func TestChoiceInsideSizedWindow(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "body")
	body := dom.NewChoice("body",
		token(dom.NewString("text"), "OK"),
		dom.NewBlob("other"),
	)
	root := dom.NewBlock("Root", length, body, dom.NewNumber("tail", 8, false))

	_, err := crackBytes(root, []byte{0x03, 'N', 'O', '!', 0x09})
	require.NoError(t, err)
	assert.Equal(t, "other", body.Selected.Name())
	assert.Equal(t, []byte("NO!"), body.Selected.Base().DefaultValue)
	assert.Equal(t, uint64(9), root.Child("tail").Base().DefaultValue)
}

// TestNullTerminatedUTF16 tests terminator scanning on two byte code units
func TestNullTerminatedUTF16(t *testing.T) {
	str := dom.NewString("greeting")
	str.Encoding = dom.EncodingUTF16
	str.NullTerminated = true
	root := dom.NewBlock("Root", str)

	data := bitstream.New([]byte{0x48, 0x00, 0x69, 0x00, 0x00, 0x00})
	err := New(nil).Crack(root, data)
	require.NoError(t, err)

	assert.Equal(t, "Hi", str.DefaultValue)
	assert.Equal(t, uint64(48), data.TellBits())
}

// TestNullTerminatedASCII tests single byte terminators and exhaustion
func TestNullTerminatedASCII(t *testing.T) {
	str := dom.NewString("name")
	str.NullTerminated = true
	root := dom.NewBlock("Root", str, dom.NewNumber("after", 8, false))

	_, err := crackBytes(root, []byte{'a', 'b', 0x00, 0x07})
	require.NoError(t, err)
	assert.Equal(t, "ab", str.DefaultValue)
	assert.Equal(t, uint64(7), root.Child("after").Base().DefaultValue)

	str = dom.NewString("name")
	str.NullTerminated = true
	_, err = crackBytes(dom.NewBlock("Root", str), []byte{'a', 'b'})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, InsufficientData, kind)
}

// TestTokenEnforcement tests that tokens never accept different bytes
func TestTokenEnforcement(t *testing.T) {
	cases := []struct {
		name string
		elem dom.Element
		data []byte
	}{
		{"string", token(dom.NewString("magic"), "PNG"), []byte("PNF")},
		{"blob", token(dom.NewBlob("magic"), []byte{0xCA, 0xFE}), []byte{0xCA, 0xFF}},
		{"number", token(dom.NewNumber("magic", 16, false), 0xCAFE), []byte{0xCA, 0xFD}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := crackBytes(dom.NewBlock("Root", tc.elem), tc.data)
			kind, ok := KindOf(err)
			require.True(t, ok, "expected cracking failure, got %v", err)
			assert.Equal(t, TokenMismatch, kind)
		})
	}

	magic := token(dom.NewString("magic"), "PNG")
	_, err := crackBytes(dom.NewBlock("Root", magic), []byte("PNG"))
	require.NoError(t, err)
	assert.Equal(t, "PNG", magic.Base().DefaultValue)
}

// TestNumberRoundTrip tests boundary values for every width, sign and byte order
func TestNumberRoundTrip(t *testing.T) {
	type bound struct {
		min int64
		max uint64
	}
	bounds := map[int]bound{
		8:  {math.MinInt8, math.MaxUint8},
		16: {math.MinInt16, math.MaxUint16},
		32: {math.MinInt32, math.MaxUint32},
		64: {math.MinInt64, math.MaxUint64},
	}

	for width, b := range bounds {
		for _, little := range []bool{false, true} {
			name := fmt.Sprintf("w%d_le%v", width, little)
			t.Run(name, func(t *testing.T) {
				maxSigned := int64(b.max >> 1)
				for _, v := range []int64{b.min, -1, 0, 1, maxSigned} {
					w := bitstream.NewWriter()
					if little {
						w.LittleEndian()
					}
					require.NoError(t, w.WriteInt(v, width))

					n := dom.NewNumber("n", width, true)
					n.LittleEndian = little
					_, err := crackBytes(dom.NewBlock("Root", n), w.Bytes())
					require.NoError(t, err)
					assert.Equal(t, v, n.DefaultValue)
				}

				for _, v := range []uint64{0, 1, b.max} {
					w := bitstream.NewWriter()
					if little {
						w.LittleEndian()
					}
					require.NoError(t, w.WriteUint(v, width))

					n := dom.NewNumber("n", width, false)
					n.LittleEndian = little
					_, err := crackBytes(dom.NewBlock("Root", n), w.Bytes())
					require.NoError(t, err)
					assert.Equal(t, v, n.DefaultValue)
				}
			})
		}
	}
}

// TestNumberUnsupportedWidth tests the malformed schema failure
func TestNumberUnsupportedWidth(t *testing.T) {
	_, err := crackBytes(dom.NewBlock("Root", dom.NewNumber("odd", 12, false)), []byte{0, 0})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, MalformedSchema, kind)
}

// TestInsufficientData tests the structured failure and its position
func TestInsufficientData(t *testing.T) {
	root := dom.NewBlock("Root", dom.NewNumber("a", 8, false), dom.NewNumber("b", 32, false))
	_, err := crackBytes(root, []byte{0x01, 0x02})
	require.Error(t, err)

	var failure *CrackingFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, InsufficientData, failure.Kind)
	assert.Equal(t, "Root.b", failure.Path)
	assert.Equal(t, uint64(8), failure.Position)
	assert.True(t, errors.Is(err, bitstream.ErrInsufficientData))
}

// TestSizedContainerConsumesWindow tests that a sized block always consumes its full window
func TestSizedContainerConsumesWindow(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "body")
	body := dom.NewBlock("body", dom.NewNumber("a", 8, false))
	trailer := dom.NewNumber("trailer", 8, false)
	root := dom.NewBlock("Root", length, body, trailer)

	c, err := crackBytes(root, []byte{0x04, 0x01, 0x02, 0x03, 0x04, 0x09})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), body.Child("a").Base().DefaultValue)
	assert.Equal(t, uint64(9), trailer.DefaultValue)

	span, ok := c.Span(body)
	require.True(t, ok)
	assert.Equal(t, uint64(32), span.LengthBits())
}

// TestSizedWindowBoundsChildren tests that children cannot read past their window
func TestSizedWindowBoundsChildren(t *testing.T) {
	body := withLength(dom.NewBlock("body", dom.NewNumber("wide", 32, false)), 2, dom.LengthBytes)
	root := dom.NewBlock("Root", body, dom.NewNumber("tail", 16, false))

	_, err := crackBytes(root, []byte{1, 2, 3, 4})
	var failure *CrackingFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, InsufficientData, failure.Kind)
	assert.Equal(t, "Root.body.wide", failure.Path)
}

// TestDeferredSizeInsideContainer tests a container sized by a field it contains
func TestDeferredSizeInsideContainer(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "chunk")
	data := dom.NewBlob("data")
	chunk := dom.NewBlock("chunk", length, data)
	tail := dom.NewNumber("tail", 8, false)
	root := dom.NewBlock("Root", chunk, tail)

	c, err := crackBytes(root, []byte{0x04, 'a', 'b', 'c', 0x07})
	require.NoError(t, err)

	assert.Equal(t, []byte("abc"), data.DefaultValue)
	assert.Equal(t, uint64(7), tail.DefaultValue)

	span, ok := c.Span(chunk)
	require.True(t, ok)
	assert.Equal(t, Span{Start: 0, Stop: 32}, span)
}

// TestDeferredSizeTooSmall tests a size smaller than what was already read
func TestDeferredSizeTooSmall(t *testing.T) {
	length := dom.NewNumber("len", 16, false)
	sizeOf(length, "chunk")
	chunk := dom.NewBlock("chunk", length, dom.NewBlob("data"))

	_, err := crackBytes(dom.NewBlock("Root", chunk), []byte{0x00, 0x01, 'x'})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, UnresolvedRelation, kind)
}

// TestOffsetRestoresPosition tests that sibling traversal resumes after a jump
func TestOffsetRestoresPosition(t *testing.T) {
	off := dom.NewNumber("off", 8, false)
	off.AddRelation(dom.NewRelation(dom.RelationOffset, "data"))
	next := dom.NewNumber("next", 8, false)
	data := withLength(dom.NewBlob("data"), 2, dom.LengthBytes)
	after := dom.NewNumber("after", 8, false)
	root := dom.NewBlock("Root", off, next, data, after)

	c, err := crackBytes(root, []byte{0x04, 0x11, 0x22, 0x33, 0xAA, 0xBB})
	require.NoError(t, err)

	assert.Equal(t, uint64(0x11), next.DefaultValue)
	assert.Equal(t, []byte{0xAA, 0xBB}, data.Base().DefaultValue)
	assert.Equal(t, uint64(0x22), after.DefaultValue)

	dataSpan, _ := c.Span(data)
	assert.Equal(t, Span{Start: 32, Stop: 48}, dataSpan)
	afterSpan, _ := c.Span(after)
	assert.Equal(t, uint64(16), afterSpan.Start)
}

// TestRelativeOffset tests offsets measured from a named anchor
func TestRelativeOffset(t *testing.T) {
	off := dom.NewNumber("off", 8, false)
	rel := dom.NewRelation(dom.RelationOffset, "data")
	rel.Relative = true
	rel.RelativeTo = "anchor"
	off.AddRelation(rel)
	anchor := dom.NewNumber("anchor", 8, false)
	data := dom.NewNumber("data", 8, false)
	root := dom.NewBlock("Root", off, anchor, data)

	_, err := crackBytes(root, []byte{0x03, 0x00, 0x01, 0x02, 0x7F})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7F), data.DefaultValue)
}

// TestOffsetBeforeField tests that an offset target reached first is a hard failure
func TestOffsetBeforeField(t *testing.T) {
	data := dom.NewNumber("data", 8, false)
	off := dom.NewNumber("off", 8, false)
	off.AddRelation(dom.NewRelation(dom.RelationOffset, "data"))
	root := dom.NewBlock("Root", data, off)

	_, err := crackBytes(root, []byte{0x01, 0x00})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, UnresolvedRelation, kind)
}

// TestFlagsBitIndependence tests that each flag reads only its own bits
func TestFlagsBitIndependence(t *testing.T) {
	build := func(little bool) (*dom.Flags, *dom.Number) {
		flags := dom.NewFlags("flags", 16,
			dom.NewFlag("a", 12, 4),
			dom.NewFlag("b", 0, 3),
			dom.NewFlag("c", 3, 9),
		)
		flags.LittleEndian = little
		return flags, dom.NewNumber("after", 8, false)
	}

	// b=101 c=011001100 a=1111
	flags, after := build(false)
	_, err := crackBytes(dom.NewBlock("Root", flags, after), []byte{0xAC, 0xCF, 0x55})
	require.NoError(t, err)

	values := map[string]any{}
	for _, f := range flags.Flags() {
		values[f.Name()] = f.DefaultValue
	}
	assert.Equal(t, map[string]any{"a": uint64(15), "b": uint64(5), "c": uint64(204)}, values)
	assert.Equal(t, uint64(0x55), after.DefaultValue)

	flags, after = build(true)
	_, err = crackBytes(dom.NewBlock("Root", flags, after), []byte{0xCF, 0xAC, 0x55})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), flags.Flags()[1].DefaultValue)
	assert.Equal(t, uint64(0x55), after.DefaultValue)
}

// TestFlagsInsufficientData tests the up front width check
func TestFlagsInsufficientData(t *testing.T) {
	flags := dom.NewFlags("flags", 16, dom.NewFlag("a", 0, 1))
	_, err := crackBytes(dom.NewBlock("Root", flags), []byte{0xFF})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, InsufficientData, kind)
}

// TestArrayCountRelation tests an array sized by a count field
func TestArrayCountRelation(t *testing.T) {
	n := dom.NewNumber("n", 8, false)
	n.AddRelation(dom.NewRelation(dom.RelationCount, "items"))
	items := dom.NewArray("items", dom.NewNumber("item", 8, false), 0, dom.Unbounded)
	tail := dom.NewNumber("tail", 8, false)
	root := dom.NewBlock("Root", n, items, tail)

	_, err := crackBytes(root, []byte{0x02, 10, 20, 30})
	require.NoError(t, err)

	require.Len(t, items.Items, 2)
	assert.Equal(t, "items_0", items.Items[0].Name())
	assert.Equal(t, uint64(20), items.Items[1].Base().DefaultValue)
	assert.Equal(t, uint64(30), tail.DefaultValue)
	assert.Nil(t, items.Template.Base().DefaultValue)
}

// TestArrayStopsAtToken tests repetition ending where the following token begins
func TestArrayStopsAtToken(t *testing.T) {
	items := dom.NewArray("items", dom.NewNumber("item", 8, false), 0, dom.Unbounded)
	end := token(dom.NewNumber("end", 8, false), 0xFF)
	root := dom.NewBlock("Root", items, end)

	_, err := crackBytes(root, []byte{1, 2, 3, 0xFF})
	require.NoError(t, err)
	assert.Len(t, items.Items, 3)
}

// TestArrayOccurs tests max_occurs capping and min_occurs enforcement
func TestArrayOccurs(t *testing.T) {
	items := dom.NewArray("items", dom.NewNumber("item", 8, false), 0, 2)
	rest := dom.NewBlob("rest")
	_, err := crackBytes(dom.NewBlock("Root", items, rest), []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Len(t, items.Items, 2)
	assert.Equal(t, []byte{3, 4}, rest.DefaultValue)

	items = dom.NewArray("items", dom.NewNumber("item", 16, false), 3, dom.Unbounded)
	_, err = crackBytes(dom.NewBlock("Root", items), []byte{0, 1, 0, 2, 9})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, OccursUnmet, kind)
}

// TestArrayOfSizedRecords tests items carrying their own size relations
func TestArrayOfSizedRecords(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "value")
	record := dom.NewBlock("record", length, dom.NewString("value"))
	items := dom.NewArray("records", record, 1, dom.Unbounded)

	_, err := crackBytes(dom.NewBlock("Root", items), []byte{2, 'h', 'i', 3, 'y', 'o', 'u'})
	require.NoError(t, err)
	require.Len(t, items.Items, 2)

	second := items.Items[1].(*dom.Block)
	assert.Equal(t, "you", second.Child("value").Base().DefaultValue)
}

// TestTokenLookahead tests sizing a blob by the distance to the next token
func TestTokenLookahead(t *testing.T) {
	key := dom.NewBlob("key")
	sep := token(dom.NewString("sep"), "=")
	value := dom.NewBlob("value")
	_, err := crackBytes(dom.NewBlock("Root", key, sep, value), []byte("ab=cd"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), key.DefaultValue)
	assert.Equal(t, []byte("cd"), value.DefaultValue)

	key = dom.NewBlob("key")
	mid := dom.NewNumber("mid", 8, false)
	sep = token(dom.NewString("sep"), "=")
	value = dom.NewBlob("value")
	_, err = crackBytes(dom.NewBlock("Root", key, mid, sep, value), []byte("ab\x07=cd"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), key.DefaultValue)
	assert.Equal(t, uint64(7), mid.DefaultValue)
}

// TestLastUnsizedElement tests sizing by elimination across parent boundaries
func TestLastUnsizedElement(t *testing.T) {
	body := dom.NewBlob("body")
	inner := dom.NewBlock("inner", dom.NewNumber("x", 8, false), body)
	root := dom.NewBlock("Root", inner, dom.NewNumber("crc", 16, false))

	_, err := crackBytes(root, []byte{1, 'a', 'b', 'c', 0xBE, 0xEF})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), body.DefaultValue)
	assert.Equal(t, uint64(0xBEEF), root.Child("crc").Base().DefaultValue)
}

// TestUndeterminableLength tests two adjacent unsized blobs
func TestUndeterminableLength(t *testing.T) {
	_, err := crackBytes(dom.NewBlock("Root", dom.NewBlob("a"), dom.NewBlob("b")), []byte{1, 2})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, UndeterminableLength, kind)
}

// TestStringLengthUnits tests character and bit lengths
func TestStringLengthUnits(t *testing.T) {
	wide := withLength(dom.NewString("wide"), 2, dom.LengthChars).(*dom.String)
	wide.Encoding = dom.EncodingUTF16BE
	utf := withLength(dom.NewString("utf"), 2, dom.LengthChars).(*dom.String)
	utf.Encoding = dom.EncodingUTF8
	bits := withLength(dom.NewBlob("bits"), 16, dom.LengthBits)

	data := append([]byte{0x00, 'o', 0x00, 'k'}, []byte("é!")...)
	data = append(data, 0x01, 0x02)
	_, err := crackBytes(dom.NewBlock("Root", wide, utf, bits), data)
	require.NoError(t, err)

	assert.Equal(t, "ok", wide.DefaultValue)
	assert.Equal(t, "é!", utf.DefaultValue)
	assert.Equal(t, []byte{0x01, 0x02}, bits.Base().DefaultValue)
}

// TestEventNesting tests enter, exit and exception ordering
func TestEventNesting(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "payload")
	root := dom.NewBlock("Packet", length, dom.NewBlob("payload"))

	rec := NewRecordingObserver()
	_, err := crackBytes(root, []byte{0x01, 'x'}, rec)
	require.NoError(t, err)

	var got []string
	for _, ev := range rec.Events() {
		got = append(got, fmt.Sprintf("%s %s %d", ev.Type, ev.Path, ev.Position))
	}
	assert.Equal(t, []string{
		"enter Packet 0",
		"enter Packet.len 0",
		"exit Packet.len 8",
		"enter Packet.payload 8",
		"exit Packet.payload 16",
		"exit Packet 16",
	}, got)

	rec.Reset()
	root = dom.NewBlock("Root", dom.NewNumber("a", 8, false), dom.NewNumber("b", 32, false))
	_, err = crackBytes(root, []byte{1, 2}, rec)
	require.Error(t, err)

	var types []EventType
	for _, ev := range rec.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventEnter, EventEnter, EventExit, EventEnter, EventException, EventException}, types)
}

type halvesAnalyzer struct {
	fail bool
}

func (h halvesAnalyzer) Name() string { return "halves" }

func (h halvesAnalyzer) Analyze(leaf dom.Element, raw []byte) (dom.Element, error) {
	if h.fail {
		return nil, errors.New("cannot split")
	}
	mid := len(raw) / 2
	left := dom.NewBlob("left")
	left.DefaultValue = raw[:mid]
	right := dom.NewBlob("right")
	right.DefaultValue = raw[mid:]
	return dom.NewBlock(leaf.Name(), left, right), nil
}

// TestAnalyzerReplacesLeaf tests splicing an analyzer result into the tree
func TestAnalyzerReplacesLeaf(t *testing.T) {
	body := withLength(dom.NewBlob("body"), 4, dom.LengthBytes)
	body.Base().Analyzer = halvesAnalyzer{}
	root := dom.NewBlock("Root", body)

	rec := NewRecordingObserver()
	c, err := crackBytes(root, []byte("abcd"), rec)
	require.NoError(t, err)

	replaced, ok := root.Child("body").(*dom.Block)
	require.True(t, ok)
	assert.Equal(t, []byte("ab"), replaced.Child("left").Base().DefaultValue)
	assert.Equal(t, []byte("cd"), replaced.Child("right").Base().DefaultValue)

	span, ok := c.Span(replaced)
	require.True(t, ok)
	assert.Equal(t, uint64(32), span.LengthBits())

	var types []EventType
	for _, ev := range rec.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventEnter, EventEnter, EventExit, EventAnalyzer, EventExit}, types)

	failing := withLength(dom.NewBlob("body"), 4, dom.LengthBytes)
	failing.Base().Analyzer = halvesAnalyzer{fail: true}
	_, err = crackBytes(dom.NewBlock("Root", failing), []byte("abcd"))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, AnalyzerFailed, kind)
}

// TestRecrackOverwritesValues tests cracking the same tree twice
func TestRecrackOverwritesValues(t *testing.T) {
	choice := dom.NewChoice("c",
		token(dom.NewNumber("one", 8, false), 1),
		token(dom.NewNumber("two", 8, false), 2),
	)
	items := dom.NewArray("items", dom.NewNumber("item", 8, false), 0, dom.Unbounded)
	root := dom.NewBlock("Root", choice, items)
	c := New(nil)

	require.NoError(t, c.Crack(root, bitstream.New([]byte{1, 9, 9, 9})))
	assert.Equal(t, "one", choice.Selected.Name())
	assert.Len(t, items.Items, 3)

	require.NoError(t, c.Crack(root, bitstream.New([]byte{2, 9})))
	assert.Equal(t, "two", choice.Selected.Name())
	assert.Len(t, items.Items, 1)
}

// TestFailureMessage tests the formatted error text
func TestFailureMessage(t *testing.T) {
	f := &CrackingFailure{Kind: TokenMismatch, Path: "Root.magic", Position: 8, Message: "read 1, expected 2"}
	assert.Equal(t, "token_mismatch at Root.magic (bit 8): read 1, expected 2", f.Error())
	assert.Equal(t, "analyzer_failed", AnalyzerFailed.String())

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

// TestArraySizedByRelation tests an array bounded by a size field
func TestArraySizedByRelation(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "items")
	items := dom.NewArray("items", dom.NewNumber("item", 8, false), 0, dom.Unbounded)
	trailer := dom.NewNumber("trailer", 8, false)
	root := dom.NewBlock("Root", length, items, trailer)

	c, err := crackBytes(root, []byte{0x02, 0x01, 0x02, 0x03})
	require.NoError(t, err)

	require.Len(t, items.Items, 2)
	assert.Equal(t, uint64(2), items.Items[1].Base().DefaultValue)
	assert.Equal(t, uint64(3), trailer.DefaultValue)

	span, ok := c.Span(items)
	require.True(t, ok)
	assert.Equal(t, Span{Start: 8, Stop: 24}, span)
}

// TestArrayExplicitLength tests an array bounded by its declared length
func TestArrayExplicitLength(t *testing.T) {
	items := dom.NewArray("items", dom.NewNumber("item", 8, false), 0, dom.Unbounded)
	items.SetLength(2, dom.LengthBytes)
	trailer := dom.NewNumber("trailer", 8, false)
	root := dom.NewBlock("Root", items, trailer)

	_, err := crackBytes(root, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Len(t, items.Items, 2)
	assert.Equal(t, uint64(3), trailer.DefaultValue)
}

// TestArrayWindowSkipsPartialItem tests that the parent resumes after the
// window when the last item does not fit
func TestArrayWindowSkipsPartialItem(t *testing.T) {
	length := dom.NewNumber("len", 8, false)
	sizeOf(length, "items")
	items := dom.NewArray("items", dom.NewNumber("item", 16, false), 0, dom.Unbounded)
	trailer := dom.NewNumber("trailer", 8, false)
	root := dom.NewBlock("Root", length, items, trailer)

	_, err := crackBytes(root, []byte{0x03, 0x00, 0x01, 0x02, 0x09})
	require.NoError(t, err)
	require.Len(t, items.Items, 1)
	assert.Equal(t, uint64(1), items.Items[0].Base().DefaultValue)
	assert.Equal(t, uint64(9), trailer.DefaultValue)

	// a window larger than the input fails up front
	length = dom.NewNumber("len", 8, false)
	sizeOf(length, "items")
	items = dom.NewArray("items", dom.NewNumber("item", 16, false), 0, dom.Unbounded)
	_, err = crackBytes(dom.NewBlock("Root", length, items), []byte{0x08, 0x00})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, InsufficientData, kind)
}

// TestRelationValuesOutOfRange tests size, offset and length values too large
// to address in bits
func TestRelationValuesOutOfRange(t *testing.T) {
	length := dom.NewNumber("len", 64, false)
	sizeOf(length, "payload")
	payload := dom.NewBlob("payload")
	_, err := crackBytes(dom.NewBlock("Root", length, payload),
		[]byte{0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 'A'})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, InsufficientData, kind)

	off := dom.NewNumber("off", 64, false)
	off.AddRelation(dom.NewRelation(dom.RelationOffset, "target"))
	target := dom.NewNumber("target", 8, false)
	_, err = crackBytes(dom.NewBlock("Root", off, target),
		[]byte{0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05})
	kind, ok = KindOf(err)
	require.True(t, ok)
	assert.Equal(t, UnresolvedRelation, kind)

	huge := withLength(dom.NewBlob("huge"), math.MaxUint64/4, dom.LengthBytes)
	_, err = crackBytes(dom.NewBlock("Root", huge), []byte{0x01})
	kind, ok = KindOf(err)
	require.True(t, ok)
	assert.Equal(t, MalformedSchema, kind)
	assert.ErrorIs(t, err, errLengthOverflow)

	// the largest addressable size still reports missing data
	edge := dom.NewNumber("len", 64, false)
	sizeOf(edge, "payload")
	_, err = crackBytes(dom.NewBlock("Root", edge, dom.NewBlob("payload")),
		[]byte{0x0F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 'A'})
	kind, ok = KindOf(err)
	require.True(t, ok)
	assert.Equal(t, InsufficientData, kind)
}

// nestedAnalyzer cracks the leaf's bytes with the same Cracker that is
// running the outer pass
type nestedAnalyzer struct {
	c *Cracker
}

func (a nestedAnalyzer) Name() string { return "Nested" }

func (a nestedAnalyzer) Analyze(leaf dom.Element, raw []byte) (dom.Element, error) {
	inner := dom.NewBlock(leaf.Name(), dom.NewNumber("kind", 8, false), dom.NewBlob("rest"))
	if err := a.c.Crack(inner, bitstream.New(raw)); err != nil {
		return nil, err
	}
	return inner, nil
}

// TestAnalyzerCracksReentrantly tests an analyzer that runs a nested crack
func TestAnalyzerCracksReentrantly(t *testing.T) {
	body := withLength(dom.NewBlob("body"), 3, dom.LengthBytes)
	tail := dom.NewNumber("tail", 8, false)
	root := dom.NewBlock("Root", body, tail)

	c := New(nil)
	body.Base().Analyzer = nestedAnalyzer{c: c}
	require.NoError(t, c.Crack(root, bitstream.New([]byte{0x01, 'x', 'y', 0x04})))

	replaced, ok := root.Child("body").(*dom.Block)
	require.True(t, ok)
	assert.Equal(t, uint64(1), replaced.Child("kind").Base().DefaultValue)
	assert.Equal(t, []byte("xy"), replaced.Child("rest").Base().DefaultValue)
	assert.Equal(t, uint64(4), tail.DefaultValue)

	span, ok := c.Span(tail)
	require.True(t, ok)
	assert.Equal(t, Span{Start: 24, Stop: 32}, span)
	span, ok = c.Span(replaced)
	require.True(t, ok)
	assert.Equal(t, Span{Start: 0, Stop: 24}, span)
}

// TestChoiceSizedFromAlternative tests a size field inside the selected
// alternative that sizes the whole choice
func TestChoiceSizedFromAlternative(t *testing.T) {
	build := func() (*dom.Block, *dom.Choice, *dom.Number) {
		length := dom.NewNumber("len", 8, false)
		sizeOf(length, "body")
		record := dom.NewBlock("record", length, dom.NewNumber("kind", 8, false))
		body := dom.NewChoice("body", record)
		trailer := dom.NewNumber("trailer", 8, false)
		return dom.NewBlock("Root", body, trailer), body, trailer
	}

	root, body, trailer := build()
	c, err := crackBytes(root, []byte{0x03, 0x07, 0xFF, 0x09})
	require.NoError(t, err)
	require.NotNil(t, body.Selected)
	assert.Equal(t, uint64(7), body.Selected.(*dom.Block).Child("kind").Base().DefaultValue)
	assert.Equal(t, uint64(9), trailer.DefaultValue)
	span, _ := c.Span(body)
	assert.Equal(t, Span{Start: 0, Stop: 24}, span)

	// a size smaller than the alternative rejects it
	root, _, _ = build()
	_, err = crackBytes(root, []byte{0x01, 0x07, 0x09})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, NoAlternative, kind)
}

// TestFlagOutsideRegion tests that a flag past its region is a schema defect
func TestFlagOutsideRegion(t *testing.T) {
	for _, flag := range []*dom.Flag{dom.NewFlag("late", 9, 1), dom.NewFlag("wide", 6, 4)} {
		flags := dom.NewFlags("flags", 8, flag)
		_, err := crackBytes(dom.NewBlock("Root", flags), []byte{0xFF, 0xFF})
		require.Error(t, err)

		var failure *CrackingFailure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, MalformedSchema, failure.Kind, flag.Name())
		assert.Equal(t, "Root.flags."+flag.Name(), failure.Path)
	}
}

// TestLoggingObserver tests that node events reach the logger at trace level
// and failures at debug
func TestLoggingObserver(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	root := dom.NewBlock("Root", dom.NewNumber("a", 8, false))
	_, err := crackBytes(root, []byte{0x01}, NewLoggingObserver(logger))
	require.NoError(t, err)

	entries := hook.AllEntries()
	require.NotEmpty(t, entries)
	assert.Equal(t, logrus.TraceLevel, entries[0].Level)
	assert.Equal(t, "Entering element", entries[0].Message)
	assert.Equal(t, "Root", entries[0].Data["element"])
	assert.Equal(t, "Cracked element", hook.LastEntry().Message)

	hook.Reset()
	_, err = crackBytes(dom.NewBlock("Root", dom.NewNumber("a", 16, false)), []byte{0x01}, NewLoggingObserver(logger))
	require.Error(t, err)

	var failed bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.DebugLevel && entry.Message == "Element failed to crack" {
			failed = true
		}
	}
	assert.True(t, failed)
}
