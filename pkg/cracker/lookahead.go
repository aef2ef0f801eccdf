/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lookahead.go
Description: Size-by-elimination for variable length leaves. Computes statically known
lengths, finds the last unsized element of a window and measures the distance to the
next token by scanning for its byte pattern.
*/

package cracker

import (
	"bytes"
	"errors"
	"math"

	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
	"github.com/sirupsen/logrus"
)

// knownLength returns the bits e will occupy in the current window when that
// can be decided before cracking it
func (p *pass) knownLength(e dom.Element) (uint64, bool) {
	if p.hasOffset(e) {
		// cracked elsewhere, occupies nothing here
		return 0, true
	}

	if bits, ok, _, err := p.resolveSize(e, 0); err == nil && ok {
		return bits, true
	}

	base := e.Base()
	if base.HasLength {
		bits, ok, err := explicitBits(e)
		return bits, ok && err == nil
	}

	switch v := e.(type) {
	case *dom.Number:
		if bitstream.ValidWidth(v.Size) {
			return uint64(v.Size), true
		}
	case *dom.Flags:
		return uint64(v.Size), true
	case *dom.Flag:
		return uint64(v.Size), true
	case *dom.String, *dom.Blob:
		if raw, ok := tokenBytes(e); ok {
			return uint64(len(raw)) * 8, true
		}
	case *dom.Block:
		var total uint64
		for _, child := range v.Children() {
			n, ok := p.knownLength(child)
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	case *dom.Choice:
		var first uint64
		for i, alt := range v.Alternatives() {
			n, ok := p.knownLength(alt)
			if !ok || (i > 0 && n != first) {
				return 0, false
			}
			first = n
		}
		return first, len(v.Alternatives()) > 0
	case *dom.Array:
		n, ok := p.knownLength(v.Template)
		if !ok {
			return 0, false
		}
		if count, ok, err := p.resolveCount(v, 0); err == nil && ok {
			return scaleBits(uint64(count), n)
		}
		if v.MinOccurs == v.MaxOccurs && v.MinOccurs >= 0 {
			return scaleBits(uint64(v.MinOccurs), n)
		}
	}
	return 0, false
}

// errLengthOverflow marks a declared length too large to address in bits
var errLengthOverflow = errors.New("length overflows the addressable bit range")

// scaleBits multiplies n by factor; false when the product is not addressable
func scaleBits(n, factor uint64) (uint64, bool) {
	if factor != 0 && n > math.MaxInt64/factor {
		return 0, false
	}
	return n * factor, true
}

// explicitBits converts a declared length into bits. ok is false when the
// unit cannot be converted for e.
func explicitBits(e dom.Element) (bits uint64, ok bool, err error) {
	base := e.Base()
	factor := uint64(8)
	switch base.LengthType {
	case dom.LengthBits:
		factor = 1
	case dom.LengthChars:
		if s, isString := e.(*dom.String); isString {
			w := s.Encoding.CharWidth()
			if w <= 0 {
				return 0, false, nil
			}
			factor = uint64(w) * 8
		}
	}
	bits, fits := scaleBits(base.Length, factor)
	if !fits {
		return 0, false, errLengthOverflow
	}
	return bits, true, nil
}

// tokenBytes returns the exact bytes a token leaf must match
func tokenBytes(e dom.Element) ([]byte, bool) {
	base := e.Base()
	if !base.IsToken || base.DefaultValue == nil {
		return nil, false
	}
	switch v := e.(type) {
	case *dom.String:
		var text string
		switch d := base.DefaultValue.(type) {
		case string:
			text = d
		case []byte:
			text = string(d)
		default:
			return nil, false
		}
		raw, err := v.Encode(text)
		if err != nil {
			return nil, false
		}
		return raw, true
	case *dom.Blob:
		switch d := base.DefaultValue.(type) {
		case []byte:
			return d, true
		case string:
			return []byte(d), true
		}
	case *dom.Number:
		raw, err := v.Encode(base.DefaultValue)
		if err != nil {
			return nil, false
		}
		return raw, true
	}
	return nil, false
}

// followers lists the elements after e that share its window, in stream
// order. complete is false when the walk crossed an array, whose remaining
// items cannot be listed.
func (p *pass) followers(e dom.Element) (out []dom.Element, complete bool) {
	cur := e
	for {
		if p.jumps[cur] || p.isSized(cur) {
			return out, true
		}
		parent := cur.Parent()
		if parent == nil {
			return out, true
		}
		if _, ok := parent.(*dom.Array); ok {
			return out, false
		}
		children := parent.Children()
		for i, c := range children {
			if c == cur {
				out = append(out, children[i+1:]...)
				break
			}
		}
		cur = parent
	}
}

// lastUnsized sizes e as the remainder of its window when every element
// after it has a known length
func (p *pass) lastUnsized(e dom.Element, s *bitstream.BitStream) (uint64, bool) {
	after, complete := p.followers(e)
	if !complete {
		return 0, false
	}
	var known uint64
	for _, f := range after {
		n, ok := p.knownLength(f)
		if !ok {
			return 0, false
		}
		known += n
	}
	remaining := s.RemainingBits()
	if known > remaining {
		return 0, false
	}
	p.log.WithFields(logrus.Fields{
		"element":   dom.FullName(e),
		"remaining": remaining,
		"following": known,
	}).Trace("Sized as last unsized element")
	return remaining - known, true
}

// tokenAhead measures the distance from the cursor to the next token's byte
// pattern, after skipping the known lengths of elements in between
func (p *pass) tokenAhead(e dom.Element, s *bitstream.BitStream) (uint64, bool) {
	after, _ := p.followers(e)
	pattern, skip, found := p.nextToken(after, 0)
	if !found || skip%8 != 0 || len(pattern) == 0 {
		return 0, false
	}

	window := s.Clone()
	data, err := window.ReadBytes(window.RemainingBits() / 8)
	if err != nil {
		return 0, false
	}
	offset := skip / 8
	if offset > uint64(len(data)) {
		return 0, false
	}
	idx := bytes.Index(data[offset:], pattern)
	if idx < 0 {
		return 0, false
	}

	p.log.WithFields(logrus.Fields{
		"element": dom.FullName(e),
		"bytes":   idx,
	}).Trace("Sized by token lookahead")
	return uint64(idx) * 8, true
}

// nextToken walks elems for the first token leaf, descending into blocks
// whose length is unknown. It fails at any other element of unknown length.
func (p *pass) nextToken(elems []dom.Element, skip uint64) ([]byte, uint64, bool) {
	for _, el := range elems {
		if raw, ok := tokenBytes(el); ok && !p.hasOffset(el) {
			return raw, skip, true
		}
		if n, ok := p.knownLength(el); ok {
			skip += n
			continue
		}
		block, ok := el.(*dom.Block)
		if !ok {
			return nil, 0, false
		}
		raw, at, found := p.nextToken(block.Children(), skip)
		return raw, at, found
	}
	return nil, 0, false
}

// tokenNext reports whether the token following e appears at the cursor
func (p *pass) tokenNext(e dom.Element, s *bitstream.BitStream) bool {
	after, _ := p.followers(e)
	for _, el := range after {
		if p.hasOffset(el) {
			continue
		}
		raw, ok := tokenBytes(el)
		if !ok {
			return false
		}
		peek, err := s.PeekBytes(uint64(len(raw)))
		return err == nil && bytes.Equal(peek, raw)
	}
	return false
}
