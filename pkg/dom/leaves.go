/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: leaves.go
Description: Leaf element variants: String with character encodings, fixed width
Number, opaque Blob and single Flag bit fields. Includes the encoders used to turn a
declared token value into the bytes it must match.
*/

package dom

import (
	"fmt"

	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// StringEncoding is the character encoding of a String
type StringEncoding int

const (
	EncodingASCII StringEncoding = iota
	EncodingUTF8
	EncodingUTF16
	EncodingUTF16BE
)

// String returns the schema spelling of the encoding
func (e StringEncoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf8"
	case EncodingUTF16:
		return "utf16"
	case EncodingUTF16BE:
		return "utf16be"
	default:
		return "ascii"
	}
}

// ParseStringEncoding parses a schema encoding name
func ParseStringEncoding(s string) (StringEncoding, error) {
	switch s {
	case "", "ascii":
		return EncodingASCII, nil
	case "utf8", "utf-8":
		return EncodingUTF8, nil
	case "utf16", "utf-16", "utf16le":
		return EncodingUTF16, nil
	case "utf16be", "utf-16be":
		return EncodingUTF16BE, nil
	}
	return EncodingASCII, fmt.Errorf("unknown string encoding: %s", s)
}

// IsWide reports whether the encoding uses two byte code units
func (e StringEncoding) IsWide() bool {
	return e == EncodingUTF16 || e == EncodingUTF16BE
}

// CharWidth returns the fixed bytes per character, 0 when variable
func (e StringEncoding) CharWidth() int {
	switch e {
	case EncodingASCII:
		return 1
	case EncodingUTF16, EncodingUTF16BE:
		return 2
	}
	return 0
}

func (e StringEncoding) codec() encoding.Encoding {
	switch e {
	case EncodingUTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	return nil
}

// String is a text leaf
type String struct {
	ElementBase
	Encoding       StringEncoding
	NullTerminated bool
}

// NewString creates an ascii string leaf
func NewString(name string) *String {
	return &String{ElementBase: ElementBase{name: name}}
}

// Decode converts raw bytes to text in the element's encoding
func (s *String) Decode(raw []byte) (string, error) {
	codec := s.Encoding.codec()
	if codec == nil {
		return string(raw), nil
	}
	out, err := codec.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s string: %w", s.Encoding, err)
	}
	return string(out), nil
}

// Encode converts text to bytes in the element's encoding
func (s *String) Encode(text string) ([]byte, error) {
	codec := s.Encoding.codec()
	if codec == nil {
		return []byte(text), nil
	}
	out, err := codec.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s string: %w", s.Encoding, err)
	}
	return out, nil
}

func (s *String) cloneElement() Element {
	return &String{ElementBase: s.copyBase(), Encoding: s.Encoding, NullTerminated: s.NullTerminated}
}

// Number is a fixed width integer leaf
type Number struct {
	ElementBase
	Size         int // width in bits: 8, 16, 32 or 64
	Signed       bool
	LittleEndian bool
}

// NewNumber creates a big endian integer leaf
func NewNumber(name string, size int, signed bool) *Number {
	return &Number{ElementBase: ElementBase{name: name}, Size: size, Signed: signed}
}

// Encode renders a value as the bytes this number occupies in a stream
func (n *Number) Encode(value any) ([]byte, error) {
	if !bitstream.ValidWidth(n.Size) {
		return nil, fmt.Errorf("number %s has unsupported size %d", n.Name(), n.Size)
	}
	u, ok := ToUint64(value)
	if !ok {
		return nil, fmt.Errorf("number %s cannot encode %v", n.Name(), value)
	}
	w := bitstream.NewWriter()
	if n.LittleEndian {
		w.LittleEndian()
	}
	if err := w.WriteUint(u, n.Size); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (n *Number) cloneElement() Element {
	return &Number{ElementBase: n.copyBase(), Size: n.Size, Signed: n.Signed, LittleEndian: n.LittleEndian}
}

// Blob is an opaque byte span
type Blob struct {
	ElementBase
}

// NewBlob creates a blob leaf
func NewBlob(name string) *Blob {
	return &Blob{ElementBase: ElementBase{name: name}}
}

func (b *Blob) cloneElement() Element {
	return &Blob{ElementBase: b.copyBase()}
}

// Flag is a bit field inside a Flags region
type Flag struct {
	ElementBase
	Position int // bit offset from the start of the region
	Size     int // width in bits
}

// NewFlag creates a flag of size bits at position
func NewFlag(name string, position, size int) *Flag {
	return &Flag{ElementBase: ElementBase{name: name}, Position: position, Size: size}
}

func (f *Flag) cloneElement() Element {
	return &Flag{ElementBase: f.copyBase(), Position: f.Position, Size: f.Size}
}
