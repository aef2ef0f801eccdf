/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: leaves.go
Description: Leaf handlers for strings, blobs and numbers, including null terminator
scanning, the length priority chain and token enforcement.
*/

package cracker

import (
	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// checkToken fails when a token element read something other than its
// declared value
func checkToken(e dom.Element, cracked any, pos uint64) error {
	base := e.Base()
	if !base.IsToken {
		return nil
	}
	if dom.ValuesEqual(cracked, base.DefaultValue) {
		return nil
	}
	return newFailure(TokenMismatch, e, pos, nil, "read %v, expected %v", cracked, base.DefaultValue)
}

// leafLength picks the length of a string or blob: explicit, size relation,
// token default, last unsized element, then token lookahead
func (p *pass) leafLength(e dom.Element, s *bitstream.BitStream) (uint64, error) {
	pos := s.AbsoluteBits()

	if e.Base().HasLength {
		bits, ok, err := explicitBits(e)
		if err != nil {
			return 0, newFailure(MalformedSchema, e, pos, err, "declared length %d", e.Base().Length)
		}
		if ok {
			return bits, nil
		}
	}

	bits, ok, _, err := p.resolveSize(e, pos)
	if err != nil {
		return 0, err
	}
	if ok {
		return bits, nil
	}

	if raw, ok := tokenBytes(e); ok {
		return uint64(len(raw)) * 8, nil
	}
	if bits, ok := p.lastUnsized(e, s); ok {
		return bits, nil
	}
	if bits, ok := p.tokenAhead(e, s); ok {
		return bits, nil
	}
	return 0, newFailure(UndeterminableLength, e, pos, nil, "no length, relation, token or lookahead applies")
}

// readSpan reads bits from s; a partial trailing byte is left aligned
func readSpan(s *bitstream.BitStream, bits uint64) ([]byte, error) {
	raw, err := s.ReadBytes(bits / 8)
	if err != nil {
		return nil, err
	}
	if rem := bits % 8; rem != 0 {
		v, err := s.ReadBits(int(rem))
		if err != nil {
			return nil, err
		}
		raw = append(raw, byte(v<<(8-rem)))
	}
	return raw, nil
}

func (p *pass) crackBlob(b *dom.Blob, s *bitstream.BitStream) ([]byte, error) {
	bits, err := p.leafLength(b, s)
	if err != nil {
		return nil, err
	}
	pos := s.AbsoluteBits()
	raw, err := readSpan(s, bits)
	if err != nil {
		return nil, err
	}
	if err := checkToken(b, raw, pos); err != nil {
		return nil, err
	}
	b.DefaultValue = raw
	return raw, nil
}

func (p *pass) crackString(str *dom.String, s *bitstream.BitStream) ([]byte, error) {
	pos := s.AbsoluteBits()

	var raw []byte
	var err error
	switch {
	case str.NullTerminated:
		raw, err = readTerminated(str, s)
	case str.HasLength && str.LengthType == dom.LengthChars && str.Encoding.CharWidth() == 0:
		raw, err = readRunes(s, str.Length)
	default:
		var bits uint64
		if bits, err = p.leafLength(str, s); err == nil {
			raw, err = readSpan(s, bits)
		}
	}
	if err != nil {
		return nil, err
	}

	text, err := str.Decode(raw)
	if err != nil {
		return nil, newFailure(TokenMismatch, str, pos, err, "undecodable %s text", str.Encoding)
	}
	if err := checkToken(str, text, pos); err != nil {
		return nil, err
	}
	str.DefaultValue = text
	return raw, nil
}

// readTerminated scans for a terminator of one zero byte, or one zero code
// unit for utf16. The terminator is consumed but not returned.
func readTerminated(str *dom.String, s *bitstream.BitStream) ([]byte, error) {
	unit := 1
	if str.Encoding.IsWide() {
		unit = 2
	}

	var out []byte
	for {
		chunk, err := s.ReadBytes(uint64(unit))
		if err != nil {
			return nil, newFailure(InsufficientData, str, s.AbsoluteBits(), err, "no string terminator before end of data")
		}
		zero := true
		for _, b := range chunk {
			if b != 0 {
				zero = false
				break
			}
		}
		if zero {
			return out, nil
		}
		out = append(out, chunk...)
	}
}

// readRunes reads n utf8 encoded characters
func readRunes(s *bitstream.BitStream, n uint64) ([]byte, error) {
	var out []byte
	for i := uint64(0); i < n; i++ {
		lead, err := s.ReadByte()
		if err != nil {
			return nil, err
		}
		out = append(out, lead)

		var extra uint64
		switch {
		case lead&0xE0 == 0xC0:
			extra = 1
		case lead&0xF0 == 0xE0:
			extra = 2
		case lead&0xF8 == 0xF0:
			extra = 3
		}
		if extra > 0 {
			rest, err := s.ReadBytes(extra)
			if err != nil {
				return nil, err
			}
			out = append(out, rest...)
		}
	}
	return out, nil
}

func (p *pass) crackNumber(n *dom.Number, s *bitstream.BitStream) ([]byte, error) {
	pos := s.AbsoluteBits()
	if !bitstream.ValidWidth(n.Size) {
		return nil, newFailure(MalformedSchema, n, pos, nil, "unsupported number size %d", n.Size)
	}

	if n.LittleEndian {
		s.LittleEndian()
	} else {
		s.BigEndian()
	}

	raw, err := s.PeekBytes(uint64(n.Size / 8))
	if err != nil {
		return nil, err
	}

	var value any
	if n.Signed {
		value, err = s.ReadInt(n.Size)
	} else {
		value, err = s.ReadUint(n.Size)
	}
	if err != nil {
		return nil, err
	}

	if err := checkToken(n, value, pos); err != nil {
		return nil, err
	}
	n.DefaultValue = value
	return raw, nil
}
