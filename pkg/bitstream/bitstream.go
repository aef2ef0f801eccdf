/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: bitstream.go
Description: Bit-addressable read cursor over a fully buffered input. Supports bit and
byte seeking, persistent endianness, fixed-width integer reads and bounded views that
share the underlying buffer so positions stay comparable across nested windows.
*/

package bitstream

import (
	"fmt"
	"io"
)

// BitStream is a seekable cursor over a byte buffer addressed in bits.
// A BitStream may be a view over a window of a parent stream; all
// positions reported by Tell* are relative to the view's start while
// AbsoluteBits reports the position within the original buffer.
type BitStream struct {
	buf          []byte
	start        uint64 // absolute bit where this view begins
	end          uint64 // absolute bit where this view ends (exclusive)
	pos          uint64 // absolute bit cursor
	littleEndian bool
}

// New creates a stream over the whole of data, big endian, positioned at bit 0
func New(data []byte) *BitStream {
	return &BitStream{
		buf: data,
		end: uint64(len(data)) * 8,
	}
}

// NewBits creates a stream over the first lengthBits bits of data
func NewBits(data []byte, lengthBits uint64) (*BitStream, error) {
	if lengthBits > uint64(len(data))*8 {
		return nil, fmt.Errorf("bitstream: length %d bits exceeds buffer of %d bytes", lengthBits, len(data))
	}
	return &BitStream{buf: data, end: lengthBits}, nil
}

// TellBits returns the cursor position in bits relative to the view start
func (s *BitStream) TellBits() uint64 {
	return s.pos - s.start
}

// TellBytes returns the cursor position in whole bytes relative to the view start
func (s *BitStream) TellBytes() uint64 {
	return s.TellBits() / 8
}

// LengthBits returns the view length in bits
func (s *BitStream) LengthBits() uint64 {
	return s.end - s.start
}

// LengthBytes returns the view length in bytes, rounding partial bytes up
func (s *BitStream) LengthBytes() uint64 {
	return (s.LengthBits() + 7) / 8
}

// RemainingBits returns the number of unread bits in the view
func (s *BitStream) RemainingBits() uint64 {
	return s.end - s.pos
}

// AbsoluteBits returns the cursor position within the original buffer
func (s *BitStream) AbsoluteBits() uint64 {
	return s.pos
}

// BaseBits returns the absolute bit position at which this view starts
func (s *BitStream) BaseBits() uint64 {
	return s.start
}

// LittleEndian switches integer reads to little endian until changed
func (s *BitStream) LittleEndian() {
	s.littleEndian = true
}

// BigEndian switches integer reads to big endian until changed
func (s *BitStream) BigEndian() {
	s.littleEndian = false
}

// IsLittleEndian reports the current endianness mode
func (s *BitStream) IsLittleEndian() bool {
	return s.littleEndian
}

// SeekBits moves the cursor relative to the view start, the cursor or the
// view end (io.SeekStart, io.SeekCurrent, io.SeekEnd) and returns the new
// relative position. Seeking outside the view fails and leaves the cursor
// unchanged.
func (s *BitStream) SeekBits(offset int64, whence int) (uint64, error) {
	var origin int64
	switch whence {
	case io.SeekStart:
		origin = 0
	case io.SeekCurrent:
		origin = int64(s.TellBits())
	case io.SeekEnd:
		origin = int64(s.LengthBits())
	default:
		return s.TellBits(), fmt.Errorf("bitstream: invalid whence %d", whence)
	}

	target := origin + offset
	if target < 0 || uint64(target) > s.LengthBits() {
		return s.TellBits(), fmt.Errorf("bitstream: seek to bit %d outside stream of %d bits", target, s.LengthBits())
	}

	s.pos = s.start + uint64(target)
	return uint64(target), nil
}

// SeekBytes is SeekBits with the offset given in bytes
func (s *BitStream) SeekBytes(offset int64, whence int) (uint64, error) {
	return s.SeekBits(offset*8, whence)
}

// SeekAbsolute positions the cursor at an absolute buffer position,
// which must fall inside the view
func (s *BitStream) SeekAbsolute(abs uint64) error {
	if abs < s.start || abs > s.end {
		return fmt.Errorf("bitstream: absolute bit %d outside view [%d, %d)", abs, s.start, s.end)
	}
	s.pos = abs
	return nil
}

// require fails with an InsufficientDataError when fewer than n bits remain
func (s *BitStream) require(n uint64) error {
	if s.RemainingBits() < n {
		return &InsufficientDataError{Requested: n, Remaining: s.RemainingBits()}
	}
	return nil
}

// ReadBits reads n (0-64) bits most significant bit first
func (s *BitStream) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("bitstream: cannot read %d bits at once", n)
	}
	if err := s.require(uint64(n)); err != nil {
		return 0, err
	}

	var v uint64
	for i := 0; i < n; i++ {
		b := s.buf[s.pos/8]
		shift := 7 - s.pos%8
		v = v<<1 | uint64((b>>shift)&1)
		s.pos++
	}
	return v, nil
}

// ReadByte reads a single byte, used for terminator scanning
func (s *BitStream) ReadByte() (byte, error) {
	if err := s.require(8); err != nil {
		return 0, err
	}
	if s.pos%8 == 0 {
		b := s.buf[s.pos/8]
		s.pos += 8
		return b, nil
	}
	v, err := s.ReadBits(8)
	return byte(v), err
}

// ReadBytes reads n bytes; unaligned positions are handled bit by bit
func (s *BitStream) ReadBytes(n uint64) ([]byte, error) {
	if err := s.require(n * 8); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	if s.pos%8 == 0 {
		first := s.pos / 8
		copy(out, s.buf[first:first+n])
		s.pos += n * 8
		return out, nil
	}

	for i := range out {
		v, err := s.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// PeekBytes returns up to n bytes from the cursor without moving it
func (s *BitStream) PeekBytes(n uint64) ([]byte, error) {
	pos := s.pos
	defer func() { s.pos = pos }()
	return s.ReadBytes(n)
}

// ReadUint reads an unsigned integer of width 8, 16, 32 or 64 bits
// honoring the current endianness
func (s *BitStream) ReadUint(width int) (uint64, error) {
	if !ValidWidth(width) {
		return 0, fmt.Errorf("bitstream: unsupported integer width %d", width)
	}

	raw, err := s.ReadBytes(uint64(width / 8))
	if err != nil {
		return 0, err
	}
	return decodeUint(raw, s.littleEndian), nil
}

// ReadInt reads a two's complement signed integer of width 8, 16, 32 or 64
func (s *BitStream) ReadInt(width int) (int64, error) {
	u, err := s.ReadUint(width)
	if err != nil {
		return 0, err
	}
	return SignExtend(u, width), nil
}

// Slice carves a view of the next n bits and advances this stream past it
func (s *BitStream) Slice(n uint64) (*BitStream, error) {
	if err := s.require(n); err != nil {
		return nil, err
	}
	view := &BitStream{
		buf:          s.buf,
		start:        s.pos,
		end:          s.pos + n,
		pos:          s.pos,
		littleEndian: s.littleEndian,
	}
	s.pos += n
	return view, nil
}

// Clone returns an independent cursor over the same view
func (s *BitStream) Clone() *BitStream {
	c := *s
	return &c
}

// Root returns a cursor over the whole underlying buffer positioned at
// this stream's absolute position
func (s *BitStream) Root() *BitStream {
	return &BitStream{
		buf:          s.buf,
		end:          uint64(len(s.buf)) * 8,
		pos:          s.pos,
		littleEndian: s.littleEndian,
	}
}

// ValidWidth reports whether width is one of the supported integer widths
func ValidWidth(width int) bool {
	switch width {
	case 8, 16, 32, 64:
		return true
	}
	return false
}

// SignExtend interprets the low width bits of u as two's complement
func SignExtend(u uint64, width int) int64 {
	if width <= 0 || width >= 64 {
		return int64(u)
	}
	shift := uint(64 - width)
	return int64(u<<shift) >> shift
}

func decodeUint(raw []byte, littleEndian bool) uint64 {
	var v uint64
	if littleEndian {
		for i := len(raw) - 1; i >= 0; i-- {
			v = v<<8 | uint64(raw[i])
		}
		return v
	}
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	return v
}
