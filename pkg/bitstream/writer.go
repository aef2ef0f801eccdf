/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: writer.go
Description: Bit-granular writer that mirrors the reader's integer encoding. Used to
build inputs whose cracked values are known in advance.
*/

package bitstream

import "fmt"

// Writer appends bits to a growing buffer
type Writer struct {
	buf          []byte
	bits         uint64
	littleEndian bool
}

// NewWriter creates an empty big endian writer
func NewWriter() *Writer {
	return &Writer{}
}

// LittleEndian switches integer writes to little endian
func (w *Writer) LittleEndian() {
	w.littleEndian = true
}

// BigEndian switches integer writes to big endian
func (w *Writer) BigEndian() {
	w.littleEndian = false
}

// WriteBits appends the low n bits of v, most significant first
func (w *Writer) WriteBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.bits%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.buf[w.bits/8] |= 1 << (7 - w.bits%8)
		}
		w.bits++
	}
}

// WriteBytes appends raw bytes
func (w *Writer) WriteBytes(b []byte) {
	for _, c := range b {
		w.WriteBits(uint64(c), 8)
	}
}

// WriteUint appends v as an integer of the given width
func (w *Writer) WriteUint(v uint64, width int) error {
	if !ValidWidth(width) {
		return fmt.Errorf("bitstream: unsupported integer width %d", width)
	}
	n := width / 8
	raw := make([]byte, n)
	for i := 0; i < n; i++ {
		shift := uint(8 * i)
		if w.littleEndian {
			raw[i] = byte(v >> shift)
		} else {
			raw[n-1-i] = byte(v >> shift)
		}
	}
	w.WriteBytes(raw)
	return nil
}

// WriteInt appends v as a two's complement integer of the given width
func (w *Writer) WriteInt(v int64, width int) error {
	return w.WriteUint(uint64(v), width)
}

// Bytes returns the written buffer; a trailing partial byte is zero padded
func (w *Writer) Bytes() []byte {
	return w.buf
}

// LengthBits returns the number of bits written
func (w *Writer) LengthBits() uint64 {
	return w.bits
}
