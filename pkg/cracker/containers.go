/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: containers.go
Description: Container handlers. Blocks crack children in order inside an optional size
bounded window, choices try alternatives on isolated clones, arrays repeat their
template and flags extract bit fields from a fixed width region.
*/

package cracker

import (
	"errors"
	"fmt"
	"io"

	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
	"github.com/sirupsen/logrus"
)

// window decides the bounded span available to a container's children
type window struct {
	bits    uint64
	bounded bool
	pending *declaration // size field inside the container, not cracked yet
}

func (p *pass) containerWindow(e dom.Element, s *bitstream.BitStream) (window, error) {
	pos := s.AbsoluteBits()
	bits, ok, pending, err := p.resolveSize(e, pos)
	if err != nil {
		return window{}, err
	}
	if ok {
		return window{bits: bits, bounded: true}, nil
	}
	if pending != nil {
		return window{pending: pending}, nil
	}
	if e.Base().HasLength {
		bits, ok, err := explicitBits(e)
		if err != nil {
			return window{}, newFailure(MalformedSchema, e, pos, err, "declared length %d", e.Base().Length)
		}
		if ok {
			return window{bits: bits, bounded: true}, nil
		}
	}
	return window{}, nil
}

// slice carves a bounded window and marks e as its owner
func (p *pass) slice(e dom.Element, s *bitstream.BitStream, bits uint64) (*bitstream.BitStream, error) {
	view, err := s.Slice(bits)
	if err != nil {
		return nil, newFailure(InsufficientData, e, s.AbsoluteBits(), err, "window of %d bits exceeds the data", bits)
	}
	p.push(e, bits)
	return view, nil
}

func (p *pass) crackBlock(b *dom.Block, s *bitstream.BitStream) error {
	w, err := p.containerWindow(b, s)
	if err != nil {
		return err
	}

	start := s.AbsoluteBits()
	cur := s
	if w.bounded {
		if cur, err = p.slice(b, s, w.bits); err != nil {
			return err
		}
		defer p.pop()
	}

	for _, child := range b.Children() {
		if err := p.crack(child, cur); err != nil {
			return err
		}

		if w.pending == nil || !p.done(w.pending.from) {
			continue
		}
		if cur, err = p.carve(b, s, cur, start, *w.pending); err != nil {
			return err
		}
		w.pending = nil
		defer p.pop()
	}
	return nil
}

// carve bounds the rest of e's window once the size field inside it has
// cracked. The caller owns the pop of the new window.
func (p *pass) carve(e dom.Element, parent, cur *bitstream.BitStream, start uint64, pending declaration) (*bitstream.BitStream, error) {
	total, err := p.sizeFrom(pending, e, cur.AbsoluteBits())
	if err != nil {
		return nil, err
	}

	consumed := cur.AbsoluteBits() - start
	if total < consumed {
		return nil, newFailure(UnresolvedRelation, e, cur.AbsoluteBits(), nil,
			"size %d bits is smaller than the %d bits already consumed", total, consumed)
	}
	p.log.WithFields(logrus.Fields{
		"element": dom.FullName(e),
		"bits":    total,
	}).Trace("Deferred size resolved")
	return p.slice(e, parent, total-consumed)
}

// crackChoice tries alternatives in declaration order. Alternatives are
// registered only once cloned, so a size field inside an alternative that
// targets the choice is applied after that alternative cracks.
func (p *pass) crackChoice(c *dom.Choice, s *bitstream.BitStream) error {
	c.Selected = nil

	w, err := p.containerWindow(c, s)
	if err != nil {
		return err
	}
	cur := s
	if w.bounded {
		if cur, err = p.slice(c, s, w.bits); err != nil {
			return err
		}
		defer p.pop()
	}

	start := cur.AbsoluteBits()
	var failures []error
	for _, alt := range c.Alternatives() {
		if err := cur.SeekAbsolute(start); err != nil {
			return asFailure(c, start, err)
		}

		candidate := dom.Clone(alt)
		candidate.SetParent(c)
		c.Selected = candidate
		p.register(candidate)

		err := p.crack(candidate, cur)
		if err == nil && !w.bounded {
			err = p.settleSize(c, cur, start)
		}
		if err == nil {
			p.log.WithFields(logrus.Fields{
				"element":     dom.FullName(c),
				"alternative": alt.Name(),
			}).Debug("Choice selected alternative")
			return nil
		}
		if !IsFailure(err) {
			return err
		}

		p.log.WithFields(logrus.Fields{
			"element":     dom.FullName(c),
			"alternative": alt.Name(),
		}).WithError(err).Trace("Choice alternative failed")
		p.unregister(candidate)
		c.Selected = nil
		failures = append(failures, err)
	}

	if err := cur.SeekAbsolute(start); err != nil {
		return asFailure(c, start, err)
	}
	return newFailure(NoAlternative, c, start, errors.Join(failures...),
		"none of %d alternatives matched", len(c.Alternatives()))
}

// settleSize applies a size field cracked inside the selected alternative:
// the choice then spans exactly that many bits from start
func (p *pass) settleSize(c *dom.Choice, s *bitstream.BitStream, start uint64) error {
	total, ok, _, err := p.resolveSize(c, s.AbsoluteBits())
	if err != nil || !ok {
		return err
	}

	consumed := s.AbsoluteBits() - start
	if total < consumed {
		return newFailure(UnresolvedRelation, c, s.AbsoluteBits(), nil,
			"size %d bits is smaller than the %d bits the alternative consumed", total, consumed)
	}
	if err := s.SeekAbsolute(start + total); err != nil {
		return newFailure(InsufficientData, c, s.AbsoluteBits(), err, "size %d bits exceeds the data", total)
	}
	return nil
}

// crackArray repeats the template. A size relation or explicit length bounds
// the items to that window and the parent resumes after it.
func (p *pass) crackArray(a *dom.Array, s *bitstream.BitStream) error {
	a.Items = nil

	w, err := p.containerWindow(a, s)
	if err != nil {
		return err
	}
	cur := s
	if w.bounded {
		if cur, err = p.slice(a, s, w.bits); err != nil {
			return err
		}
		defer p.pop()
	}

	count, counted, err := p.resolveCount(a, cur.AbsoluteBits())
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; ; i++ {
		if counted {
			if i >= count {
				break
			}
		} else {
			if a.MaxOccurs != dom.Unbounded && i >= a.MaxOccurs {
				break
			}
			if cur.RemainingBits() == 0 {
				break
			}
			if !w.bounded && p.tokenNext(a, cur) {
				break
			}
		}

		item := dom.Clone(a.Template)
		item.SetName(fmt.Sprintf("%s_%d", a.Name(), i))
		a.AppendItem(item)
		p.register(item)

		start := cur.AbsoluteBits()
		err := p.crack(item, cur)
		if err != nil {
			if counted || !IsFailure(err) {
				return err
			}
			p.unregister(item)
			a.Items = a.Items[:len(a.Items)-1]
			if serr := cur.SeekAbsolute(start); serr != nil {
				return asFailure(a, start, serr)
			}
			lastErr = err
			p.log.WithFields(logrus.Fields{
				"element": dom.FullName(a),
				"items":   len(a.Items),
			}).Trace("Array stopped on failing item")
			break
		}
		if cur.AbsoluteBits() == start {
			// an empty item would repeat forever
			break
		}
	}

	if len(a.Items) < a.MinOccurs {
		return newFailure(OccursUnmet, a, cur.AbsoluteBits(), lastErr,
			"cracked %d items, need at least %d", len(a.Items), a.MinOccurs)
	}
	p.log.WithFields(logrus.Fields{
		"element": dom.FullName(a),
		"items":   len(a.Items),
		"bounded": w.bounded,
	}).Debug("Array cracked")
	return nil
}

func (p *pass) crackFlags(f *dom.Flags, s *bitstream.BitStream) ([]byte, error) {
	if f.Size <= 0 {
		return nil, newFailure(MalformedSchema, f, s.AbsoluteBits(), nil, "flags width must be positive")
	}
	size := uint64(f.Size)
	if s.RemainingBits() < size {
		return nil, newFailure(InsufficientData, f, s.AbsoluteBits(),
			&bitstream.InsufficientDataError{Requested: size, Remaining: s.RemainingBits()},
			"flags region needs %d bits", size)
	}

	regionStart := s.AbsoluteBits()
	region, err := s.Slice(size)
	if err != nil {
		return nil, asFailure(f, regionStart, err)
	}
	raw, err := region.Clone().ReadBytes(size / 8)
	if err != nil {
		return nil, asFailure(f, regionStart, err)
	}

	if f.LittleEndian {
		if size%8 != 0 {
			return nil, newFailure(MalformedSchema, f, regionStart, nil, "little endian flags need a whole number of bytes")
		}
		swapped := make([]byte, len(raw))
		for i, b := range raw {
			swapped[len(raw)-1-i] = b
		}
		region = bitstream.New(swapped)
	}

	for _, flag := range f.Flags() {
		flagStart := regionStart + uint64(flag.Position)
		p.spans[flag] = &spanState{start: flagStart}
		p.enter(flag, flagStart)

		v, err := readFlag(flag, region, flagStart)
		if err != nil {
			fail := asFailure(flag, flagStart, err)
			p.exception(flag, flagStart, fail)
			return nil, fail
		}
		if err := checkToken(flag, v, flagStart); err != nil {
			p.exception(flag, flagStart, err)
			return nil, err
		}
		flag.Base().DefaultValue = v

		stop := flagStart + uint64(flag.Size)
		p.spans[flag].stop = stop
		p.spans[flag].done = true
		p.exit(flag, stop)
	}
	return raw, nil
}

// readFlag reads one flag from its region. A flag that does not fit the
// region is a schema defect, not missing data.
func readFlag(flag *dom.Flag, region *bitstream.BitStream, pos uint64) (uint64, error) {
	if flag.Position < 0 || flag.Size <= 0 || flag.Size > 64 {
		return 0, newFailure(MalformedSchema, flag, pos, nil, "invalid position %d or size %d", flag.Position, flag.Size)
	}
	end := uint64(flag.Position) + uint64(flag.Size)
	if end > region.LengthBits() {
		return 0, newFailure(MalformedSchema, flag, pos, nil,
			"bits %d..%d fall outside the %d bit region", flag.Position, end, region.LengthBits())
	}
	if _, err := region.SeekBits(int64(flag.Position), io.SeekStart); err != nil {
		return 0, asFailure(flag, pos, err)
	}
	return region.ReadBits(flag.Size)
}
