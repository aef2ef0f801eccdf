/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: resolver.go
Description: Relation resolution. Size and count relations defer while their source
field is not cracked yet; offset relations must be resolvable when their target is
reached. Resolution never moves the stream.
*/

package cracker

import (
	"math"

	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// relationsTo returns the live declarations of kind whose target is e
func (p *pass) relationsTo(e dom.Element, kind dom.RelationKind) []declaration {
	var out []declaration
	for _, d := range p.decls {
		if d.rel.Kind != kind {
			continue
		}
		if dom.Find(d.from, d.rel.Of) == e {
			out = append(out, d)
		}
	}
	return out
}

// relationValue reads the source field and applies the relation expression
func (p *pass) relationValue(d declaration, pos uint64) (int64, error) {
	raw, ok := dom.ToInt64(d.from.Base().DefaultValue)
	if !ok {
		return 0, newFailure(UnresolvedRelation, d.from, pos, nil,
			"%s relation source holds a non numeric value %v", d.rel.Kind, d.from.Base().DefaultValue)
	}
	v, err := d.rel.Apply(raw)
	if err != nil {
		return 0, newFailure(UnresolvedRelation, d.from, pos, err, "%s relation expression failed", d.rel.Kind)
	}
	return v, nil
}

// resolveSize returns the size in bits a relation assigns to e. ok is false
// while no source has been cracked; pending is set when the source sits
// inside e and will be cracked along the way.
func (p *pass) resolveSize(e dom.Element, pos uint64) (bits uint64, ok bool, pending *declaration, err error) {
	for _, d := range p.relationsTo(e, dom.RelationSize) {
		if !p.done(d.from) {
			if dom.IsAncestor(e, d.from) && pending == nil {
				dd := d
				pending = &dd
			}
			continue
		}
		n, err := p.sizeFrom(d, e, pos)
		if err != nil {
			return 0, false, nil, err
		}
		return n, true, nil, nil
	}
	return 0, false, pending, nil
}

// sizeFrom converts a cracked size field into bits
func (p *pass) sizeFrom(d declaration, target dom.Element, pos uint64) (uint64, error) {
	v, err := p.relationValue(d, pos)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, newFailure(UnresolvedRelation, target, pos, nil, "negative size %d from %s", v, dom.FullName(d.from))
	}
	if v > math.MaxInt64/8 {
		return 0, newFailure(InsufficientData, target, pos, nil, "size %d bytes from %s exceeds any input", v, dom.FullName(d.from))
	}
	return uint64(v) * 8, nil
}

// resolveCount returns the number of items a count relation assigns to e
func (p *pass) resolveCount(e dom.Element, pos uint64) (int, bool, error) {
	for _, d := range p.relationsTo(e, dom.RelationCount) {
		if !p.done(d.from) {
			continue
		}
		v, err := p.relationValue(d, pos)
		if err != nil {
			return 0, false, err
		}
		if v < 0 {
			return 0, false, newFailure(UnresolvedRelation, e, pos, nil, "negative count %d from %s", v, dom.FullName(d.from))
		}
		return int(v), true, nil
	}
	return 0, false, nil
}

// hasOffset reports whether e is the target of an offset relation
func (p *pass) hasOffset(e dom.Element) bool {
	return len(p.relationsTo(e, dom.RelationOffset)) > 0
}

// resolveOffset returns the absolute bit where e must be cracked. A target
// reached before its offset field is cracked is a hard failure.
func (p *pass) resolveOffset(e dom.Element, s *bitstream.BitStream) (uint64, bool, error) {
	decls := p.relationsTo(e, dom.RelationOffset)
	if len(decls) == 0 {
		return 0, false, nil
	}
	pos := s.AbsoluteBits()
	d := decls[0]

	if !p.done(d.from) {
		return 0, false, newFailure(UnresolvedRelation, e, pos, nil,
			"offset field %s has not been cracked", dom.FullName(d.from))
	}
	v, err := p.relationValue(d, pos)
	if err != nil {
		return 0, false, err
	}

	origin := p.base
	if d.rel.Relative {
		anchor := d.from
		if d.rel.RelativeTo != "" {
			anchor = dom.Find(d.from, d.rel.RelativeTo)
			if anchor == nil {
				return 0, false, newFailure(UnresolvedRelation, e, pos, nil, "offset anchor %q not found", d.rel.RelativeTo)
			}
		}
		span, ok := p.spans[anchor]
		if !ok {
			return 0, false, newFailure(UnresolvedRelation, e, pos, nil,
				"offset anchor %s has not been reached", dom.FullName(anchor))
		}
		origin = span.start
	}

	if v > (math.MaxInt64-int64(origin))/8 || v < math.MinInt64/8 {
		return 0, false, newFailure(UnresolvedRelation, e, pos, nil, "offset %d bytes is out of range", v)
	}
	target := int64(origin) + v*8
	if target < 0 {
		return 0, false, newFailure(UnresolvedRelation, e, pos, nil, "offset %d points before the input", v)
	}
	return uint64(target), true, nil
}
