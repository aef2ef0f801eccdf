/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cracker.go
Description: The cracking engine. Walks an element tree against a bit stream, filling
every element's value from the stream. Handles offset jumps, size bounded windows,
instrumentation events and post-crack analyzers. Per-pass state lives in a pass value
and never outlives a single Crack call.
*/

package cracker

import (
	"io"
	"sync"

	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
	"github.com/sirupsen/logrus"
)

// Span is the absolute bit range an element occupied in the last pass
type Span struct {
	Start uint64
	Stop  uint64
}

// LengthBits returns the width of the span
func (s Span) LengthBits() uint64 {
	return s.Stop - s.Start
}

// Cracker populates element trees from bit streams. A Cracker runs one pass
// at a time; use one per goroutine.
type Cracker struct {
	logger    logrus.FieldLogger
	observers []Observer

	mu    sync.RWMutex
	spans map[dom.Element]Span
}

// New creates a cracker. A nil logger discards engine logs.
func New(logger logrus.FieldLogger, observers ...Observer) *Cracker {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Cracker{
		logger:    logger,
		observers: observers,
		spans:     make(map[dom.Element]Span),
	}
}

// AddObserver registers an additional event observer
func (c *Cracker) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Span returns the span an element occupied in the last successful pass
func (c *Cracker) Span(e dom.Element) (Span, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.spans[e]
	return s, ok
}

// Crack fills root from data starting at data's cursor. On failure the tree
// is partially populated and must not be trusted.
func (c *Cracker) Crack(root dom.Element, data *bitstream.BitStream) error {
	p := &pass{
		c:     c,
		log:   c.logger,
		base:  data.BaseBits(),
		spans: make(map[dom.Element]*spanState),
		jumps: make(map[dom.Element]bool),
	}

	reset(root)
	p.register(root)

	p.log.WithFields(logrus.Fields{
		"root":      root.Name(),
		"data_bits": data.LengthBits(),
	}).Debug("Starting crack pass")

	err := p.crack(root, data)

	spans := make(map[dom.Element]Span, len(p.spans))
	if err == nil {
		for e, s := range p.spans {
			if s.done {
				spans[e] = Span{Start: s.start, Stop: s.stop}
			}
		}
	}
	c.mu.Lock()
	c.spans = spans
	c.mu.Unlock()

	if err != nil {
		p.log.WithError(err).Debug("Crack pass failed")
		return err
	}
	p.log.WithField("consumed_bits", data.AbsoluteBits()-p.base).Debug("Crack pass completed")
	return nil
}

// reset discards crack-time structure left by an earlier pass
func reset(e dom.Element) {
	switch v := e.(type) {
	case *dom.Choice:
		v.Selected = nil
		return
	case *dom.Array:
		v.Items = nil
		return
	}
	if c, ok := e.(dom.Container); ok {
		for _, child := range c.Children() {
			reset(child)
		}
	}
}

type spanState struct {
	start, stop uint64
	done        bool
}

type declaration struct {
	from dom.Element
	rel  *dom.Relation
}

type sizedEntry struct {
	elem dom.Element
	bits uint64
}

// pass is the mutable state of one Crack call
type pass struct {
	c    *Cracker
	log  logrus.FieldLogger
	base uint64 // absolute bit where the input starts

	spans map[dom.Element]*spanState
	sized []sizedEntry
	jumps map[dom.Element]bool
	decls []declaration
}

// register records the relations declared inside a live subtree. Choice
// alternatives and array templates are skipped; their clones register when
// they are materialized.
func (p *pass) register(e dom.Element) {
	liveWalk(e, func(el dom.Element) {
		for _, r := range el.Base().Relations {
			p.decls = append(p.decls, declaration{from: el, rel: r})
		}
	})
}

// unregister drops declarations and spans belonging to a discarded subtree
func (p *pass) unregister(e dom.Element) {
	gone := make(map[dom.Element]bool)
	liveWalk(e, func(el dom.Element) { gone[el] = true })

	kept := p.decls[:0]
	for _, d := range p.decls {
		if !gone[d.from] {
			kept = append(kept, d)
		}
	}
	p.decls = kept
	for el := range gone {
		delete(p.spans, el)
	}
}

func liveWalk(e dom.Element, fn func(dom.Element)) {
	fn(e)
	switch v := e.(type) {
	case *dom.Choice:
		if v.Selected != nil {
			liveWalk(v.Selected, fn)
		}
		return
	}
	if c, ok := e.(dom.Container); ok {
		for _, child := range c.Children() {
			liveWalk(child, fn)
		}
	}
}

// done reports whether e finished cracking in this pass
func (p *pass) done(e dom.Element) bool {
	s, ok := p.spans[e]
	return ok && s.done
}

func (p *pass) push(e dom.Element, bits uint64) {
	p.sized = append(p.sized, sizedEntry{elem: e, bits: bits})
}

func (p *pass) pop() {
	p.sized = p.sized[:len(p.sized)-1]
}

func (p *pass) isSized(e dom.Element) bool {
	for i := len(p.sized) - 1; i >= 0; i-- {
		if p.sized[i].elem == e {
			return true
		}
	}
	return false
}

// crack handles offset jumps, events and analyzers around dispatch
func (p *pass) crack(e dom.Element, s *bitstream.BitStream) error {
	stream := s
	if target, ok, err := p.resolveOffset(e, s); err != nil {
		p.enter(e, s.AbsoluteBits())
		p.exception(e, s.AbsoluteBits(), err)
		return err
	} else if ok {
		jump := s.Root()
		if err := jump.SeekAbsolute(target); err != nil {
			f := newFailure(InsufficientData, e, s.AbsoluteBits(), err, "offset target bit %d is outside the input", target)
			p.enter(e, s.AbsoluteBits())
			p.exception(e, s.AbsoluteBits(), f)
			return f
		}
		p.log.WithFields(logrus.Fields{
			"element": dom.FullName(e),
			"from":    s.AbsoluteBits(),
			"to":      target,
		}).Debug("Following offset relation")
		p.jumps[e] = true
		defer delete(p.jumps, e)
		// s is never moved, so sibling traversal resumes where it was
		stream = jump
	}

	start := stream.AbsoluteBits()
	span := &spanState{start: start}
	p.spans[e] = span
	p.enter(e, start)

	raw, err := p.dispatch(e, stream)
	if err != nil {
		f := asFailure(e, stream.AbsoluteBits(), err)
		p.exception(e, stream.AbsoluteBits(), f)
		return f
	}

	span.stop = stream.AbsoluteBits()
	span.done = true
	p.exit(e, span.stop)

	if e.Base().Analyzer != nil && isLeaf(e) {
		return p.analyze(e, raw, span)
	}
	return nil
}

// dispatch cracks e by variant. Leaves return the raw bytes they consumed.
func (p *pass) dispatch(e dom.Element, s *bitstream.BitStream) ([]byte, error) {
	switch v := e.(type) {
	case *dom.Block:
		return nil, p.crackBlock(v, s)
	case *dom.Choice:
		return nil, p.crackChoice(v, s)
	case *dom.Array:
		return nil, p.crackArray(v, s)
	case *dom.Flags:
		return p.crackFlags(v, s)
	case *dom.String:
		return p.crackString(v, s)
	case *dom.Number:
		return p.crackNumber(v, s)
	case *dom.Blob:
		return p.crackBlob(v, s)
	case *dom.Flag:
		return nil, newFailure(MalformedSchema, e, s.AbsoluteBits(), nil, "flag outside a flags region")
	}
	return nil, newFailure(MalformedSchema, e, s.AbsoluteBits(), nil, "unsupported element type %s", dom.TypeName(e))
}

func isLeaf(e dom.Element) bool {
	switch e.(type) {
	case *dom.String, *dom.Number, *dom.Blob:
		return true
	}
	return false
}

// analyze runs a leaf's analyzer and splices in its replacement
func (p *pass) analyze(e dom.Element, raw []byte, span *spanState) error {
	analyzer := e.Base().Analyzer
	p.analyzerInvoked(e, span.stop)

	replacement, err := analyzer.Analyze(e, raw)
	if err != nil {
		return newFailure(AnalyzerFailed, e, span.stop, err, "analyzer %s failed", analyzer.Name())
	}
	if replacement == nil {
		return nil
	}

	parent := e.Parent()
	if parent == nil {
		return newFailure(AnalyzerFailed, e, span.stop, nil, "analyzer %s cannot replace the root element", analyzer.Name())
	}
	if err := parent.ReplaceChild(e, replacement); err != nil {
		return newFailure(AnalyzerFailed, e, span.stop, err, "analyzer %s replacement rejected", analyzer.Name())
	}

	delete(p.spans, e)
	p.spans[replacement] = &spanState{start: span.start, stop: span.stop, done: true}
	p.register(replacement)

	p.log.WithFields(logrus.Fields{
		"element":  dom.FullName(replacement),
		"analyzer": analyzer.Name(),
	}).Debug("Analyzer replaced element")
	return nil
}

func (p *pass) enter(e dom.Element, pos uint64) {
	for _, o := range p.c.observers {
		o.EnterNode(e, pos)
	}
}

func (p *pass) exit(e dom.Element, pos uint64) {
	for _, o := range p.c.observers {
		o.ExitNode(e, pos)
	}
}

func (p *pass) exception(e dom.Element, pos uint64, err error) {
	for _, o := range p.c.observers {
		o.NodeException(e, pos, err)
	}
}

func (p *pass) analyzerInvoked(e dom.Element, pos uint64) {
	for _, o := range p.c.observers {
		o.AnalyzerInvoked(e, pos)
	}
}
