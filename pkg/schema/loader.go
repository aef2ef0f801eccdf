/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: loader.go
Description: Loads YAML data model documents into element trees. Builds every element,
resolves analyzers by name, compiles relation expressions and validates names, widths
and relation targets, reporting all problems at once.
*/

package schema

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kleascm/akaylee-cracker/pkg/analyzers"
	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
	"gopkg.in/yaml.v3"
)

// Options controls how documents are turned into models
type Options struct {
	// Analyzers resolves `analyzer` names; nil uses analyzers.Default()
	Analyzers *analyzers.Registry
}

// Load reads and parses a model file
func Load(path string, opts Options) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	model, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	model.Source = path
	if model.Name == "" {
		model.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		model.Root.SetName(model.Name)
	}
	return model, nil
}

// Parse builds a model from YAML bytes
func Parse(data []byte, opts Options) (*Model, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse model yaml: %w", err)
	}
	return Build(&doc, opts)
}

// Build turns a decoded document into a validated model
func Build(doc *Document, opts Options) (*Model, error) {
	registry := opts.Analyzers
	if registry == nil {
		registry = analyzers.Default()
	}

	b := &builder{registry: registry}
	little, ok := parseEndian(doc.Endian)
	if !ok {
		b.problem(doc.Name, "unknown endian %q", doc.Endian)
	}
	b.little = little

	name := doc.Name
	if name == "" {
		name = "DataModel"
	}
	root := dom.NewBlock(name)
	if len(doc.Elements) == 0 {
		b.problem(name, "model has no elements")
	}
	b.checkNames(name, doc.Elements)
	for _, spec := range doc.Elements {
		if e := b.build(spec, name); e != nil {
			root.Append(e)
		}
	}

	b.checkRelations(root)
	if len(b.problems) > 0 {
		return nil, &ValidationError{Problems: b.problems}
	}
	return &Model{Name: doc.Name, Root: root}, nil
}

type builder struct {
	registry *analyzers.Registry
	little   bool
	problems []string
}

func (b *builder) problem(path, format string, args ...any) {
	b.problems = append(b.problems, path+": "+fmt.Sprintf(format, args...))
}

func (b *builder) checkNames(path string, specs []ElementSpec) {
	seen := make(map[string]bool)
	for _, s := range specs {
		if s.Name == "" {
			b.problem(path, "element of type %q has no name", s.Type)
			continue
		}
		if strings.Contains(s.Name, ".") {
			b.problem(path, "element name %q must not contain dots", s.Name)
		}
		if seen[s.Name] {
			b.problem(path, "duplicate element name %q", s.Name)
		}
		seen[s.Name] = true
	}
}

// build creates the element for spec; nil when it is unusable
func (b *builder) build(spec ElementSpec, parentPath string) dom.Element {
	path := parentPath + "." + spec.Name
	var e dom.Element

	switch strings.ToLower(spec.Type) {
	case "block", "sequence", "":
		block := dom.NewBlock(spec.Name)
		b.children(spec, path, func(c dom.Element) { block.Append(c) })
		e = block
	case "choice":
		choice := dom.NewChoice(spec.Name)
		if len(spec.Elements) == 0 {
			b.problem(path, "choice needs at least one alternative")
		}
		b.children(spec, path, choice.AddAlternative)
		e = choice
	case "array":
		e = b.buildArray(spec, path)
	case "flags":
		e = b.buildFlags(spec, path)
	case "flag":
		b.problem(path, "flag must be declared inside flags")
		return nil
	case "string":
		e = b.buildString(spec, path)
	case "number":
		e = b.buildNumber(spec, path)
	case "blob":
		blob := dom.NewBlob(spec.Name)
		if v, ok := b.bytesValue(spec, path); ok {
			blob.DefaultValue = v
		}
		e = blob
	default:
		b.problem(path, "unknown element type %q", spec.Type)
		return nil
	}
	if e == nil {
		return nil
	}

	b.applyCommon(e, spec, path)
	return e
}

func (b *builder) children(spec ElementSpec, path string, add func(dom.Element)) {
	b.checkNames(path, spec.Elements)
	for _, c := range spec.Elements {
		if child := b.build(c, path); child != nil {
			add(child)
		}
	}
}

func (b *builder) applyCommon(e dom.Element, spec ElementSpec, path string) {
	base := e.Base()

	if spec.Length != nil {
		unit, err := dom.ParseLengthType(spec.LengthType)
		if err != nil {
			b.problem(path, "%v", err)
		}
		base.SetLength(*spec.Length, unit)
	}

	if spec.Token {
		if base.DefaultValue == nil {
			b.problem(path, "token has no value")
		}
		base.IsToken = true
	}

	if spec.Analyzer != "" {
		a, err := b.registry.Lookup(spec.Analyzer)
		if err != nil {
			b.problem(path, "%v", err)
		}
		base.Analyzer = a
	}

	for _, rs := range spec.Relations {
		kind, err := dom.ParseRelationKind(rs.Kind)
		if err != nil {
			b.problem(path, "%v", err)
			continue
		}
		if rs.Of == "" {
			b.problem(path, "%s relation has no target", kind)
			continue
		}
		r := dom.NewRelation(kind, rs.Of)
		r.ExpressionGet = rs.Expression
		r.Relative = rs.Relative || rs.RelativeTo != ""
		r.RelativeTo = rs.RelativeTo
		if err := r.Compile(); err != nil {
			b.problem(path, "%v", err)
		}
		if kind != dom.RelationOffset && r.Relative {
			b.problem(path, "only offset relations can be relative")
		}
		base.AddRelation(r)
	}
}

func (b *builder) buildArray(spec ElementSpec, path string) dom.Element {
	if len(spec.Elements) != 1 {
		b.problem(path, "array needs exactly one template element, got %d", len(spec.Elements))
		return nil
	}
	template := b.build(spec.Elements[0], path)
	if template == nil {
		return nil
	}

	minOccurs, maxOccurs := 0, dom.Unbounded
	if spec.MinOccurs != nil {
		minOccurs = *spec.MinOccurs
	}
	if spec.MaxOccurs != nil {
		maxOccurs = *spec.MaxOccurs
	}
	if minOccurs < 0 {
		b.problem(path, "min_occurs must not be negative")
	}
	if maxOccurs != dom.Unbounded && maxOccurs < minOccurs {
		b.problem(path, "max_occurs %d is below min_occurs %d", maxOccurs, minOccurs)
	}
	return dom.NewArray(spec.Name, template, minOccurs, maxOccurs)
}

func (b *builder) buildFlags(spec ElementSpec, path string) dom.Element {
	flags := dom.NewFlags(spec.Name, spec.Size)
	if spec.Size <= 0 || spec.Size > 64 {
		b.problem(path, "flags size must be between 1 and 64 bits, got %d", spec.Size)
	}
	little, ok := b.endian(spec, path)
	if ok {
		flags.LittleEndian = little
	}
	if flags.LittleEndian && spec.Size%8 != 0 {
		b.problem(path, "little endian flags need a whole number of bytes")
	}

	b.checkNames(path, spec.Elements)
	for _, fs := range spec.Elements {
		fpath := path + "." + fs.Name
		if strings.ToLower(fs.Type) != "flag" {
			b.problem(fpath, "flags may only contain flag elements, got %q", fs.Type)
			continue
		}
		if fs.Size <= 0 {
			b.problem(fpath, "flag size must be positive")
		}
		if fs.Position < 0 || fs.Position+fs.Size > spec.Size {
			b.problem(fpath, "flag bits %d..%d fall outside the %d bit region", fs.Position, fs.Position+fs.Size, spec.Size)
		}
		flag := dom.NewFlag(fs.Name, fs.Position, fs.Size)
		if fs.Value != nil {
			if _, ok := dom.ToUint64(fs.Value); !ok {
				b.problem(fpath, "flag value %v is not a number", fs.Value)
			}
			flag.DefaultValue = fs.Value
		}
		b.applyCommon(flag, fs, fpath)
		flags.AddFlag(flag)
	}
	return flags
}

func (b *builder) buildString(spec ElementSpec, path string) dom.Element {
	s := dom.NewString(spec.Name)
	enc, err := dom.ParseStringEncoding(spec.Encoding)
	if err != nil {
		b.problem(path, "%v", err)
	}
	s.Encoding = enc
	s.NullTerminated = spec.NullTerminated

	switch v := spec.Value.(type) {
	case nil:
	case string:
		s.DefaultValue = v
	default:
		s.DefaultValue = fmt.Sprint(v)
	}
	if spec.Hex != "" {
		raw, ok := b.bytesValue(spec, path)
		if ok {
			text, err := s.Decode(raw)
			if err != nil {
				b.problem(path, "%v", err)
			}
			s.DefaultValue = text
		}
	}
	return s
}

func (b *builder) buildNumber(spec ElementSpec, path string) dom.Element {
	n := dom.NewNumber(spec.Name, spec.Size, spec.Signed)
	if !bitstream.ValidWidth(spec.Size) {
		b.problem(path, "number size must be 8, 16, 32 or 64, got %d", spec.Size)
	}
	if little, ok := b.endian(spec, path); ok {
		n.LittleEndian = little
	}
	if spec.Value != nil {
		if _, ok := dom.ToInt64(spec.Value); !ok {
			if _, ok := dom.ToUint64(spec.Value); !ok {
				b.problem(path, "number value %v is not a number", spec.Value)
			}
		}
		n.DefaultValue = spec.Value
	}
	return n
}

func (b *builder) endian(spec ElementSpec, path string) (bool, bool) {
	if spec.Endian == "" {
		return b.little, true
	}
	little, ok := parseEndian(spec.Endian)
	if !ok {
		b.problem(path, "unknown endian %q", spec.Endian)
	}
	return little, ok
}

// bytesValue reads a blob value from hex or a plain string
func (b *builder) bytesValue(spec ElementSpec, path string) ([]byte, bool) {
	if spec.Hex != "" {
		clean := strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(spec.Hex)
		raw, err := hex.DecodeString(clean)
		if err != nil {
			b.problem(path, "invalid hex value: %v", err)
			return nil, false
		}
		return raw, true
	}
	switch v := spec.Value.(type) {
	case nil:
		return nil, false
	case string:
		return []byte(v), true
	default:
		b.problem(path, "blob value must be a string or hex")
		return nil, false
	}
}

// checkRelations verifies that every relation target resolves
func (b *builder) checkRelations(root dom.Element) {
	var visit func(e dom.Element)
	visit = func(e dom.Element) {
		for _, r := range e.Base().Relations {
			target := dom.Find(e, r.Of)
			if target == nil {
				b.problem(dom.FullName(e), "%s relation target %q not found", r.Kind, r.Of)
				continue
			}
			if r.Kind == dom.RelationCount {
				if _, ok := target.(*dom.Array); !ok {
					b.problem(dom.FullName(e), "count relation target %q is not an array", r.Of)
				}
			}
			if r.RelativeTo != "" && dom.Find(e, r.RelativeTo) == nil {
				b.problem(dom.FullName(e), "offset anchor %q not found", r.RelativeTo)
			}
		}
		switch v := e.(type) {
		case *dom.Array:
			visit(v.Template)
		case *dom.Choice:
			for _, alt := range v.Alternatives() {
				visit(alt)
			}
		case dom.Container:
			for _, c := range v.Children() {
				visit(c)
			}
		}
	}
	visit(root)
}
