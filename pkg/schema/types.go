/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: YAML data model document types. A document names the model, an optional
default byte order and the top level elements; elements nest through `elements`.
*/

package schema

import (
	"fmt"
	"strings"

	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// Document is the top level of a data model file
type Document struct {
	Name     string        `yaml:"name"`
	Endian   string        `yaml:"endian,omitempty"`
	Elements []ElementSpec `yaml:"elements"`
}

// ElementSpec declares one element of the model
type ElementSpec struct {
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type"`
	Token          bool           `yaml:"token,omitempty"`
	Value          any            `yaml:"value,omitempty"`
	Hex            string         `yaml:"hex,omitempty"`
	Length         *uint64        `yaml:"length,omitempty"`
	LengthType     string         `yaml:"length_type,omitempty"`
	Size           int            `yaml:"size,omitempty"`
	Signed         bool           `yaml:"signed,omitempty"`
	Endian         string         `yaml:"endian,omitempty"`
	Encoding       string         `yaml:"encoding,omitempty"`
	NullTerminated bool           `yaml:"null_terminated,omitempty"`
	Position       int            `yaml:"position,omitempty"`
	MinOccurs      *int           `yaml:"min_occurs,omitempty"`
	MaxOccurs      *int           `yaml:"max_occurs,omitempty"`
	Analyzer       string         `yaml:"analyzer,omitempty"`
	Relations      []RelationSpec `yaml:"relations,omitempty"`
	Elements       []ElementSpec  `yaml:"elements,omitempty"`
}

// RelationSpec declares a relation from the enclosing element
type RelationSpec struct {
	Kind       string `yaml:"kind"`
	Of         string `yaml:"of"`
	Expression string `yaml:"expression,omitempty"`
	Relative   bool   `yaml:"relative,omitempty"`
	RelativeTo string `yaml:"relative_to,omitempty"`
}

// Model is a loaded, validated data model
type Model struct {
	Name   string
	Source string // file path, empty when parsed from memory
	Root   *dom.Block
}

// Instance returns a fresh deep copy of the model tree for one crack pass
func (m *Model) Instance() *dom.Block {
	return dom.Clone(m.Root).(*dom.Block)
}

// ValidationError lists every problem found in a document
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid data model (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func parseEndian(s string) (little bool, ok bool) {
	switch strings.ToLower(s) {
	case "", "big", "be", "network":
		return false, true
	case "little", "le":
		return true, true
	}
	return false, false
}
