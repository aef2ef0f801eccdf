/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Structured cracking failures. Every error the engine returns is a
CrackingFailure naming the offending element and the bit position at failure.
*/

package cracker

import (
	"errors"
	"fmt"

	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// Kind classifies a cracking failure
type Kind int

const (
	InsufficientData Kind = iota
	TokenMismatch
	UnresolvedRelation
	NoAlternative
	UndeterminableLength
	MalformedSchema
	OccursUnmet
	AnalyzerFailed
)

// String returns a readable name for the kind
func (k Kind) String() string {
	switch k {
	case InsufficientData:
		return "insufficient_data"
	case TokenMismatch:
		return "token_mismatch"
	case UnresolvedRelation:
		return "unresolved_relation"
	case NoAlternative:
		return "no_alternative"
	case UndeterminableLength:
		return "undeterminable_length"
	case MalformedSchema:
		return "malformed_schema"
	case OccursUnmet:
		return "occurs_unmet"
	case AnalyzerFailed:
		return "analyzer_failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CrackingFailure is the structured error returned by Crack
type CrackingFailure struct {
	Kind     Kind
	Element  dom.Element
	Path     string // dotted name of Element
	Position uint64 // absolute bit position
	Message  string
	Err      error
}

func (f *CrackingFailure) Error() string {
	msg := fmt.Sprintf("%s at %s (bit %d)", f.Kind, f.Path, f.Position)
	if f.Message != "" {
		msg += ": " + f.Message
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *CrackingFailure) Unwrap() error {
	return f.Err
}

// KindOf extracts the failure kind from err
func KindOf(err error) (Kind, bool) {
	var f *CrackingFailure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

// IsFailure reports whether err is a structured cracking failure
func IsFailure(err error) bool {
	var f *CrackingFailure
	return errors.As(err, &f)
}

func newFailure(kind Kind, e dom.Element, pos uint64, err error, format string, args ...any) *CrackingFailure {
	return &CrackingFailure{
		Kind:     kind,
		Element:  e,
		Path:     dom.FullName(e),
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	}
}

// asFailure passes structured failures through unchanged and converts
// anything else (bit stream errors in particular) into one for e
func asFailure(e dom.Element, pos uint64, err error) *CrackingFailure {
	var f *CrackingFailure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, bitstream.ErrInsufficientData) {
		return newFailure(InsufficientData, e, pos, err, "not enough data")
	}
	return newFailure(MalformedSchema, e, pos, err, "unexpected error")
}
