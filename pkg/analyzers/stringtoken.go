/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: stringtoken.go
Description: Splits a cracked string on punctuation tokens into nested blocks of
pre / token / post strings, so each piece can be mutated on its own.
*/

package analyzers

import (
	"fmt"
	"strings"

	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// DefaultTokens is the token set used when none is configured
const DefaultTokens = "\r\n\"'[]{}<>` \t.,~!@#$%^?&*_=+-|\\:;/"

// StringTokenAnalyzer splits strings around token characters
type StringTokenAnalyzer struct {
	tokens string
}

// NewStringTokenAnalyzer creates an analyzer over tokens; empty means DefaultTokens
func NewStringTokenAnalyzer(tokens string) *StringTokenAnalyzer {
	if tokens == "" {
		tokens = DefaultTokens
	}
	return &StringTokenAnalyzer{tokens: tokens}
}

// Name returns the registry name
func (a *StringTokenAnalyzer) Name() string {
	return "StringToken"
}

// Analyze returns a block tree for a string containing any token, nil otherwise
func (a *StringTokenAnalyzer) Analyze(leaf dom.Element, raw []byte) (dom.Element, error) {
	str, ok := leaf.(*dom.String)
	if !ok {
		return nil, fmt.Errorf("string token analyzer only handles strings, got %s", dom.TypeName(leaf))
	}
	text, ok := str.DefaultValue.(string)
	if !ok {
		return nil, fmt.Errorf("string %s holds no text", str.Name())
	}
	if !strings.ContainsAny(text, a.tokens) {
		return nil, nil
	}

	inner := a.piece(str.Name(), text, str.Encoding)
	block := dom.NewBlock(str.Name(), inner)
	block.Relations = str.Relations

	for _, tok := range a.tokens {
		a.split(block, tok, str.Encoding)
	}
	return block, nil
}

func (a *StringTokenAnalyzer) piece(name, text string, enc dom.StringEncoding) *dom.String {
	s := dom.NewString(name)
	s.Encoding = enc
	s.DefaultValue = text
	return s
}

// split replaces the first occurrence of tok in every string under e with a
// pre / token / post block, recursing into the post string
func (a *StringTokenAnalyzer) split(e dom.Element, tok rune, enc dom.StringEncoding) dom.Element {
	switch v := e.(type) {
	case *dom.String:
		text, _ := v.DefaultValue.(string)
		idx := strings.IndexRune(text, tok)
		if idx < 0 {
			return e
		}
		pre := a.piece("pre", text[:idx], enc)
		mark := a.piece("token", string(tok), enc)
		post := a.split(a.piece("post", text[idx+len(string(tok)):], enc), tok, enc)
		return dom.NewBlock(v.Name(), pre, mark, post)
	case *dom.Block:
		for _, child := range v.Children() {
			if repl := a.split(child, tok, enc); repl != child {
				_ = v.ReplaceChild(child, repl)
			}
		}
	}
	return e
}
