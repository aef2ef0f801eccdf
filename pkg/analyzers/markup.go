/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: markup.go
Description: Parses an HTML or XML string leaf with goquery and rebuilds it as a block
tree: one block per element, attribute strings prefixed with @ and text strings.
*/

package analyzers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
)

// MarkupAnalyzer turns markup text into an element tree
type MarkupAnalyzer struct{}

// NewMarkupAnalyzer creates the analyzer
func NewMarkupAnalyzer() *MarkupAnalyzer {
	return &MarkupAnalyzer{}
}

// Name returns the registry name
func (m *MarkupAnalyzer) Name() string {
	return "Markup"
}

// Analyze parses the string value. Text without any element is left alone.
func (m *MarkupAnalyzer) Analyze(leaf dom.Element, raw []byte) (dom.Element, error) {
	str, ok := leaf.(*dom.String)
	if !ok {
		return nil, fmt.Errorf("markup analyzer only handles strings, got %s", dom.TypeName(leaf))
	}
	text, ok := str.DefaultValue.(string)
	if !ok {
		return nil, fmt.Errorf("string %s holds no text", str.Name())
	}
	if !strings.Contains(text, "<") {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	// The parser wraps fragments in html/head/body; keep only what was written
	top := doc.Find("body").Contents()
	if strings.Contains(strings.ToLower(text), "<html") {
		top = doc.Children()
	}

	root := dom.NewBlock(str.Name())
	m.build(root, top, str.Encoding)
	if len(root.Children()) == 0 {
		return nil, nil
	}
	root.Relations = str.Relations
	return root, nil
}

// build appends one element per node of sel to parent
func (m *MarkupAnalyzer) build(parent *dom.Block, sel *goquery.Selection, enc dom.StringEncoding) {
	seen := make(map[string]int)
	unique := func(name string) string {
		n := seen[name]
		seen[name] = n + 1
		if n == 0 {
			return name
		}
		return fmt.Sprintf("%s_%d", name, n)
	}

	sel.Each(func(_ int, node *goquery.Selection) {
		switch name := goquery.NodeName(node); {
		case name == "#text":
			if strings.TrimSpace(node.Text()) == "" {
				return
			}
			parent.Append(textString(unique("text"), node.Text(), enc))
		case strings.HasPrefix(name, "#"):
			// comments, doctype
		default:
			block := dom.NewBlock(unique(name))
			for _, attr := range node.Get(0).Attr {
				block.Append(textString("@"+attr.Key, attr.Val, enc))
			}
			m.build(block, node.Contents(), enc)
			parent.Append(block)
		}
	})
}

func textString(name, value string, enc dom.StringEncoding) *dom.String {
	s := dom.NewString(name)
	s.Encoding = enc
	s.DefaultValue = value
	return s
}
