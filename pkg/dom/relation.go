/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: relation.go
Description: Relations between elements. A relation is declared on the element holding
the value (From) and names its target (Of). Size, offset and count relations may carry
an HCL expression that transforms the raw field value before it is used.
*/

package dom

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// RelationKind identifies what a relation's value means
type RelationKind int

const (
	RelationSize RelationKind = iota
	RelationOffset
	RelationCount
)

// String returns the schema spelling of the kind
func (k RelationKind) String() string {
	switch k {
	case RelationOffset:
		return "offset"
	case RelationCount:
		return "count"
	default:
		return "size"
	}
}

// ParseRelationKind parses a schema relation kind
func ParseRelationKind(s string) (RelationKind, error) {
	switch s {
	case "size", "size-of", "sizeOf":
		return RelationSize, nil
	case "offset", "offset-of", "offsetOf":
		return RelationOffset, nil
	case "count", "count-of", "countOf":
		return RelationCount, nil
	}
	return RelationSize, fmt.Errorf("unknown relation kind: %s", s)
}

// Relation is a named cross reference; it never owns its target
type Relation struct {
	Kind RelationKind
	Of   string // dotted name of the target, resolved from the declaring element

	// ExpressionGet transforms the raw value, e.g. "value - 4"
	ExpressionGet string

	// Offset relations only
	Relative   bool   // relative instead of from the start of the input
	RelativeTo string // anchor element; empty means the declaring element

	expr hcl.Expression
}

// NewRelation creates a relation of kind targeting of
func NewRelation(kind RelationKind, of string) *Relation {
	return &Relation{Kind: kind, Of: of}
}

var expressionFunctions = map[string]function.Function{
	"abs":   stdlib.AbsoluteFunc,
	"ceil":  stdlib.CeilFunc,
	"floor": stdlib.FloorFunc,
	"max":   stdlib.MaxFunc,
	"min":   stdlib.MinFunc,
}

// Compile parses ExpressionGet once; loaders call it up front
func (r *Relation) Compile() error {
	if r.ExpressionGet == "" || r.expr != nil {
		return nil
	}
	expr, diags := hclsyntax.ParseExpression([]byte(r.ExpressionGet), "relation", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse relation expression %q: %s", r.ExpressionGet, diags.Error())
	}
	r.expr = expr
	return nil
}

// Apply runs ExpressionGet over value. The value is visible as `value` and
// under the kind's own name (`size`, `offset` or `count`).
func (r *Relation) Apply(value int64) (int64, error) {
	if r.ExpressionGet == "" {
		return value, nil
	}
	if err := r.Compile(); err != nil {
		return 0, err
	}

	v := cty.NumberIntVal(value)
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"value":         v,
			r.Kind.String(): v,
		},
		Functions: expressionFunctions,
	}

	out, diags := r.expr.Value(ctx)
	if diags.HasErrors() {
		return 0, fmt.Errorf("failed to evaluate relation expression %q: %s", r.ExpressionGet, diags.Error())
	}
	if out.IsNull() || !out.IsKnown() || out.Type() != cty.Number {
		return 0, fmt.Errorf("relation expression %q did not produce a number", r.ExpressionGet)
	}

	// Fractions truncate toward zero
	result, _ := out.AsBigFloat().Int64()
	return result, nil
}
