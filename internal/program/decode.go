// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file decodes HCL feature blocks into the model.
//
// Why manual block walking instead of gohcl struct tags?
//
// Statements must keep their source order, and a feature body freely mixes
// action, match, foreach and publish blocks. Tag-based decoding splits blocks
// into per-type slices and loses the interleaving, so feature bodies are
// walked through hcl.Body.Content, which yields blocks in declaration order.
// Attribute expressions stay hclsyntax trees until convertExpression maps
// them onto the model's tagged variants.
package program

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fablego/internal/ctxlog"
)

// decoder carries the per-file decode state.
type decoder struct {
	ctx      context.Context
	filePath string
}

var featureSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "activity", Required: true},
	},
	Blocks: statementBlockHeaders,
}

// statementBlockHeaders lists the four statement block types. Bodies that
// contain statements (features, case bodies, loop bodies) extend this list
// with their own block types.
var statementBlockHeaders = []hcl.BlockHeaderSchema{
	{Type: "action", LabelNames: []string{"verb"}},
	{Type: "match"},
	{Type: "foreach"},
	{Type: "publish"},
}

func statementSchema(extraAttrs []hcl.AttributeSchema, extraBlocks ...hcl.BlockHeaderSchema) *hcl.BodySchema {
	return &hcl.BodySchema{
		Attributes: extraAttrs,
		Blocks:     append(append([]hcl.BlockHeaderSchema{}, statementBlockHeaders...), extraBlocks...),
	}
}

// decodeFeature turns a feature block into a classified FeatureSet.
func (d *decoder) decodeFeature(block *hcl.Block) (*FeatureSet, error) {
	name := block.Labels[0]
	content, diags := block.Body.Content(featureSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("feature %q: %s", name, diags.Error())
	}

	activity, err := attrString(content.Attributes["activity"])
	if err != nil {
		return nil, fmt.Errorf("feature %q: %w", name, err)
	}

	stmts, err := d.decodeStatementBlocks(content.Blocks)
	if err != nil {
		return nil, fmt.Errorf("feature %q: %w", name, err)
	}

	src := NewSourceInfo(d.filePath, block.DefRange.Start.Line)
	return NewFeatureSet(name, activity, stmts, src), nil
}

// decodeStatementBlocks converts an ordered block list, skipping block types
// that are not statements (callers filter those out beforehand).
func (d *decoder) decodeStatementBlocks(blocks hcl.Blocks) ([]Statement, error) {
	stmts := make([]Statement, 0, len(blocks))
	for _, block := range blocks {
		stmt, err := d.decodeStatement(block)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// decodeStatement dispatches on the block type. Non-statement blocks return
// nil so mixed bodies can share one walk.
func (d *decoder) decodeStatement(block *hcl.Block) (Statement, error) {
	switch block.Type {
	case "action":
		return d.decodeAction(block)
	case "match":
		return d.decodeMatch(block)
	case "foreach":
		return d.decodeForEach(block)
	case "publish":
		return d.decodePublish(block)
	default:
		return nil, nil
	}
}

var actionSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "literal"},
		{Name: "expression"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "result", LabelNames: []string{"base"}},
		{Type: "object", LabelNames: []string{"base"}},
		{Type: "aggregate"},
		{Type: "where"},
		{Type: "by"},
	},
}

func (d *decoder) decodeAction(block *hcl.Block) (*ActionStatement, error) {
	verb := block.Labels[0]
	content, diags := block.Body.Content(actionSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("action %q: %s", verb, diags.Error())
	}

	stmt := &ActionStatement{
		Verb:   verb,
		Result: ResultDescriptor{Base: "result"},
	}

	if attr, ok := content.Attributes["literal"]; ok {
		lit, err := attrString(attr)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", verb, err)
		}
		stmt.Literal = &lit
	}
	if attr, ok := content.Attributes["expression"]; ok {
		expr, err := d.convertExpression(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", verb, err)
		}
		stmt.Expression = expr
	}

	for _, inner := range content.Blocks {
		var err error
		switch inner.Type {
		case "result":
			stmt.Result, err = decodeResult(inner)
		case "object":
			stmt.Object, err = decodeObject(inner)
		case "aggregate":
			stmt.Aggregation, err = decodeAggregate(inner)
		case "where":
			stmt.Where, err = d.decodeWhere(inner)
		case "by":
			stmt.Pattern, err = decodeBy(inner)
		}
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", verb, err)
		}
	}
	return stmt, nil
}

var descriptorSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "specifiers"},
		{Name: "preposition"},
	},
}

func decodeResult(block *hcl.Block) (ResultDescriptor, error) {
	content, diags := block.Body.Content(descriptorSchema)
	if diags.HasErrors() {
		return ResultDescriptor{}, fmt.Errorf("result %q: %s", block.Labels[0], diags.Error())
	}
	if _, ok := content.Attributes["preposition"]; ok {
		return ResultDescriptor{}, fmt.Errorf("result %q: result descriptors take no preposition", block.Labels[0])
	}
	specs, err := attrStringList(content.Attributes["specifiers"])
	if err != nil {
		return ResultDescriptor{}, fmt.Errorf("result %q: %w", block.Labels[0], err)
	}
	return ResultDescriptor{Base: block.Labels[0], Specifiers: specs}, nil
}

func decodeObject(block *hcl.Block) (ObjectDescriptor, error) {
	content, diags := block.Body.Content(descriptorSchema)
	if diags.HasErrors() {
		return ObjectDescriptor{}, fmt.Errorf("object %q: %s", block.Labels[0], diags.Error())
	}
	desc := ObjectDescriptor{Base: block.Labels[0]}

	if attr, ok := content.Attributes["preposition"]; ok {
		raw, err := attrString(attr)
		if err != nil {
			return ObjectDescriptor{}, fmt.Errorf("object %q: %w", block.Labels[0], err)
		}
		desc.Preposition, err = ParsePreposition(raw)
		if err != nil {
			return ObjectDescriptor{}, fmt.Errorf("object %q: %w", block.Labels[0], err)
		}
	}

	specs, err := attrStringList(content.Attributes["specifiers"])
	if err != nil {
		return ObjectDescriptor{}, fmt.Errorf("object %q: %w", block.Labels[0], err)
	}
	desc.Specifiers = specs
	return desc, nil
}

var aggregateSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
		{Name: "field"},
	},
}

func decodeAggregate(block *hcl.Block) (*Aggregation, error) {
	content, diags := block.Body.Content(aggregateSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("aggregate: %s", diags.Error())
	}
	aggType, err := attrString(content.Attributes["type"])
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	agg := &Aggregation{Type: aggType}
	if attr, ok := content.Attributes["field"]; ok {
		if agg.Field, err = attrString(attr); err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}
	}
	return agg, nil
}

var whereSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "field", Required: true},
		{Name: "op", Required: true},
		{Name: "value"},
	},
}

func (d *decoder) decodeWhere(block *hcl.Block) (*Where, error) {
	content, diags := block.Body.Content(whereSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("where: %s", diags.Error())
	}
	field, err := attrString(content.Attributes["field"])
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	op, err := attrString(content.Attributes["op"])
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	w := &Where{Field: field, Op: op}
	if attr, ok := content.Attributes["value"]; ok {
		if w.Value, err = d.convertExpression(attr.Expr); err != nil {
			return nil, fmt.Errorf("where: %w", err)
		}
	}
	return w, nil
}

var bySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "pattern", Required: true},
		{Name: "flags"},
	},
}

func decodeBy(block *hcl.Block) (*Pattern, error) {
	content, diags := block.Body.Content(bySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("by: %s", diags.Error())
	}
	text, err := attrString(content.Attributes["pattern"])
	if err != nil {
		return nil, fmt.Errorf("by: %w", err)
	}
	p := &Pattern{Text: text}
	if attr, ok := content.Attributes["flags"]; ok {
		if p.Flags, err = attrString(attr); err != nil {
			return nil, fmt.Errorf("by: %w", err)
		}
	}
	return p, nil
}

var matchSchema = statementSchema(nil,
	hcl.BlockHeaderSchema{Type: "subject", LabelNames: []string{"base"}},
	hcl.BlockHeaderSchema{Type: "case"},
	hcl.BlockHeaderSchema{Type: "otherwise"},
)

func (d *decoder) decodeMatch(block *hcl.Block) (*MatchStatement, error) {
	content, diags := block.Body.Content(matchSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("match: %s", diags.Error())
	}

	stmt := &MatchStatement{}
	haveSubject := false
	for _, inner := range content.Blocks {
		switch inner.Type {
		case "subject":
			subj, err := decodeObject(inner)
			if err != nil {
				return nil, fmt.Errorf("match: %w", err)
			}
			stmt.Subject = subj
			haveSubject = true
		case "case":
			c, err := d.decodeCase(inner)
			if err != nil {
				return nil, fmt.Errorf("match: %w", err)
			}
			stmt.Cases = append(stmt.Cases, c)
		case "otherwise":
			body, err := d.decodeNestedBody(inner.Body, nil)
			if err != nil {
				return nil, fmt.Errorf("match otherwise: %w", err)
			}
			stmt.Otherwise = body
		}
	}
	if !haveSubject {
		return nil, fmt.Errorf("match at %s: missing subject block", block.DefRange)
	}
	return stmt, nil
}

var caseSchema = statementSchema([]hcl.AttributeSchema{
	{Name: "equals"},
	{Name: "regex"},
	{Name: "bind"},
	{Name: "wildcard"},
})

func (d *decoder) decodeCase(block *hcl.Block) (MatchCase, error) {
	content, diags := block.Body.Content(caseSchema)
	if diags.HasErrors() {
		return MatchCase{}, fmt.Errorf("case: %s", diags.Error())
	}

	pattern, err := decodeCasePattern(block, content.Attributes)
	if err != nil {
		return MatchCase{}, err
	}
	body, err := d.decodeStatementBlocks(content.Blocks)
	if err != nil {
		return MatchCase{}, fmt.Errorf("case: %w", err)
	}
	return MatchCase{Pattern: pattern, Body: body}, nil
}

// decodeCasePattern requires exactly one of the four pattern attributes.
func decodeCasePattern(block *hcl.Block, attrs hcl.Attributes) (CasePattern, error) {
	var (
		pattern CasePattern
		count   int
	)
	if attr, ok := attrs["equals"]; ok {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return CasePattern{}, fmt.Errorf("case equals: %s", diags.Error())
		}
		pattern = CasePattern{Kind: CaseLiteral, Literal: val}
		count++
	}
	if attr, ok := attrs["regex"]; ok {
		expr, err := attrString(attr)
		if err != nil {
			return CasePattern{}, fmt.Errorf("case regex: %w", err)
		}
		pattern = CasePattern{Kind: CaseRegex, Regex: expr}
		count++
	}
	if attr, ok := attrs["bind"]; ok {
		name, err := attrString(attr)
		if err != nil {
			return CasePattern{}, fmt.Errorf("case bind: %w", err)
		}
		pattern = CasePattern{Kind: CaseBind, Name: name}
		count++
	}
	if attr, ok := attrs["wildcard"]; ok {
		wild, err := attrBool(attr)
		if err != nil {
			return CasePattern{}, fmt.Errorf("case wildcard: %w", err)
		}
		if wild {
			pattern = CasePattern{Kind: CaseWildcard}
			count++
		}
	}
	if count != 1 {
		return CasePattern{}, fmt.Errorf("case at %s: exactly one of equals, regex, bind or wildcard is required", block.DefRange)
	}
	return pattern, nil
}

var forEachSchema = statementSchema([]hcl.AttributeSchema{
	{Name: "item", Required: true},
	{Name: "index"},
	{Name: "parallel"},
	{Name: "limit"},
	{Name: "where"},
}, hcl.BlockHeaderSchema{Type: "collection", LabelNames: []string{"base"}})

func (d *decoder) decodeForEach(block *hcl.Block) (*ForEachLoop, error) {
	content, diags := block.Body.Content(forEachSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("foreach: %s", diags.Error())
	}

	loop := &ForEachLoop{}
	var err error
	if loop.ItemVar, err = attrString(content.Attributes["item"]); err != nil {
		return nil, fmt.Errorf("foreach: %w", err)
	}
	if attr, ok := content.Attributes["index"]; ok {
		if loop.IndexVar, err = attrString(attr); err != nil {
			return nil, fmt.Errorf("foreach: %w", err)
		}
	}
	if attr, ok := content.Attributes["parallel"]; ok {
		if loop.Parallel, err = attrBool(attr); err != nil {
			return nil, fmt.Errorf("foreach: %w", err)
		}
	}
	if attr, ok := content.Attributes["limit"]; ok {
		if loop.Concurrency, err = attrInt(attr); err != nil {
			return nil, fmt.Errorf("foreach: %w", err)
		}
		if loop.Concurrency < 0 {
			return nil, fmt.Errorf("foreach at %s: limit cannot be negative, got %d", block.DefRange, loop.Concurrency)
		}
	}
	if attr, ok := content.Attributes["where"]; ok {
		if loop.Filter, err = d.convertExpression(attr.Expr); err != nil {
			return nil, fmt.Errorf("foreach where: %w", err)
		}
	}

	haveCollection := false
	var bodyBlocks hcl.Blocks
	for _, inner := range content.Blocks {
		if inner.Type == "collection" {
			if loop.Collection, err = decodeObject(inner); err != nil {
				return nil, fmt.Errorf("foreach: %w", err)
			}
			haveCollection = true
			continue
		}
		bodyBlocks = append(bodyBlocks, inner)
	}
	if !haveCollection {
		return nil, fmt.Errorf("foreach at %s: missing collection block", block.DefRange)
	}
	if loop.Body, err = d.decodeStatementBlocks(bodyBlocks); err != nil {
		return nil, fmt.Errorf("foreach: %w", err)
	}
	return loop, nil
}

// decodeNestedBody decodes a body that holds only statement blocks.
func (d *decoder) decodeNestedBody(body hcl.Body, extraAttrs []hcl.AttributeSchema) ([]Statement, error) {
	content, diags := body.Content(statementSchema(extraAttrs))
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}
	return d.decodeStatementBlocks(content.Blocks)
}

var publishSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name", Required: true},
		{Name: "variable", Required: true},
	},
}

func (d *decoder) decodePublish(block *hcl.Block) (*PublishStatement, error) {
	content, diags := block.Body.Content(publishSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("publish: %s", diags.Error())
	}
	name, err := attrString(content.Attributes["name"])
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	variable, err := attrString(content.Attributes["variable"])
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return &PublishStatement{ExternalName: name, InternalVariable: variable}, nil
}

// binaryOps maps hclsyntax operations onto the model's operator spellings.
var binaryOps = map[*hclsyntax.Operation]BinaryOp{
	hclsyntax.OpAdd:                OpAdd,
	hclsyntax.OpSubtract:           OpSub,
	hclsyntax.OpMultiply:           OpMul,
	hclsyntax.OpDivide:             OpDiv,
	hclsyntax.OpModulo:             OpMod,
	hclsyntax.OpEqual:              OpEq,
	hclsyntax.OpNotEqual:           OpNeq,
	hclsyntax.OpLessThan:           OpLt,
	hclsyntax.OpGreaterThan:        OpGt,
	hclsyntax.OpLessThanOrEqual:    OpLte,
	hclsyntax.OpGreaterThanOrEqual: OpGte,
	hclsyntax.OpLogicalAnd:         OpAnd,
	hclsyntax.OpLogicalOr:          OpOr,
}

// convertExpression maps an hclsyntax tree onto the model's expression
// variants. Anything outside the analyzed model's vocabulary is an error —
// the analyzer never produces it, so its presence means a corrupt file.
func (d *decoder) convertExpression(expr hcl.Expression) (Expression, error) {
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		return &Literal{Value: e.Val}, nil

	case *hclsyntax.TemplateExpr:
		if e.IsStringLiteral() {
			val, diags := e.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("string literal at %s: %s", e.Range(), diags.Error())
			}
			return &Literal{Value: val}, nil
		}
		return d.convertTemplate(e)

	case *hclsyntax.TemplateWrapExpr:
		return d.convertExpression(e.Wrapped)

	case *hclsyntax.ScopeTraversalExpr:
		base, specs, err := traversalParts(e.Traversal)
		if err != nil {
			return nil, fmt.Errorf("variable reference at %s: %w", e.Range(), err)
		}
		return &VariableRef{Base: base, Specifiers: specs}, nil

	case *hclsyntax.TupleConsExpr:
		arr := &ArrayLiteral{Items: make([]Expression, 0, len(e.Exprs))}
		for _, item := range e.Exprs {
			converted, err := d.convertExpression(item)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, converted)
		}
		return arr, nil

	case *hclsyntax.ObjectConsExpr:
		m := &MapLiteral{Entries: make([]MapEntry, 0, len(e.Items))}
		for _, item := range e.Items {
			keyVal, diags := item.KeyExpr.Value(nil)
			if diags.HasErrors() || keyVal.Type() != cty.String {
				return nil, fmt.Errorf("map literal at %s: keys must be static strings", e.Range())
			}
			converted, err := d.convertExpression(item.ValueExpr)
			if err != nil {
				return nil, err
			}
			m.Entries = append(m.Entries, MapEntry{Key: keyVal.AsString(), Value: converted})
		}
		return m, nil

	case *hclsyntax.BinaryOpExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported binary operator at %s", e.Range())
		}
		left, err := d.convertExpression(e.LHS)
		if err != nil {
			return nil, err
		}
		right, err := d.convertExpression(e.RHS)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: left, Right: right}, nil

	case *hclsyntax.ParenthesesExpr:
		inner, err := d.convertExpression(e.Expression)
		if err != nil {
			return nil, err
		}
		return &Grouped{Inner: inner}, nil

	case *hclsyntax.UnaryOpExpr:
		// Negative number literals arrive as a negate around a literal.
		if e.Op == hclsyntax.OpNegate {
			inner, err := d.convertExpression(e.Val)
			if err != nil {
				return nil, err
			}
			if lit, ok := inner.(*Literal); ok && lit.Value.Type() == cty.Number {
				return &Literal{Value: lit.Value.Multiply(cty.NumberIntVal(-1))}, nil
			}
		}
		return nil, fmt.Errorf("unsupported unary expression at %s", e.Range())

	default:
		return nil, fmt.Errorf("unsupported expression %T at %s", expr, expr.Range())
	}
}

// convertTemplate reduces a template to literal and interpolation parts.
// Interpolations richer than a simple variable reference are not part of the
// analyzed model; they degrade to an empty placeholder with a warning so the
// author learns which feature set dropped text.
func (d *decoder) convertTemplate(e *hclsyntax.TemplateExpr) (Expression, error) {
	logger := ctxlog.FromContext(d.ctx)
	out := &InterpolatedString{Parts: make([]StringPart, 0, len(e.Parts))}

	for _, part := range e.Parts {
		switch p := part.(type) {
		case *hclsyntax.LiteralValueExpr:
			if p.Val.Type() != cty.String {
				return nil, fmt.Errorf("template at %s: non-string literal part", e.Range())
			}
			out.Parts = append(out.Parts, StringPart{Literal: p.Val.AsString()})
		case *hclsyntax.ScopeTraversalExpr:
			base, specs, err := traversalParts(p.Traversal)
			if err != nil {
				return nil, fmt.Errorf("template at %s: %w", e.Range(), err)
			}
			path := base
			for _, s := range specs {
				path += "." + s
			}
			out.Parts = append(out.Parts, StringPart{Interp: path})
		default:
			logger.Warn("Interpolation supports only simple variable references; part degrades to an empty placeholder.",
				"range", part.Range().String())
			out.Parts = append(out.Parts, StringPart{Literal: ""})
		}
	}
	return out, nil
}

// traversalParts splits a traversal into its base name and specifier path.
func traversalParts(traversal hcl.Traversal) (string, []string, error) {
	base := traversal.RootName()
	var specs []string
	for _, step := range traversal[1:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			specs = append(specs, s.Name)
		case hcl.TraverseIndex:
			switch s.Key.Type() {
			case cty.String:
				specs = append(specs, s.Key.AsString())
			case cty.Number:
				idx, _ := s.Key.AsBigFloat().Int64()
				specs = append(specs, fmt.Sprintf("%d", idx))
			default:
				return "", nil, fmt.Errorf("unsupported index type %s", s.Key.Type().FriendlyName())
			}
		default:
			return "", nil, fmt.Errorf("unsupported traversal step")
		}
	}
	return base, specs, nil
}

// attrString evaluates an attribute that must be a static string.
func attrString(attr *hcl.Attribute) (string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", fmt.Errorf("attribute %q: %s", attr.Name, diags.Error())
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("attribute %q must be a string, got %s", attr.Name, val.Type().FriendlyName())
	}
	return val.AsString(), nil
}

// attrStringList evaluates an optional attribute holding a list of strings.
func attrStringList(attr *hcl.Attribute) ([]string, error) {
	if attr == nil {
		return nil, nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("attribute %q: %s", attr.Name, diags.Error())
	}
	if !val.Type().IsTupleType() && !val.Type().IsListType() {
		return nil, fmt.Errorf("attribute %q must be a list of strings", attr.Name)
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.Type() != cty.String {
			return nil, fmt.Errorf("attribute %q must contain only strings", attr.Name)
		}
		out = append(out, v.AsString())
	}
	return out, nil
}

// attrBool evaluates an attribute that must be a static bool.
func attrBool(attr *hcl.Attribute) (bool, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return false, fmt.Errorf("attribute %q: %s", attr.Name, diags.Error())
	}
	if val.Type() != cty.Bool {
		return false, fmt.Errorf("attribute %q must be a bool, got %s", attr.Name, val.Type().FriendlyName())
	}
	return val.True(), nil
}

// attrInt evaluates an attribute that must be a static whole number.
func attrInt(attr *hcl.Attribute) (int, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return 0, fmt.Errorf("attribute %q: %s", attr.Name, diags.Error())
	}
	if val.Type() != cty.Number {
		return 0, fmt.Errorf("attribute %q must be a number, got %s", attr.Name, val.Type().FriendlyName())
	}
	n, _ := val.AsBigFloat().Int64()
	return int(n), nil
}
