// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the tagged expression variants.
//
// Why keep expressions unevaluated?
//
// Generated code must not contain an expression interpreter. The model
// captures the analyzed shape; the serializer turns it into the wire format;
// one evaluator in the runtime gives every expression its value against the
// live context. Literal leaves carry cty values because that is the runtime's
// value system — the model stays the single source for what a literal meant.
package program

import "github.com/zclconf/go-cty/cty"

// Expression is a tagged variant: Literal, VariableRef, MapLiteral,
// ArrayLiteral, Binary, Grouped or InterpolatedString.
type Expression interface {
	exprNode()
}

// Literal is a constant leaf: string, whole number, fraction, boolean or null.
type Literal struct {
	Value cty.Value
}

// VariableRef reads a binding, optionally projecting through a specifier
// path (nested property names or qualifier operations).
type VariableRef struct {
	Base       string
	Specifiers []string
}

// MapLiteral is an ordered set of key/expression entries. Order is preserved
// so serialization is deterministic.
type MapLiteral struct {
	Entries []MapEntry
}

// MapEntry is one key/value pair of a map literal.
type MapEntry struct {
	Key   string
	Value Expression
}

// ArrayLiteral is an ordered element list.
type ArrayLiteral struct {
	Items []Expression
}

// BinaryOp is the operator spelling shared with the wire format.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpMod BinaryOp = "%"
	OpEq  BinaryOp = "=="
	OpNeq BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpGt  BinaryOp = ">"
	OpLte BinaryOp = "<="
	OpGte BinaryOp = ">="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
)

// Binary applies an operator to two subexpressions.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

// Grouped preserves explicit parenthesization.
type Grouped struct {
	Inner Expression
}

// InterpolatedString is an ordered sequence of literal text and simple
// variable interpolations. Only simple references are supported inside
// interpolation; anything richer degrades to an empty placeholder when
// serialized.
type InterpolatedString struct {
	Parts []StringPart
}

// StringPart is one segment of an interpolated string. When Interp is
// non-empty the part is a variable placeholder (a dotted path); otherwise
// Literal holds plain text.
type StringPart struct {
	Literal string
	Interp  string
}

func (*Literal) exprNode()            {}
func (*VariableRef) exprNode()        {}
func (*MapLiteral) exprNode()         {}
func (*ArrayLiteral) exprNode()       {}
func (*Binary) exprNode()             {}
func (*Grouped) exprNode()            {}
func (*InterpolatedString) exprNode() {}
