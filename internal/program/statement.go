// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the tagged statement variants.
//
// Why a closed interface?
//
// The generator lowers statements with an exhaustive type switch. Keeping the
// variants in one file behind an unexported marker method makes the set
// closed: a new statement kind cannot appear without the generator learning
// about it in the same change.
package program

import "github.com/zclconf/go-cty/cty"

// Statement is one step in a feature set's ordered body. It is a tagged
// variant: ActionStatement, PublishStatement, MatchStatement or ForEachLoop.
type Statement interface {
	stmtNode()
}

// ActionStatement is a verb applied to a result/object descriptor pair, with
// the optional clauses a statement may carry. Nil pointers mean the clause
// was absent.
type ActionStatement struct {
	Verb        string
	Result      ResultDescriptor
	Object      ObjectDescriptor
	Literal     *string
	Expression  Expression
	Aggregation *Aggregation
	Where       *Where
	Pattern     *Pattern
}

// Aggregation is the optional aggregation clause of an action statement.
type Aggregation struct {
	Type  string
	Field string
}

// Where is the optional filter clause of an action statement. Value stays an
// expression so the comparison operand can reference runtime bindings.
type Where struct {
	Field string
	Op    string
	Value Expression
}

// Pattern is the optional "by" clause: a pattern text and its flags, consumed
// by the pattern-matching actions.
type Pattern struct {
	Text  string
	Flags string
}

// PublishStatement exports an internal binding under an external name.
type PublishStatement struct {
	ExternalName     string
	InternalVariable string
}

// MatchStatement tries its case clauses in source order against the subject;
// the first matching case's body runs. Otherwise may be nil, in which case an
// unmatched subject falls through without effect.
type MatchStatement struct {
	Subject   ObjectDescriptor
	Cases     []MatchCase
	Otherwise []Statement
}

// MatchCase pairs one pattern with its body.
type MatchCase struct {
	Pattern CasePattern
	Body    []Statement
}

// CasePatternKind tags the four case pattern forms.
type CasePatternKind int

const (
	// CaseLiteral matches by equality against the subject.
	CaseLiteral CasePatternKind = iota
	// CaseWildcard matches unconditionally.
	CaseWildcard
	// CaseBind matches unconditionally and binds the subject to a name.
	CaseBind
	// CaseRegex matches the stringified subject against a pattern.
	CaseRegex
)

// CasePattern is the tagged pattern of a match case. Literal is set for
// CaseLiteral, Name for CaseBind, Regex for CaseRegex.
type CasePattern struct {
	Kind    CasePatternKind
	Literal cty.Value
	Name    string
	Regex   string
}

// ForEachLoop iterates a collection serially or in parallel. IndexVar may be
// empty; Filter may be nil; Concurrency zero means the runtime default.
type ForEachLoop struct {
	ItemVar     string
	IndexVar    string
	Collection  ObjectDescriptor
	Filter      Expression
	Parallel    bool
	Concurrency int
	Body        []Statement
}

func (*ActionStatement) stmtNode()  {}
func (*PublishStatement) stmtNode() {}
func (*MatchStatement) stmtNode()   {}
func (*ForEachLoop) stmtNode()      {}
