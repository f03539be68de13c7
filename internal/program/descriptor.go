// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the descriptor value types shared by every statement.
//
// Why descriptors?
//
// A Fable statement names the binding it writes (the result) and the data it
// reads (the object) as (base, qualifier-list) pairs. Specifiers are doubly
// loaded: they act as type hints and as operation selectors. The resolution
// precedence — an explicit specifier wins, else a known operation name
// matching the base, else the default — lives with the runtime's qualifier
// table; the model only carries the raw parts.
package program

import "fmt"

// ResultDescriptor identifies the binding a statement writes to.
type ResultDescriptor struct {
	Base       string
	Specifiers []string
}

// ObjectDescriptor identifies the data a statement reads from, including the
// preposition that relates it to the verb.
type ObjectDescriptor struct {
	Base        string
	Preposition Preposition
	Specifiers  []string
}

// Preposition relates an action's object to its verb.
type Preposition int

const (
	PrepNone Preposition = iota
	PrepFrom
	PrepFor
	PrepWith
	PrepTo
	PrepInto
	PrepVia
	PrepAgainst
	PrepOn
	PrepBy
	PrepAt
)

var prepositionNames = map[Preposition]string{
	PrepNone:    "",
	PrepFrom:    "from",
	PrepFor:     "for",
	PrepWith:    "with",
	PrepTo:      "to",
	PrepInto:    "into",
	PrepVia:     "via",
	PrepAgainst: "against",
	PrepOn:      "on",
	PrepBy:      "by",
	PrepAt:      "at",
}

var prepositionValues = func() map[string]Preposition {
	m := make(map[string]Preposition, len(prepositionNames))
	for p, name := range prepositionNames {
		if name != "" {
			m[name] = p
		}
	}
	return m
}()

// ParsePreposition converts the serialized spelling into the enum. The empty
// string is valid and means the statement carried no preposition.
func ParsePreposition(s string) (Preposition, error) {
	if s == "" {
		return PrepNone, nil
	}
	if p, ok := prepositionValues[s]; ok {
		return p, nil
	}
	return PrepNone, fmt.Errorf("unknown preposition %q", s)
}

// String returns the surface spelling; PrepNone renders empty.
func (p Preposition) String() string {
	return prepositionNames[p]
}
