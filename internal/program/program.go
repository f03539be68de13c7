// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Program structure, the root container for all feature
// sets loaded from a user's .fable.hcl files.
//
// Why have a Program?
//
// A user may split an application across many files and directories. The
// Program consolidates every 'feature' block into a single unified view, which
// is what enables program-wide analysis: the generator validates entry-point
// and exit-handler uniqueness across file boundaries, and the entry-point
// choreography registers handlers and observers from the complete set.
package program

import "fmt"

// Program represents one fully loaded, analyzed Fable application.
type Program struct {
	FeatureSets []*FeatureSet
}

// NewProgram creates and returns an initialized, empty Program.
func NewProgram() *Program {
	return &Program{FeatureSets: []*FeatureSet{}}
}

// FeatureSet is a named unit of behavior with an ordered statement list. The
// Role is derived from the Activity text exactly once, at construction.
type FeatureSet struct {
	Name       string
	Activity   string
	Role       Role
	Statements []Statement
	Source     *SourceInfo
}

// NewFeatureSet constructs a feature set and classifies its activity text.
func NewFeatureSet(name, activity string, statements []Statement, src *SourceInfo) *FeatureSet {
	return &FeatureSet{
		Name:       name,
		Activity:   activity,
		Role:       ClassifyActivity(activity),
		Statements: statements,
		Source:     src,
	}
}

// ByRole returns every feature set whose role kind matches, in load order.
func (p *Program) ByRole(kind RoleKind) []*FeatureSet {
	var out []*FeatureSet
	for _, fs := range p.FeatureSets {
		if fs.Role.Kind == kind {
			out = append(out, fs)
		}
	}
	return out
}

// EntryPoint returns the unique entry-point feature set. It returns an error
// when the program declares zero or more than one; the generator surfaces
// that error before any lowering happens.
func (p *Program) EntryPoint() (*FeatureSet, error) {
	entries := p.ByRole(RoleEntry)
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("program has no entry point: no feature set with activity %q", ActivityEntry)
	case 1:
		return entries[0], nil
	default:
		return nil, fmt.Errorf("program has %d entry points: %s and %s both use activity %q",
			len(entries), entries[0].describe(), entries[1].describe(), ActivityEntry)
	}
}

// ExitHandler returns the at-most-one feature set with the given exit role,
// or nil when the program declares none. Declaring two is an error that names
// both locations.
func (p *Program) ExitHandler(kind RoleKind) (*FeatureSet, error) {
	handlers := p.ByRole(kind)
	switch len(handlers) {
	case 0:
		return nil, nil
	case 1:
		return handlers[0], nil
	default:
		return nil, fmt.Errorf("program has %d %s feature sets: %s and %s",
			len(handlers), kind, handlers[0].describe(), handlers[1].describe())
	}
}

// Find returns the feature set with the given name, or nil.
func (p *Program) Find(name string) *FeatureSet {
	for _, fs := range p.FeatureSets {
		if fs.Name == name {
			return fs
		}
	}
	return nil
}

// describe renders a feature set with its source location for error messages.
func (fs *FeatureSet) describe() string {
	if fs.Source != nil {
		return fmt.Sprintf("%q (%s)", fs.Name, fs.Source)
	}
	return fmt.Sprintf("%q", fs.Name)
}
