// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the SourceInfo struct, which stores source metadata.
//
// Why store the source location?
//
// The location connects a parsed in-memory feature set back to the file and
// line it came from. Structural errors raised during generation — a duplicate
// entry point, two exit handlers of the same kind — must name both offending
// locations so the user can fix the right file.
package program

import "fmt"

// SourceInfo records where a feature set was declared.
type SourceInfo struct {
	FilePath string
	Line     int
}

// NewSourceInfo returns source metadata for a declaration.
func NewSourceInfo(filePath string, line int) *SourceInfo {
	return &SourceInfo{FilePath: filePath, Line: line}
}

// String renders the location in the conventional file:line form.
func (s *SourceInfo) String() string {
	if s.Line > 0 {
		return fmt.Sprintf("%s:%d", s.FilePath, s.Line)
	}
	return s.FilePath
}
