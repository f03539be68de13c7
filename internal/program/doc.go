// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package program provides the Go struct representation of an analyzed Fable
// program. Its core purpose is to give the rest of the toolchain a
// strongly-typed, in-memory model of the feature sets a front end produced.
//
// # Core Concepts
//
// The model is built around a few key structures:
//
//   - Program: The root container for one compilation session. It aggregates
//     every feature set loaded from one or more .fable.hcl files and exposes
//     role-based lookups (entry point, exit handlers, event handlers).
//
//   - FeatureSet: A named unit of behavior — roughly a handler or an entry
//     point — carrying an ordered statement list and the Role derived from its
//     business-activity text.
//
//   - Statement: The tagged statement variants (action, publish, match,
//     for-each). An action statement pairs a verb with a result descriptor and
//     an object descriptor plus its optional clauses.
//
//   - Expression: The tagged expression variants (literals, variable
//     references, map/array literals, binary operations, grouped expressions
//     and interpolated strings) that statements defer to runtime evaluation.
//
// Why a separate program package?
//
// This package is the boundary between the front end and the tool. Lexing and
// semantic analysis of Fable source happen elsewhere; what arrives here is the
// already-analyzed form, deserialized from its on-disk representation. Keeping
// that form as a plain, immutable Go model gives the later stages a stable
// input:
//
//  1. Structured Validation: The generator can check program-level invariants
//     (exactly one entry point, unique exit handlers) by traversing the model,
//     before any lowering begins.
//
//  2. Single Classification Pass: A feature set's role is computed exactly
//     once, while the model is constructed. Code generation and runtime
//     registration consume the typed Role instead of re-parsing activity
//     strings in multiple places.
//
//  3. Isolate the Runtime: The runtime never sees this package. Everything it
//     needs crosses over through registered constants and the expression wire
//     format, keeping the execution contract small.
//
// The model is immutable after loading; every later stage treats it read-only.
package program
