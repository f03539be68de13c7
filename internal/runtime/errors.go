package runtime

import "errors"

// Sentinel errors for the execution contract. Callers branch with errors.Is;
// wrapping sites attach the variable, specifier or handle involved.
var (
	// ErrDeadContext reports use of a context handle after DestroyContext,
	// or a handle that never existed.
	ErrDeadContext = errors.New("context handle is not alive")

	// ErrUndefinedVariable reports a name that resolved nowhere on the
	// context chain.
	ErrUndefinedVariable = errors.New("undefined variable")

	// ErrUnknownSpecifier reports a specifier that is neither a key of the
	// value under projection nor a named operation.
	ErrUnknownSpecifier = errors.New("unknown specifier")

	// ErrNotIterable reports a for-each over a value with no elements to
	// iterate.
	ErrNotIterable = errors.New("value is not iterable")

	// ErrIteration aggregates the failures of a parallel for-each. The
	// wrapped detail joins one error per failed iteration.
	ErrIteration = errors.New("iteration failed")
)
