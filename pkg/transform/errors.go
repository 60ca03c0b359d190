package transform

import "errors"

// Sentinel errors shared across all transform operations
var (
	// JSON path errors
	ErrInvalidPath = errors.New("invalid JSON path")
	ErrNilData     = errors.New("cannot query nil data")

	// Expression errors
	ErrUnsafeOperation   = errors.New("unsafe operation attempted")
	ErrInvalidExpression = errors.New("invalid expression syntax")
	ErrNotBoolean        = errors.New("expression did not evaluate to a boolean")

	// Template errors
	ErrInvalidTemplate   = errors.New("invalid template syntax")
	ErrUndefinedVariable = errors.New("undefined variable")
)
