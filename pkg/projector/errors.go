package projector

import "errors"

var (
	// ErrInvalidArgument marks failures caused by malformed build or
	// evaluation inputs, detected before any compilation or execution
	// work begins.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedType marks an output logical type outside the set the
	// buffer-shape planner understands.
	ErrUnsupportedType = errors.New("unsupported output data type")
)
