// Package backend defines the contracts between the projector and the
// engines that compile and execute expression sets. The projector consumes
// these interfaces; it never depends on a concrete code generator.
package backend

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/columnbase/projector/pkg/expr"
	"github.com/columnbase/projector/pkg/selection"
)

// TypeSet describes the data types a backend can compile expressions for.
type TypeSet interface {
	// Supported reports whether the backend understands the given type.
	Supported(dt arrow.DataType) bool
}

// Backend compiles an ordered expression set and executes the compiled
// result over record batches.
//
// Compile is called at most once per Backend instance, at build time.
// Execute may then be called concurrently from any number of goroutines;
// any internal locking is the backend's own concern.
type Backend interface {
	// Compile generates executable code for the expression set under the
	// given execution mode.
	Compile(exprs []*expr.Expression, mode selection.Mode) error

	// Execute evaluates the compiled expressions over batch, writing one
	// column of results per expression into the correspondingly shaped
	// entry of out. sel is nil when the backend was compiled with
	// selection.ModeNone.
	Execute(batch arrow.Record, sel selection.Vector, out []arrow.ArrayData) error

	// Dump returns a human-readable rendition of the generated code, for
	// debugging only.
	Dump() string

	// Types returns the backend's type system.
	Types() TypeSet
}

// Factory constructs a fresh backend from a compilation configuration.
type Factory func(cfg *Config) (Backend, error)
