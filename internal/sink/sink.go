// Package sink writes the stubs of one extraction pass. Every sink is
// all-or-nothing: a pass either replaces the previous output completely or
// leaves it untouched.
package sink

import (
	"context"

	"github.com/mvp-joe/class-shadow/internal/stub"
)

// Batch is the complete output of one pass.
type Batch struct {
	PassID   string
	Library  string
	Packages []stub.PackageUnit
}

// Sink receives a finished batch. Emit is only called once the namespace is
// final, and must not leave partial output behind on error or cancellation.
type Sink interface {
	Emit(ctx context.Context, b Batch) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, b Batch) error

func (f Func) Emit(ctx context.Context, b Batch) error {
	return f(ctx, b)
}
