// Package numerator provides domain contracts for order auto-numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers.
// This is the domain contract - implementations live in infrastructure layer.
type Generator interface {
	// GetNextNumber allocates the next document number of the period.
	// Pattern: PREFIX+YYYYMM-XXXXX (e.g., SO202512-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// PeekNextNumber returns the number GetNextNumber would allocate now
	// without changing any sequence state.
	PeekNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)

	// SetNextNumber sets the next number value (for migration purposes).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
