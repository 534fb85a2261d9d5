// Package numerator provides domain contracts for order auto-numbering.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPDATE ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if the server restarts.
	// Previews are not meaningful with this strategy.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "SO", "PO")
	Prefix string

	// PadWidth is the minimum sequence width (default 5)
	PadWidth int

	// ResetPeriod: "month", "year", "never"
	ResetPeriod string
}

// DefaultConfig returns the order numbering defaults: monthly reset, 5 digits.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		PadWidth:    5,
		ResetPeriod: "month",
	}
}

// ConfigFor returns the numbering configuration of a document type.
func ConfigFor(t DocumentType) Config {
	return DefaultConfig(t.Prefix())
}
