package numerator

import (
	"fmt"
	"time"
)

// Format renders a sequence value: PREFIX + YYYYMM + "-" + zero-padded value.
func Format(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	switch cfg.ResetPeriod {
	case "year":
		return fmt.Sprintf("%s%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	case "never":
		return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
	default:
		return fmt.Sprintf("%s%s-%0*d", cfg.Prefix, period.Format("200601"), padWidth, num)
	}
}

// SequenceKey builds the storage key of the sequence a number belongs to.
func SequenceKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}
