package servo

import (
	"math"
)

// Pulse-width calibration, in controller ticks.
const (
	// MinPulse is the tick count at logical 0.
	MinPulse = 836.0

	// FullScale is the tick span between logical 0 and logical 100.
	FullScale = 828.0

	// MinLogical and MaxLogical bound the logical range used when clamping.
	MinLogical = 0.0
	MaxLogical = 100.0
)

// Transform maps a logical position to its register value, rounding to the
// nearest tick. It returns ErrOutOfRange when the result is not representable
// in 16 bits.
func Transform(logical float64) (uint16, error) {
	physical := math.Round(logical/100.0*FullScale + MinPulse)
	if math.IsNaN(physical) || physical < 0 || physical > math.MaxUint16 {
		return 0, ErrOutOfRange
	}
	return uint16(physical), nil
}

// Clamp limits logical to [MinLogical, MaxLogical].
func Clamp(logical float64) float64 {
	return math.Min(math.Max(logical, MinLogical), MaxLogical)
}
