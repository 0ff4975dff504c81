// Package mathx holds small numeric helpers
package mathx

import "math"

// Round rounds x to the nearest multiple of unit (0.1 for tenths, 1 for
// whole numbers, and so on).  Halves round up, also for negative x.
func Round(x, unit float64) float64 {
	return math.Floor(x/unit+0.5) * unit
}
