package nn

import "math"

// Sigmoid returns 1/(1+exp(-x/response)) clamped into the open interval
// (0,1). Response scales the slope.
func Sigmoid(x, response float64) float64 {
	v := 1.0 / (1.0 + math.Exp(-x/response))
	return math.Min(math.Max(v, math.SmallestNonzeroFloat64), math.Nextafter(1, 0))
}
