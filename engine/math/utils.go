package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// AlmostEqual compares two floats within an absolute tolerance.
func AlmostEqual[T constraints.Float](a, b, tolerance T) bool {
	return T(gomath.Abs(float64(a-b))) <= tolerance
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(degrees float32) float32 {
	return degrees * gomath.Pi / 180.0
}
