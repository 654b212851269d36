// Package attitude converts orientations between quaternions and Euler
// angles and between the ENU and NED frame conventions.
package attitude

import "math"

const (
	twoPi = 2 * math.Pi

	radToDeg = 180 / math.Pi
	degToRad = math.Pi / 180
)

// Normalize wraps angle (radians) into the canonical range (-π, π].
// The result is congruent to angle modulo 2π. Non-finite input yields NaN.
func Normalize(angle float64) float64 {
	r := math.Mod(angle+math.Pi, twoPi)
	if r < 0 {
		// math.Mod keeps the sign of the dividend
		r += twoPi
	}
	r -= math.Pi

	if r <= -math.Pi {
		return math.Pi
	}
	return r
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * radToDeg
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * degToRad
}
