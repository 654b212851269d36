package attitude

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

const (
	FrameUnknown Frame = iota
	FrameENU           // East-North-Up
	FrameNED           // North-East-Down
)

// Frame identifies the convention an orientation is expressed in.
type Frame uint8

func (f Frame) String() string {
	switch f {
	case FrameENU:
		return "ENU"
	case FrameNED:
		return "NED"
	default:
		return fmt.Sprintf("Frame(%d)", uint8(f))
	}
}

// EulerAngles is a roll/pitch/yaw triple in radians, tagged with the frame
// convention it belongs to.
type EulerAngles struct {
	Roll  float64
	Pitch float64
	Yaw   float64
	Frame Frame
}

// Degrees returns roll, pitch and yaw in degrees.
func (e EulerAngles) Degrees() (roll, pitch, yaw float64) {
	return RadToDeg(e.Roll), RadToDeg(e.Pitch), RadToDeg(e.Yaw)
}

// Identity returns the quaternion representing no rotation.
func Identity() quat.Number {
	return quat.Number{Real: 1}
}

// EulerFromQuaternion converts q (w=Real, x=Imag, y=Jmag, z=Kmag) into roll,
// pitch and yaw about the x, y and z axes. The quaternion is not normalised
// first; accuracy degrades with its distance from unit norm.
//
// At the poles (|sin(pitch)| >= 1) pitch is clamped to ±π/2 instead of
// failing, and roll and yaw stop being unique.
func EulerFromQuaternion(q quat.Number, frame Frame) EulerAngles {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	var pitch float64
	sinp := 2 * (w*y - z*x)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return EulerAngles{
		Roll:  Normalize(roll),
		Pitch: pitch,
		Yaw:   Normalize(yaw),
		Frame: frame,
	}
}

// QuaternionFromEuler composes yaw, pitch and roll (intrinsic z-y-x) into a
// unit quaternion. It is the inverse of EulerFromQuaternion for pitch strictly
// inside (-π/2, π/2).
func QuaternionFromEuler(e EulerAngles) quat.Number {
	cy, sy := math.Cos(e.Yaw*0.5), math.Sin(e.Yaw*0.5)
	cp, sp := math.Cos(e.Pitch*0.5), math.Sin(e.Pitch*0.5)
	cr, sr := math.Cos(e.Roll*0.5), math.Sin(e.Roll*0.5)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// SameOrientation reports whether a and b describe the same rotation within
// tol. A quaternion and its negation are the same orientation.
func SameOrientation(a, b quat.Number, tol float64) bool {
	return almostEqual(a, b, tol) || almostEqual(a, quat.Scale(-1, b), tol)
}

// IsFinite reports whether every component of q is a finite number.
func IsFinite(q quat.Number) bool {
	return !quat.IsNaN(q) && !quat.IsInf(q)
}

func almostEqual(a, b quat.Number, tol float64) bool {
	return math.Abs(a.Real-b.Real) <= tol &&
		math.Abs(a.Imag-b.Imag) <= tol &&
		math.Abs(a.Jmag-b.Jmag) <= tol &&
		math.Abs(a.Kmag-b.Kmag) <= tol
}
