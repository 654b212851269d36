package bridge

import (
	"errors"
	"fmt"
	"slices"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/roman-kulish/telemetry-bridge/internal/attitude"
	"github.com/roman-kulish/telemetry-bridge/internal/telemetry"
)

// minQuaternionNorm is the smallest orientation norm accepted as a rotation.
const minQuaternionNorm = 1e-9

// ErrMalformedInput is returned by a transform when its input sample is
// outside the domain of the conversion.
var ErrMalformedInput = errors.New("malformed input")

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedInput, err)
}

// Attitude converts an ENU pose orientation into the consumer's attitude
// quaternion: decode to Euler angles, rotate the heading into NED, negate
// pitch and encode again. The position is ignored.
func Attitude(in telemetry.PoseStamped) (telemetry.QuaternionStamped, error) {
	if err := in.Validate(); err != nil {
		return telemetry.QuaternionStamped{}, malformed(err)
	}

	q := in.Pose.Orientation.Number()
	if quat.Abs(q) < minQuaternionNorm {
		return telemetry.QuaternionStamped{}, malformed(errors.New("zero orientation quaternion"))
	}

	ned, err := attitude.ENUToNEDEuler(attitude.EulerFromQuaternion(q, attitude.FrameENU))
	if err != nil {
		return telemetry.QuaternionStamped{}, err
	}

	// Consumer pitch sign is opposite to the converted one. Not part of the
	// frame conversion.
	ned.Pitch = -ned.Pitch

	return telemetry.QuaternionStamped{
		Header:     in.Header,
		Quaternion: telemetry.QuaternionFrom(attitude.QuaternionFromEuler(ned)),
	}, nil
}

// Acceleration republishes the IMU linear acceleration with the z axis
// pointing down.
func Acceleration(in telemetry.Imu) (telemetry.Vector3Stamped, error) {
	if err := in.Validate(); err != nil {
		return telemetry.Vector3Stamped{}, malformed(err)
	}

	a := in.LinearAcceleration.Vec()
	return telemetry.Vector3Stamped{
		Header: in.Header,
		Vector: telemetry.Vector3From(r3.Vector{X: a.X, Y: a.Y, Z: -a.Z}),
	}, nil
}

// BodyVelocity splits a body-frame twist into its linear part and its
// angular rate. Neither is modified.
func BodyVelocity(in telemetry.TwistStamped) (telemetry.TwistStamped, telemetry.Vector3Stamped, error) {
	if err := in.Validate(); err != nil {
		return telemetry.TwistStamped{}, telemetry.Vector3Stamped{}, malformed(err)
	}

	linear := telemetry.TwistStamped{
		Header: in.Header,
		Twist:  telemetry.Twist{Linear: in.Twist.Linear},
	}
	rate := telemetry.Vector3Stamped{
		Header: in.Header,
		Vector: in.Twist.Angular,
	}
	return linear, rate, nil
}

// LocalVelocity maps an ENU local velocity to NED: x and y swap, z flips.
// The angular part is dropped.
func LocalVelocity(in telemetry.TwistStamped) (telemetry.TwistStamped, error) {
	if err := in.Validate(); err != nil {
		return telemetry.TwistStamped{}, malformed(err)
	}

	v := in.Twist.Linear.Vec()
	return telemetry.TwistStamped{
		Header: in.Header,
		Twist: telemetry.Twist{
			Linear: telemetry.Vector3From(r3.Vector{X: v.Y, Y: v.X, Z: -v.Z}),
		},
	}, nil
}

// GlobalPosition copies a GNSS fix field for field.
func GlobalPosition(in telemetry.NavSatFix) (telemetry.NavSatFix, error) {
	if err := in.Validate(); err != nil {
		return telemetry.NavSatFix{}, malformed(err)
	}

	return telemetry.NavSatFix{
		Header:                 in.Header,
		Status:                 in.Status,
		Latitude:               in.Latitude,
		Longitude:              in.Longitude,
		Altitude:               in.Altitude,
		PositionCovariance:     in.PositionCovariance,
		PositionCovarianceType: in.PositionCovarianceType,
	}, nil
}

// Battery copies a battery state. The cell lists are cloned so the output
// does not alias the input.
func Battery(in telemetry.BatteryState) (telemetry.BatteryState, error) {
	if err := in.Validate(); err != nil {
		return telemetry.BatteryState{}, malformed(err)
	}

	out := in
	out.CellVoltage = slices.Clone(in.CellVoltage)
	if in.CellTemperature != nil {
		out.CellTemperature = make([]*float64, len(in.CellTemperature))
		for i, t := range in.CellTemperature {
			if t != nil {
				v := *t
				out.CellTemperature[i] = &v
			}
		}
	}
	return out, nil
}
