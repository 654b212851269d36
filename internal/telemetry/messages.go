package telemetry

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const (
	CovarianceTypeUnknown       CovarianceType = 0
	CovarianceTypeApproximated  CovarianceType = 1
	CovarianceTypeDiagonalKnown CovarianceType = 2
	CovarianceTypeKnown         CovarianceType = 3
)

const (
	FixStatusNoFix  int8 = -1
	FixStatusFix    int8 = 0
	FixStatusSBAS   int8 = 1
	FixStatusGBAS   int8 = 2
	FixServiceGPS        = 1
	FixServiceGlonass    = 2
	FixServiceCompass    = 4
	FixServiceGalileo    = 8
)

// CovarianceType tells how the position covariance of a NavSatFix was obtained.
type CovarianceType uint8

// Message is implemented by every telemetry message that travels through
// the bridge.
type Message interface {
	Stamped() Header
}

// Vector3 is a three component vector (m/s, m/s², rad/s, depending on the field).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns v as an r3.Vector.
func (v Vector3) Vec() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Vector3From converts an r3.Vector.
func Vector3From(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Quaternion is an orientation in x, y, z, w order.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Number returns q as a gonum quaternion (Real=w).
func (q Quaternion) Number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// QuaternionFrom converts a gonum quaternion.
func QuaternionFrom(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseStamped is a local position and orientation, as published by the
// flight controller in the ENU convention.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

func (m PoseStamped) Stamped() Header { return m.Header }

// QuaternionStamped is an orientation with a header.
type QuaternionStamped struct {
	Header     Header     `json:"header"`
	Quaternion Quaternion `json:"quaternion"`
}

func (m QuaternionStamped) Stamped() Header { return m.Header }

// Imu is an inertial measurement. Covariance element 0 set to -1 means the
// corresponding estimate is not provided.
type Imu struct {
	Header                       Header     `json:"header"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationCovariance        [9]float64 `json:"orientation_covariance"`
	AngularVelocity              Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

func (m Imu) Stamped() Header { return m.Header }

// Vector3Stamped is a single vector with a header.
type Vector3Stamped struct {
	Header Header  `json:"header"`
	Vector Vector3 `json:"vector"`
}

func (m Vector3Stamped) Stamped() Header { return m.Header }

type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// TwistStamped is a linear and angular velocity with a header.
type TwistStamped struct {
	Header Header `json:"header"`
	Twist  Twist  `json:"twist"`
}

func (m TwistStamped) Stamped() Header { return m.Header }

type NavSatStatus struct {
	Status  int8   `json:"status"`
	Service uint16 `json:"service"`
}

// NavSatFix is a geodetic position from a GNSS receiver. Latitude and
// longitude are in degrees, altitude in metres above the WGS 84 ellipsoid.
type NavSatFix struct {
	Header                 Header         `json:"header"`
	Status                 NavSatStatus   `json:"status"`
	Latitude               float64        `json:"latitude"`
	Longitude              float64        `json:"longitude"`
	Altitude               float64        `json:"altitude"`
	PositionCovariance     [9]float64     `json:"position_covariance"`
	PositionCovarianceType CovarianceType `json:"position_covariance_type"`
}

func (m NavSatFix) Stamped() Header { return m.Header }

// BatteryState is the state of the flight battery. Readings the flight
// controller does not measure arrive as NaN; the optional ones are nil
// then.
type BatteryState struct {
	Header                Header     `json:"header"`
	Voltage               float64    `json:"voltage"`                          // V
	Temperature           *float64   `json:"temperature,omitempty"`            // °C
	Current               float64    `json:"current"`                          // A, negative when discharging
	Charge                *float64   `json:"charge,omitempty"`                 // Ah
	Capacity              *float64   `json:"capacity,omitempty"`               // Ah
	DesignCapacity        *float64   `json:"design_capacity,omitempty"`        // Ah
	Percentage            float64    `json:"percentage"`                       // 0..1
	PowerSupplyStatus     uint8      `json:"power_supply_status"`
	PowerSupplyHealth     uint8      `json:"power_supply_health"`
	PowerSupplyTechnology uint8      `json:"power_supply_technology"`
	Present               bool       `json:"present"`
	CellVoltage           []float64  `json:"cell_voltage"`
	CellTemperature       []*float64 `json:"cell_temperature,omitempty"`
	Location              string     `json:"location,omitempty"`
	SerialNumber          string     `json:"serial_number,omitempty"`
}

func (m BatteryState) Stamped() Header { return m.Header }
