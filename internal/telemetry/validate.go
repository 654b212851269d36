package telemetry

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotFinite is returned by Validate when a numeric field is NaN or ±Inf.
var ErrNotFinite = errors.New("non-finite value")

// checker records the first non-finite field.
type checker struct {
	err error
}

func (c *checker) float(name string, v float64) {
	if c.err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		c.err = fmt.Errorf("%w in %s: %v", ErrNotFinite, name, v)
	}
}

func (c *checker) vector(name string, v Vector3) {
	c.float(name+".x", v.X)
	c.float(name+".y", v.Y)
	c.float(name+".z", v.Z)
}

func (c *checker) quaternion(name string, q Quaternion) {
	c.float(name+".x", q.X)
	c.float(name+".y", q.Y)
	c.float(name+".z", q.Z)
	c.float(name+".w", q.W)
}

func (c *checker) floats(name string, vs []float64) {
	for i, v := range vs {
		c.float(fmt.Sprintf("%s[%d]", name, i), v)
	}
}

func (c *checker) optional(name string, v *float64) {
	if v != nil {
		c.float(name, *v)
	}
}

func (m PoseStamped) Validate() error {
	var c checker
	c.vector("pose.position", m.Pose.Position)
	c.quaternion("pose.orientation", m.Pose.Orientation)
	return c.err
}

func (m QuaternionStamped) Validate() error {
	var c checker
	c.quaternion("quaternion", m.Quaternion)
	return c.err
}

func (m Imu) Validate() error {
	var c checker
	c.quaternion("orientation", m.Orientation)
	c.floats("orientation_covariance", m.OrientationCovariance[:])
	c.vector("angular_velocity", m.AngularVelocity)
	c.floats("angular_velocity_covariance", m.AngularVelocityCovariance[:])
	c.vector("linear_acceleration", m.LinearAcceleration)
	c.floats("linear_acceleration_covariance", m.LinearAccelerationCovariance[:])
	return c.err
}

func (m Vector3Stamped) Validate() error {
	var c checker
	c.vector("vector", m.Vector)
	return c.err
}

func (m TwistStamped) Validate() error {
	var c checker
	c.vector("twist.linear", m.Twist.Linear)
	c.vector("twist.angular", m.Twist.Angular)
	return c.err
}

func (m NavSatFix) Validate() error {
	var c checker
	c.float("latitude", m.Latitude)
	c.float("longitude", m.Longitude)
	c.float("altitude", m.Altitude)
	c.floats("position_covariance", m.PositionCovariance[:])
	if c.err == nil && m.PositionCovarianceType > CovarianceTypeKnown {
		c.err = fmt.Errorf("invalid position_covariance_type: %d", m.PositionCovarianceType)
	}
	return c.err
}

func (m BatteryState) Validate() error {
	var c checker
	c.float("voltage", m.Voltage)
	c.float("current", m.Current)
	c.float("percentage", m.Percentage)
	c.floats("cell_voltage", m.CellVoltage)
	c.optional("temperature", m.Temperature)
	c.optional("charge", m.Charge)
	c.optional("capacity", m.Capacity)
	c.optional("design_capacity", m.DesignCapacity)
	for i, v := range m.CellTemperature {
		c.optional(fmt.Sprintf("cell_temperature[%d]", i), v)
	}
	return c.err
}
