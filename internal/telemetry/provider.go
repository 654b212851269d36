package telemetry

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/roman-kulish/telemetry-bridge/internal/attitude"
)

type Provider interface {
	Get() *Telemetry
}

// Snapshot is a Provider that folds output messages into the latest
// vehicle state. It is safe for concurrent use.
type Snapshot struct {
	mu sync.RWMutex
	t  Telemetry
}

// NewSnapshot creates an empty Snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Get returns a copy of the current state. Observed values are never
// mutated in place, so the returned pointers stay valid.
func (s *Snapshot) Get() *Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.t
	return &t
}

// ObserveAttitude records an attitude quaternion as published on the
// attitude topic, in degrees.
func (s *Snapshot) ObserveAttitude(m QuaternionStamped) {
	roll, pitch, yaw := attitude.EulerFromQuaternion(m.Quaternion.Number(), attitude.FrameNED).Degrees()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.t.Roll, s.t.Pitch, s.t.Yaw = &roll, &pitch, &yaw
	s.touch(m.Header)
}

func (s *Snapshot) ObserveAcceleration(m Vector3Stamped) {
	x, y, z := m.Vector.X, m.Vector.Y, m.Vector.Z

	s.mu.Lock()
	defer s.mu.Unlock()

	s.t.AccelX, s.t.AccelY, s.t.AccelZ = &x, &y, &z
	s.touch(m.Header)
}

func (s *Snapshot) ObservePosition(m NavSatFix) {
	lat, lon, alt := m.Latitude, m.Longitude, m.Altitude

	s.mu.Lock()
	defer s.mu.Unlock()

	s.t.Latitude, s.t.Longitude, s.t.Altitude = &lat, &lon, &alt
	s.touch(m.Header)
}

// ObserveLocalVelocity derives ground speed and course from a NED velocity
// (x north, y east).
func (s *Snapshot) ObserveLocalVelocity(m TwistStamped) {
	v := m.Twist.Linear.Vec()
	speed := r3.Vector{X: v.X, Y: v.Y}.Norm()
	course := math.Mod(attitude.RadToDeg(math.Atan2(v.Y, v.X))+360, 360)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.t.GroundSpeed, s.t.GroundCourse = &speed, &course
	s.touch(m.Header)
}

func (s *Snapshot) ObserveBattery(m BatteryState) {
	voltage := m.Voltage

	s.mu.Lock()
	defer s.mu.Unlock()

	s.t.BatteryVoltage = &voltage
	s.touch(m.Header)
}

func (s *Snapshot) touch(h Header) {
	if h.Stamp.After(s.t.Timestamp) {
		s.t.Timestamp = h.Stamp
	}
}
