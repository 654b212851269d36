// Package telemetry defines the messages exchanged with the flight
// controller and the downstream consumers, and a condensed view of the
// vehicle state built from them.
package telemetry

import (
	"time"
)

// Telemetry is the most recent vehicle state as seen on the output topics.
// Nil fields have not been observed yet.
type Telemetry struct {
	Timestamp      time.Time `json:"timestamp"`                // Stamp of the newest contributing sample
	Altitude       *float64  `json:"altitude,omitempty"`       // GNSS altitude in meters
	Roll           *float64  `json:"roll,omitempty"`           // NED roll angle in degrees
	Pitch          *float64  `json:"pitch,omitempty"`          // NED pitch angle in degrees
	Yaw            *float64  `json:"yaw,omitempty"`            // NED yaw angle in degrees
	AccelX         *float64  `json:"accelX,omitempty"`         // X-axis acceleration in m/s²
	AccelY         *float64  `json:"accelY,omitempty"`         // Y-axis acceleration in m/s²
	AccelZ         *float64  `json:"accelZ,omitempty"`         // Z-axis acceleration in m/s²
	Latitude       *float64  `json:"latitude,omitempty"`       // GPS latitude in degrees
	Longitude      *float64  `json:"longitude,omitempty"`      // GPS longitude in degrees
	GroundSpeed    *float64  `json:"groundSpeed,omitempty"`    // Ground speed in m/s
	GroundCourse   *float64  `json:"groundCourse,omitempty"`   // Ground course (heading) in degrees
	BatteryVoltage *float64  `json:"batteryVoltage,omitempty"` // Whole pack voltage in V
}
