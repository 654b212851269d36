package bridge

import (
	"fmt"
	"maps"
	"slices"
)

// Input channels, named after the keys of the topic configuration.
const (
	InputIMU      Input = "imu"
	InputPose     Input = "pose"
	InputVelBody  Input = "vel_body"
	InputGlobal   Input = "global"
	InputLocalVel Input = "local_vel"
	InputBattery  Input = "battery"
)

// Output channels.
const (
	OutputAttitude     Output = "attitude"
	OutputVelBody      Output = "vel_body"
	OutputGlobal       Output = "global"
	OutputAngularRate  Output = "angular_rate"
	OutputLocalVel     Output = "local_vel"
	OutputAccel        Output = "accel"
	OutputBatteryState Output = "battery_state"
)

// Input identifies an inbound telemetry channel.
type Input string

// Output identifies an outbound telemetry channel.
type Output string

// DefaultInputTopics are the flight-controller topics used when the
// configuration does not name one.
var DefaultInputTopics = map[Input]string{
	InputIMU:      "/mavros/imu/data",
	InputPose:     "/mavros/local_position/pose",
	InputVelBody:  "/mavros/local_position/velocity_body",
	InputGlobal:   "/mavros/global_position/global",
	InputLocalVel: "/mavros/local_position/velocity_local",
	InputBattery:  "/mavros/battery",
}

// DefaultOutputTopics are the consumer topics used when the configuration
// does not name one.
var DefaultOutputTopics = map[Output]string{
	OutputAttitude:     "/telemetry/attitude",
	OutputVelBody:      "/telemetry/vel_body",
	OutputGlobal:       "/telemetry/global_position/global",
	OutputAngularRate:  "/telemetry/angular_rate",
	OutputLocalVel:     "/telemetry/local_position/vel",
	OutputAccel:        "/telemetry/accel",
	OutputBatteryState: "/telemetry/battery_state",
}

// Inputs returns all input channels in a stable order.
func Inputs() []Input {
	return slices.Sorted(maps.Keys(DefaultInputTopics))
}

// Outputs returns all output channels in a stable order.
func Outputs() []Output {
	return slices.Sorted(maps.Keys(DefaultOutputTopics))
}

// Topics maps logical channels to transport topic names. It is built once
// at startup and read-only afterwards.
type Topics struct {
	input  map[Input]string
	output map[Output]string
	byName map[string]Input
}

// NewTopics applies overrides on top of the default topic names. Keys are
// logical channel names; empty values keep the default.
func NewTopics(input, output map[string]string) (*Topics, error) {
	t := &Topics{
		input:  maps.Clone(DefaultInputTopics),
		output: maps.Clone(DefaultOutputTopics),
		byName: make(map[string]Input),
	}

	for key, name := range input {
		if _, ok := t.input[Input(key)]; !ok {
			return nil, fmt.Errorf("unknown input channel '%s'", key)
		}
		if name != "" {
			t.input[Input(key)] = name
		}
	}

	for key, name := range output {
		if _, ok := t.output[Output(key)]; !ok {
			return nil, fmt.Errorf("unknown output channel '%s'", key)
		}
		if name != "" {
			t.output[Output(key)] = name
		}
	}

	for in, name := range t.input {
		if other, ok := t.byName[name]; ok {
			return nil, fmt.Errorf("input topic '%s' is used by both '%s' and '%s'", name, other, in)
		}
		t.byName[name] = in
	}

	return t, nil
}

// Input returns the topic name of an input channel.
func (t *Topics) Input(in Input) string {
	return t.input[in]
}

// Output returns the topic name of an output channel.
func (t *Topics) Output(out Output) string {
	return t.output[out]
}

// Resolve maps either a logical channel name or a configured input topic
// name to its input channel.
func (t *Topics) Resolve(name string) (Input, bool) {
	if _, ok := t.input[Input(name)]; ok {
		return Input(name), true
	}
	in, ok := t.byName[name]
	return in, ok
}
