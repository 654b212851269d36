package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roman-kulish/telemetry-bridge/internal/telemetry"
)

// Envelope is the wire form of one inbound sample: a channel name (logical
// name or input topic) and the message in ROS field naming.
type Envelope struct {
	Channel string          `json:"channel"`
	Msg     json.RawMessage `json:"msg"`
}

var decoders = map[Input]func([]byte) (telemetry.Message, error){
	InputPose:     decode[telemetry.PoseStamped],
	InputIMU:      decode[telemetry.Imu],
	InputVelBody:  decode[telemetry.TwistStamped],
	InputLocalVel: decode[telemetry.TwistStamped],
	InputGlobal:   decode[telemetry.NavSatFix],
	InputBattery:  decode[telemetry.BatteryState],
}

func decode[T telemetry.Message](p []byte) (telemetry.Message, error) {
	var m T
	if err := json.Unmarshal(p, &m); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", m, err)
	}
	telemetry.RestoreNonFinite(&m)
	return m, nil
}

// DecodeEnvelope parses one JSON line into a Sample. NaN and Infinity
// tokens are accepted so that non-finite readings reach validation as
// values. An envelope on an unknown channel returns ErrUnknownChannel along
// with a Sample carrying the channel name.
func DecodeEnvelope(line []byte, topics *Topics) (Sample, error) {
	var env Envelope
	if err := json.Unmarshal(telemetry.ReplaceNonFinite(line), &env); err != nil {
		return Sample{}, fmt.Errorf("decoding envelope: %w", err)
	}

	in, ok := topics.Resolve(env.Channel)
	if !ok {
		return Sample{Input: Input(env.Channel)}, fmt.Errorf("%w: '%s'", ErrUnknownChannel, env.Channel)
	}

	if len(env.Msg) == 0 || string(env.Msg) == "null" {
		return Sample{}, errors.New("envelope has no message")
	}

	msg, err := decoders[in](env.Msg)
	if err != nil {
		return Sample{}, err
	}

	return Sample{Input: in, Msg: msg}, nil
}
