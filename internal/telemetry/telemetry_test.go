package telemetry

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHeader_JSON(t *testing.T) {
	h := Header{
		Stamp:   time.Unix(1700000000, 250_000_000).UTC(),
		FrameID: "base_link",
	}

	p, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Failed to marshal header: %v", err)
	}

	want := `{"stamp":{"sec":1700000000,"nanosec":250000000},"frame_id":"base_link"}`
	if string(p) != want {
		t.Errorf("Expected %s, got %s", want, p)
	}

	var got Header
	if err = json.Unmarshal(p, &got); err != nil {
		t.Fatalf("Failed to unmarshal header: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("Header mismatch (-want +got):\n%s", diff)
	}
}

func TestHeader_ZeroStamp(t *testing.T) {
	var h Header
	if err := json.Unmarshal([]byte(`{"frame_id":"map"}`), &h); err != nil {
		t.Fatalf("Failed to unmarshal header: %v", err)
	}

	if !h.Stamp.IsZero() {
		t.Errorf("Expected zero stamp, got %v", h.Stamp)
	}
	if h.FrameID != "map" {
		t.Errorf("Expected frame id map, got %q", h.FrameID)
	}
}

func TestMessage_JSONFieldNames(t *testing.T) {
	m := TwistStamped{
		Header: Header{FrameID: "base_link"},
		Twist: Twist{
			Linear:  Vector3{X: 1, Y: 2, Z: 3},
			Angular: Vector3{X: 4, Y: 5, Z: 6},
		},
	}

	p, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Failed to marshal twist: %v", err)
	}

	want := `{"header":{"stamp":{"sec":0,"nanosec":0},"frame_id":"base_link"},"twist":{"linear":{"x":1,"y":2,"z":3},"angular":{"x":4,"y":5,"z":6}}}`
	if string(p) != want {
		t.Errorf("Expected %s, got %s", want, p)
	}
}

func TestValidate(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{"pose ok", PoseStamped{Pose: Pose{Orientation: Quaternion{W: 1}}}, false},
		{"pose nan orientation", PoseStamped{Pose: Pose{Orientation: Quaternion{W: nan}}}, true},
		{"pose inf position", PoseStamped{Pose: Pose{Position: Vector3{Z: math.Inf(1)}}}, true},
		{"imu ok", Imu{LinearAcceleration: Vector3{X: 1, Y: 2, Z: 3}}, false},
		{"imu nan covariance", Imu{LinearAccelerationCovariance: [9]float64{4: nan}}, true},
		{"vector nan", Vector3Stamped{Vector: Vector3{Y: nan}}, true},
		{"twist ok", TwistStamped{Twist: Twist{Linear: Vector3{X: 1}}}, false},
		{"twist nan angular", TwistStamped{Twist: Twist{Angular: Vector3{X: nan}}}, true},
		{"fix ok", NavSatFix{Latitude: 51.5, Longitude: -0.12, PositionCovarianceType: CovarianceTypeKnown}, false},
		{"fix nan latitude", NavSatFix{Latitude: nan}, true},
		{"fix bad covariance type", NavSatFix{PositionCovarianceType: 9}, true},
		{"battery ok", BatteryState{Voltage: 16.8, CellVoltage: []float64{4.2, 4.2, 4.2, 4.2}}, false},
		{"battery nan cell", BatteryState{Voltage: 16.8, CellVoltage: []float64{4.2, nan}}, true},
		{"quaternion nan", QuaternionStamped{Quaternion: Quaternion{X: nan}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected validation error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidate_NamesField(t *testing.T) {
	err := BatteryState{CellVoltage: []float64{4.1, math.NaN()}}.Validate()
	if !errors.Is(err, ErrNotFinite) {
		t.Fatalf("Expected ErrNotFinite, got %v", err)
	}
	if want := "non-finite value in cell_voltage[1]: NaN"; err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestQuaternion_NumberRoundTrip(t *testing.T) {
	q := Quaternion{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9}
	n := q.Number()

	if n.Real != 0.9 || n.Imag != 0.1 || n.Jmag != 0.2 || n.Kmag != 0.3 {
		t.Errorf("Unexpected component mapping: %+v", n)
	}
	if got := QuaternionFrom(n); got != q {
		t.Errorf("Expected %+v, got %+v", q, got)
	}
}

func TestSnapshot(t *testing.T) {
	s := NewSnapshot()

	if got := s.Get(); got.Roll != nil || got.Latitude != nil {
		t.Fatalf("Expected empty snapshot, got %+v", got)
	}

	t0 := time.Unix(100, 0).UTC()
	t1 := t0.Add(time.Second)

	s.ObservePosition(NavSatFix{Header: Header{Stamp: t1}, Latitude: 51.5, Longitude: -0.1, Altitude: 35})
	s.ObserveAttitude(QuaternionStamped{Header: Header{Stamp: t0}, Quaternion: Quaternion{W: 1}})
	s.ObserveAcceleration(Vector3Stamped{Header: Header{Stamp: t0}, Vector: Vector3{X: 0.1, Y: 0.2, Z: -9.8}})
	s.ObserveLocalVelocity(TwistStamped{Header: Header{Stamp: t0}, Twist: Twist{Linear: Vector3{X: 0, Y: 3, Z: -1}}})
	s.ObserveBattery(BatteryState{Header: Header{Stamp: t0}, Voltage: 15.9})

	got := s.Get()

	if !got.Timestamp.Equal(t1) {
		t.Errorf("Expected newest timestamp %v, got %v", t1, got.Timestamp)
	}
	if *got.Latitude != 51.5 || *got.Longitude != -0.1 || *got.Altitude != 35 {
		t.Errorf("Unexpected position %v %v %v", *got.Latitude, *got.Longitude, *got.Altitude)
	}
	if *got.Roll != 0 || *got.Pitch != 0 || *got.Yaw != 0 {
		t.Errorf("Expected level attitude, got %v %v %v", *got.Roll, *got.Pitch, *got.Yaw)
	}
	if *got.AccelZ != -9.8 {
		t.Errorf("Expected accelZ -9.8, got %v", *got.AccelZ)
	}
	if math.Abs(*got.GroundSpeed-3) > 1e-12 {
		t.Errorf("Expected ground speed 3, got %v", *got.GroundSpeed)
	}
	if math.Abs(*got.GroundCourse-90) > 1e-12 {
		t.Errorf("Expected ground course 90 (east), got %v", *got.GroundCourse)
	}
	if *got.BatteryVoltage != 15.9 {
		t.Errorf("Expected battery voltage 15.9, got %v", *got.BatteryVoltage)
	}

	// A later observation must not alter a copy handed out earlier.
	s.ObserveBattery(BatteryState{Voltage: 14.0})
	if *got.BatteryVoltage != 15.9 {
		t.Errorf("Snapshot copy changed to %v", *got.BatteryVoltage)
	}
}

func TestReplaceNonFinite(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"untouched", `{"x":1.5,"s":"ok"}`, `{"x":1.5,"s":"ok"}`},
		{"tokens", `[NaN,Infinity,-Infinity]`, `[5e-324,1e-323,-1e-323]`},
		{"inside strings", `{"s":"NaN \"Infinity\"","x":NaN}`, `{"s":"NaN \"Infinity\"","x":5e-324}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(ReplaceNonFinite([]byte(tt.in))); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRestoreNonFinite(t *testing.T) {
	var m BatteryState
	p := ReplaceNonFinite([]byte(`{"voltage":NaN,"current":-Infinity,"charge":NaN,"design_capacity":4.5,"cell_voltage":[4.1,Infinity]}`))
	if err := json.Unmarshal(p, &m); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	RestoreNonFinite(&m)

	if !math.IsNaN(m.Voltage) {
		t.Errorf("Expected NaN voltage, got %v", m.Voltage)
	}
	if !math.IsInf(m.Current, -1) {
		t.Errorf("Expected -Inf current, got %v", m.Current)
	}
	if m.Charge != nil {
		t.Errorf("Expected unset charge, got %v", *m.Charge)
	}
	if m.DesignCapacity == nil || *m.DesignCapacity != 4.5 {
		t.Errorf("Expected design capacity 4.5, got %v", m.DesignCapacity)
	}
	if m.CellVoltage[0] != 4.1 || !math.IsInf(m.CellVoltage[1], 1) {
		t.Errorf("Unexpected cell voltages: %v", m.CellVoltage)
	}
	if !errors.Is(m.Validate(), ErrNotFinite) {
		t.Error("Expected validation to reject the restored values")
	}
}
