package telemetry

import (
	"encoding/json"
	"time"
)

// Header carries the acquisition time and the coordinate frame id of a
// sample. It is copied verbatim from every input to its outputs.
type Header struct {
	Stamp   time.Time `cbor:"stamp"`
	FrameID string    `cbor:"frame_id"`
}

// stamp mirrors builtin_interfaces/Time as used by ROS-based publishers.
type stamp struct {
	Sec     int64  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

type wireHeader struct {
	Stamp   stamp  `json:"stamp"`
	FrameID string `json:"frame_id"`
}

func (h Header) MarshalJSON() ([]byte, error) {
	var s stamp
	if !h.Stamp.IsZero() {
		s.Sec = h.Stamp.Unix()
		s.Nanosec = uint32(h.Stamp.Nanosecond())
	}
	return json.Marshal(wireHeader{Stamp: s, FrameID: h.FrameID})
}

func (h *Header) UnmarshalJSON(p []byte) error {
	var w wireHeader
	if err := json.Unmarshal(p, &w); err != nil {
		return err
	}

	h.FrameID = w.FrameID
	if w.Stamp.Sec == 0 && w.Stamp.Nanosec == 0 {
		h.Stamp = time.Time{}
	} else {
		h.Stamp = time.Unix(w.Stamp.Sec, int64(w.Stamp.Nanosec)).UTC()
	}
	return nil
}
