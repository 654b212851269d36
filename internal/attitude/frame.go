package attitude

import (
	"errors"
	"fmt"
	"math"
)

// ErrFrameMismatch is returned when angles are tagged with a frame other
// than the one a conversion expects.
var ErrFrameMismatch = errors.New("frame mismatch")

// ENUToNEDEuler maps Euler angles expressed in the East-North-Up convention
// to North-East-Down. Roll and pitch are carried through, yaw becomes
// -(yaw - π/2), and all three are normalised.
func ENUToNEDEuler(e EulerAngles) (EulerAngles, error) {
	if e.Frame != FrameENU {
		return EulerAngles{}, fmt.Errorf("%w: expected %s, got %s", ErrFrameMismatch, FrameENU, e.Frame)
	}

	return EulerAngles{
		Roll:  Normalize(e.Roll),
		Pitch: Normalize(e.Pitch),
		Yaw:   Normalize(-(e.Yaw - math.Pi/2)),
		Frame: FrameNED,
	}, nil
}
