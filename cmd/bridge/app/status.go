package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/telemetry-bridge/internal/bridge"
	"github.com/roman-kulish/telemetry-bridge/internal/telemetry"
	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

// observe folds output deliveries into the snapshot until the channel is
// closed.
func observe(snapshot *telemetry.Snapshot, byTopic map[string]bridge.Output, deliveries <-chan transport.Delivery) {
	for d := range deliveries {
		switch byTopic[d.Topic] {
		case bridge.OutputAttitude:
			if m, ok := d.Msg.(telemetry.QuaternionStamped); ok {
				snapshot.ObserveAttitude(m)
			}
		case bridge.OutputAccel:
			if m, ok := d.Msg.(telemetry.Vector3Stamped); ok {
				snapshot.ObserveAcceleration(m)
			}
		case bridge.OutputGlobal:
			if m, ok := d.Msg.(telemetry.NavSatFix); ok {
				snapshot.ObservePosition(m)
			}
		case bridge.OutputLocalVel:
			if m, ok := d.Msg.(telemetry.TwistStamped); ok {
				snapshot.ObserveLocalVelocity(m)
			}
		case bridge.OutputBatteryState:
			if m, ok := d.Msg.(telemetry.BatteryState); ok {
				snapshot.ObserveBattery(m)
			}
		}
	}
}

// reportStatus logs the latest vehicle state every interval until ctx is
// done. A zero interval disables it.
func reportStatus(ctx context.Context, interval time.Duration, provider telemetry.Provider, router *bridge.Router, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status", statusAttrs(provider.Get(), router.Stats())...)
		}
	}
}

func statusAttrs(t *telemetry.Telemetry, stats map[bridge.Input]bridge.Stats) []any {
	var received, dropped uint64
	for _, s := range stats {
		received += s.Received
		dropped += s.Dropped
	}

	attrs := []any{
		slog.String("received", humanize.Comma(int64(received))),
		slog.String("dropped", humanize.Comma(int64(dropped))),
	}

	if t.Timestamp.IsZero() {
		return append(attrs, slog.String("state", "no data"))
	}

	attrs = append(attrs, slog.Time("stamp", t.Timestamp))
	for _, f := range []struct {
		key    string
		v      *float64
		format string
	}{
		{"roll", t.Roll, "#.##"},
		{"pitch", t.Pitch, "#.##"},
		{"yaw", t.Yaw, "#.##"},
		{"lat", t.Latitude, "#.#######"},
		{"lon", t.Longitude, "#.#######"},
		{"alt", t.Altitude, "#,###.##"},
		{"speed", t.GroundSpeed, "#.##"},
		{"course", t.GroundCourse, "#.#"},
		{"battery", t.BatteryVoltage, "#.##"},
	} {
		if f.v != nil {
			attrs = append(attrs, slog.String(f.key, humanize.FormatFloat(f.format, *f.v)))
		}
	}

	return attrs
}
