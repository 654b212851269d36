package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

func TestNewConfigFromArgs(t *testing.T) {
	config, err := NewConfigFromArgs("replay", []string{
		"-db", "telemetry.sqlite",
		"-s", "3",
		"-f", "CBOR",
		"-topics", "/telemetry/accel, /telemetry/attitude,",
		"-from", "2023-11-14T22:13:20Z",
		"-to", "2023-11-14T22:14:20Z",
		"-limit", "10",
	})
	require.NoError(t, err)

	assert.Equal(t, "telemetry.sqlite", config.DBPath)
	assert.Equal(t, int64(3), config.SessionID)
	assert.Equal(t, transport.FormatCBOR, config.Format)
	assert.Equal(t, []string{"/telemetry/accel", "/telemetry/attitude"}, config.Topics)
	require.NotNil(t, config.MinTimestamp)
	assert.True(t, config.MinTimestamp.Equal(time.Unix(1700000000, 0)))
	require.NotNil(t, config.MaxTimestamp)
	assert.Equal(t, time.Minute, config.MaxTimestamp.Sub(*config.MinTimestamp))
	assert.Equal(t, 10, config.Limit)
}

func TestNewConfigFromArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		err  string
	}{
		{"no db", []string{"-s", "1"}, "db path is required"},
		{"no session", []string{"-db", "x.sqlite"}, "session id is required"},
		{"bad format", []string{"-db", "x.sqlite", "-s", "1", "-f", "xml"}, "unsupported stream format"},
		{"bad timestamp", []string{"-db", "x.sqlite", "-s", "1", "-from", "yesterday"}, "invalid 'from' timestamp"},
		{"inverted range", []string{"-db", "x.sqlite", "-s", "1", "-from", "2023-11-14T22:14:20Z", "-to", "2023-11-14T22:13:20Z"}, "must not be before"},
		{"negative limit", []string{"-db", "x.sqlite", "-s", "1", "-limit", "-1"}, "limit must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := NewConfigFromArgs("replay", tt.args)
			assert.Nil(t, config)
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestNewConfigFromArgs_List(t *testing.T) {
	config, err := NewConfigFromArgs("replay", []string{"-db", "x.sqlite", "-list"})
	require.NoError(t, err)
	assert.True(t, config.List)
	assert.Equal(t, transport.FormatJSON, config.Format)
}
