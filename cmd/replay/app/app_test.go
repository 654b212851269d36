package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/telemetry-bridge/internal/storage"
	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var baseTime = time.Unix(1700000000, 0).UTC()

func payload(sec int, body string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"header":{"stamp":{"sec":%d,"nanosec":0},"frame_id":"base_link"},%s}`, sec, body))
}

func seedStore(t *testing.T) (string, int64) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "telemetry.sqlite")
	store := storage.NewSqliteStore(dbPath)

	ctx := context.Background()
	sessionID, err := store.CreateSession(ctx, "run-1", "stdin", nil)
	require.NoError(t, err)

	var samples []*storage.Sample
	for i := 0; i < 3; i++ {
		sec := int(baseTime.Unix()) + i
		samples = append(samples,
			&storage.Sample{
				Timestamp: time.Unix(int64(sec), 0),
				Topic:     "/telemetry/accel",
				FrameID:   "base_link",
				Payload:   payload(sec, `"vector":{"x":1,"y":0,"z":-9.8}`),
			},
			&storage.Sample{
				Timestamp: time.Unix(int64(sec), 0),
				Topic:     "/telemetry/battery_state",
				FrameID:   "base_link",
				Payload:   payload(sec, `"voltage":16.1,"present":true`),
			})
	}
	require.NoError(t, store.StoreSamples(ctx, sessionID, samples))

	_, err = store.CreateSession(ctx, "run-2", "serial", nil)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	return dbPath, sessionID
}

func readJSONLines(t *testing.T, path string) []transport.Envelope {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var envelopes []transport.Envelope
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var env struct {
			Topic string          `json:"topic"`
			Msg   json.RawMessage `json:"msg"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &env))
		envelopes = append(envelopes, transport.Envelope{Topic: env.Topic, Msg: env.Msg})
	}
	require.NoError(t, scanner.Err())
	return envelopes
}

func TestRun_JSON(t *testing.T) {
	dbPath, sessionID := seedStore(t)

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = sessionID
	config.OutputFile = filepath.Join(t.TempDir(), "replay.jsonl")

	require.NoError(t, Run(context.Background(), config, discardLogger))

	envelopes := readJSONLines(t, config.OutputFile)
	require.Len(t, envelopes, 6)
	assert.Equal(t, "/telemetry/accel", envelopes[0].Topic)
	assert.JSONEq(t, string(payload(1700000000, `"vector":{"x":1,"y":0,"z":-9.8}`)), string(envelopes[0].Msg.(json.RawMessage)))
	assert.Equal(t, "/telemetry/battery_state", envelopes[5].Topic)
}

func TestRun_Filters(t *testing.T) {
	dbPath, sessionID := seedStore(t)

	from := baseTime.Add(time.Second)
	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = sessionID
	config.OutputFile = filepath.Join(t.TempDir(), "replay.jsonl")
	config.Topics = []string{"/telemetry/battery_state"}
	config.MinTimestamp = &from

	require.NoError(t, Run(context.Background(), config, discardLogger))

	envelopes := readJSONLines(t, config.OutputFile)
	require.Len(t, envelopes, 2)
	for _, env := range envelopes {
		assert.Equal(t, "/telemetry/battery_state", env.Topic)
	}

	config.Topics = nil
	config.MinTimestamp = nil
	config.Limit = 1
	require.NoError(t, Run(context.Background(), config, discardLogger))
	assert.Len(t, readJSONLines(t, config.OutputFile), 1)
}

func TestRun_CBOR(t *testing.T) {
	dbPath, sessionID := seedStore(t)

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = sessionID
	config.OutputFile = filepath.Join(t.TempDir(), "replay.cbor")
	config.Format = transport.FormatCBOR

	require.NoError(t, Run(context.Background(), config, discardLogger))

	f, err := os.Open(config.OutputFile)
	require.NoError(t, err)
	defer f.Close()

	var topics []string
	dec := cbor.NewDecoder(f)
	for {
		var env struct {
			Topic string         `cbor:"topic"`
			Msg   map[string]any `cbor:"msg"`
		}
		if err = dec.Decode(&env); errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)

		topics = append(topics, env.Topic)
		assert.Contains(t, env.Msg, "header")
	}
	assert.Len(t, topics, 6)
}

func TestRun_List(t *testing.T) {
	dbPath, _ := seedStore(t)

	config := NewConfig()
	config.DBPath = dbPath
	config.List = true
	config.OutputFile = filepath.Join(t.TempDir(), "sessions.txt")

	require.NoError(t, Run(context.Background(), config, discardLogger))

	out, err := os.ReadFile(config.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(out), "run-1")
	assert.Contains(t, string(out), "run-2")
	assert.Contains(t, string(out), "serial")
}

func TestRun_Errors(t *testing.T) {
	dbPath, _ := seedStore(t)

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = 42
	config.OutputFile = filepath.Join(t.TempDir(), "replay.jsonl")
	assert.ErrorContains(t, Run(context.Background(), config, discardLogger), "session 42 not found")

	config.DBPath = filepath.Join(t.TempDir(), "absent.sqlite")
	assert.ErrorContains(t, Run(context.Background(), config, discardLogger), "does not exist")
}
