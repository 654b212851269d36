package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store := NewSqliteStore(filepath.Join(t.TempDir(), "telemetry.db"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return store
}

func testSample(topic string, ts time.Time, n int) *Sample {
	return &Sample{
		Timestamp: ts,
		Topic:     topic,
		FrameID:   "base_link",
		Payload:   []byte(fmt.Sprintf(`{"n":%d}`, n)),
	}
}

func TestSqliteStore_Sessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	type cfg struct {
		Format string `json:"format"`
	}

	first, err := store.CreateSession(ctx, "run-1", "stdin", cfg{Format: "json"})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	second, err := store.CreateSession(ctx, "run-2", "serial,stdin", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if first == second {
		t.Fatalf("Expected distinct session ids, got %d twice", first)
	}

	sess, err := store.Session(ctx, first)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if sess.RunID != "run-1" || sess.Source != "stdin" {
		t.Errorf("Unexpected session: %+v", sess)
	}
	if sess.Config == nil || *sess.Config != `{"format":"json"}` {
		t.Errorf("Unexpected session config: %v", sess.Config)
	}
	if sess.StartTime.IsZero() || time.Since(sess.StartTime) > time.Hour {
		t.Errorf("Unexpected session start time: %v", sess.StartTime)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != first || sessions[1].ID != second {
		t.Errorf("Unexpected session order: %d, %d", sessions[0].ID, sessions[1].ID)
	}
	if sessions[1].Config != nil {
		t.Errorf("Expected no config, got %s", *sessions[1].Config)
	}
}

func TestSqliteStore_SessionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Session(context.Background(), 42)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestSqliteStore_Samples(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sessionID, err := store.CreateSession(ctx, "run", "stdin", "raw config")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	otherID, err := store.CreateSession(ctx, "run", "stdin", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// more than one insert statement per transaction
	var samples []*Sample
	for i := 0; i < 250; i++ {
		topic := "/telemetry/accel"
		if i%2 == 1 {
			topic = "/telemetry/attitude"
		}
		samples = append(samples, testSample(topic, t0.Add(time.Duration(i)*time.Second), i))
	}

	if err = store.StoreSamples(ctx, sessionID, samples); err != nil {
		t.Fatalf("Failed to store samples: %v", err)
	}
	if err = store.StoreSamples(ctx, otherID, samples[:3]); err != nil {
		t.Fatalf("Failed to store samples: %v", err)
	}
	if err = store.StoreSamples(ctx, otherID, nil); err != nil {
		t.Fatalf("Failed to store no samples: %v", err)
	}

	all, err := store.Samples(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read samples: %v", err)
	}
	if len(all) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(all))
	}

	want := *samples[7]
	want.ID = all[7].ID
	want.SessionID = sessionID
	if diff := cmp.Diff(&want, all[7]); diff != "" {
		t.Errorf("Sample mismatch (-want +got):\n%s", diff)
	}

	attitude, err := store.Samples(ctx, sessionID, WithTopic("/telemetry/attitude"))
	if err != nil {
		t.Fatalf("Failed to read samples: %v", err)
	}
	if len(attitude) != 125 {
		t.Errorf("Expected 125 attitude samples, got %d", len(attitude))
	}
	for _, s := range attitude {
		if s.Topic != "/telemetry/attitude" {
			t.Fatalf("Unexpected topic %s", s.Topic)
		}
	}

	window, err := store.Samples(ctx, sessionID,
		WithTopic("/telemetry/accel", "/telemetry/attitude"),
		WithTimeRange(t0.Add(10*time.Second), t0.Add(19*time.Second)))
	if err != nil {
		t.Fatalf("Failed to read samples: %v", err)
	}
	if len(window) != 10 {
		t.Fatalf("Expected 10 samples in window, got %d", len(window))
	}
	if !window[0].Timestamp.Equal(t0.Add(10*time.Second)) || !window[9].Timestamp.Equal(t0.Add(19*time.Second)) {
		t.Errorf("Unexpected window bounds: %v .. %v", window[0].Timestamp, window[9].Timestamp)
	}

	limited, err := store.Samples(ctx, sessionID, WithStartTime(t0.Add(200*time.Second)), WithLimit(5))
	if err != nil {
		t.Fatalf("Failed to read samples: %v", err)
	}
	if len(limited) != 5 || string(limited[0].Payload) != `{"n":200}` {
		t.Errorf("Unexpected limited result: %d samples", len(limited))
	}

	other, err := store.Samples(ctx, otherID, WithEndTime(t0.Add(time.Second)))
	if err != nil {
		t.Fatalf("Failed to read samples: %v", err)
	}
	if len(other) != 2 {
		t.Errorf("Expected 2 samples in the other session, got %d", len(other))
	}
}

func TestSqliteStore_CloseIsIdempotent(t *testing.T) {
	store := NewSqliteStore(filepath.Join(t.TempDir(), "telemetry.db"))

	if _, err := store.CreateSession(context.Background(), "run", "stdin", nil); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Failed to close store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Second close returned error: %v", err)
	}
}

func TestSqliteStore_BadPath(t *testing.T) {
	store := NewSqliteStore(filepath.Join(t.TempDir(), "missing", "telemetry.db"))
	defer store.Close()

	if _, err := store.CreateSession(context.Background(), "run", "stdin", nil); err == nil {
		t.Error("Expected error for a database in a missing directory")
	}
}

func TestSqliteStore_ReadOnlyDoesNotModifyRecording(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	ctx := context.Background()

	writer := NewSqliteStore(dbPath)
	sessionID, err := writer.CreateSession(ctx, "run", "stdin", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err = writer.StoreSamples(ctx, sessionID, []*Sample{testSample("/telemetry/accel", time.Unix(1700000000, 0), 1)}); err != nil {
		t.Fatalf("Failed to store samples: %v", err)
	}
	if err = writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	before, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("Failed to read database file: %v", err)
	}

	reader := NewSqliteStore(dbPath)
	samples, err := reader.Samples(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read samples: %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("Expected 1 sample, got %d", len(samples))
	}
	if _, err = reader.Sessions(ctx); err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if reader.writeDB != nil {
		t.Error("Reading an existing database opened the write connection")
	}
	if err = reader.Close(); err != nil {
		t.Fatalf("Failed to close reader: %v", err)
	}

	after, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("Failed to read database file: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("Reading the database modified the file")
	}
}
