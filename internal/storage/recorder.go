package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

const (
	// DefaultMaxBatchSize is the number of samples written per transaction
	DefaultMaxBatchSize = 100

	// DefaultFlushInterval bounds how long a partial batch is kept in memory
	DefaultFlushInterval = time.Second
)

// SampleWriter is the part of Store used by the Recorder.
type SampleWriter interface {
	StoreSamples(ctx context.Context, sessionID int64, samples []*Sample) error
}

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(*Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// WithMaxBatchSize sets the number of samples written per transaction
func WithMaxBatchSize(n int) func(*Recorder) {
	return func(r *Recorder) {
		if n > 0 {
			r.maxBatchSize = n
		}
	}
}

// WithFlushInterval sets the interval after which a partial batch is written
func WithFlushInterval(d time.Duration) func(*Recorder) {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// Recorder writes bus deliveries to a session in batches.
type Recorder struct {
	store     SampleWriter
	sessionID int64

	maxBatchSize  int
	flushInterval time.Duration
	now           func() time.Time

	stored atomic.Uint64
	failed atomic.Uint64
	logger *slog.Logger
}

// NewRecorder creates a Recorder for the given session
func NewRecorder(store SampleWriter, sessionID int64, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:         store,
		sessionID:     sessionID,
		maxBatchSize:  DefaultMaxBatchSize,
		flushInterval: DefaultFlushInterval,
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Run records deliveries until the channel is closed or ctx is cancelled,
// then writes what is left. Failed batches are logged and counted; they do
// not stop the recorder.
func (r *Recorder) Run(ctx context.Context, deliveries <-chan transport.Delivery) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]*Sample, 0, r.maxBatchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}

		if err := r.store.StoreSamples(ctx, r.sessionID, batch); err != nil {
			r.failed.Add(uint64(len(batch)))
			r.logger.Error(fmt.Sprintf("error storing samples: %s", err.Error()), slog.Int("samples", len(batch)))
		} else {
			r.stored.Add(uint64(len(batch)))
		}

		batch = make([]*Sample, 0, r.maxBatchSize)
	}

	defer func() {
		flush(context.WithoutCancel(ctx))

		r.logger.Info("recorder stopped",
			slog.Int64("sessionID", r.sessionID),
			slog.String("stored", humanize.Comma(int64(r.Stored()))),
			slog.String("failed", humanize.Comma(int64(r.Failed()))))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			flush(ctx)

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			sample, err := r.toSample(d)
			if err != nil {
				r.failed.Add(1)
				r.logger.Warn(fmt.Sprintf("error encoding sample: %s", err.Error()), slog.String("topic", d.Topic))
				continue
			}

			batch = append(batch, sample)
			if len(batch) >= r.maxBatchSize {
				flush(ctx)
			}
		}
	}
}

func (r *Recorder) toSample(d transport.Delivery) (*Sample, error) {
	if d.Msg == nil {
		return nil, fmt.Errorf("empty message")
	}

	payload, err := json.Marshal(d.Msg)
	if err != nil {
		return nil, err
	}

	header := d.Msg.Stamped()

	ts := header.Stamp
	if ts.IsZero() {
		ts = r.now()
	}

	return &Sample{
		SessionID: r.sessionID,
		Timestamp: ts.UTC(),
		Topic:     d.Topic,
		FrameID:   header.FrameID,
		Payload:   payload,
	}, nil
}

// Stored returns the number of samples written.
func (r *Recorder) Stored() uint64 {
	return r.stored.Load()
}

// Failed returns the number of samples that could not be written.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}
