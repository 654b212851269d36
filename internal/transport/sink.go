package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
)

// Format is the encoding of a stream sink.
type Format string

const (
	FormatJSON Format = "json" // one JSON envelope per line
	FormatCBOR Format = "cbor" // concatenated CBOR envelopes
)

// ParseFormat validates a format name. An empty name selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("unsupported stream format '%s'", s)
	}
}

// Envelope is the wire form of one output message. Msg is a
// telemetry.Message for live output, or an already encoded JSON payload when
// replaying a recording.
type Envelope struct {
	Topic string `json:"topic" cbor:"topic"`
	Msg   any    `json:"msg" cbor:"msg"`
}

var envelopeEncMode cbor.EncMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnixDynamic,
	}
	envelopeEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create envelope CBOR encoder mode: %v", err))
	}
}

type encoder interface {
	Encode(v any) error
}

type countingWriter struct {
	w io.Writer
	n atomic.Uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(uint64(n))
	return n, err
}

// WithSinkLogger sets the logger of the sink
func WithSinkLogger(logger *slog.Logger) func(*StreamSink) {
	return func(s *StreamSink) {
		s.logger = logger.With(slog.String("component", "stream"))
	}
}

// StreamSink writes output envelopes to a stream.
type StreamSink struct {
	format   Format
	out      *countingWriter
	enc      encoder
	messages atomic.Uint64
	logger   *slog.Logger
}

// NewStreamSink creates a sink writing to w in the given format
func NewStreamSink(w io.Writer, format Format, options ...func(*StreamSink)) (*StreamSink, error) {
	s := StreamSink{
		format: format,
		out:    &countingWriter{w: w},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	switch format {
	case FormatJSON:
		s.enc = json.NewEncoder(s.out)
	case FormatCBOR:
		s.enc = envelopeEncMode.NewEncoder(s.out)
	default:
		return nil, fmt.Errorf("unsupported stream format '%s'", format)
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Write encodes one delivery.
func (s *StreamSink) Write(d Delivery) error {
	return s.WriteEnvelope(d.Topic, d.Msg)
}

// WriteEnvelope encodes msg as published on topic.
func (s *StreamSink) WriteEnvelope(topic string, msg any) error {
	if err := s.enc.Encode(Envelope{Topic: topic, Msg: msg}); err != nil {
		return fmt.Errorf("encoding %s envelope: %w", topic, err)
	}
	s.messages.Add(1)
	return nil
}

// Run writes deliveries until the channel is closed or ctx is cancelled. A
// write failure stops the sink.
func (s *StreamSink) Run(ctx context.Context, deliveries <-chan Delivery) error {
	defer func() {
		s.logger.Info("stream sink stopped",
			slog.String("format", string(s.format)),
			slog.String("messages", humanize.Comma(int64(s.Messages()))),
			slog.String("written", humanize.Bytes(s.Bytes())))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := s.Write(d); err != nil {
				return err
			}
		}
	}
}

// Messages returns the number of envelopes written.
func (s *StreamSink) Messages() uint64 {
	return s.messages.Load()
}

// Bytes returns the number of bytes written.
func (s *StreamSink) Bytes() uint64 {
	return s.out.n.Load()
}
