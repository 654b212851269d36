package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	maxLineSize = 1 << 20
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading the underlying stream
	ErrBrokenPipe = errors.New("broken pipe")
)

// LineHandler consumes one non-empty input line. A returned error counts as
// a parse error.
type LineHandler func(line []byte) error

// Source produces input lines until its stream ends or ctx is cancelled.
// Reaching the end of the stream is not an error.
type Source interface {
	Name() string
	Run(ctx context.Context, handle LineHandler) error
}

type lineOptions struct {
	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// Option configures a Source
type Option func(*lineOptions)

// WithLogger sets the logger of the source
func WithLogger(logger *slog.Logger) Option {
	return func(o *lineOptions) {
		o.logger = logger
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) Option {
	return func(o *lineOptions) {
		if threshold > 0 {
			o.parseErrorsThreshold = threshold
		}
	}
}

func newLineOptions(source, kind string, options []Option) lineOptions {
	o := lineOptions{
		parseErrorsThreshold: ParseErrorsThreshold,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&o)
	}

	o.logger = o.logger.With(slog.String("source", source), slog.String("type", kind))
	return o
}

// readLines scans r and hands every non-empty line to handle. The scanner
// runs in its own goroutine so that a blocked read does not delay
// cancellation.
func (o *lineOptions) readLines(ctx context.Context, r io.Reader, handle LineHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			select {
			case lines <- bytes.Clone(line):
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var parseErrors uint8
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				err := <-scanErr
				if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("%w: error reading input: %w", ErrBrokenPipe, err)
				}
				return nil
			}

			if err := handle(line); err != nil {
				parseErrors++
				o.logger.Warn(fmt.Sprintf("error parsing line: %s", err.Error()), slog.String("line", string(line)))

				if parseErrors >= o.parseErrorsThreshold {
					return ErrTooManyParseErrors
				}

				continue
			}

			parseErrors = 0 // reset counter
		}
	}
}

// ReaderSource reads envelopes from an io.Reader such as stdin or a file.
type ReaderSource struct {
	name string
	r    io.Reader
	opts lineOptions
}

// NewReaderSource creates a ReaderSource reading from r
func NewReaderSource(name string, r io.Reader, options ...Option) *ReaderSource {
	return &ReaderSource{
		name: name,
		r:    r,
		opts: newLineOptions(name, "reader", options),
	}
}

func (s *ReaderSource) Name() string {
	return s.name
}

func (s *ReaderSource) Run(ctx context.Context, handle LineHandler) error {
	s.opts.logger.Info("reading input...")
	defer s.opts.logger.Info("input closed")

	return s.opts.readLines(ctx, s.r, handle)
}
