package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/telemetry-bridge/internal/storage"
	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if _, err = os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	var out io.Writer = os.Stdout
	if config.OutputFile != "" {
		var f *os.File
		if f, err = os.Create(config.OutputFile); err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("closing output file: %w", closeErr)
			}
		}()
		out = f
	}

	if config.List {
		return listSessions(ctx, store, out)
	}
	return replaySession(ctx, store, config, out, logger)
}

func listSessions(ctx context.Context, store *storage.SqliteStore, out io.Writer) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tRUN\tSOURCE")
	for _, s := range sessions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.StartTime.Format(time.DateTime), s.RunID, s.Source)
	}
	return w.Flush()
}

func replaySession(ctx context.Context, store *storage.SqliteStore, config *Config, out io.Writer, logger *slog.Logger) error {
	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %d not found", config.SessionID)
		}
		return err
	}

	var opts []storage.QueryOption
	filters := []any{slog.Int64("session", session.ID), slog.String("run", session.RunID)}

	if len(config.Topics) > 0 {
		opts = append(opts, storage.WithTopic(config.Topics...))
		filters = append(filters, slog.Any("topics", config.Topics))
	}

	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(config.MinTimestamp.UTC(), config.MaxTimestamp.UTC()))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.RFC3339Nano)),
			slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.RFC3339Nano)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(config.MinTimestamp.UTC()))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.RFC3339Nano)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(config.MaxTimestamp.UTC()))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.RFC3339Nano)))
	}

	if config.Limit > 0 {
		opts = append(opts, storage.WithLimit(config.Limit))
		filters = append(filters, slog.Int("limit", config.Limit))
	}

	logger.Info("replay configuration", filters...)

	samples, err := store.Samples(ctx, session.ID, opts...)
	if err != nil {
		return err
	}

	sink, err := transport.NewStreamSink(out, config.Format)
	if err != nil {
		return err
	}

	for _, sample := range samples {
		if err = ctx.Err(); err != nil {
			return err
		}

		msg, err := samplePayload(sample, config.Format)
		if err != nil {
			return err
		}
		if err = sink.WriteEnvelope(sample.Topic, msg); err != nil {
			return err
		}
	}

	attrs := []any{
		slog.String("samples", humanize.Comma(int64(sink.Messages()))),
		slog.String("written", humanize.Bytes(sink.Bytes())),
	}
	if len(samples) > 0 {
		span := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp)
		attrs = append(attrs, slog.Duration("span", span))
	}
	logger.Info("replay complete", attrs...)

	return nil
}

// samplePayload returns the recorded message in a form the sink can encode.
// JSON output passes the payload through untouched.
func samplePayload(sample *storage.Sample, format transport.Format) (any, error) {
	if format == transport.FormatJSON {
		return sample.Payload, nil
	}

	var msg map[string]any
	if err := json.Unmarshal(sample.Payload, &msg); err != nil {
		return nil, fmt.Errorf("decoding sample %d payload: %w", sample.ID, err)
	}
	return msg, nil
}
