package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/telemetry-bridge/internal/bridge"
	"github.com/roman-kulish/telemetry-bridge/internal/storage"
	"github.com/roman-kulish/telemetry-bridge/internal/telemetry"
	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

const (
	storageDir = "data"
)

// Run wires the sources, the router, the bus and the sinks, and blocks until
// every source has finished or ctx is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	runID := uuid.NewString()
	logger = logger.With(slog.String("runID", runID))

	topics, err := bridge.NewTopics(config.Topics.Input, config.Topics.Output)
	if err != nil {
		return fmt.Errorf("failed to configure topics: %w", err)
	}

	bus := transport.NewBus(transport.WithBusLogger(logger), transport.WithQueueDepth(config.Settings.QueueDepth))
	defer bus.Close()

	outputs := make([]string, 0, len(bridge.Outputs()))
	byTopic := make(map[string]bridge.Output)
	publishers := make(map[bridge.Output]bridge.Publisher)
	for _, out := range bridge.Outputs() {
		name := topics.Output(out)
		outputs = append(outputs, name)
		byTopic[name] = out
		publishers[out] = bus.Topic(name)
	}

	router, err := bridge.NewRouter(publishers, bridge.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	orchestrator := NewOrchestrator(router, topics, logger)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	var sourceNames []string
	for _, sourceConfig := range config.Sources {
		src, closer, err := createSource(sourceConfig, config.Settings, logger)
		if err != nil {
			return fmt.Errorf("failed to create source: %w", err)
		}
		if src == nil {
			continue
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		if err = orchestrator.AddSource(src); err != nil {
			return fmt.Errorf("failed to add source: %w", err)
		}
		sourceNames = append(sourceNames, src.Name())
	}
	if len(sourceNames) == 0 {
		return fmt.Errorf("no sources enabled in configuration")
	}

	group := consumers{logger: logger}

	if config.Sinks.Stream.Enabled {
		sink, closer, err := createStreamSink(&config.Sinks.Stream, logger)
		if err != nil {
			return fmt.Errorf("failed to create stream sink: %w", err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}

		_, deliveries := bus.Subscribe(outputs...)
		group.Go(ctx, func(ctx context.Context) error {
			if err := sink.Run(ctx, deliveries); err != nil {
				return fmt.Errorf("stream sink: %w", err)
			}
			return nil
		})
	}

	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if cErr := store.Close(); cErr != nil {
				logger.Error(fmt.Sprintf("error closing storage: %s", cErr.Error()))
			}
		}()

		sessionID, err := store.CreateSession(ctx, runID, strings.Join(sourceNames, ","), config)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		recorder := storage.NewRecorder(store, sessionID,
			storage.WithRecorderLogger(logger),
			storage.WithMaxBatchSize(config.Storage.MaxBatchSize),
			storage.WithFlushInterval(config.Storage.FlushInterval))

		_, deliveries := bus.Subscribe(outputs...)
		group.Go(ctx, func(ctx context.Context) error {
			return recorder.Run(ctx, deliveries)
		})
	}

	snapshot := telemetry.NewSnapshot()
	_, deliveries := bus.Subscribe(outputs...)
	group.Go(ctx, func(context.Context) error {
		observe(snapshot, byTopic, deliveries)
		return nil
	})

	statusDone := make(chan struct{})
	statusCtx, stopStatus := context.WithCancel(ctx)
	go func() {
		defer close(statusDone)
		reportStatus(statusCtx, config.Settings.StatusInterval, snapshot, router, logger)
	}()

	logger.Info("telemetry bridge started",
		slog.String("sources", strings.Join(sourceNames, ",")),
		slog.Bool("stream", config.Sinks.Stream.Enabled),
		slog.Bool("storage", config.Storage.Enabled))

	start := time.Now()
	runErr := orchestrator.Run(ctx)

	stopStatus()
	<-statusDone

	bus.Close() // Close the subscriber channels and let the sinks drain
	sinkErr := group.Wait()

	logSummary(logger, router, bus, orchestrator, snapshot, time.Since(start))

	return errors.Join(runErr, sinkErr)
}

func createSource(config SourceConfig, settings Settings, logger *slog.Logger) (transport.Source, io.Closer, error) {
	if !config.Enabled {
		return nil, nil, nil
	}

	options := []transport.Option{
		transport.WithLogger(logger),
		transport.WithParseErrorsThreshold(settings.ParseErrorsThreshold),
	}

	switch config.Type {
	case SourceReader:
		if config.Path == "" || config.Path == "-" {
			return transport.NewReaderSource(config.Name, os.Stdin, options...), nil, nil
		}

		f, err := os.Open(config.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening input '%s': %w", config.Path, err)
		}
		return transport.NewReaderSource(config.Name, f, options...), f, nil

	case SourceCommand:
		return transport.NewCommandSource(config.Name, config.Command, config.Args, options...), nil, nil

	case SourceSerial:
		return transport.NewSerialSource(config.Name, config.Port, config.PortOptions, options...), nil, nil

	default:
		return nil, nil, fmt.Errorf("creating source: unknown type '%s'", config.Type)
	}
}

func createStreamSink(config *StreamConfig, logger *slog.Logger) (*transport.StreamSink, io.Closer, error) {
	format, err := transport.ParseFormat(config.Format)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stdout
	var closer io.Closer
	if config.Path != "" && config.Path != "-" {
		f, err := os.Create(config.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("creating output '%s': %w", config.Path, err)
		}
		w, closer = f, f
	}

	sink, err := transport.NewStreamSink(w, format, transport.WithSinkLogger(logger))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}

	return sink, closer, nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = storageDir
	}

	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory '%s': %w", dir, err)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("telemetry_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}

func logSummary(logger *slog.Logger, router *bridge.Router, bus *transport.Bus, o *Orchestrator, snapshot telemetry.Provider, elapsed time.Duration) {
	stats := router.Stats()

	var total bridge.Stats
	for _, in := range bridge.Inputs() {
		s := stats[in]
		total.Received += s.Received
		total.Emitted += s.Emitted
		total.Dropped += s.Dropped
		total.PublishErrors += s.PublishErrors

		if s.Received == 0 {
			continue
		}
		logger.Info("channel summary",
			slog.String("channel", string(in)),
			slog.String("received", humanize.Comma(int64(s.Received))),
			slog.String("emitted", humanize.Comma(int64(s.Emitted))),
			slog.String("dropped", humanize.Comma(int64(s.Dropped))))
	}

	attrs := []any{
		slog.String("elapsed", elapsed.Round(time.Millisecond).String()),
		slog.String("received", humanize.Comma(int64(total.Received))),
		slog.String("emitted", humanize.Comma(int64(total.Emitted))),
		slog.String("dropped", humanize.Comma(int64(total.Dropped))),
		slog.String("publishErrors", humanize.Comma(int64(total.PublishErrors))),
		slog.String("undecodable", humanize.Comma(int64(o.DecodeErrors()))),
		slog.String("unknownChannel", humanize.Comma(int64(router.Unknown()))),
		slog.String("queueOverflow", humanize.Comma(int64(bus.Dropped()))),
	}
	if t := snapshot.Get(); !t.Timestamp.IsZero() {
		attrs = append(attrs, slog.String("lastSample", humanize.Time(t.Timestamp)))
	}

	logger.Info("telemetry bridge stopped", attrs...)
}
