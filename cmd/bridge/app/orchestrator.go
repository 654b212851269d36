package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/telemetry-bridge/internal/bridge"
	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

const samplesQueueSize = 64

// WithSamplesQueueSize sets the number of decoded samples buffered between
// the sources and the router
func WithSamplesQueueSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		if size > 0 {
			o.queueSize = size
		}
	}
}

// Orchestrator runs every input source concurrently and feeds the decoded
// samples to a single router loop.
type Orchestrator struct {
	sources []transport.Source
	names   map[string]struct{}

	router *bridge.Router
	topics *bridge.Topics
	logger *slog.Logger

	queueSize    int
	decodeErrors atomic.Uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(router *bridge.Router, topics *bridge.Topics, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		names:     make(map[string]struct{}),
		router:    router,
		topics:    topics,
		logger:    logger,
		queueSize: samplesQueueSize,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// AddSource registers a source with the Orchestrator
func (o *Orchestrator) AddSource(src transport.Source) error {
	if _, ok := o.names[src.Name()]; ok {
		return fmt.Errorf("source %s already exists", src.Name())
	}

	o.sources = append(o.sources, src)
	o.names[src.Name()] = struct{}{}

	return nil
}

// Run reads all sources until every one of them has finished or ctx is
// cancelled. A failing source is logged and does not stop the others; the
// failures are returned joined.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.sources) == 0 {
		return fmt.Errorf("no sources to read")
	}

	ctx, o.cancel = context.WithCancel(ctx)
	defer o.cancel()

	startGate := make(chan struct{})
	samples := make(chan bridge.Sample, o.queueSize)

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		o.handleSamples(context.WithoutCancel(ctx), samples)
	}()

	errs := make([]error, len(o.sources))
	for i, src := range o.sources {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()

			<-startGate // Wait for all sources to be scheduled
			errs[i] = o.readSource(ctx, src, samples)
		}()
	}

	close(startGate) // Start the reading goroutines

	o.wg.Wait()

	close(samples) // Let the router drain what was decoded
	<-routerDone

	return errors.Join(errs...)
}

// DecodeErrors returns the number of input lines that could not be decoded.
func (o *Orchestrator) DecodeErrors() uint64 {
	return o.decodeErrors.Load()
}

func (o *Orchestrator) readSource(ctx context.Context, src transport.Source, samples chan<- bridge.Sample) error {
	handle := func(line []byte) error {
		// Only lines that cannot be decoded count as parse errors. Unknown
		// channels and malformed samples are reported by the router.
		s, err := bridge.DecodeEnvelope(line, o.topics)
		if err != nil && !errors.Is(err, bridge.ErrUnknownChannel) {
			o.decodeErrors.Add(1)
			return err
		}

		select {
		case samples <- s:
		case <-ctx.Done():
		}
		return nil
	}

	if err := src.Run(ctx, handle); err != nil {
		o.logger.Error(fmt.Sprintf("source stopped: %s", err.Error()), slog.String("source", src.Name()))
		return fmt.Errorf("source %s: %w", src.Name(), err)
	}

	return nil
}

func (o *Orchestrator) handleSamples(ctx context.Context, samples <-chan bridge.Sample) {
	for s := range samples {
		o.router.Handle(ctx, s)
	}
}
