// Package bridge converts flight-controller telemetry into the conventions
// expected by downstream consumers. Every channel is a pure transform; the
// Router dispatches samples to them, publishes the results and reports
// dropped samples.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roman-kulish/telemetry-bridge/internal/telemetry"
)

// ErrUnknownChannel is reported for samples on a channel the router has no
// transform for.
var ErrUnknownChannel = errors.New("unknown channel")

// Publisher delivers output messages of one channel to the transport.
type Publisher interface {
	Publish(ctx context.Context, msg telemetry.Message) error
}

// Sample is one inbound message tagged with its channel.
type Sample struct {
	Input Input
	Msg   telemetry.Message
}

// Stats are the counters of one input channel.
type Stats struct {
	Received      uint64 // samples handed to the router
	Emitted       uint64 // output messages published
	Dropped       uint64 // samples rejected by the transform
	PublishErrors uint64 // output messages the transport refused
}

type emission struct {
	output Output
	msg    telemetry.Message
}

type route func(telemetry.Message) ([]emission, error)

// single adapts a one-in, one-out transform to a route.
func single[In, Out telemetry.Message](output Output, transform func(In) (Out, error)) route {
	return func(msg telemetry.Message) ([]emission, error) {
		in, ok := msg.(In)
		if !ok {
			return nil, malformed(fmt.Errorf("expected %T, got %T", *new(In), msg))
		}

		out, err := transform(in)
		if err != nil {
			return nil, err
		}
		return []emission{{output, out}}, nil
	}
}

func bodyVelocityRoute(msg telemetry.Message) ([]emission, error) {
	in, ok := msg.(telemetry.TwistStamped)
	if !ok {
		return nil, malformed(fmt.Errorf("expected %T, got %T", in, msg))
	}

	linear, rate, err := BodyVelocity(in)
	if err != nil {
		return nil, err
	}
	return []emission{{OutputVelBody, linear}, {OutputAngularRate, rate}}, nil
}

var routes = map[Input]route{
	InputPose:     single(OutputAttitude, Attitude),
	InputIMU:      single(OutputAccel, Acceleration),
	InputVelBody:  bodyVelocityRoute,
	InputLocalVel: single(OutputLocalVel, LocalVelocity),
	InputGlobal:   single(OutputGlobal, GlobalPosition),
	InputBattery:  single(OutputBatteryState, Battery),
}

type counters struct {
	received      atomic.Uint64
	emitted       atomic.Uint64
	dropped       atomic.Uint64
	publishErrors atomic.Uint64
}

// WithLogger sets the logger used for dropped-sample diagnostics
func WithLogger(logger *slog.Logger) func(*Router) {
	return func(r *Router) {
		r.logger = logger.With(slog.String("component", "router"))
	}
}

// Router dispatches samples to their channel transform and publishes the
// results. Handle may be called concurrently; channels share no state
// apart from the counters.
type Router struct {
	publishers map[Output]Publisher
	counters   map[Input]*counters
	unknown    atomic.Uint64

	logger *slog.Logger
}

// NewRouter creates a Router publishing through the given per-output
// publishers. Every output channel must have a publisher.
func NewRouter(publishers map[Output]Publisher, options ...func(*Router)) (*Router, error) {
	r := Router{
		publishers: make(map[Output]Publisher, len(publishers)),
		counters:   make(map[Input]*counters, len(routes)),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, out := range Outputs() {
		p, ok := publishers[out]
		if !ok || p == nil {
			return nil, fmt.Errorf("no publisher for output channel '%s'", out)
		}
		r.publishers[out] = p
	}

	for in := range routes {
		r.counters[in] = &counters{}
	}

	for _, option := range options {
		option(&r)
	}

	return &r, nil
}

// Handle transforms one sample and publishes its outputs. A sample that
// fails its transform is dropped with a single diagnostic; it never stops
// the router. Handle reports whether every output was published.
func (r *Router) Handle(ctx context.Context, s Sample) (ok bool) {
	rt, known := routes[s.Input]
	if !known {
		r.unknown.Add(1)
		r.logger.Warn(fmt.Sprintf("dropping sample: %s: %s", ErrUnknownChannel, s.Input))
		return false
	}

	c := r.counters[s.Input]
	c.received.Add(1)

	logger := r.logger.With(slog.String("channel", string(s.Input)))

	emissions, err := transform(rt, s.Msg)
	if err != nil {
		c.dropped.Add(1)
		logger.Warn(fmt.Sprintf("dropping sample: %s", err.Error()))
		return false
	}

	ok = true
	for _, e := range emissions {
		if err = publish(ctx, r.publishers[e.output], e.msg); err != nil {
			c.publishErrors.Add(1)
			logger.Error(fmt.Sprintf("publishing %s: %s", e.output, err.Error()))
			ok = false
			continue
		}
		c.emitted.Add(1)
	}

	return ok
}

func transform(rt route, msg telemetry.Message) (emissions []emission, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("transform panicked: %v", v)
		}
	}()

	return rt(msg)
}

func publish(ctx context.Context, p Publisher, msg telemetry.Message) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("publisher panicked: %v", v)
		}
	}()

	return p.Publish(ctx, msg)
}

// Stats returns a copy of the per-channel counters.
func (r *Router) Stats() map[Input]Stats {
	stats := make(map[Input]Stats, len(r.counters))
	for in, c := range r.counters {
		stats[in] = Stats{
			Received:      c.received.Load(),
			Emitted:       c.emitted.Load(),
			Dropped:       c.dropped.Load(),
			PublishErrors: c.publishErrors.Load(),
		}
	}
	return stats
}

// Unknown returns the number of samples received on unknown channels.
func (r *Router) Unknown() uint64 {
	return r.unknown.Load()
}
