// Package sim hosts a combat world: it loads the scene, drives frames at a fixed rate and hands
// the events of every frame to the configured publishers.
package sim

import (
	"context"
	"errors"
	"time"

	"github.com/argus-labs/skirmish/pkg/combat"
	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/argus-labs/skirmish/pkg/statsd"
	"github.com/argus-labs/skirmish/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// publishQueueSize is the number of frames of events that can wait for the publisher before the
// frame loop blocks.
const publishQueueSize = 64

// Simulation owns a world and everything needed to run it.
type Simulation struct {
	world     *ecs.World
	runID     uuid.UUID
	delta     time.Duration
	options   Options
	tel       telemetry.Telemetry
	logger    zerolog.Logger
	metrics   *statsd.Emitter
	publisher Publisher
}

// New builds a simulation from the environment and the given options, which take precedence.
func New(ctx context.Context, opts Options) (*Simulation, error) {
	config, err := loadSimConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load simulation config")
	}
	options := newDefaultOptions()
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid simulation options")
	}

	s, err := options.loadScene()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.Options{ServiceName: "skirmish", Output: options.LogOutput})
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize telemetry")
	}

	runID := uuid.New()
	sim := &Simulation{
		runID:   runID,
		delta:   options.frameDelta(),
		options: options,
		tel:     tel,
		logger:  tel.GetLogger("sim").With().Stringer("run_id", runID).Logger(),
	}

	sim.world = ecs.NewWorld(
		ecs.WithLogger(tel.GetLogger("ecs").With().Stringer("run_id", runID).Logger()),
		ecs.WithCascadingDespawn(options.CascadeDespawn),
	)
	cfg := combat.Config{Scene: s, Detector: combat.Detector{SweptBounds: options.SweptBounds}}
	if err := combat.Register(sim.world, cfg); err != nil {
		return nil, errors.Join(eris.Wrap(err, "failed to register combat systems"), sim.Close(ctx))
	}

	sim.metrics, err = statsd.New(options.StatsdAddress, []string{"run:" + runID.String()}, sim.logger)
	if err != nil {
		return nil, errors.Join(err, sim.Close(ctx))
	}

	publishers := MultiPublisher{NewLogPublisher(tel.GetLogger("events").With().Stringer("run_id", runID).Logger())}
	if options.RedisAddress != "" {
		client, err := DialRedis(ctx, options.RedisAddress, options.RedisPassword)
		if err != nil {
			return nil, errors.Join(err, sim.Close(ctx))
		}
		publishers = append(publishers, NewRedisPublisher(client, options.EventStream, runID.String()))
	}
	if options.Publisher != nil {
		publishers = append(publishers, options.Publisher)
	}
	sim.publisher = publishers

	sim.logger.Info().
		Float64("tick_rate", options.TickRate).
		Uint64("max_frames", options.MaxFrames).
		Bool("swept_bounds", options.SweptBounds).
		Bool("cascade_despawn", options.CascadeDespawn).
		Int("towers", len(s.Towers)).
		Int("targets", len(s.Targets)).
		Msg("simulation created")
	return sim, nil
}

// RunID identifies this simulation in logs, metrics and published events.
func (s *Simulation) RunID() uuid.UUID {
	return s.runID
}

// World returns the simulated world.
func (s *Simulation) World() *ecs.World {
	return s.world
}

// Delta returns the fixed frame delta used by Run.
func (s *Simulation) Delta() time.Duration {
	return s.delta
}

// Step runs a single frame and returns its events. Events are not published.
func (s *Simulation) Step(ctx context.Context, frame ecs.Frame) ([]ecs.RawEvent, error) {
	frameNumber := s.world.FrameNumber()
	ctx, span := s.tel.Tracer.Start(ctx, "sim.step", trace.WithAttributes(
		append(s.metrics.TraceAttributes(),
			attribute.Int64("frame", int64(frameNumber)), //nolint:gosec // frame counts fit
			attribute.Int64("delta_us", frame.Delta.Microseconds()),
		)...,
	))
	defer span.End()

	start := time.Now()
	events, err := s.world.Tick(frame)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tick failed")
		return nil, eris.Wrapf(err, "frame %d failed", frameNumber)
	}
	duration := time.Since(start)

	stats := s.world.Stats()
	s.metrics.EmitTick(stats, duration)
	span.SetAttributes(
		attribute.Int("entities", stats.Entities),
		attribute.Int("events", stats.Events),
	)
	if stats.Spawned > 0 || stats.Despawned > 0 {
		logger := telemetry.WithTrace(ctx, s.logger)
		logger.Debug().
			Uint64("frame", stats.Frame).
			Int("spawned", stats.Spawned).
			Int("despawned", stats.Despawned).
			Int("entities", stats.Entities).
			Msg("frame applied")
	}
	return events, nil
}

type batch struct {
	frame  uint64
	events []ecs.RawEvent
}

// Run drives frames at the configured tick rate with a fixed delta until the context is cancelled
// or MaxFrames frames have run. Events are published from a separate goroutine in frame order.
// Cancelling the context or reaching its deadline is not an error. Pending events are still
// published.
func (s *Simulation) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan batch, publishQueueSize)

	g.Go(func() error {
		defer close(batches)
		return s.loop(gctx, batches)
	})
	g.Go(func() error {
		// Keep publishing what was produced after the parent is cancelled.
		pctx := context.WithoutCancel(ctx)
		for b := range batches {
			if err := s.publisher.Publish(pctx, b.frame, b.events); err != nil {
				return eris.Wrapf(err, "failed to publish events of frame %d", b.frame)
			}
		}
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.logger.Info().Uint64("frames", s.world.FrameNumber()).Msg("simulation stopped")
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info().Uint64("frames", s.world.FrameNumber()).Msg("simulation finished")
	return nil
}

func (s *Simulation) loop(ctx context.Context, batches chan<- batch) error {
	ticker := time.NewTicker(s.delta)
	defer ticker.Stop()

	for !s.done() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}

		frameNumber := s.world.FrameNumber()
		events, err := s.Step(ctx, s.nextFrame(frameNumber))
		if err != nil {
			return err
		}
		if len(events) == 0 {
			continue
		}

		select {
		case batches <- batch{frame: frameNumber, events: events}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Simulation) done() bool {
	return s.options.MaxFrames > 0 && s.world.FrameNumber() >= s.options.MaxFrames
}

// nextFrame builds the input of a frame run by Run.
func (s *Simulation) nextFrame(frameNumber uint64) ecs.Frame {
	frame := ecs.Frame{Delta: s.delta}
	if n := s.options.SpawnTargetEvery; n > 0 && (frameNumber+1)%n == 0 {
		frame.Input = ecs.Press(combat.ActionSpawnTarget)
	}
	return frame
}

// Close shuts down the publishers, metrics and telemetry.
func (s *Simulation) Close(ctx context.Context) error {
	var errs error
	if s.publisher != nil {
		errs = errors.Join(errs, s.publisher.Close())
	}
	if s.metrics != nil {
		errs = errors.Join(errs, s.metrics.Close())
	}
	errs = errors.Join(errs, s.tel.Shutdown(ctx))
	return errs
}
