package ecs

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// World represents the root ECS state.
type World struct {
	state  *worldState
	logger zerolog.Logger

	// Systems.
	initDone    bool               // Tracks if init systems have been executed
	initSystems systemScheduler    // Initialization systems, run once during the first tick
	scheduler   [3]systemScheduler // Systems schedulers (PreUpdate, Update, PostUpdate)

	events   eventManager  // Events emitted during the current tick
	commands commandBuffer // Deferred spawns and despawns
	cascade  bool          // Despawns propagate to entities parented to the despawned entity

	frame       Frame  // Frame being processed
	frameNumber uint64 // Number of frames processed so far
	ticking     bool   // Set while Tick runs
	stats       Stats  // Stats of the last completed tick
}

// Stats describes the last completed tick.
type Stats struct {
	Frame     uint64         // Index of the frame
	Entities  int            // Live entities after the tick
	Spawned   int            // Entities spawned at the end of the tick
	Despawned int            // Entities despawned at the end of the tick
	Events    int            // Events emitted during the tick
	Systems   []SystemTiming // Per system timings in execution order
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger used by the world and its systems.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *World) { w.logger = logger }
}

// WithCascadingDespawn makes despawning an entity also despawn every entity whose Parent refers to
// it, recursively. Off by default, in which case children keep a stale Parent handle.
func WithCascadingDespawn(enabled bool) Option {
	return func(w *World) { w.cascade = enabled }
}

// NewWorld creates a new World instance.
func NewWorld(opts ...Option) *World {
	world := &World{
		state:       newWorldState(),
		logger:      zerolog.Nop(),
		initSystems: newSystemScheduler(Init),
		events:      newEventManager(),
		commands:    newCommandBuffer(),
	}
	for i := range world.scheduler {
		world.scheduler[i] = newSystemScheduler(SystemHook(i)) //nolint:gosec // bounded by array length
	}
	for _, opt := range opts {
		opt(world)
	}
	return world
}

// RegisterComponent registers component type T so it can be spawned. Components referenced by a
// system's searches are registered automatically.
func RegisterComponent[T Component](w *World) error {
	if _, err := registerComponent[T](w.state); err != nil {
		var zero T
		return eris.Wrapf(err, "failed to register component %s", zero.Name())
	}
	return nil
}

// Tick runs one frame: init systems on the first call, then the PreUpdate, Update and PostUpdate
// hooks in order. Spawns and despawns requested by systems are applied together after the last
// system. Events emitted during the frame are returned.
//
// If any system returns an error the tick stops, the pending spawns and despawns are discarded,
// and the error is returned. Component values already written by earlier systems are kept.
func (w *World) Tick(frame Frame) ([]RawEvent, error) {
	if w.ticking {
		return nil, eris.Wrap(ErrTickInProgress, "reentrant tick")
	}
	if frame.Delta < 0 {
		return nil, eris.Wrapf(ErrNegativeDelta, "got %s", frame.Delta)
	}

	w.ticking = true
	defer func() { w.ticking = false }()

	w.frame = frame
	w.events.clear()
	timings := make([]SystemTiming, 0, w.systemCount())

	var spawned, despawned int
	var err error

	if !w.initDone {
		timings, err = w.initSystems.run(timings)
		if err != nil {
			w.discardCommands()
			return nil, eris.Wrap(err, "init failed")
		}
		// Init spawns are applied before the first update so that update systems see the scene.
		spawned, despawned = w.applyCommands()
		w.initDone = true
	}

	for i := range w.scheduler {
		timings, err = w.scheduler[i].run(timings)
		if err != nil {
			w.discardCommands()
			return nil, err
		}
	}

	s, d := w.applyCommands()
	events := w.events.drain()

	w.stats = Stats{
		Frame:     w.frameNumber,
		Entities:  w.state.entities.count(),
		Spawned:   spawned + s,
		Despawned: despawned + d,
		Events:    len(events),
		Systems:   timings,
	}
	w.frameNumber++
	return events, nil
}

// Stats returns statistics about the last successful tick.
func (w *World) Stats() Stats {
	return w.stats
}

// FrameNumber returns the number of frames processed so far.
func (w *World) FrameNumber() uint64 {
	return w.frameNumber
}

// Schedule returns the registered system names per hook, in execution order.
func (w *World) Schedule() map[SystemHook][]string {
	schedule := map[SystemHook][]string{Init: w.initSystems.names()}
	for i := range w.scheduler {
		schedule[w.scheduler[i].hook] = w.scheduler[i].names()
	}
	return schedule
}

func (w *World) systemCount() int {
	n := len(w.initSystems.systems)
	for i := range w.scheduler {
		n += len(w.scheduler[i].systems)
	}
	return n
}

// TotalSystemTime sums the system timings of the stats.
func (s Stats) TotalSystemTime() time.Duration {
	var total time.Duration
	for _, t := range s.Systems {
		total += t.Duration
	}
	return total
}
