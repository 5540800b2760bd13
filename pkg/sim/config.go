package sim

import (
	"io"
	"time"

	"github.com/argus-labs/skirmish/pkg/scene"
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// simConfig holds the configuration for a Simulation loaded from environment variables.
type simConfig struct {
	// Number of frames per second.
	TickRate float64 `env:"SKIRMISH_TICK_RATE" envDefault:"60"`

	// Stop after this many frames. Zero runs until cancelled.
	MaxFrames uint64 `env:"SKIRMISH_MAX_FRAMES" envDefault:"0"`

	// Inflate moving hitboxes by the distance travelled in the frame.
	SweptBounds bool `env:"SKIRMISH_SWEPT_BOUNDS" envDefault:"false"`

	// Despawning a tower also despawns its bullets.
	CascadeDespawn bool `env:"SKIRMISH_CASCADE_DESPAWN" envDefault:"false"`

	// Path to a YAML scene. Empty uses the default scene.
	SceneFile string `env:"SKIRMISH_SCENE_FILE"`

	// Address of the Redis server events are published to. Empty disables Redis publishing.
	RedisAddress string `env:"SKIRMISH_REDIS_ADDRESS"`

	RedisPassword string `env:"SKIRMISH_REDIS_PASSWORD"`

	// Redis stream events are appended to.
	EventStream string `env:"SKIRMISH_EVENT_STREAM" envDefault:"skirmish:events"`

	// Address of the statsd agent. Empty disables metrics.
	StatsdAddress string `env:"SKIRMISH_STATSD_ADDRESS"`
}

// loadSimConfig loads the simulation configuration from environment variables.
func loadSimConfig() (simConfig, error) {
	cfg := simConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse simulation config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

func (cfg *simConfig) validate() error {
	if cfg.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if cfg.EventStream == "" {
		return eris.New("event stream cannot be empty")
	}
	return nil
}

// applyToOptions applies the configuration values to the given Options.
func (cfg *simConfig) applyToOptions(opt *Options) {
	opt.TickRate = cfg.TickRate
	opt.MaxFrames = cfg.MaxFrames
	opt.SweptBounds = cfg.SweptBounds
	opt.CascadeDespawn = cfg.CascadeDespawn
	opt.SceneFile = cfg.SceneFile
	opt.RedisAddress = cfg.RedisAddress
	opt.RedisPassword = cfg.RedisPassword
	opt.EventStream = cfg.EventStream
	opt.StatsdAddress = cfg.StatsdAddress
}

type Options struct {
	TickRate         float64      // Number of frames per second
	MaxFrames        uint64       // Frames to run before Run returns, zero for unbounded
	SweptBounds      bool         // Use swept bounds in collision detection
	CascadeDespawn   bool         // Despawn children with their parent
	SceneFile        string       // YAML scene file
	Scene            *scene.Scene // Scene to use instead of SceneFile
	SpawnTargetEvery uint64       // Press the spawn target action every N frames, zero to never
	RedisAddress     string       // Redis server for event publishing
	RedisPassword    string       // Redis password
	EventStream      string       // Redis stream name
	StatsdAddress    string       // Statsd agent address
	Publisher        Publisher    // Additional publisher, events are also sent here
	LogOutput        io.Writer    // Log destination, stdout when nil
}

func newDefaultOptions() Options {
	// Set these to invalid values to force users to pass in the correct options.
	return Options{
		TickRate:    0,
		EventStream: "",
	}
}

// apply merges the given options into the current options, overriding non-zero values. Flags can
// only be turned on this way.
func (opt *Options) apply(newOpt Options) {
	if newOpt.TickRate != 0.0 {
		opt.TickRate = newOpt.TickRate
	}
	if newOpt.MaxFrames != 0 {
		opt.MaxFrames = newOpt.MaxFrames
	}
	if newOpt.SweptBounds {
		opt.SweptBounds = true
	}
	if newOpt.CascadeDespawn {
		opt.CascadeDespawn = true
	}
	if newOpt.SceneFile != "" {
		opt.SceneFile = newOpt.SceneFile
	}
	if newOpt.Scene != nil {
		opt.Scene = newOpt.Scene
	}
	if newOpt.SpawnTargetEvery != 0 {
		opt.SpawnTargetEvery = newOpt.SpawnTargetEvery
	}
	if newOpt.RedisAddress != "" {
		opt.RedisAddress = newOpt.RedisAddress
	}
	if newOpt.RedisPassword != "" {
		opt.RedisPassword = newOpt.RedisPassword
	}
	if newOpt.EventStream != "" {
		opt.EventStream = newOpt.EventStream
	}
	if newOpt.StatsdAddress != "" {
		opt.StatsdAddress = newOpt.StatsdAddress
	}
	if newOpt.Publisher != nil {
		opt.Publisher = newOpt.Publisher
	}
	if newOpt.LogOutput != nil {
		opt.LogOutput = newOpt.LogOutput
	}
}

// validate checks that all required options are set and valid.
func (opt *Options) validate() error {
	if opt.TickRate <= 0.0 {
		return eris.New("tick rate must be positive")
	}
	if opt.frameDelta() <= 0 {
		return eris.Errorf("tick rate %v is too high", opt.TickRate)
	}
	if opt.RedisAddress != "" && opt.EventStream == "" {
		return eris.New("event stream cannot be empty when publishing to redis")
	}
	return nil
}

// frameDelta is the fixed delta of every frame run by Simulation.Run.
func (opt *Options) frameDelta() time.Duration {
	return time.Duration(float64(time.Second) / opt.TickRate)
}

// loadScene returns the scene to simulate: the explicit scene, the scene file, or the default.
func (opt *Options) loadScene() (scene.Scene, error) {
	switch {
	case opt.Scene != nil:
		return *opt.Scene, nil
	case opt.SceneFile != "":
		return scene.LoadFile(opt.SceneFile)
	default:
		return scene.Default(), nil
	}
}
