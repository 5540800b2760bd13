package ecs

import (
	"reflect"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
)

// System is a function that contains game logic.
type System[T any] func(state *T) error

// SystemHook defines when a system should be executed in the update cycle.
type SystemHook uint8

const (
	// PreUpdate runs before the main update.
	PreUpdate SystemHook = 0
	// Update runs during the main update phase.
	Update SystemHook = 1
	// PostUpdate runs after the main update.
	PostUpdate SystemHook = 2
	// Init runs once, in the first tick, before the other hooks.
	Init SystemHook = 3
)

func (h SystemHook) String() string {
	switch h {
	case PreUpdate:
		return "pre_update"
	case Update:
		return "update"
	case PostUpdate:
		return "post_update"
	case Init:
		return "init"
	default:
		return "unknown"
	}
}

// systemConfig holds all configurable options for system registration.
type systemConfig struct {
	hook SystemHook // The hook that determines when the system should be executed
	name string     // Overrides the name derived from the function
}

// newSystemConfig creates a new system config with default values.
func newSystemConfig() systemConfig {
	return systemConfig{hook: Update}
}

// SystemOption is a function that configures a SystemConfig.
type SystemOption func(*systemConfig)

// WithHook returns an option to set the system hook.
func WithHook(hook SystemHook) SystemOption {
	return func(cfg *systemConfig) { cfg.hook = hook }
}

// WithName returns an option to set the name the system is logged and reported under.
func WithName(name string) SystemOption {
	return func(cfg *systemConfig) { cfg.name = name }
}

// RegisterSystem registers a system and its state with the world. By default, systems are
// registered to the Update hook. Systems within a hook run sequentially in registration order.
//
// Example:
//
//	type RegenSystemState struct {
//	    ecs.BaseSystemState
//	    Players ecs.Contains[struct {
//	        Health ecs.Ref[Health]
//	    }]
//	}
//
//	err := ecs.RegisterSystem(world, func(state *RegenSystemState) error {
//	    // System logic here
//	    return nil
//	})
func RegisterSystem[T any](w *World, system System[T], opts ...SystemOption) error {
	if system == nil {
		return eris.New("system cannot be nil")
	}
	if w.ticking {
		return eris.Wrap(ErrTickInProgress, "cannot register systems")
	}

	cfg := newSystemConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	name := cfg.name
	if name == "" {
		name = systemName(system)
	}

	state := new(T)
	if err := initSystemState(w, state, name); err != nil {
		return eris.Wrapf(err, "failed to initialize state of system %s", name)
	}
	fn := func() error { return system(state) }

	switch cfg.hook {
	case Init:
		if w.initDone {
			return eris.Errorf("init system %s registered after the first tick", name)
		}
		w.initSystems.register(name, fn)
	case PreUpdate, Update, PostUpdate:
		w.scheduler[cfg.hook].register(name, fn)
	default:
		return eris.Errorf("invalid system hook %d", cfg.hook)
	}

	w.logger.Debug().Str("system", name).Stringer("hook", cfg.hook).Msg("system registered")
	return nil
}

// systemName derives a readable name from a function's symbol, e.g. "combat.ShootingSystem".
func systemName(fn any) string {
	full := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	return full
}
