// Package combat implements the tower and projectile rules of the simulation on top of the ecs
// package: towers fire bullets on a timer, bullets fly straight and expire, and every entity with
// a hitbox is tested against every other for overlap.
//
// Systems run in a fixed order each frame: ShootingSystem, MotionSystem, CollisionSystem,
// LifetimeSystem. The target spawner runs before them and the scene bootstrap once at start.
package combat

import (
	"time"

	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/argus-labs/skirmish/pkg/scene"
	"github.com/rotisserie/eris"
)

const (
	// MuzzleClearance is the gap between a tower's surface and a freshly fired bullet.
	MuzzleClearance = 0.052
	// BulletSize is the edge length of a bullet's cubic hitbox.
	BulletSize = 0.1
	// BulletLifetime is how long a bullet lives before it is despawned.
	BulletLifetime = 500 * time.Millisecond

	// ActionSpawnTarget is the input action that spawns a target box.
	ActionSpawnTarget = "spawn_target"
)

// Config selects the rule variants used when the systems are registered.
type Config struct {
	// Scene is spawned in the first frame.
	Scene scene.Scene
	// Detector is the collision detector configuration.
	Detector Detector
}

// DefaultConfig returns the default scene with exhaustive discrete collision detection.
func DefaultConfig() Config {
	return Config{Scene: scene.Default()}
}

// Register registers the combat components and systems with the world.
func Register(w *ecs.World, cfg Config) error {
	if err := cfg.Scene.Validate(); err != nil {
		return err
	}

	if err := registerComponents(w); err != nil {
		return err
	}

	steps := []struct {
		name     string
		register func() error
	}{
		{"combat.SceneSystem", func() error {
			return ecs.RegisterSystem(w, newSceneSystem(cfg.Scene),
				ecs.WithHook(ecs.Init), ecs.WithName("combat.SceneSystem"))
		}},
		{"combat.TargetSpawnerSystem", func() error {
			return ecs.RegisterSystem(w, newTargetSpawnerSystem(cfg.Scene.SpawnTarget),
				ecs.WithHook(ecs.PreUpdate), ecs.WithName("combat.TargetSpawnerSystem"))
		}},
		{"combat.ShootingSystem", func() error { return ecs.RegisterSystem(w, ShootingSystem) }},
		{"combat.MotionSystem", func() error { return ecs.RegisterSystem(w, MotionSystem) }},
		{"combat.CollisionSystem", func() error {
			return ecs.RegisterSystem(w, newCollisionSystem(cfg.Detector), ecs.WithName("combat.CollisionSystem"))
		}},
		{"combat.LifetimeSystem", func() error { return ecs.RegisterSystem(w, LifetimeSystem) }},
	}
	for _, step := range steps {
		if err := step.register(); err != nil {
			return eris.Wrapf(err, "failed to register %s", step.name)
		}
	}
	return nil
}

func registerComponents(w *ecs.World) error {
	for _, register := range []func(*ecs.World) error{
		ecs.RegisterComponent[Transform],
		ecs.RegisterComponent[Hitbox],
		ecs.RegisterComponent[Tower],
		ecs.RegisterComponent[Bullet],
		ecs.RegisterComponent[Label],
		ecs.RegisterComponent[ecs.Parent],
	} {
		if err := register(w); err != nil {
			return err
		}
	}
	return nil
}
