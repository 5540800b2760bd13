package combat

import (
	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/argus-labs/skirmish/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rotisserie/eris"
)

type SpawnSystemState struct {
	ecs.BaseSystemState
}

// newSceneSystem returns an init system that spawns the scene's ground, towers and targets.
func newSceneSystem(s scene.Scene) ecs.System[SpawnSystemState] {
	return func(state *SpawnSystemState) error {
		commands := state.Commands()

		if s.Ground != nil {
			if _, err := commands.Spawn(NewTransform(mgl64.Vec3{}), Label{Value: LabelGround}); err != nil {
				return eris.Wrap(err, "failed to spawn ground")
			}
		}

		for i, t := range s.Towers {
			components, err := towerFrom(t)
			if err != nil {
				return eris.Wrapf(err, "tower %d", i)
			}
			eid, err := commands.Spawn(components...)
			if err != nil {
				return eris.Wrapf(err, "failed to spawn tower %d", i)
			}
			state.Logger().Info().
				Stringer("entity_id", eid).
				Floats64("position", t.Position[:]).
				Dur("period", t.Period).
				Msg("tower placed")
		}

		for i, t := range s.Targets {
			if _, err := commands.Spawn(targetFrom(t)...); err != nil {
				return eris.Wrapf(err, "failed to spawn target %d", i)
			}
		}
		return nil
	}
}

// newTargetSpawnerSystem returns a system that spawns a target from the template whenever the
// spawn action is pressed.
func newTargetSpawnerSystem(template scene.Target) ecs.System[SpawnSystemState] {
	return func(state *SpawnSystemState) error {
		if !state.JustPressed(ActionSpawnTarget) {
			return nil
		}
		eid, err := state.Commands().Spawn(targetFrom(template)...)
		if err != nil {
			return eris.Wrap(err, "failed to spawn target")
		}
		state.Logger().Debug().Stringer("entity_id", eid).Msg("target spawned")
		return nil
	}
}

func towerFrom(t scene.Tower) ([]ecs.Component, error) {
	tower, err := NewTower(t.Period, t.Size, t.BulletSpeed)
	if err != nil {
		return nil, err
	}
	dims := t.HitboxDimensions()
	return []ecs.Component{
		Transform{
			Position: mgl64.Vec3(t.Position),
			Rotation: mgl64.QuatRotate(mgl64.DegToRad(t.RotationYDegrees), mgl64.Vec3{0, 1, 0}),
		},
		tower,
		Hitbox{Dimensions: mgl64.Vec3(dims)},
		Label{Value: LabelTower},
	}, nil
}

func targetFrom(t scene.Target) []ecs.Component {
	return []ecs.Component{
		NewTransform(mgl64.Vec3(t.Position)),
		Hitbox{Dimensions: mgl64.Vec3(t.Dimensions)},
		Label{Value: LabelTarget},
	}
}
