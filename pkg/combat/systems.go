package combat

import (
	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/argus-labs/skirmish/pkg/timer"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rotisserie/eris"
)

// forward is the canonical local forward axis. Bullets travel along its negation.
var forward = mgl64.Vec3{0, 0, 1} //nolint:gochecknoglobals // constant

// -------------------------------------------------------------------------------------------------
// Shooting
// -------------------------------------------------------------------------------------------------

type ShootingSystemState struct {
	ecs.BaseSystemState
	Towers ecs.Contains[struct {
		Transform ecs.Ref[Transform]
		Tower     ecs.Ref[Tower]
	}]
}

// ShootingSystem advances every tower's shooting timer and fires one bullet from each tower whose
// timer finished this frame. Bullets appear at the end of the frame.
func ShootingSystem(state *ShootingSystemState) error {
	for eid, t := range state.Towers.Iter() {
		tower := t.Tower.Get()
		tower.ShootingTimer.Tick(state.Delta())
		t.Tower.Set(tower)

		if !tower.ShootingTimer.JustFinished() {
			continue
		}

		components, err := bulletFrom(eid, tower, t.Transform.Get())
		if err != nil {
			return eris.Wrapf(err, "tower %s failed to fire", eid)
		}
		bullet, err := state.Commands().Spawn(components...)
		if err != nil {
			return eris.Wrapf(err, "tower %s failed to fire", eid)
		}
		state.Logger().Debug().
			Stringer("tower", eid).
			Stringer("bullet", bullet).
			Msg("tower fired")
	}
	return nil
}

// bulletFrom builds the components of a bullet fired by the tower. The bullet starts just outside
// the tower along its local backward axis and inherits the tower's rotation.
func bulletFrom(tower ecs.EntityID, t Tower, tr Transform) ([]ecs.Component, error) {
	lifetime, err := timer.New(BulletLifetime, timer.Repeating)
	if err != nil {
		return nil, err
	}

	rotation := tr.Orientation()
	offset := rotation.Rotate(mgl64.Vec3{0, 0, -(t.Size/2 + MuzzleClearance)})

	return []ecs.Component{
		Transform{Position: tr.Position.Add(offset), Rotation: rotation},
		Bullet{Lifetime: lifetime, Speed: t.BulletSpeed},
		Cube(BulletSize),
		ecs.Parent{ID: tower},
		Label{Value: LabelBullet},
	}, nil
}

// -------------------------------------------------------------------------------------------------
// Motion
// -------------------------------------------------------------------------------------------------

type MotionSystemState struct {
	ecs.BaseSystemState
	Bullets ecs.Contains[struct {
		Transform ecs.Ref[Transform]
		Bullet    ecs.Ref[Bullet]
		Hitbox    ecs.Ref[Hitbox]
	}]
}

// MotionSystem moves every bullet along its negative local forward axis at its speed. It doesn't
// test for collisions.
func MotionSystem(state *MotionSystemState) error {
	dt := state.Delta().Seconds()
	if dt == 0 {
		return nil
	}
	for _, b := range state.Bullets.Iter() {
		tr := b.Transform.Get()
		velocity := tr.Orientation().Rotate(forward).Mul(-b.Bullet.Get().Speed)
		tr.Position = tr.Position.Add(velocity.Mul(dt))
		b.Transform.Set(tr)
	}
	return nil
}

// -------------------------------------------------------------------------------------------------
// Collision
// -------------------------------------------------------------------------------------------------

type CollisionSystemState struct {
	ecs.BaseSystemState
	Bodies ecs.Contains[struct {
		Transform ecs.Ref[Transform]
		Hitbox    ecs.Ref[Hitbox]
		Parent    ecs.Opt[ecs.Parent]
		Bullet    ecs.Opt[Bullet]
	}]
	Overlaps ecs.WithEvent[Overlap]
}

// newCollisionSystem returns a system that snapshots every entity with a transform and a hitbox
// and emits an Overlap event per overlapping pair found by the detector.
func newCollisionSystem(d Detector) ecs.System[CollisionSystemState] {
	bodies := make([]Body, 0)
	return func(state *CollisionSystemState) error {
		bodies = bodies[:0]
		for eid, e := range state.Bodies.Iter() {
			body := Body{
				Entity:      eid,
				Position:    e.Transform.Get().Position,
				HalfExtents: e.Hitbox.Get().HalfExtents(),
			}
			if p, ok := e.Parent.Get(); ok {
				body.Parent = p.ID
			}
			if b, ok := e.Bullet.Get(); ok {
				body.Speed = b.Speed
			}
			bodies = append(bodies, body)
		}

		for _, overlap := range d.Detect(bodies, state.Delta()) {
			state.Overlaps.Emit(overlap)
			state.Logger().Debug().
				Stringer("a", overlap.A).
				Stringer("b", overlap.B).
				Floats64("delta", overlap.Delta[:]).
				Msg("collision")
		}
		return nil
	}
}

// -------------------------------------------------------------------------------------------------
// Lifetime
// -------------------------------------------------------------------------------------------------

type LifetimeSystemState struct {
	ecs.BaseSystemState
	Bullets ecs.Contains[struct {
		Bullet ecs.Ref[Bullet]
	}]
	Expired ecs.WithEvent[Expired]
}

// LifetimeSystem advances every bullet's lifetime and despawns the bullets whose lifetime ended
// this frame.
func LifetimeSystem(state *LifetimeSystemState) error {
	for eid, b := range state.Bullets.Iter() {
		bullet := b.Bullet.Get()
		bullet.Lifetime.Tick(state.Delta())
		b.Bullet.Set(bullet)

		if bullet.Lifetime.JustFinished() {
			state.Commands().Despawn(eid)
			state.Expired.Emit(Expired{Entity: eid})
		}
	}
	return nil
}
