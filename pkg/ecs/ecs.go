// Package ecs is an archetype based entity store with deferred structural changes.
//
// Entities are generational handles. Components are plain values grouped into archetypes by their
// set of component types. Systems are functions over a reflected state struct and run
// sequentially in registration order within each hook. Spawns and despawns requested by systems
// are buffered and applied together at the end of the tick.
//
// The functions in this file operate on the world directly and are meant for setup and tests,
// outside of a tick. Systems use their state fields instead.
package ecs

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Spawn creates an entity immediately. It can't be called while a tick is running.
func (w *World) Spawn(components ...Component) (EntityID, error) {
	if w.ticking {
		return Null, ErrTickInProgress
	}
	if err := validateComponents(components); err != nil {
		return Null, err
	}
	eid, err := w.state.newEntity(components)
	if err != nil {
		return Null, eris.Wrap(err, "failed to spawn entity")
	}
	if aid, err := w.state.entities.getArchetype(eid); err == nil {
		w.logEntity(zerolog.DebugLevel, "entity spawned", eid, aid)
	}
	return eid, nil
}

// Despawn removes an entity immediately, cascading to its children if the world was built with
// WithCascadingDespawn. Returns the number of entities removed.
func (w *World) Despawn(eid EntityID) (int, error) {
	if w.ticking {
		return 0, ErrTickInProgress
	}
	return w.despawnNow(eid), nil
}

// Alive checks if an entity handle refers to a live entity.
func Alive(w *World, eid EntityID) bool {
	return w.state.entities.isAlive(eid)
}

// Count returns the number of live entities.
func Count(w *World) int {
	return w.state.entities.count()
}

// Get gets a component from an entity.
// Returns an error if the entity doesn't exist or doesn't contain the component type.
func Get[T Component](w *World, eid EntityID) (T, error) {
	return getComponent[T](w.state, eid)
}

// Set overwrites a component the entity already carries. The value is validated like on spawn.
func Set[T Component](w *World, eid EntityID, component T) error {
	if w.ticking {
		return ErrTickInProgress
	}
	return setComponent(w.state, eid, component)
}

// Has checks if an entity has a specific component type.
// Returns false if either the entity doesn't exist or doesn't have the component.
func Has[T Component](w *World, eid EntityID) bool {
	_, err := Get[T](w, eid)
	return err == nil
}

// Components returns copies of every component of a live entity.
func Components(w *World, eid EntityID) ([]Component, error) {
	_, components, err := w.state.entityComponents(eid)
	return components, err
}

// Each calls fn for every live entity carrying T, in store order, until fn returns false.
func Each[T Component](w *World, fn func(EntityID, T) bool) {
	var zero T
	cid, err := w.state.components.getID(zero.Name())
	if err != nil {
		return
	}
	for i := range w.state.archetypes {
		arch := &w.state.archetypes[i]
		idx := arch.columnIndex(cid)
		if idx < 0 {
			continue
		}
		col, ok := arch.columns[idx].(*column[T])
		if !ok {
			continue
		}
		for row, eid := range arch.entities {
			if !fn(eid, col.get(row)) {
				return
			}
		}
	}
}
