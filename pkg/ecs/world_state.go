package ecs

import (
	"github.com/argus-labs/skirmish/pkg/assert"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// worldState holds the entities, their archetypes and the component registry.
type worldState struct {
	components componentManager // Component registry
	entities   entityManager    // Manages entity handles and archetype mappings
	archetypes []archetype      // All archetypes that exist where the index is the archetype ID
}

// newWorldState creates a new world state.
func newWorldState() *worldState {
	return &worldState{
		components: newComponentManager(),
		entities:   newEntityManager(),
		archetypes: make([]archetype, 0),
	}
}

// findOrCreateArchetype finds an existing archetype that matches the component types or creates a
// new archetype if none match.
func (ws *worldState) findOrCreateArchetype(components bitmap.Bitmap) archetypeID {
	if aid, ok := ws.archExact(components); ok {
		return aid
	}

	aid := archetypeID(len(ws.archetypes))
	ws.archetypes = append(ws.archetypes, ws.components.createArchetype(aid, components))
	return aid
}

// archContains returns all archetypes that have the given component types, in creation order.
func (ws *worldState) archContains(components bitmap.Bitmap) []archetypeID {
	var archs []archetypeID
	for i := range ws.archetypes {
		if ws.archetypes[i].contains(components) {
			archs = append(archs, i)
		}
	}
	return archs
}

// archExact returns the archetype that exactly matches the given component types.
func (ws *worldState) archExact(components bitmap.Bitmap) (archetypeID, bool) {
	for i := range ws.archetypes {
		if ws.archetypes[i].exact(components) {
			return i, true
		}
	}
	return noArchetype, false
}

// -------------------------------------------------------------------------------------------------
// Entity operations
// -------------------------------------------------------------------------------------------------

// place puts a reserved handle into the archetype matching its components.
func (ws *worldState) place(eid EntityID, components []Component) (archetypeID, error) {
	if !ws.entities.isCurrent(eid) || ws.entities.isAlive(eid) {
		return noArchetype, eris.Errorf("entity %s is not a pending reservation", eid)
	}

	compBitmap, err := ws.components.toComponentBitmap(components)
	if err != nil {
		return noArchetype, eris.Wrap(err, "failed to create component bitmap")
	}

	aid := ws.findOrCreateArchetype(compBitmap)
	ws.archetypes[aid].newEntity(eid, components)
	ws.entities.place(eid, aid)
	return aid, nil
}

// newEntity creates an entity immediately.
func (ws *worldState) newEntity(components []Component) (EntityID, error) {
	if _, err := ws.components.toComponentBitmap(components); err != nil {
		return Null, eris.Wrap(err, "failed to create component bitmap")
	}

	eid, err := ws.entities.reserve()
	if err != nil {
		return Null, err
	}
	if _, err := ws.place(eid, components); err != nil {
		ws.entities.release(eid)
		return Null, err
	}
	return eid, nil
}

// removeEntity removes an entity and all its components. Returns false if the handle is stale.
func (ws *worldState) removeEntity(eid EntityID) bool {
	aid, err := ws.entities.getArchetype(eid)
	if err != nil {
		return false
	}
	ws.archetypes[aid].removeEntity(eid)
	ok := ws.entities.release(eid)
	assert.That(ok, "live entity failed to release")
	return true
}

// entityComponents returns the archetype and a copy of all components of a live entity.
func (ws *worldState) entityComponents(eid EntityID) (archetypeID, []Component, error) {
	aid, err := ws.entities.getArchetype(eid)
	if err != nil {
		return noArchetype, nil, err
	}
	arch := &ws.archetypes[aid]
	row, ok := arch.row(eid)
	assert.That(ok, "entity %s missing from its archetype", eid)
	return aid, arch.componentsOf(row), nil
}

// -------------------------------------------------------------------------------------------------
// Component operations
// -------------------------------------------------------------------------------------------------

// locate returns the typed column and row holding component T of the entity.
func locate[T Component](ws *worldState, eid EntityID) (*column[T], int, error) {
	var zero T
	cid, err := ws.components.getID(zero.Name())
	if err != nil {
		return nil, 0, err
	}

	aid, err := ws.entities.getArchetype(eid)
	if err != nil {
		return nil, 0, err
	}
	arch := &ws.archetypes[aid]

	idx := arch.columnIndex(cid)
	if idx < 0 {
		return nil, 0, eris.Wrapf(ErrComponentNotFound, "entity %s, component %s", eid, zero.Name())
	}

	col, ok := arch.columns[idx].(*column[T])
	assert.That(ok, "column type mismatch for component %s", zero.Name())

	row, ok := arch.row(eid)
	assert.That(ok, "entity %s missing from its archetype", eid)
	return col, row, nil
}

// getComponent returns a copy of component T of the entity.
func getComponent[T Component](ws *worldState, eid EntityID) (T, error) {
	col, row, err := locate[T](ws, eid)
	if err != nil {
		var zero T
		return zero, err
	}
	return col.get(row), nil
}

// setComponent overwrites component T of the entity. The entity must already carry T; adding and
// removing component types is not supported after spawn. Values rejected by Validate are not
// written.
func setComponent[T Component](ws *worldState, eid EntityID, component T) error {
	col, row, err := locate[T](ws, eid)
	if err != nil {
		return err
	}
	if err := validateComponents([]Component{component}); err != nil {
		return err
	}
	col.set(row, component)
	return nil
}
