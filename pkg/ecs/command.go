package ecs

import (
	"github.com/argus-labs/skirmish/pkg/assert"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// commandOp is the kind of structural change a command performs.
type commandOp uint8

const (
	opSpawn commandOp = iota
	opDespawn
)

// command is a deferred structural change.
type command struct {
	op         commandOp
	entity     EntityID
	components []Component
}

// commandBuffer collects spawn and despawn requests issued during a tick. Requests are applied in
// submission order once every system has run, so no system observes another system's structural
// changes within the same frame.
type commandBuffer struct {
	queue []command
}

// newCommandBuffer creates an empty command buffer.
func newCommandBuffer() commandBuffer {
	const initialCommandCapacity = 64
	return commandBuffer{queue: make([]command, 0, initialCommandCapacity)}
}

func (cb *commandBuffer) push(cmd command) {
	cb.queue = append(cb.queue, cmd)
}

func (cb *commandBuffer) len() int {
	return len(cb.queue)
}

func (cb *commandBuffer) reset() {
	clear(cb.queue)
	cb.queue = cb.queue[:0]
}

// Commands is the system-facing handle to the world's command buffer.
//
// Example:
//
//	func ReaperSystem(state *ReaperSystemState) error {
//	    for eid, b := range state.Bullets.Iter() {
//	        if expired(b) {
//	            state.Commands().Despawn(eid)
//	        }
//	    }
//	    return nil
//	}
type Commands struct {
	world *World
}

// Spawn requests a new entity carrying the given components. The returned handle is reserved
// immediately, so it can be used as a Parent by other spawns in the same frame, but the entity
// only becomes alive at the end of the frame.
//
// Components are validated now: unregistered or duplicate component types, and components whose
// Validate method fails, are rejected without queuing anything.
func (c *Commands) Spawn(components ...Component) (EntityID, error) {
	w := c.world
	if _, err := w.state.components.toComponentBitmap(components); err != nil {
		return Null, eris.Wrap(err, "invalid spawn request")
	}
	if err := validateComponents(components); err != nil {
		return Null, err
	}

	eid, err := w.state.entities.reserve()
	if err != nil {
		return Null, err
	}
	w.commands.push(command{op: opSpawn, entity: eid, components: components})
	return eid, nil
}

// Despawn requests removal of the entity at the end of the frame. Requests for entities that are
// gone by then are ignored.
func (c *Commands) Despawn(eid EntityID) {
	c.world.commands.push(command{op: opDespawn, entity: eid})
}

// Pending returns the number of queued requests.
func (c *Commands) Pending() int {
	return c.world.commands.len()
}

// -------------------------------------------------------------------------------------------------
// Apply
// -------------------------------------------------------------------------------------------------

// applyCommands performs every queued request in order and empties the buffer.
func (w *World) applyCommands() (spawned, despawned int) {
	for _, cmd := range w.commands.queue {
		switch cmd.op {
		case opSpawn:
			aid, err := w.state.place(cmd.entity, cmd.components)
			// Components were checked when the request was queued.
			assert.That(err == nil, "failed to place spawned entity %s: %v", cmd.entity, err)
			spawned++
			w.logEntity(zerolog.DebugLevel, "entity spawned", cmd.entity, aid)
		case opDespawn:
			despawned += w.despawnNow(cmd.entity)
		}
	}
	w.commands.reset()
	return spawned, despawned
}

// discardCommands drops every queued request and frees the handles reserved by pending spawns.
func (w *World) discardCommands() {
	for _, cmd := range w.commands.queue {
		if cmd.op == opSpawn {
			w.state.entities.release(cmd.entity)
		}
	}
	w.commands.reset()
}

// despawnNow removes the entity and, with cascading enabled, everything parented to it. Returns the
// number of entities removed.
func (w *World) despawnNow(root EntityID) int {
	removed := 0
	pending := []EntityID{root}
	for len(pending) > 0 {
		eid := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		aid, err := w.state.entities.getArchetype(eid)
		if err != nil {
			w.logger.Debug().Stringer("entity_id", eid).Msg("despawn of missing entity ignored")
			continue
		}
		if w.cascade {
			pending = append(pending, w.childrenOf(eid)...)
		}
		w.logEntity(zerolog.DebugLevel, "entity despawned", eid, aid)
		w.state.removeEntity(eid)
		removed++
	}
	return removed
}

// childrenOf returns every live entity whose Parent refers to eid.
func (w *World) childrenOf(eid EntityID) []EntityID {
	var parent Parent
	cid, err := w.state.components.getID(parent.Name())
	if err != nil {
		return nil
	}

	var children []EntityID
	for i := range w.state.archetypes {
		arch := &w.state.archetypes[i]
		idx := arch.columnIndex(cid)
		if idx < 0 {
			continue
		}
		col, ok := arch.columns[idx].(*column[Parent])
		assert.That(ok, "parent column has the wrong type")
		for row, child := range arch.entities {
			if col.get(row).Of(eid) {
				children = append(children, child)
			}
		}
	}
	return children
}

// logEntity logs an entity with its archetype and component names.
func (w *World) logEntity(level zerolog.Level, msg string, eid EntityID, aid archetypeID) {
	event := w.logger.WithLevel(level)
	if !event.Enabled() {
		return
	}
	event.
		Stringer("entity_id", eid).
		Int("archetype_id", aid).
		Strs("components", w.state.archetypes[aid].componentNames()).
		Msg(msg)
}
