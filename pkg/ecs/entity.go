package ecs

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// EntityID is a generational handle to an entity. The low 32 bits are the slot index and the high
// 32 bits the slot's generation at the time the handle was issued. Once an entity is despawned its
// slot generation is bumped, so old handles never resolve to whatever reuses the slot.
//
// The zero value is Null and never refers to a live entity.
type EntityID uint64

// Null is the handle that never refers to an entity.
const Null EntityID = 0

// maxEntityIndex is the maximum number of entity slots that can be allocated.
const maxEntityIndex = math.MaxUint32 - 1

func newEntityID(index, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index of the handle.
func (e EntityID) Index() uint32 {
	return uint32(e) //nolint:gosec // truncation intended
}

// Generation returns the slot generation of the handle.
func (e EntityID) Generation() uint32 {
	return uint32(e >> 32) //nolint:gosec // truncation intended
}

func (e EntityID) String() string {
	if e == Null {
		return "null"
	}
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// noArchetype marks a slot that is free or reserved but not yet placed in an archetype.
const noArchetype archetypeID = -1

// entityManager hands out entity handles and tracks which archetype each live entity lives in.
// Slots are recycled in FIFO order so a freshly freed slot is the last to be reused.
type entityManager struct {
	generations []uint32      // Slot index -> current generation
	location    []archetypeID // Slot index -> archetype, noArchetype when not placed
	free        []uint32      // A queue of free slot indices
	alive       int           // Number of placed entities
}

// newEntityManager creates an empty entity manager.
func newEntityManager() entityManager {
	return entityManager{
		generations: make([]uint32, 0),
		location:    make([]archetypeID, 0),
		free:        make([]uint32, 0),
	}
}

// reserve allocates a handle without placing it in an archetype. The handle is not alive until
// place is called.
func (em *entityManager) reserve() (EntityID, error) {
	if len(em.free) > 0 {
		index := em.free[0]
		em.free = em.free[1:]
		return newEntityID(index, em.generations[index]), nil
	}

	if len(em.generations) > maxEntityIndex {
		return Null, eris.New("max number of entities exceeded")
	}

	index := uint32(len(em.generations)) //nolint:gosec // bounded by maxEntityIndex
	em.generations = append(em.generations, 1)
	em.location = append(em.location, noArchetype)
	return newEntityID(index, 1), nil
}

// place records that a reserved handle now lives in the given archetype.
func (em *entityManager) place(id EntityID, aid archetypeID) {
	index := id.Index()
	if em.location[index] == noArchetype {
		em.alive++
	}
	em.location[index] = aid
}

// release invalidates a handle and returns its slot to the free list. Works for both reserved and
// placed handles. Returns false if the handle was already stale.
func (em *entityManager) release(id EntityID) bool {
	if !em.isCurrent(id) {
		return false
	}

	index := id.Index()
	if em.location[index] != noArchetype {
		em.alive--
	}
	em.location[index] = noArchetype
	em.generations[index]++
	if em.generations[index] == 0 { // Skip 0 on wraparound so Null stays unreachable.
		em.generations[index] = 1
	}
	em.free = append(em.free, index)
	return true
}

// isCurrent reports whether the handle's generation matches its slot, placed or not.
func (em *entityManager) isCurrent(id EntityID) bool {
	index := id.Index()
	return id != Null && int(index) < len(em.generations) && em.generations[index] == id.Generation()
}

// isAlive reports whether the handle refers to a placed entity.
func (em *entityManager) isAlive(id EntityID) bool {
	return em.isCurrent(id) && em.location[id.Index()] != noArchetype
}

// getArchetype returns the archetype the entity lives in.
func (em *entityManager) getArchetype(id EntityID) (archetypeID, error) {
	if !em.isAlive(id) {
		return noArchetype, eris.Wrapf(ErrEntityNotFound, "entity %s", id)
	}
	return em.location[id.Index()], nil
}

// count returns the number of live entities.
func (em *entityManager) count() int {
	return em.alive
}
