package ecs

// Parent is a non-owning back-reference from an entity to the entity that created it. It doesn't
// keep the parent alive; a parent handle may go stale while the child lives on, in which case it
// resolves to nothing.
//
// When the world is built with WithCascadingDespawn, despawning an entity also despawns every
// entity whose Parent refers to it.
type Parent struct {
	ID EntityID `json:"id"`
}

func (Parent) Name() string { return "parent" }

// Of reports whether p refers to the given entity.
func (p Parent) Of(eid EntityID) bool {
	return p.ID != Null && p.ID == eid
}
