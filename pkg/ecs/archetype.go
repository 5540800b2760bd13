package ecs

import (
	"github.com/argus-labs/skirmish/pkg/assert"
	"github.com/kelindar/bitmap"
)

// archetypeID is the index of an archetype in the world state's archetype list.
type archetypeID = int

// archetype represents a collection of entities with the same component types.
// NOTE: We store the compCount instead of using Bitmap.Count() because counting bits is O(n). We
// store columns in a slice instead of a map because it's faster for small # of components.
type archetype struct {
	id         archetypeID      // Corresponds to the index in the archetypes array
	components bitmap.Bitmap    // Bitmap of components contained in this archetype
	rows       sparseSet        // Entity slot index -> row
	entities   []EntityID       // List of entities of this archetype, in row order
	cids       []componentID    // Component ID of each column
	columns    []abstractColumn // List of columns containing component data
	compCount  int              // Number of component types in the archetype
}

// newArchetype creates an archetype for the given component types.
func newArchetype(
	aid archetypeID, components bitmap.Bitmap, cids []componentID, columns []abstractColumn,
) archetype {
	assert.That(components.Count() == len(columns), "mismatched number of columns and components")
	assert.That(len(cids) == len(columns), "mismatched number of columns and component ids")
	return archetype{
		id:         aid,
		components: components,
		rows:       newSparseSet(),
		entities:   make([]EntityID, 0),
		cids:       cids,
		columns:    columns,
		compCount:  len(columns),
	}
}

// exact returns true if the given components matches the archetype's exactly.
func (a *archetype) exact(components bitmap.Bitmap) bool {
	if a.compCount != components.Count() {
		return false
	}
	return a.contains(components)
}

// contains returns true if the archetype contains all of the components in the given components.
func (a *archetype) contains(components bitmap.Bitmap) bool {
	intersect := components.Clone(nil)
	intersect.And(a.components)
	return intersect.Count() == components.Count()
}

// columnIndex returns the index of the column storing the component, or -1.
func (a *archetype) columnIndex(cid componentID) int {
	for i, id := range a.cids {
		if id == cid {
			return i
		}
	}
	return -1
}

// -------------------------------------------------------------------------------------------------
// Entity operations
// -------------------------------------------------------------------------------------------------

// newEntity adds the entity to the archetype and writes its components. The components must match
// the archetype's component set, which the caller guarantees by building the archetype from them.
func (a *archetype) newEntity(eid EntityID, components []Component) {
	a.entities = append(a.entities, eid)
	row := len(a.entities) - 1

	for _, column := range a.columns {
		column.extend()
		assert.That(column.len() == len(a.entities), "column components length doesn't match entities")
	}

	for _, c := range components {
		for _, column := range a.columns {
			if column.name() == c.Name() {
				column.setAbstract(row, c)
				break
			}
		}
	}

	a.rows.set(eid.Index(), row)
}

// removeEntity removes an entity from the archetype by swapping the last entity into its row.
// Expects the caller to check that the entity belongs to this archetype and is alive.
func (a *archetype) removeEntity(eid EntityID) {
	row, exists := a.rows.get(eid.Index())
	assert.That(exists, "entity is not in archetype")

	lastIndex := len(a.entities) - 1

	a.entities[row] = a.entities[lastIndex]
	a.entities = a.entities[:lastIndex]

	for _, column := range a.columns {
		column.remove(row)
		assert.That(column.len() == len(a.entities), "column components length doesn't match entities")
	}

	ok := a.rows.remove(eid.Index())
	assert.That(ok, "entity isn't removed from sparse set")

	if row == lastIndex {
		return
	}

	// Update the swapped entity's row.
	movedID := a.entities[row]
	a.rows.set(movedID.Index(), row)
}

// row returns the row of the entity within the archetype.
func (a *archetype) row(eid EntityID) (int, bool) {
	return a.rows.get(eid.Index())
}

// componentsOf returns copies of all components of the entity at the given row.
func (a *archetype) componentsOf(row int) []Component {
	components := make([]Component, len(a.columns))
	for i, column := range a.columns {
		components[i] = column.getAbstract(row)
	}
	return components
}

// componentNames returns the names of the archetype's components in column order.
func (a *archetype) componentNames() []string {
	names := make([]string, len(a.columns))
	for i, column := range a.columns {
		names[i] = column.name()
	}
	return names
}
