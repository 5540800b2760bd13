package ecs

import "github.com/argus-labs/skirmish/pkg/assert"

// sparseSet maps an entity slot index to a row in an archetype.
type sparseSet []int

const sparseCapacity = 128
const sparseTombstone = -1

// newSparseSet creates a new sparse set.
func newSparseSet() sparseSet {
	s := make(sparseSet, sparseCapacity)
	for i := range sparseCapacity {
		s[i] = sparseTombstone
	}
	return s
}

// get returns the value for a key and whether it exists.
func (s *sparseSet) get(key uint32) (int, bool) {
	if int(key) >= len(*s) {
		return 0, false
	}

	value := (*s)[key]
	if value == sparseTombstone {
		return 0, false
	}

	return value, true
}

// set stores a value for a key, growing the backing slice if needed.
func (s *sparseSet) set(key uint32, value int) {
	assert.That(value >= 0, "value must be a non-negative row index")

	if int(key) >= len(*s) {
		oldLen := len(*s)
		newLen := max(oldLen*2, int(key)+1)

		newSlice := make(sparseSet, newLen)
		copy(newSlice, *s)
		for i := oldLen; i < newLen; i++ {
			newSlice[i] = sparseTombstone
		}
		*s = newSlice
	}

	(*s)[key] = value
}

// remove sets a key's value to tombstone. Returns true if the key existed.
func (s *sparseSet) remove(key uint32) bool {
	if int(key) >= len(*s) {
		return false
	}

	if (*s)[key] == sparseTombstone {
		return false
	}

	(*s)[key] = sparseTombstone
	return true
}
