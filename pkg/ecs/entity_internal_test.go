package ecs

import (
	"testing"

	"github.com/argus-labs/skirmish/pkg/testutils"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityID_Packing(t *testing.T) {
	t.Parallel()

	id := newEntityID(42, 7)
	assert.Equal(t, uint32(42), id.Index())
	assert.Equal(t, uint32(7), id.Generation())
	assert.Equal(t, "42v7", id.String())
	assert.Equal(t, "null", Null.String())
}

func TestEntityManager_ReservePlaceRelease(t *testing.T) {
	t.Parallel()

	em := newEntityManager()

	first, err := em.reserve()
	require.NoError(t, err)
	assert.NotEqual(t, Null, first)
	assert.True(t, em.isCurrent(first))
	assert.False(t, em.isAlive(first), "reserved handles aren't alive until placed")

	em.place(first, 0)
	assert.True(t, em.isAlive(first))
	assert.Equal(t, 1, em.count())

	require.True(t, em.release(first))
	assert.False(t, em.isAlive(first))
	assert.Zero(t, em.count())
	assert.False(t, em.release(first), "releasing a stale handle is a no-op")
}

func TestEntityManager_RecycledSlotsGetNewGeneration(t *testing.T) {
	t.Parallel()

	em := newEntityManager()

	old, err := em.reserve()
	require.NoError(t, err)
	em.place(old, 0)
	require.True(t, em.release(old))

	reused, err := em.reserve()
	require.NoError(t, err)
	em.place(reused, 0)

	assert.Equal(t, old.Index(), reused.Index(), "slot is recycled")
	assert.NotEqual(t, old, reused, "handle differs by generation")
	assert.False(t, em.isAlive(old), "old handle must not alias the new entity")
	assert.True(t, em.isAlive(reused))

	_, err = em.getArchetype(old)
	assert.True(t, eris.Is(err, ErrEntityNotFound))
}

func TestEntityManager_FIFOReuse(t *testing.T) {
	t.Parallel()

	em := newEntityManager()
	ids := make([]EntityID, 3)
	for i := range ids {
		id, err := em.reserve()
		require.NoError(t, err)
		em.place(id, 0)
		ids[i] = id
	}

	// Free in order 2, 0; reuse must follow the same order.
	require.True(t, em.release(ids[2]))
	require.True(t, em.release(ids[0]))

	a, err := em.reserve()
	require.NoError(t, err)
	b, err := em.reserve()
	require.NoError(t, err)
	assert.Equal(t, ids[2].Index(), a.Index())
	assert.Equal(t, ids[0].Index(), b.Index())
}

// Random reserve/place/release sequences keep the live count consistent with a model.
func TestEntityManager_RandomOps(t *testing.T) {
	t.Parallel()

	r := testutils.NewRand(t)
	em := newEntityManager()
	live := make(map[EntityID]struct{})
	var dead []EntityID

	const ops = 5000
	for range ops {
		if len(live) == 0 || r.IntN(3) > 0 {
			id, err := em.reserve()
			require.NoError(t, err)
			em.place(id, 0)
			live[id] = struct{}{}
			continue
		}

		var victim EntityID
		for id := range live {
			victim = id
			break
		}
		require.True(t, em.release(victim))
		delete(live, victim)
		dead = append(dead, victim)
	}

	assert.Equal(t, len(live), em.count())
	for id := range live {
		assert.True(t, em.isAlive(id))
	}
	for _, id := range dead {
		assert.False(t, em.isAlive(id), "stale handle %s resolved", id)
	}
}
