package combat

import (
	"iter"
	"math"
	"slices"
	"time"

	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// Body is a snapshot of one collidable entity taken at the start of collision detection.
type Body struct {
	Entity      ecs.EntityID
	Position    mgl64.Vec3
	HalfExtents mgl64.Vec3
	Parent      ecs.EntityID // ecs.Null when the entity has no parent
	Speed       float64      // Linear speed, non-zero only for projectiles
}

// excluded reports whether the pair must never be tested: an entity against itself, or an entity
// against its declared parent in either direction.
func excluded(a, b Body) bool {
	if a.Entity == b.Entity {
		return true
	}
	return (a.Parent != ecs.Null && a.Parent == b.Entity) ||
		(b.Parent != ecs.Null && b.Parent == a.Entity)
}

// Overlaps reports whether the boxes of a and b intersect or touch on all three axes, and returns
// the displacement a - b.
func Overlaps(a, b Body) (mgl64.Vec3, bool) {
	delta := a.Position.Sub(b.Position)
	for axis := range 3 {
		if math.Abs(delta[axis]) > a.HalfExtents[axis]+b.HalfExtents[axis] {
			return delta, false
		}
	}
	return delta, true
}

// BroadPhase yields the index pairs of bodies that may overlap. Every overlapping pair must be
// yielded at least once; pairs may come in either order.
type BroadPhase interface {
	Pairs(bodies []Body) iter.Seq2[int, int]
}

// Exhaustive is the reference broad phase: every unordered pair, O(n^2).
type Exhaustive struct{}

func (Exhaustive) Pairs(bodies []Body) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i := range bodies {
			for j := i + 1; j < len(bodies); j++ {
				if !yield(i, j) {
					return
				}
			}
		}
	}
}

// Detector finds overlapping pairs among a set of bodies.
type Detector struct {
	// BroadPhase selects candidate pairs. Nil means Exhaustive.
	BroadPhase BroadPhase
	// SweptBounds inflates every body's half extents by the distance it covers in one frame
	// (speed * delta) before testing. Applied uniformly to all pairs.
	SweptBounds bool
}

// Detect returns one Overlap per overlapping unordered pair, excluding self and parent pairs. A is
// always the body that comes first in bodies. Results are ordered by (A, B) position in bodies.
func (d Detector) Detect(bodies []Body, delta time.Duration) []Overlap {
	if d.SweptBounds {
		bodies = inflate(bodies, delta)
	}

	broad := d.BroadPhase
	if broad == nil {
		broad = Exhaustive{}
	}
	_, exhaustive := broad.(Exhaustive)

	type pair struct{ i, j int }
	var found []pair
	seen := make(map[pair]struct{})
	for i, j := range broad.Pairs(bodies) {
		if i > j {
			i, j = j, i
		}
		if i == j {
			continue
		}
		p := pair{i, j}
		if !exhaustive {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
		}
		if excluded(bodies[i], bodies[j]) {
			continue
		}
		if _, ok := Overlaps(bodies[i], bodies[j]); ok {
			found = append(found, p)
		}
	}

	if !exhaustive {
		slices.SortFunc(found, func(a, b pair) int {
			if a.i != b.i {
				return a.i - b.i
			}
			return a.j - b.j
		})
	}

	overlaps := make([]Overlap, len(found))
	for k, p := range found {
		a, b := bodies[p.i], bodies[p.j]
		overlaps[k] = Overlap{A: a.Entity, B: b.Entity, Delta: a.Position.Sub(b.Position)}
	}
	return overlaps
}

// inflate returns a copy of bodies with swept half extents.
func inflate(bodies []Body, delta time.Duration) []Body {
	swept := slices.Clone(bodies)
	dt := delta.Seconds()
	for i := range swept {
		grow := swept[i].Speed * dt
		swept[i].HalfExtents = swept[i].HalfExtents.Add(mgl64.Vec3{grow, grow, grow})
	}
	return swept
}
