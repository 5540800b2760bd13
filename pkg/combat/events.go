package combat

import (
	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// Overlap is emitted once per frame for every unordered pair of entities whose hitboxes
// intersect. Delta is the position of A minus the position of B.
type Overlap struct {
	A     ecs.EntityID `json:"a"`
	B     ecs.EntityID `json:"b"`
	Delta mgl64.Vec3   `json:"delta"`
}

func (Overlap) Name() string { return "overlap" }

// Expired is emitted when a bullet reaches the end of its lifetime. The entity is despawned at the
// end of the same frame.
type Expired struct {
	Entity ecs.EntityID `json:"entity"`
}

func (Expired) Name() string { return "expired" }
