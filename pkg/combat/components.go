package combat

import (
	"math"
	"time"

	"github.com/argus-labs/skirmish/pkg/timer"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidHitbox is returned when a hitbox has a negative or non-finite extent.
	ErrInvalidHitbox = eris.New("hitbox extents must be finite and non-negative")

	// ErrInvalidTower is returned when a tower has a negative size or speed, or no shooting timer.
	ErrInvalidTower = eris.New("invalid tower")

	// ErrInvalidBullet is returned when a bullet has a negative speed or no lifetime timer.
	ErrInvalidBullet = eris.New("invalid bullet")
)

// Transform is an entity's position and orientation in world space.
type Transform struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

func (Transform) Name() string { return "transform" }

// NewTransform returns a transform at the given position with identity rotation.
func NewTransform(position mgl64.Vec3) Transform {
	return Transform{Position: position, Rotation: mgl64.QuatIdent()}
}

// Orientation returns the normalized rotation. A zero quaternion, as found in a zero-value
// Transform, is treated as the identity.
func (t Transform) Orientation() mgl64.Quat {
	if t.Rotation.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return t.Rotation.Normalize()
}

// Hitbox is an axis-aligned box centered on the entity's position. Dimensions are the full size of
// the box on each axis; a zero dimension makes the box a point on that axis. Hitboxes don't rotate
// with the entity.
type Hitbox struct {
	Dimensions mgl64.Vec3 `json:"dimensions"`
}

func (Hitbox) Name() string { return "hitbox" }

// NewHitbox returns a validated hitbox with the given full dimensions.
func NewHitbox(width, height, depth float64) (Hitbox, error) {
	h := Hitbox{Dimensions: mgl64.Vec3{width, height, depth}}
	if err := h.Validate(); err != nil {
		return Hitbox{}, err
	}
	return h, nil
}

// Cube returns a hitbox with equal dimensions on every axis.
func Cube(size float64) Hitbox {
	return Hitbox{Dimensions: mgl64.Vec3{size, size, size}}
}

// HalfExtents returns half of the dimensions.
func (h Hitbox) HalfExtents() mgl64.Vec3 {
	return h.Dimensions.Mul(0.5)
}

func (h Hitbox) Validate() error {
	for axis, d := range h.Dimensions {
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return eris.Wrapf(ErrInvalidHitbox, "axis %d is %v", axis, d)
		}
	}
	return nil
}

// Tower periodically fires bullets along its local backward axis.
type Tower struct {
	ShootingTimer timer.Timer `json:"-"`
	Size          float64     `json:"size"`
	BulletSpeed   float64     `json:"bullet_speed"`
}

func (Tower) Name() string { return "tower" }

// NewTower returns a tower that fires every period.
func NewTower(period time.Duration, size, bulletSpeed float64) (Tower, error) {
	t, err := timer.New(period, timer.Repeating)
	if err != nil {
		return Tower{}, eris.Wrap(err, "invalid shooting period")
	}
	tower := Tower{ShootingTimer: t, Size: size, BulletSpeed: bulletSpeed}
	if err := tower.Validate(); err != nil {
		return Tower{}, err
	}
	return tower, nil
}

func (t Tower) Validate() error {
	switch {
	case t.ShootingTimer.Duration() <= 0:
		return eris.Wrap(ErrInvalidTower, "shooting timer is not initialized")
	case t.Size < 0 || math.IsNaN(t.Size):
		return eris.Wrapf(ErrInvalidTower, "size is %v", t.Size)
	case t.BulletSpeed < 0 || math.IsNaN(t.BulletSpeed):
		return eris.Wrapf(ErrInvalidTower, "bullet speed is %v", t.BulletSpeed)
	}
	return nil
}

// Bullet is a projectile. Its lifetime timer measures time since it was fired.
type Bullet struct {
	Lifetime timer.Timer `json:"-"`
	Speed    float64     `json:"speed"`
}

func (Bullet) Name() string { return "bullet" }

func (b Bullet) Validate() error {
	switch {
	case b.Lifetime.Duration() <= 0:
		return eris.Wrap(ErrInvalidBullet, "lifetime timer is not initialized")
	case b.Speed < 0 || math.IsNaN(b.Speed):
		return eris.Wrapf(ErrInvalidBullet, "speed is %v", b.Speed)
	}
	return nil
}

// Label is a human readable name shown in logs.
type Label struct {
	Value string `json:"value"`
}

func (Label) Name() string { return "label" }

const (
	LabelTower  = "Tower"
	LabelBullet = "Bullet"
	LabelTarget = "Target"
	LabelGround = "Ground"
)
