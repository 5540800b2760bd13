// Package scene describes the initial layout of a simulation: the towers, the static targets and
// the template used when a target is spawned on demand. Scenes are plain data read from YAML.
package scene

import (
	"bytes"
	"io"
	"math"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScene is returned by Validate and the loaders when a scene has unusable values.
var ErrInvalidScene = eris.New("invalid scene")

// Vec3 is an (x, y, z) triple written as a YAML sequence.
type Vec3 [3]float64

// Scene is the initial layout of a simulation.
type Scene struct {
	Ground      *Ground  `yaml:"ground,omitempty"`
	Towers      []Tower  `yaml:"towers"`
	Targets     []Target `yaml:"targets,omitempty"`
	SpawnTarget Target   `yaml:"spawn_target"`
}

// Ground is a flat plane at the origin. It has no hitbox.
type Ground struct {
	Size float64 `yaml:"size"`
}

// Tower is a stationary emitter that fires a projectile every Period.
type Tower struct {
	Position         Vec3          `yaml:"position"`
	RotationYDegrees float64       `yaml:"rotation_y_degrees,omitempty"`
	Period           time.Duration `yaml:"period"`
	Size             float64       `yaml:"size"`
	BulletSpeed      float64       `yaml:"bullet_speed"`
	// Hitbox overrides the tower's box dimensions. Defaults to a cube of Size.
	Hitbox *Vec3 `yaml:"hitbox,omitempty"`
}

// Target is a static box with a hitbox and nothing else.
type Target struct {
	Position   Vec3 `yaml:"position"`
	Dimensions Vec3 `yaml:"dimensions"`
}

// HitboxDimensions returns the dimensions of the tower's hitbox.
func (t Tower) HitboxDimensions() Vec3 {
	if t.Hitbox != nil {
		return *t.Hitbox
	}
	return Vec3{t.Size, t.Size, t.Size}
}

// Default returns the stock scene: a ground plane and a single tower standing on it, one unit
// tall, firing once a second.
func Default() Scene {
	return Scene{
		Ground: &Ground{Size: 5},
		Towers: []Tower{{
			Position:    Vec3{0, 0.5, 0},
			Period:      time.Second,
			Size:        1,
			BulletSpeed: 10,
		}},
		SpawnTarget: Target{
			Position:   Vec3{0, 0.5, -5},
			Dimensions: Vec3{1, 1, 1},
		},
	}
}

// Load decodes and validates a scene. Unknown keys are rejected.
func Load(r io.Reader) (Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Scene{}, eris.Wrap(err, "failed to decode scene")
	}
	if err := s.Validate(); err != nil {
		return Scene{}, err
	}
	return s, nil
}

// LoadFile loads a scene from a YAML file.
func LoadFile(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, eris.Wrapf(err, "failed to read scene file %s", path)
	}
	s, err := Load(bytes.NewReader(data))
	if err != nil {
		return Scene{}, eris.Wrapf(err, "scene file %s", path)
	}
	return s, nil
}

// Marshal encodes the scene as YAML.
func (s Scene) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode scene")
	}
	return data, nil
}

// Validate checks that every value in the scene can be simulated.
func (s Scene) Validate() error {
	if s.Ground != nil && !nonNegative(s.Ground.Size) {
		return eris.Wrap(ErrInvalidScene, "ground size must be non-negative")
	}

	for i, t := range s.Towers {
		switch {
		case t.Period <= 0:
			return eris.Wrapf(ErrInvalidScene, "tower %d: period must be positive", i)
		case !nonNegative(t.Size):
			return eris.Wrapf(ErrInvalidScene, "tower %d: size must be non-negative", i)
		case !nonNegative(t.BulletSpeed):
			return eris.Wrapf(ErrInvalidScene, "tower %d: bullet speed must be non-negative", i)
		case !finite(t.Position) || math.IsNaN(t.RotationYDegrees) || math.IsInf(t.RotationYDegrees, 0):
			return eris.Wrapf(ErrInvalidScene, "tower %d: position and rotation must be finite", i)
		case !dimensions(t.HitboxDimensions()):
			return eris.Wrapf(ErrInvalidScene, "tower %d: hitbox dimensions must be non-negative", i)
		}
	}

	for i, t := range s.Targets {
		if err := t.validate(); err != nil {
			return eris.Wrapf(err, "target %d", i)
		}
	}
	if err := s.SpawnTarget.validate(); err != nil {
		return eris.Wrap(err, "spawn target")
	}
	return nil
}

func (t Target) validate() error {
	if !finite(t.Position) {
		return eris.Wrap(ErrInvalidScene, "position must be finite")
	}
	if !dimensions(t.Dimensions) {
		return eris.Wrap(ErrInvalidScene, "dimensions must be non-negative")
	}
	return nil
}

func nonNegative(f float64) bool {
	return f >= 0 && !math.IsInf(f, 0)
}

func finite(v Vec3) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func dimensions(v Vec3) bool {
	for _, f := range v {
		if !nonNegative(f) {
			return false
		}
	}
	return true
}
