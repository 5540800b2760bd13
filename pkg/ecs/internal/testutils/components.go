package testutils

import "github.com/rotisserie/eris"

type Health struct {
	Value int `json:"value"`
}

func (Health) Name() string { return "Health" }

// Validate rejects negative health so tests can exercise attach-time validation.
func (h Health) Validate() error {
	if h.Value < 0 {
		return eris.New("health must not be negative")
	}
	return nil
}

type Position struct{ X, Y int }

func (Position) Name() string { return "Position" }

type Velocity struct{ X, Y int }

func (Velocity) Name() string { return "Velocity" }

type PlayerTag struct{ Tag string }

func (PlayerTag) Name() string { return "PlayerTag" }

type Died struct{ Tag string }

func (Died) Name() string { return "died" }
