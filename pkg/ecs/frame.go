package ecs

import "time"

// Frame is the external input to a single tick.
type Frame struct {
	// Delta is the time elapsed since the previous frame.
	Delta time.Duration
	// Input is the input snapshot for this frame. Nil means no input.
	Input Input
}

// Input is a read-only snapshot of user input taken by the host before the tick.
type Input interface {
	// JustPressed reports whether the action went from released to pressed this frame.
	JustPressed(action string) bool
}

// Actions is an Input backed by the set of actions pressed this frame.
type Actions map[string]struct{}

// Press returns an Actions snapshot with the given actions pressed.
func Press(actions ...string) Actions {
	a := make(Actions, len(actions))
	for _, action := range actions {
		a[action] = struct{}{}
	}
	return a
}

func (a Actions) JustPressed(action string) bool {
	_, ok := a[action]
	return ok
}

// justPressed treats a missing snapshot as nothing pressed.
func (f Frame) justPressed(action string) bool {
	return f.Input != nil && f.Input.JustPressed(action)
}
