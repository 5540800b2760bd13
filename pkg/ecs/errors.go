package ecs

import "github.com/rotisserie/eris"

var (
	// ErrEntityNotFound is returned when attempting to operate on a non-existent entity
	// or when an entity handle refers to a slot that has since been recycled.
	ErrEntityNotFound = eris.New("entity does not exist")

	// ErrComponentNotFound is returned when an entity doesn't carry the requested component.
	ErrComponentNotFound = eris.New("entity does not contain the component")

	// ErrComponentNotRegistered is returned when a component type is used before registration.
	ErrComponentNotRegistered = eris.New("component is not registered")

	// ErrTickInProgress is returned when the world is mutated directly while a tick is running.
	// Systems must go through their Commands instead.
	ErrTickInProgress = eris.New("operation not allowed while a tick is in progress")

	// ErrNegativeDelta is returned by Tick when the frame delta is negative.
	ErrNegativeDelta = eris.New("frame delta must not be negative")
)
