package ecs

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Event is an interface that all events must implement.
// Events are packets of information that are sent from systems to the outside world.
type Event interface {
	Name() string
}

// EventKind is a type that represents the kind of event.
type EventKind uint8

const (
	// EventKindDefault is the kind of events emitted through WithEvent.
	EventKindDefault EventKind = 1

	// Reserve 0 for the zero value and 2...15 for future ecs event kinds.
	// Users of the `ecs` package should start with CustomEventKindStart for their custom event kinds.
	// Example:
	//
	//	const (
	//    EventKindCustom = iota + ecs.CustomEventKindStart
	//  )
)

const CustomEventKindStart = 16

// RawEvent is the format of ECS output. It has a kind and a payload. The kind determines the type
// of event contained in the payload.
type RawEvent struct {
	Kind    EventKind // The kind of event
	Payload any       // The payload of the event
}

// Name returns the payload's event name, or an empty string for payloads that aren't an Event.
func (r RawEvent) Name() string {
	if e, ok := r.Payload.(Event); ok {
		return e.Name()
	}
	return ""
}

// eventManager manages the registration and storage of events. Systems run sequentially so the
// buffer is appended to without synchronization.
type eventManager struct {
	buffer   []RawEvent        // Events emitted during the current tick
	registry map[string]uint32 // Map from event name to event ID
	nextID   uint32            // Next available event ID
}

// newEventManager creates a new eventManager.
func newEventManager() eventManager {
	const initialEventBufferCapacity = 128
	return eventManager{
		buffer:   make([]RawEvent, 0, initialEventBufferCapacity),
		registry: make(map[string]uint32),
		nextID:   0,
	}
}

// register registers an event type and returns its ID. If already registered, returns existing ID.
func (e *eventManager) register(name string) (uint32, error) {
	if name == "" {
		return 0, eris.New("event name cannot be empty")
	}

	if id, exists := e.registry[name]; exists {
		return id, nil
	}

	e.registry[name] = e.nextID
	e.nextID++
	return e.nextID - 1, nil
}

// enqueue appends an event to the current tick's buffer.
func (e *eventManager) enqueue(kind EventKind, payload any) {
	e.buffer = append(e.buffer, RawEvent{Kind: kind, Payload: payload})
}

// drain returns a copy of the buffered events and empties the buffer.
func (e *eventManager) drain() []RawEvent {
	events := slices.Clone(e.buffer)
	e.clear()
	return events
}

// clear clears the event buffer.
func (e *eventManager) clear() {
	clear(e.buffer)
	e.buffer = e.buffer[:0]
}
