package ecs

import (
	"iter"
	"reflect"
	"time"

	"github.com/argus-labs/skirmish/pkg/assert"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// systemStateField is implemented by every field type allowed in a system state struct.
type systemStateField interface {
	init(meta *systemInitMetadata) error
}

// systemInitMetadata is passed to every field while a system is being registered.
type systemInitMetadata struct {
	world  *World
	system string
	events bitmap.Bitmap // Event IDs already claimed by a WithEvent field of this system
}

var _ systemStateField = &BaseSystemState{}
var _ systemStateField = &WithEvent[Event]{}
var _ systemStateField = &Contains[any]{}
var _ systemStateField = &Exact[any]{}

// initSystemState initializes every field of the system state. Fields must be exported and be one
// of the system state field types.
func initSystemState[T any](w *World, state *T, name string) error {
	value := reflect.ValueOf(state).Elem()
	if value.Kind() != reflect.Struct {
		return eris.Errorf("system state must be a struct, got %s", value.Kind())
	}

	meta := systemInitMetadata{world: w, system: name}
	for i := range value.NumField() {
		field := value.Field(i)
		fieldType := value.Type().Field(i)

		if !fieldType.IsExported() {
			return eris.Errorf("field %s must be exported", fieldType.Name)
		}

		stateField, ok := field.Addr().Interface().(systemStateField)
		if !ok {
			return eris.Errorf("field %s of type %s is not a system state field", fieldType.Name, fieldType.Type)
		}

		if err := stateField.init(&meta); err != nil {
			return eris.Wrapf(err, "failed to initialize field %s", fieldType.Name)
		}
	}
	return nil
}

// -------------------------------------------------------------------------------------------------
// Base System State Field
// -------------------------------------------------------------------------------------------------

// BaseSystemState gives a system access to the current frame, the command buffer and a logger.
// Embed it in your system state.
//
// Example:
//
//	type DebugSystemState struct {
//	    ecs.BaseSystemState
//	}
//
//	func DebugSystem(state *DebugSystemState) error {
//	    state.Logger().Debug().Dur("delta", state.Delta()).Msg("tick")
//	    return nil
//	}
type BaseSystemState struct {
	world    *World
	logger   zerolog.Logger
	commands Commands
}

func (b *BaseSystemState) init(meta *systemInitMetadata) error {
	b.world = meta.world
	b.logger = meta.world.logger.With().Str("system", meta.system).Logger()
	b.commands = Commands{world: meta.world}
	return nil
}

// Frame returns the frame being processed.
func (b *BaseSystemState) Frame() Frame {
	return b.world.frame
}

// Delta returns the time elapsed since the previous frame.
func (b *BaseSystemState) Delta() time.Duration {
	return b.world.frame.Delta
}

// FrameNumber returns the zero-based index of the frame being processed.
func (b *BaseSystemState) FrameNumber() uint64 {
	return b.world.frameNumber
}

// JustPressed reports whether the frame's input snapshot has the action just pressed.
func (b *BaseSystemState) JustPressed(action string) bool {
	return b.world.frame.justPressed(action)
}

// Commands returns the handle used to request spawns and despawns.
func (b *BaseSystemState) Commands() *Commands {
	return &b.commands
}

// Logger returns the system's logger.
func (b *BaseSystemState) Logger() *zerolog.Logger {
	return &b.logger
}

// EmitRawEvent emits a raw event with the given event kind and payload.
func (b *BaseSystemState) EmitRawEvent(kind EventKind, payload any) {
	b.world.events.enqueue(kind, payload)
}

// -------------------------------------------------------------------------------------------------
// Events Fields
// -------------------------------------------------------------------------------------------------

// WithEvent is a generic system state field that allows systems to emit events of type T.
//
// Example:
//
//	type LevelUp struct{ Nickname string }
//
//	func (LevelUp) Name() string { return "level-up" }
//
//	type LevelUpSystemState struct {
//	    LevelUpEvents ecs.WithEvent[LevelUp]
//	}
//
//	func LevelUpSystem(state *LevelUpSystemState) error {
//	    state.LevelUpEvents.Emit(LevelUp{Nickname: "Player1"})
//	    return nil
//	}
type WithEvent[T Event] struct {
	world *World
}

func (e *WithEvent[T]) init(meta *systemInitMetadata) error {
	var zero T

	id, err := meta.world.events.register(zero.Name())
	if err != nil {
		return eris.Wrapf(err, "failed to register event %s", zero.Name())
	}
	if meta.events.Contains(id) {
		return eris.Errorf("systems cannot declare multiple WithEvent fields of event %s", zero.Name())
	}
	meta.events.Set(id)
	e.world = meta.world
	return nil
}

// Emit emits an event of type T.
func (e *WithEvent[T]) Emit(event T) {
	e.world.events.enqueue(EventKindDefault, event)
}

// -------------------------------------------------------------------------------------------------
// Component Search Fields
// -------------------------------------------------------------------------------------------------

// search provides type-safe component queries. It uses reflection during initialization to figure
// out which components to include in the query. T must be a struct composed only of Ref[C] and
// Opt[C] fields, e.g.:
//
//	type Particle struct {
//	    Position ecs.Ref[Position]
//	    Velocity ecs.Ref[Velocity]
//	    Owner    ecs.Opt[ecs.Parent]
//	}
//
// Ref fields are required for a match; Opt fields are not. Every component type used in T is
// registered when the system is registered.
type search[T any] struct {
	world      *World        // Reference to the world
	components bitmap.Bitmap // Bitmap of required component types
	result     T             // Reusable instance of the result type
	fields     []ref         // Cached references to result's fields
}

func (s *search[T]) init(meta *systemInitMetadata) error {
	resultType := reflect.TypeOf(s.result)
	if resultType == nil || resultType.Kind() != reflect.Struct {
		return eris.Errorf("search type must be a struct of Ref and Opt fields, got %v", resultType)
	}
	resultValue := reflect.ValueOf(&s.result).Elem()

	s.world = meta.world
	s.fields = make([]ref, resultType.NumField())
	for i := range resultType.NumField() {
		field := resultType.Field(i)
		if !field.IsExported() {
			return eris.Errorf("field %s must be exported", field.Name)
		}
		fieldRef, ok := resultValue.Field(i).Addr().Interface().(ref)
		if !ok {
			return eris.Errorf("field %s must be of type Ref[Component] or Opt[Component], got %s", field.Name, field.Type)
		}
		s.fields[i] = fieldRef

		cid, err := fieldRef.register(meta.world)
		if err != nil {
			return err
		}
		if fieldRef.required() {
			if s.components.Contains(cid) {
				return eris.Errorf("component of field %s appears more than once", field.Name)
			}
			s.components.Set(cid)
		}
	}
	if s.components.Count() == 0 {
		return eris.New("search must require at least one component")
	}
	return nil
}

// iter returns an iterator over all entities in the given archetypes, in row order.
func (s *search[T]) iter(archetypeIDs []archetypeID) iter.Seq2[EntityID, T] {
	ws := s.world.state
	return func(yield func(EntityID, T) bool) {
		for _, aid := range archetypeIDs {
			arch := &ws.archetypes[aid]
			for _, eid := range arch.entities {
				for i := range s.fields {
					s.fields[i].attach(ws, eid)
				}
				if !yield(eid, s.result) {
					return
				}
			}
		}
	}
}

// get attaches the fields to eid if it matches.
func (s *search[T]) get(eid EntityID, match func(*archetype) bool) (T, bool) {
	ws := s.world.state
	aid, err := ws.entities.getArchetype(eid)
	if err != nil || !match(&ws.archetypes[aid]) {
		var zero T
		return zero, false
	}
	for i := range s.fields {
		s.fields[i].attach(ws, eid)
	}
	return s.result, true
}

// Contains provides a search that matches archetypes containing all specified component types,
// potentially along with additional components.
//
// Example:
//
//	type MovementSystemState struct {
//	    Movers ecs.Contains[struct {
//	        Position ecs.Ref[Position]
//	        Velocity ecs.Ref[Velocity]
//	    }]
//	}
//
//	func MovementSystem(state *MovementSystemState) error {
//	    for _, mover := range state.Movers.Iter() {
//	        pos := mover.Position.Get()
//	        vel := mover.Velocity.Get()
//	        mover.Position.Set(Position{X: pos.X + vel.X, Y: pos.Y + vel.Y})
//	    }
//	    return nil
//	}
type Contains[T any] struct{ search[T] }

// Iter returns an iterator over matching entities and their components. The order is stable
// within a frame.
func (c *Contains[T]) Iter() iter.Seq2[EntityID, T] {
	return c.iter(c.world.state.archContains(c.components))
}

// Get returns the components of eid if it is alive and matches. Stale handles never match.
func (c *Contains[T]) Get(eid EntityID) (T, bool) {
	return c.get(eid, func(a *archetype) bool { return a.contains(c.components) })
}

// Exact provides a search that matches archetypes containing exactly the required component types.
// Opt fields are not part of the archetype match.
type Exact[T any] struct{ search[T] }

// Iter returns an iterator over entities that match the Exact query.
func (c *Exact[T]) Iter() iter.Seq2[EntityID, T] {
	archetypes := make([]archetypeID, 0, 1)
	if aid, ok := c.world.state.archExact(c.components); ok {
		archetypes = append(archetypes, aid)
	}
	return c.iter(archetypes)
}

// Get returns the components of eid if it is alive and matches exactly.
func (c *Exact[T]) Get(eid EntityID) (T, bool) {
	return c.get(eid, func(a *archetype) bool { return a.exact(c.components) })
}

// -------------------------------------------------------------------------------------------------
// Component Handles
// -------------------------------------------------------------------------------------------------

// ref is an internal interface for component handles.
type ref interface {
	attach(*worldState, EntityID)
	register(*World) (componentID, error)
	required() bool
}

var _ ref = &Ref[Component]{}
var _ ref = &Opt[Component]{}

// Ref provides a type-safe handle to a required component on an entity.
type Ref[T Component] struct {
	ws     *worldState
	entity EntityID
}

func (r *Ref[T]) attach(ws *worldState, eid EntityID) {
	r.ws = ws
	r.entity = eid
}

func (r *Ref[T]) register(w *World) (componentID, error) {
	return registerComponent[T](w.state)
}

func (r *Ref[T]) required() bool { return true }

// Get retrieves the component value for this Ref's entity.
func (r *Ref[T]) Get() T {
	component, err := getComponent[T](r.ws, r.entity)
	assert.That(err == nil, "entity doesn't exist or doesn't contain the component: %v", err)
	return component
}

// Set updates the component value for this Ref's entity. A value that fails validation panics, or
// is dropped in release builds.
func (r *Ref[T]) Set(component T) {
	err := setComponent(r.ws, r.entity, component)
	assert.That(err == nil, "entity doesn't exist or doesn't contain the component: %v", err)
}

// Opt provides a handle to a component the entity may or may not carry.
type Opt[T Component] struct {
	ws     *worldState
	entity EntityID
}

func (o *Opt[T]) attach(ws *worldState, eid EntityID) {
	o.ws = ws
	o.entity = eid
}

func (o *Opt[T]) register(w *World) (componentID, error) {
	return registerComponent[T](w.state)
}

func (o *Opt[T]) required() bool { return false }

// Get returns the component and true if the entity carries it.
func (o *Opt[T]) Get() (T, bool) {
	component, err := getComponent[T](o.ws, o.entity)
	if err != nil {
		var zero T
		return zero, false
	}
	return component, true
}

// Set updates the component if the entity carries it and reports whether it did.
func (o *Opt[T]) Set(component T) bool {
	return setComponent(o.ws, o.entity, component) == nil
}
