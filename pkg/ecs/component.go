package ecs

import (
	"reflect"

	"github.com/argus-labs/skirmish/pkg/assert"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// Component is the interface that all components must implement.
// Components are pure data containers that can be attached to entities.
type Component interface { //nolint:iface // We may add more methods in the future.
	// Name returns a unique string identifier for the component type.
	// This should be consistent across program executions.
	Name() string
}

// Validator is implemented by components that can reject their own values. Validate is called
// when the component is attached to an entity.
type Validator interface {
	Validate() error
}

// componentID is a unique identifier for a component type.
// It is used internally to track and manage component types efficiently.
type componentID = uint32

// componentManager manages component type registration and lookup.
type componentManager struct {
	nextID    componentID             // The next available component ID
	catalog   map[string]componentID  // Component name -> component ID
	factories []columnFactory         // Component ID -> column factory
	types     map[string]reflect.Type // Component name -> concrete type
}

// newComponentManager creates a new component manager.
func newComponentManager() componentManager {
	return componentManager{
		nextID:    0,
		catalog:   make(map[string]componentID),
		factories: make([]columnFactory, 0),
		types:     make(map[string]reflect.Type),
	}
}

// register registers a new component type and returns its ID.
// If the component is already registered, no-op.
func (cm *componentManager) register(name string, typ reflect.Type, factory columnFactory) (componentID, error) {
	if name == "" {
		return 0, eris.New("component name cannot be empty")
	}

	if cid, exists := cm.catalog[name]; exists {
		if cm.types[name] != typ {
			return 0, eris.Errorf("component name %q is used by both %s and %s", name, cm.types[name], typ)
		}
		return cid, nil
	}

	cm.catalog[name] = cm.nextID
	cm.types[name] = typ
	cm.factories = append(cm.factories, factory)
	cm.nextID++
	assert.That(int(cm.nextID) == len(cm.factories), "component id doesn't match number of components")

	return cm.nextID - 1, nil
}

// getID returns a component's ID given a name.
func (cm *componentManager) getID(name string) (componentID, error) {
	id, exists := cm.catalog[name]
	if !exists {
		return 0, eris.Wrapf(ErrComponentNotRegistered, "component %s", name)
	}
	return id, nil
}

// toComponentBitmap builds the archetype bitmap for a set of component values. Every component must
// be registered and appear at most once.
func (cm *componentManager) toComponentBitmap(components []Component) (bitmap.Bitmap, error) {
	var bm bitmap.Bitmap
	for _, c := range components {
		if c == nil {
			return bm, eris.New("component cannot be nil")
		}
		cid, err := cm.getID(c.Name())
		if err != nil {
			return bm, err
		}
		if bm.Contains(cid) {
			return bm, eris.Errorf("duplicate component %s", c.Name())
		}
		bm.Set(cid)
	}
	return bm, nil
}

// createArchetype creates an archetype with one column per component in the bitmap, ordered by
// component ID.
func (cm *componentManager) createArchetype(aid archetypeID, components bitmap.Bitmap) archetype {
	cids := make([]componentID, 0, components.Count())
	columns := make([]abstractColumn, 0, components.Count())
	components.Range(func(cid uint32) {
		assert.That(int(cid) < len(cm.factories), "component %d isn't registered", cid)
		cids = append(cids, cid)
		columns = append(columns, cm.factories[cid]())
	})
	return newArchetype(aid, components, cids, columns)
}

// registerComponent registers component type T with the world state.
func registerComponent[T Component](ws *worldState) (componentID, error) {
	var zero T
	return ws.components.register(zero.Name(), reflect.TypeOf(zero), newColumnFactory[T]())
}

// validateComponents runs Validate on every component that implements Validator.
func validateComponents(components []Component) error {
	for _, c := range components {
		v, ok := c.(Validator)
		if !ok {
			continue
		}
		if err := v.Validate(); err != nil {
			return eris.Wrapf(err, "invalid component %s", c.Name())
		}
	}
	return nil
}
