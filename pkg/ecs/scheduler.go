package ecs

import (
	"time"

	"github.com/rotisserie/eris"
)

// systemMetadata contains the metadata for a system.
type systemMetadata struct {
	name string       // The name of the system
	fn   func() error // Function that wraps a System
}

// SystemTiming reports how long a system took in the last tick.
type SystemTiming struct {
	Name     string
	Hook     SystemHook
	Duration time.Duration
}

// systemScheduler runs the systems of one hook sequentially in registration order. Component
// writes made by a system are visible to the systems after it; structural changes are not, since
// they go through the command buffer.
type systemScheduler struct {
	hook    SystemHook
	systems []systemMetadata
}

// newSystemScheduler creates a new system scheduler.
func newSystemScheduler(hook SystemHook) systemScheduler {
	return systemScheduler{hook: hook, systems: make([]systemMetadata, 0)}
}

// register appends a system to the schedule.
func (s *systemScheduler) register(name string, systemFn func() error) {
	s.systems = append(s.systems, systemMetadata{name: name, fn: systemFn})
}

// run executes the systems in order and stops at the first error. Timings of the systems that ran
// are appended to timings.
func (s *systemScheduler) run(timings []SystemTiming) ([]SystemTiming, error) {
	for _, system := range s.systems {
		start := time.Now()
		err := system.fn()
		timings = append(timings, SystemTiming{Name: system.name, Hook: s.hook, Duration: time.Since(start)})
		if err != nil {
			return timings, eris.Wrapf(err, "system %s failed", system.name)
		}
	}
	return timings, nil
}

// names returns the registered system names in execution order.
func (s *systemScheduler) names() []string {
	names := make([]string, len(s.systems))
	for i, system := range s.systems {
		names[i] = system.name
	}
	return names
}
