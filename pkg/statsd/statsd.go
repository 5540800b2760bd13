// Package statsd wraps the few statsd calls the simulation makes. It hides the datadog dependency
// so the rest of the code only deals with tick statistics.
package statsd

import (
	"strings"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Namespace is the prefix of all metrics.
const Namespace = "skirmish."

// Emitter reports tick statistics to a statsd agent.
type Emitter struct {
	client ddstatsd.ClientInterface
	tags   []string
	logger zerolog.Logger
}

// New returns an emitter connected to the agent at address. An empty address returns an emitter
// that drops everything.
func New(address string, tags []string, logger zerolog.Logger) (*Emitter, error) {
	if address == "" {
		return NewWithClient(&ddstatsd.NoOpClient{}, tags, logger), nil
	}

	opts := []ddstatsd.Option{ddstatsd.WithNamespace(Namespace)}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}
	client, err := ddstatsd.New(address, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create statsd client for %s", address)
	}
	return NewWithClient(client, tags, logger), nil
}

// NewWithClient returns an emitter using an existing client.
func NewWithClient(client ddstatsd.ClientInterface, tags []string, logger zerolog.Logger) *Emitter {
	return &Emitter{client: client, tags: tags, logger: logger}
}

// Client returns the underlying statsd client.
func (e *Emitter) Client() ddstatsd.ClientInterface {
	return e.client
}

// EmitTick reports the duration of a whole tick, the time spent in systems overall and in each
// system, and the number of live entities after the tick. Failures are logged and otherwise ignored.
func (e *Emitter) EmitTick(stats ecs.Stats, duration time.Duration) {
	e.warn(e.client.Timing("tick", duration, []string{"stage:total"}, 1), "tick")
	e.warn(e.client.Timing("tick", stats.TotalSystemTime(), []string{"stage:systems"}, 1), "tick")

	for _, s := range stats.Systems {
		tags := []string{"system:" + s.Name, "hook:" + s.Hook.String()}
		e.warn(e.client.Timing("system", s.Duration, tags, 1), "system")
	}

	e.warn(e.client.Gauge("entities", float64(stats.Entities), nil, 1), "entities")
	if stats.Spawned > 0 {
		e.warn(e.client.Count("spawned", int64(stats.Spawned), nil, 1), "spawned")
	}
	if stats.Despawned > 0 {
		e.warn(e.client.Count("despawned", int64(stats.Despawned), nil, 1), "despawned")
	}
	if stats.Events > 0 {
		e.warn(e.client.Count("events", int64(stats.Events), nil, 1), "events")
	}
}

// Close flushes and closes the client.
func (e *Emitter) Close() error {
	if err := e.client.Close(); err != nil {
		return eris.Wrap(err, "failed to close statsd client")
	}
	return nil
}

// TraceAttributes converts the emitter's metric tags into span attributes so that traces and
// metrics of the same run can be joined.
func (e *Emitter) TraceAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(e.tags))
	for _, tag := range e.tags {
		key, value := tagToTraceTag(tag)
		if key == "" {
			continue
		}
		switch v := value.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		default:
			attrs = append(attrs, attribute.Bool(key, true))
		}
	}
	return attrs
}

func (e *Emitter) warn(err error, metric string) {
	if err != nil {
		e.logger.Warn().Err(err).Str("metric", metric).Msg("failed to emit stat")
	}
}

// tagToTraceTag splits a "key:value" statsd tag. Tags without a value, or without a key, yield a
// nil value.
func tagToTraceTag(tag string) (string, any) {
	key, value, found := strings.Cut(tag, ":")
	if !found {
		return tag, nil
	}
	if key == "" {
		return value, nil
	}
	if value == "" {
		return key, nil
	}
	return key, value
}
