package statsd

import (
	"testing"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

type metric struct {
	name  string
	value float64
	tags  []string
}

type recordingClient struct {
	*ddstatsd.NoOpClient
	timings []metric
	gauges  []metric
	counts  []metric
	fail    bool
}

func (c *recordingClient) Timing(name string, value time.Duration, tags []string, _ float64) error {
	c.timings = append(c.timings, metric{name: name, value: float64(value), tags: tags})
	if c.fail {
		return eris.New("agent unreachable")
	}
	return nil
}

func (c *recordingClient) Gauge(name string, value float64, tags []string, _ float64) error {
	c.gauges = append(c.gauges, metric{name: name, value: value, tags: tags})
	return nil
}

func (c *recordingClient) Count(name string, value int64, tags []string, _ float64) error {
	c.counts = append(c.counts, metric{name: name, value: float64(value), tags: tags})
	return nil
}

func TestEmitTick(t *testing.T) {
	t.Parallel()

	client := &recordingClient{NoOpClient: &ddstatsd.NoOpClient{}}
	e := NewWithClient(client, nil, zerolog.Nop())

	e.EmitTick(ecs.Stats{
		Entities: 3,
		Spawned:  1,
		Systems: []ecs.SystemTiming{
			{Name: "combat.ShootingSystem", Hook: ecs.Update, Duration: time.Millisecond},
			{Name: "combat.MotionSystem", Hook: ecs.Update, Duration: 2 * time.Millisecond},
		},
	}, 5*time.Millisecond)

	require.Len(t, client.timings, 4)
	assert.Equal(t, metric{name: "tick", value: float64(5 * time.Millisecond), tags: []string{"stage:total"}},
		client.timings[0])
	assert.Equal(t, metric{name: "tick", value: float64(3 * time.Millisecond), tags: []string{"stage:systems"}},
		client.timings[1])
	assert.Equal(t, []string{"system:combat.MotionSystem", "hook:update"}, client.timings[3].tags)

	assert.Equal(t, []metric{{name: "entities", value: 3}}, client.gauges)
	assert.Equal(t, []metric{{name: "spawned", value: 1}}, client.counts, "zero counts are skipped")
}

func TestEmitTick_FailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	client := &recordingClient{NoOpClient: &ddstatsd.NoOpClient{}, fail: true}
	e := NewWithClient(client, nil, zerolog.Nop())
	assert.NotPanics(t, func() { e.EmitTick(ecs.Stats{}, time.Millisecond) })
	assert.Len(t, client.gauges, 1)
}

func TestNew_EmptyAddressIsNoOp(t *testing.T) {
	t.Parallel()

	e, err := New("", nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &ddstatsd.NoOpClient{}, e.Client())
	require.NoError(t, e.Close())
}

func TestMetricTagToTraceTag(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		tag       string
		wantKey   string
		wantValue any
	}{
		{tag: "foo:bar", wantKey: "foo", wantValue: "bar"},
		{tag: "no_value", wantKey: "no_value", wantValue: nil},
		{tag: "many:colons:in:this:tag", wantKey: "many", wantValue: "colons:in:this:tag"},
		{tag: "no_tag_value:", wantKey: "no_tag_value", wantValue: nil},
		{tag: ":no_tag_key", wantKey: "no_tag_key", wantValue: nil},
	}

	for _, tc := range testCases {
		gotKey, gotValue := tagToTraceTag(tc.tag)
		assert.Equal(t, tc.wantKey, gotKey)
		assert.Equal(t, tc.wantValue, gotValue)
	}
}

func TestTraceAttributes(t *testing.T) {
	t.Parallel()

	e := NewWithClient(&ddstatsd.NoOpClient{}, []string{"run:abc", "swept", ""}, zerolog.Nop())
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("run", "abc"),
		attribute.Bool("swept", true),
	}, e.TraceAttributes())
}
