package sim

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/argus-labs/skirmish/pkg/combat"
	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/argus-labs/skirmish/pkg/scene"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// isolateEnv clears the variables New reads so the host environment can't leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SKIRMISH_TICK_RATE", "SKIRMISH_MAX_FRAMES", "SKIRMISH_SWEPT_BOUNDS", "SKIRMISH_CASCADE_DESPAWN",
		"SKIRMISH_SCENE_FILE", "SKIRMISH_REDIS_ADDRESS", "SKIRMISH_REDIS_PASSWORD", "SKIRMISH_STATSD_ADDRESS",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("SKIRMISH_EVENT_STREAM", "skirmish:events")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_LOG_LEVEL", "info")
	t.Setenv("OTEL_LOG_FORMAT", "json")
}

// rapidFire is a scene where a bullet from the tower reaches the target a few frames after firing
// when ticking at 1000Hz.
func rapidFire() *scene.Scene {
	return &scene.Scene{
		Towers: []scene.Tower{{Period: 20 * time.Millisecond, Size: 1, BulletSpeed: 10}},
		Targets: []scene.Target{{
			Position:   scene.Vec3{0, 0, -1.2},
			Dimensions: scene.Vec3{1, 1, 1},
		}},
		SpawnTarget: scene.Target{Position: scene.Vec3{0, 0, -5}, Dimensions: scene.Vec3{1, 1, 1}},
	}
}

type recorder struct {
	mu      sync.Mutex
	batches []batch
	fail    error
	closed  bool
}

func (r *recorder) Publish(_ context.Context, frame uint64, events []ecs.RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.batches = append(r.batches, batch{frame: frame, events: events})
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func newSim(t *testing.T, opts Options) *Simulation {
	t.Helper()
	if opts.LogOutput == nil {
		opts.LogOutput = &bytes.Buffer{}
	}
	s, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close(context.Background())) })
	return s
}

func TestNew_Defaults(t *testing.T) {
	isolateEnv(t)

	s := newSim(t, Options{})
	assert.Equal(t, time.Second/60, s.Delta())
	assert.NotEqual(t, uuid.Nil, s.RunID())

	_, err := s.Step(context.Background(), ecs.Frame{Delta: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3, ecs.Count(s.World()), "ground, tower and its first bullet")
	assert.Equal(t, uint64(1), s.World().FrameNumber())
}

func TestStep_LogsWithTraceContext(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OTEL_LOG_LEVEL", "debug")

	var logs bytes.Buffer
	s := newSim(t, Options{LogOutput: &logs})
	s.tel.Tracer = sdktrace.NewTracerProvider().Tracer("test")

	_, err := s.Step(context.Background(), ecs.Frame{Delta: time.Second})
	require.NoError(t, err)

	found := false
	for _, line := range bytes.Split(logs.Bytes(), []byte("\n")) {
		var entry struct {
			Message string `json:"message"`
			TraceID string `json:"trace_id"`
			SpanID  string `json:"span_id"`
		}
		if json.Unmarshal(line, &entry) != nil || entry.Message != "frame applied" {
			continue
		}
		found = true
		assert.NotEmpty(t, entry.TraceID)
		assert.NotEmpty(t, entry.SpanID)
	}
	assert.True(t, found, "the first frame spawns the scene")
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		opts Options
	}{
		{name: "negative tick rate", env: map[string]string{"SKIRMISH_TICK_RATE": "-1"}},
		{name: "unparsable frames", env: map[string]string{"SKIRMISH_MAX_FRAMES": "many"}},
		{name: "tick rate too high", opts: Options{TickRate: 1e12}},
		{name: "missing scene file", opts: Options{SceneFile: "does/not/exist.yaml"}},
		{name: "invalid scene", opts: Options{Scene: &scene.Scene{Towers: []scene.Tower{{Period: 0}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.opts.LogOutput = &bytes.Buffer{}
			_, err := New(context.Background(), tt.opts)
			require.Error(t, err)
		})
	}
}

func TestNew_SceneFile(t *testing.T) {
	isolateEnv(t)

	data, err := rapidFire().Marshal()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("SKIRMISH_SCENE_FILE", path)

	s := newSim(t, Options{})
	_, err = s.Step(context.Background(), ecs.Frame{})
	require.NoError(t, err)
	assert.Equal(t, 2, ecs.Count(s.World()), "tower and target")
}

func TestRun_PublishesEventsInFrameOrder(t *testing.T) {
	isolateEnv(t)

	rec := &recorder{}
	s := newSim(t, Options{TickRate: 1000, MaxFrames: 60, Scene: rapidFire(), Publisher: rec})
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, uint64(60), s.World().FrameNumber())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.batches)
	for i, b := range rec.batches {
		if i > 0 {
			assert.Greater(t, b.frame, rec.batches[i-1].frame)
		}
		for _, e := range b.events {
			assert.Equal(t, "overlap", e.Name())
		}
	}
}

func TestRun_SpawnTargetEvery(t *testing.T) {
	isolateEnv(t)

	sc := rapidFire()
	sc.Towers = nil
	sc.Targets = nil
	s := newSim(t, Options{TickRate: 1000, MaxFrames: 10, Scene: sc, SpawnTargetEvery: 4})
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 2, ecs.Count(s.World()), "targets spawned on frames 3 and 7")
}

func TestRun_StoppingIsNotAnError(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{
			name: "deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
		},
		{
			name: "cancel",
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(20*time.Millisecond, cancel)
				return ctx, cancel
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)

			s := newSim(t, Options{TickRate: 1000})
			ctx, cancel := tt.ctx()
			defer cancel()
			require.NoError(t, s.Run(ctx))
			assert.Positive(t, s.World().FrameNumber())
		})
	}
}

func TestRun_PublisherFailureStopsTheLoop(t *testing.T) {
	isolateEnv(t)

	rec := &recorder{fail: eris.New("broker down")}
	s := newSim(t, Options{TickRate: 1000, Scene: rapidFire(), Publisher: rec})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after the publisher failed")
	}
}

func TestRun_PublishesToRedis(t *testing.T) {
	isolateEnv(t)

	mr := miniredis.RunT(t)
	s := newSim(t, Options{
		TickRate:     1000,
		MaxFrames:    40,
		Scene:        rapidFire(),
		RedisAddress: mr.Addr(),
		EventStream:  "test:events",
	})
	require.NoError(t, s.Run(context.Background()))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	entries, err := client.XRange(context.Background(), "test:events", "-", "+").Result()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, s.RunID().String(), e.Values["run"])
		assert.Equal(t, "overlap", e.Values["name"])
	}
}

func TestRedisPublisher(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := DialRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	p := NewRedisPublisher(client, "events", "run-1")
	t.Cleanup(func() { assert.NoError(t, p.Close()) })

	bullet := ecs.EntityID(1<<32 | 7)
	events := []ecs.RawEvent{
		{Kind: ecs.EventKindDefault, Payload: combat.Expired{Entity: bullet}},
		{Kind: ecs.EventKindDefault, Payload: combat.Overlap{A: bullet, B: ecs.EntityID(1<<32 | 2)}},
	}
	require.NoError(t, p.Publish(context.Background(), 12, events))
	require.NoError(t, p.Publish(context.Background(), 13, nil))

	entries, err := client.XRange(context.Background(), "events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0].Values
	assert.Equal(t, "run-1", first["run"])
	assert.Equal(t, "12", first["frame"])
	assert.Equal(t, "expired", first["name"])
	assert.Equal(t, "1", first["kind"])

	var expired combat.Expired
	require.NoError(t, json.Unmarshal([]byte(first["payload"].(string)), &expired)) //nolint:forcetypeassert // redis returns strings
	assert.Equal(t, bullet, expired.Entity)
	assert.Equal(t, "overlap", entries[1].Values["name"])
}

func TestDialRedis_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := DialRedis(ctx, addr, "")
	require.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf).Level(zerolog.DebugLevel))
	require.NoError(t, p.Publish(context.Background(), 4, []ecs.RawEvent{
		{Kind: ecs.EventKindDefault, Payload: combat.Expired{Entity: ecs.EntityID(1<<32 | 3)}},
	}))

	var entry struct {
		Frame   uint64         `json:"frame"`
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, uint64(4), entry.Frame)
	assert.Equal(t, "expired", entry.Event)
	assert.Contains(t, entry.Payload, "entity")

	buf.Reset()
	quiet := NewLogPublisher(zerolog.New(&buf).Level(zerolog.InfoLevel))
	require.NoError(t, quiet.Publish(context.Background(), 4, []ecs.RawEvent{{Payload: combat.Expired{}}}))
	assert.Empty(t, buf.String())
}

func TestMultiPublisher(t *testing.T) {
	t.Parallel()

	a, b := &recorder{}, &recorder{}
	m := MultiPublisher{a, b}
	require.NoError(t, m.Publish(context.Background(), 1, []ecs.RawEvent{{Payload: combat.Expired{}}}))
	assert.Len(t, a.batches, 1)
	assert.Len(t, b.batches, 1)

	a.fail = eris.New("boom")
	require.Error(t, m.Publish(context.Background(), 2, nil))
	assert.Len(t, b.batches, 1, "stops at the first failure")

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
