package sim

import (
	"context"
	"errors"
	"strconv"

	"github.com/argus-labs/skirmish/pkg/ecs"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Publisher delivers the events of a frame outside the simulation.
type Publisher interface {
	Publish(ctx context.Context, frame uint64, events []ecs.RawEvent) error
	Close() error
}

// -------------------------------------------------------------------------------------------------
// Log
// -------------------------------------------------------------------------------------------------

// LogPublisher writes every event to the logger at debug level.
type LogPublisher struct {
	logger zerolog.Logger
}

var _ Publisher = (*LogPublisher)(nil)

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, frame uint64, events []ecs.RawEvent) error {
	if p.logger.GetLevel() > zerolog.DebugLevel {
		return nil
	}
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return eris.Wrapf(err, "failed to encode event %s", e.Name())
		}
		p.logger.Debug().
			Uint64("frame", frame).
			Str("event", e.Name()).
			RawJSON("payload", payload).
			Msg("event")
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// -------------------------------------------------------------------------------------------------
// Redis
// -------------------------------------------------------------------------------------------------

// RedisPublisher appends one entry per event to a Redis stream. Entries carry the run ID, the
// frame number, the event name and the JSON encoded payload.
type RedisPublisher struct {
	client *redis.Client
	stream string
	run    string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher returns a publisher writing to stream. The publisher owns the client and
// closes it on Close.
func NewRedisPublisher(client *redis.Client, stream, run string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, run: run}
}

// DialRedis connects to a Redis server and checks it is reachable.
func DialRedis(ctx context.Context, address, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(eris.Wrapf(err, "failed to reach redis at %s", address), client.Close())
	}
	return client, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, frame uint64, events []ecs.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := p.client.TxPipeline()
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return eris.Wrapf(err, "failed to encode event %s", e.Name())
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]any{
				"run":     p.run,
				"frame":   strconv.FormatUint(frame, 10),
				"name":    e.Name(),
				"kind":    strconv.Itoa(int(e.Kind)),
				"payload": string(payload),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrapf(err, "failed to publish %d events of frame %d", len(events), frame)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return eris.Wrap(p.client.Close(), "failed to close redis client")
}

// -------------------------------------------------------------------------------------------------
// Fan out
// -------------------------------------------------------------------------------------------------

// MultiPublisher publishes to every publisher in order and stops at the first failure.
type MultiPublisher []Publisher

var _ Publisher = MultiPublisher(nil)

func (m MultiPublisher) Publish(ctx context.Context, frame uint64, events []ecs.RawEvent) error {
	for _, p := range m {
		if err := p.Publish(ctx, frame, events); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every publisher and joins their errors.
func (m MultiPublisher) Close() error {
	var errs error
	for _, p := range m {
		errs = errors.Join(errs, p.Close())
	}
	return errs
}
