package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/botmarket/internal/market"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stream = "botmarket:events"

// Bus publishes marketplace events to a Redis stream so off-process
// consumers (indexers, settlement workers) can follow marketplace activity.
type Bus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewBus connects to Redis and verifies the connection.
func NewBus(redisURL string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Bus{rdb: rdb, logger: logger}, nil
}

// Publish appends an event to the marketplace stream.
func (b *Bus) Publish(ctx context.Context, ev market.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	b.logger.Debug("event published",
		zap.String("type", ev.Type),
		zap.String("skill", ev.SkillID))
	return nil
}

// Subscribe tails the marketplace stream. Returns a channel that emits
// events; cancel the context to stop.
func (b *Bus) Subscribe(ctx context.Context) <-chan market.Event {
	ch := make(chan market.Event, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()
			if err != nil {
				// go-redis may wrap the context error.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev market.Event
					if json.Unmarshal([]byte(data), &ev) != nil {
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}

// Multi fans one event out to several sinks; the first error wins but every
// sink still gets the event.
func Multi(sinks ...market.EventSink) market.EventSink {
	return multiSink(sinks)
}

type multiSink []market.EventSink

func (m multiSink) Publish(ctx context.Context, ev market.Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
