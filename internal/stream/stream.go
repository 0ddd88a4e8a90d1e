// Package stream carries meter readings over a Redis stream so that bulk
// imports and async submissions are applied by the ingest worker.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"wattwise/internal/logger"
	"wattwise/internal/metrics"
	"wattwise/internal/models"
)

// Message is the JSON carried in a stream entry's "data" field.
type Message struct {
	UserID  string              `json:"user_id"`
	Reading models.MeterReading `json:"reading"`
	Source  string              `json:"source,omitempty"`
}

func Encode(m Message) (map[string]interface{}, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize reading: %w", err)
	}
	return map[string]interface{}{"data": string(data)}, nil
}

func Decode(values map[string]interface{}) (Message, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return Message{}, fmt.Errorf("stream entry has no data field")
	}
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if m.UserID == "" {
		return Message{}, fmt.Errorf("message has no user_id")
	}
	return m, nil
}

// Publisher appends readings to the stream
type Publisher struct {
	client *redis.Client
	stream string
	log    *logger.Logger
}

func NewPublisher(client *redis.Client, stream string, log *logger.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, log: log.WithComponent("stream")}
}

func (p *Publisher) Publish(ctx context.Context, userID string, reading models.MeterReading, source string) error {
	values, err := Encode(Message{UserID: userID, Reading: reading, Source: source})
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err()
	metrics.RecordStreamMessage("out", err)
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.log.Debugw("published reading", "user", logger.MaskID(userID), "date", reading.Date, "time_of_day", reading.TimeOfDay)
	return nil
}

// Handler applies one message. Errors matching models.ErrConflict or
// models.ErrInvalidInput are final and the message is acknowledged anyway;
// any other error leaves it pending until the consumer claims it again.
type Handler func(ctx context.Context, m Message) error

// Consumer reads the stream as one member of a consumer group
type Consumer struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	batch      int64
	block      time.Duration
	backoff    time.Duration
	claimIdle  time.Duration
	claimEvery time.Duration
	log        *logger.Logger
}

func NewConsumer(client *redis.Client, stream, group, consumer string, log *logger.Logger) *Consumer {
	return &Consumer{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		batch:      10,
		block:      5 * time.Second,
		backoff:    time.Second,
		claimIdle:  time.Minute,
		claimEvery: 30 * time.Second,
		log:        log.WithComponent("ingest"),
	}
}

// EnsureGroup creates the consumer group, tolerating one that already exists.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Run reads until ctx is cancelled. It first retries the entries this consumer
// left pending before a restart, then claims entries idle in the group longer
// than claimIdle every claimEvery.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	if n := c.drain(ctx, c.readPending, handle, c.ack); n > 0 {
		c.log.Infof("Applied %d entries left pending by %s", n, c.consumer)
	}
	lastClaim := time.Now()

	for {
		if time.Since(lastClaim) >= c.claimEvery {
			if n := c.drain(ctx, c.claimStale, handle, c.ack); n > 0 {
				c.log.Infof("Applied %d claimed entries", n)
			}
			lastClaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    c.batch,
			Block:    c.block,
		}).Result()

		if ctx.Err() != nil {
			return nil
		}

		if err != nil && err != redis.Nil {
			c.log.Errorf("Error reading from Redis: %v", err)
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		for _, s := range streams {
			c.process(ctx, s.Messages, handle, c.ack)
		}
	}
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) ack(id string) error {
	return c.client.XAck(context.Background(), c.stream, c.group, id).Err()
}

// fetchFunc returns one page of entries starting at cursor and the cursor of
// the next page. An empty page or a "0-0" cursor ends the walk.
type fetchFunc func(ctx context.Context, cursor string) ([]redis.XMessage, string, error)

// readPending pages through the entries already delivered to this consumer.
func (c *Consumer) readPending(ctx context.Context, cursor string) ([]redis.XMessage, string, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, cursor},
		Count:    c.batch,
		Block:    -1,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, "", err
	}

	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	if len(msgs) == 0 {
		return nil, "0-0", nil
	}
	return msgs, msgs[len(msgs)-1].ID, nil
}

// claimStale takes over entries that sat unacknowledged for claimIdle.
func (c *Consumer) claimStale(ctx context.Context, cursor string) ([]redis.XMessage, string, error) {
	return c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.claimIdle,
		Start:    cursor,
		Count:    c.batch,
	}).Result()
}

// drain walks fetch from the start once and applies every entry it returns.
// It returns how many entries were acknowledged.
func (c *Consumer) drain(ctx context.Context, fetch fetchFunc, handle Handler, ack func(id string) error) int {
	acked := 0
	cursor := "0-0"
	for ctx.Err() == nil {
		msgs, next, err := fetch(ctx, cursor)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Errorf("Error reading pending entries: %v", err)
			}
			return acked
		}
		acked += c.process(ctx, msgs, handle, ack)
		if len(msgs) == 0 || next == "0-0" || next == cursor {
			return acked
		}
		cursor = next
	}
	return acked
}

// process applies each message and acknowledges the ones that are done.
func (c *Consumer) process(ctx context.Context, msgs []redis.XMessage, handle Handler, ack func(id string) error) int {
	acked := 0
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return acked
		}

		m, err := Decode(msg.Values)
		if err != nil {
			// undecodable entries will never succeed
			c.log.Warnf("Dropping stream entry %s: %v", msg.ID, err)
			metrics.RecordStreamMessage("in", err)
			if ackErr := ack(msg.ID); ackErr == nil {
				acked++
			}
			continue
		}

		err = handle(ctx, m)
		metrics.RecordStreamMessage("in", err)
		if err != nil && !Final(err) {
			c.log.Errorw("failed to apply reading, leaving pending", "id", msg.ID, "user", logger.MaskID(m.UserID), "error", err)
			continue
		}
		if err != nil {
			c.log.Warnw("rejected reading", "id", msg.ID, "user", logger.MaskID(m.UserID), "error", err)
		}

		if err := ack(msg.ID); err != nil {
			c.log.Errorf("Failed to ack %s: %v", msg.ID, err)
			continue
		}
		acked++
	}
	return acked
}

// Final reports whether retrying a handler error cannot help.
func Final(err error) bool {
	return errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrInvalidInput)
}
