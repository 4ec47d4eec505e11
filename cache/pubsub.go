package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinfm/logger"

	"github.com/redis/go-redis/v9"
)

// Event is a document-change notification pushed to live subscribers.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// Event types.
const (
	EventBalance    = "balance"
	EventDedication = "dedication"
	EventFriends    = "friends"
)

// UserChannel is the per-user document channel (balance, friend set).
func UserChannel(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// InboxChannel is the per-user dedication inbox channel.
func InboxChannel(userID int64) string {
	return fmt.Sprintf("inbox:%d", userID)
}

// Publisher pushes document events to Redis channels.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish marshals payload into an Event and publishes it on channel.
// Publish failures are logged but not fatal; a missed notification only
// delays the subscriber until its next point read.
func (p *Publisher) Publish(ctx context.Context, channel, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("failed to marshal event payload",
			logger.String("channel", channel),
			logger.String("type", eventType),
			logger.ErrorField(err))
		return
	}

	evt := Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		logger.Warn("failed to marshal event", logger.ErrorField(err))
		return
	}

	if err := p.rdb.Publish(ctx, channel, msg).Err(); err != nil {
		logger.Warn("failed to publish event",
			logger.String("channel", channel),
			logger.String("type", eventType),
			logger.ErrorField(err))
	}
}

// Subscription is a live document watch. Events arrive on C until Close
// is called. Owners must call Close when the observing view goes away;
// a leaked subscription is a resource bug, not just inefficiency.
type Subscription struct {
	ps     *redis.PubSub
	C      <-chan Event
	cancel context.CancelFunc
}

// Close tears down the subscription and its delivery goroutine.
func (s *Subscription) Close() error {
	s.cancel()
	return s.ps.Close()
}

// Subscribe opens a live subscription on the given channel.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string) (*Subscription, error) {
	ps := rdb.Subscribe(ctx, channel)

	// Force the subscription to be established before returning so callers
	// never miss events published right after Subscribe returns.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		ch := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					logger.Warn("failed to decode event",
						logger.String("channel", channel),
						logger.ErrorField(err))
					continue
				}
				select {
				case out <- evt:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{ps: ps, C: out, cancel: cancel}, nil
}
