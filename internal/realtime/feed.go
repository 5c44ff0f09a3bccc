// Package realtime carries change-feed events between API instances over
// Redis pub/sub. Events only announce that something changed; subscribers
// refetch.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// Feed publishes and subscribes to change events.
type Feed struct {
	client *redis.Client
	prefix string
	logger logging.Logger
}

// NewFeed connects to Redis at redisURL.
func NewFeed(redisURL string, logger logging.Logger) (*Feed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewFeedWithClient(client, logger), nil
}

// NewFeedWithClient builds a feed on an existing client.
func NewFeedWithClient(client *redis.Client, logger logging.Logger) *Feed {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &Feed{client: client, prefix: "annotate:", logger: logger}
}

// ArtifactChannel carries comment and reaction changes of one artifact.
func (f *Feed) ArtifactChannel(artifactID string) string {
	return f.prefix + "comments:" + artifactID
}

// InboxChannel carries notification changes of one recipient.
func (f *Feed) InboxChannel(userID string) string {
	return f.prefix + "notifications:" + userID
}

// Publish sends change on channel.
func (f *Feed) Publish(ctx context.Context, channel string, change model.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscription is an open channel subscription.
type Subscription struct {
	pubsub   *redis.PubSub
	done     chan struct{}
	once     sync.Once
	closeErr error
}

// Close releases the subscription and waits for the delivery goroutine to
// stop. It is safe to call more than once but must not be called from inside
// the handler.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.closeErr = s.pubsub.Close()
		<-s.done
	})
	return s.closeErr
}

// Subscribe delivers every change published on channel to handler, one at a
// time, until the subscription is closed. It returns once Redis has confirmed
// the subscription, so changes published afterwards are not missed.
func (f *Feed) Subscribe(ctx context.Context, channel string, handler func(model.Change)) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &Subscription{pubsub: pubsub, done: make(chan struct{})}
	messages := pubsub.Channel()
	go func() {
		defer close(sub.done)
		for msg := range messages {
			var change model.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				f.logger.Error(context.Background(), "decode change", "channel", channel, "error", err)
				continue
			}
			handler(change)
		}
	}()
	return sub, nil
}

func (f *Feed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

func (f *Feed) Close() error {
	return f.client.Close()
}
