package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tickerpulse/internal/domain"
	"github.com/pscheid92/tickerpulse/internal/metrics"
)

const aggregateUpdateChannel = "aggregates:updated"

// AggregateUpdatePublisher announces refreshed symbols to all replicas.
// The payload is the bare symbol; receivers re-read the snapshot store.
type AggregateUpdatePublisher struct {
	rdb *goredis.Client
}

var _ domain.UpdatePublisher = (*AggregateUpdatePublisher)(nil)

func NewAggregateUpdatePublisher(client *Client) *AggregateUpdatePublisher {
	return &AggregateUpdatePublisher{rdb: client.rdb}
}

func (p *AggregateUpdatePublisher) PublishUpdate(ctx context.Context, symbol string) error {
	if err := p.rdb.Publish(ctx, aggregateUpdateChannel, symbol).Err(); err != nil {
		return fmt.Errorf("failed to publish aggregate update: %w", err)
	}
	return nil
}

// AggregateUpdateSubscriber listens for refreshed symbols and hands each one
// to the registered handler. go-redis re-subscribes internally after
// connection loss; messages published during an outage are dropped, which is
// acceptable because snapshots expire on their own.
type AggregateUpdateSubscriber struct {
	rdb     *goredis.Client
	handler func(ctx context.Context, symbol string)
}

func NewAggregateUpdateSubscriber(client *Client, handler func(ctx context.Context, symbol string)) *AggregateUpdateSubscriber {
	return &AggregateUpdateSubscriber{rdb: client.rdb, handler: handler}
}

// Start blocks until ctx is cancelled, dispatching updates as they arrive.
// Run it in its own goroutine.
func (s *AggregateUpdateSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, aggregateUpdateChannel)
	defer func() { _ = pubsub.Close() }()

	metrics.PubSubSubscriptionActive.Set(1)
	defer metrics.PubSubSubscriptionActive.Set(0)

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handleUpdate(ctx, msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *AggregateUpdateSubscriber) handleUpdate(ctx context.Context, payload string) {
	if payload == "" {
		slog.Warn("Empty aggregate update message")
		return
	}

	slog.Debug("Aggregate update received via pub/sub", "symbol", payload)
	s.handler(ctx, payload)
}
