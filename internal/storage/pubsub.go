package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/routediff/internal/constants"
	"github.com/aman-zulfiqar/routediff/internal/models"
)

// PubSub publishes divergences on a Redis channel so an engineer can watch a
// long replay live.
type PubSub struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger
}

var _ DivergenceSink = (*PubSub)(nil)

// NewPubSub wraps an existing client. The caller keeps ownership of it.
func NewPubSub(client *redis.Client, channel string, logger *logrus.Logger) *PubSub {
	if channel == "" {
		channel = constants.PubSubChannelDivergences
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSub{client: client, channel: channel, logger: logger}
}

func (p *PubSub) RecordDivergence(ctx context.Context, d *models.Divergence) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal divergence: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish divergence: %w", err)
	}
	return nil
}

// Subscribe calls handler for each divergence published on the channel
// until ctx is cancelled.
func (p *PubSub) Subscribe(ctx context.Context, handler func(*models.Divergence)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed before reading
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.channel, err)
	}

	p.logger.WithField("channel", p.channel).Info("subscribed to divergences")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var d models.Divergence
			if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
				p.logger.WithError(err).Warn("skipping malformed divergence message")
				continue
			}
			handler(&d)
		}
	}
}

func (p *PubSub) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close is a no-op; the client belongs to the caller.
func (p *PubSub) Close() error {
	return nil
}
