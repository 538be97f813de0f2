package service

import (
	"context"
	"encoding/json"
	"errors"

	"anoa.com/alumnidirectory/internal/modules/notification/dto"
	"github.com/redis/go-redis/v9"
)

const AdminFeedChannel = "admin_applications"

var ErrFeedUnavailable = errors.New("admin feed unavailable")

// Feed fans application events out to connected admin dashboards.
type Feed interface {
	Publish(ctx context.Context, event dto.FeedEvent) error
	// Subscribe streams raw event payloads until ctx ends or the returned stop func runs.
	Subscribe(ctx context.Context) (<-chan []byte, func() error, error)
}

type redisFeed struct {
	client *redis.Client
}

// NewFeed returns a Redis pub/sub feed. A nil client publishes nothing.
func NewFeed(client *redis.Client) Feed {
	return &redisFeed{client: client}
}

func (f *redisFeed) Publish(ctx context.Context, event dto.FeedEvent) error {
	if f.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, AdminFeedChannel, payload).Err()
}

func (f *redisFeed) Subscribe(ctx context.Context) (<-chan []byte, func() error, error) {
	if f.client == nil {
		return nil, nil, ErrFeedUnavailable
	}

	pubsub := f.client.Subscribe(ctx, AdminFeedChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan []byte)
	messages := pubsub.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, pubsub.Close, nil
}
