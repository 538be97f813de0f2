package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"anoa.com/alumnidirectory/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Handler processes one message value. Errors are logged and the message is committed.
type Handler interface {
	HandleMessage(ctx context.Context, value []byte) error
}

type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	name    string
}

func NewConsumer(broker, topic, groupID, username, password string, handler Handler) *Consumer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if username != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: username,
			Password: password,
		}
		dialer.TLS = &tls.Config{}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	return &Consumer{
		reader:  reader,
		handler: handler,
		name:    topic,
	}
}

// Listen blocks until ctx is cancelled.
func (c *Consumer) Listen(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			logger.Error().Err(err).Str("topic", c.name).Msg("read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		logger.Debug().Str("topic", c.name).Str("key", string(msg.Key)).Msg("message received")

		if err := c.handler.HandleMessage(ctx, msg.Value); err != nil {
			logger.Error().Err(err).Str("topic", c.name).Str("key", string(msg.Key)).Msg("handler error")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
