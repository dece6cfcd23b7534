// Package eventbus connects the service to NATS through Watermill.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// EventBus publishes and subscribes Watermill messages.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

// Config holds the NATS connection settings.
type Config struct {
	URL      string
	NKeySeed string
}

type eventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

// NewEventBus connects a core-NATS publisher and subscriber.
func NewEventBus(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	opts := []nc.Option{nc.RetryOnFailedConnect(true), nc.Name("mundo-bingo")}
	if cfg.NKeySeed != "" {
		opt, err := nkeyOption(cfg.NKeySeed)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}

	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &nats.NATSMarshaler{}

	publisher, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         cfg.URL,
		Marshaler:   marshaler,
		NatsOptions: opts,
		JetStream:   nats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create Watermill publisher", attr.Error(err))
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              cfg.URL,
		Unmarshaler:      marshaler,
		NatsOptions:      opts,
		QueueGroupPrefix: "mundo-bingo",
		JetStream:        nats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		_ = publisher.Close()
		logger.ErrorContext(ctx, "Failed to create Watermill subscriber", attr.Error(err))
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	logger.InfoContext(ctx, "Event bus connected", attr.String("nats_url", cfg.URL))
	return &eventBus{publisher: publisher, subscriber: subscriber, logger: logger}, nil
}

// nkeyOption authenticates with a user nkey seed.
func nkeyOption(seed string) (nc.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	return nc.Nkey(pub, func(nonce []byte) ([]byte, error) {
		return kp.Sign(nonce)
	}), nil
}

func (eb *eventBus) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.UUID == "" {
			msg.UUID = watermill.NewUUID()
		}
	}
	if err := eb.publisher.Publish(topic, messages...); err != nil {
		eb.logger.Error("Failed to publish message", attr.String("topic", topic), attr.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (eb *eventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	eb.logger.InfoContext(ctx, "Subscribing to topic", attr.String("topic", topic))
	return eb.subscriber.Subscribe(ctx, topic)
}

func (eb *eventBus) Close() error {
	perr := eb.publisher.Close()
	serr := eb.subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}

// NewMessage encodes payload as JSON and carries the context correlation id.
func NewMessage(ctx context.Context, payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set("Content-Type", "application/json")
	if id := attr.CorrelationID(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	} else {
		middleware.SetCorrelationID(watermill.NewUUID(), msg)
	}
	return msg, nil
}
