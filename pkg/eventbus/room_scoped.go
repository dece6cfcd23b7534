package eventbus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// FormatRoomScopedTopic appends a room code to a base topic:
// "bingo.game.finished.v1" + "123456" -> "bingo.game.finished.v1.123456".
// Observers of a single room subscribe to the scoped subject, or to
// "bingo.game.finished.v1.*" for all rooms.
func FormatRoomScopedTopic(baseTopic, roomCode string) string {
	return fmt.Sprintf("%s.%s", baseTopic, roomCode)
}

// PublishWithRoomScope publishes msg to the room-scoped variant of baseTopic.
func PublishWithRoomScope(pub message.Publisher, baseTopic, roomCode string, msg *message.Message) error {
	if roomCode == "" {
		return fmt.Errorf("room code cannot be empty for room-scoped publish")
	}
	return pub.Publish(FormatRoomScopedTopic(baseTopic, roomCode), msg)
}

// Publisher adapts a Watermill publisher to the bingo service's outbound port.
// Every event goes to its base topic for the wallet consumer and to the
// room-scoped topic for per-room observers.
type Publisher struct {
	pub message.Publisher
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) Publish(ctx context.Context, topic, roomCode string, payload any) error {
	msg, err := NewMessage(ctx, payload)
	if err != nil {
		return err
	}
	if err := p.pub.Publish(topic, msg); err != nil {
		return err
	}
	if roomCode == "" {
		return nil
	}
	return PublishWithRoomScope(p.pub, topic, roomCode, msg.Copy())
}
