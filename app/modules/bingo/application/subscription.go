package bingoservice

import (
	"context"
	"sync"
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
)

// Subscription streams a room's events after Snapshot. The channel is closed
// when the room closes, when Close is called, or when the subscriber fell
// behind; in the last case the caller should subscribe again to resync.
type Subscription struct {
	Snapshot bingodomain.RoomState

	events <-chan Event
	id     uint64
	actor  *roomActor
	once   sync.Once
}

// NewSubscription wraps an event stream. Until a room actor is attached,
// Close only marks it closed and the channel is left to its producer.
func NewSubscription(snapshot bingodomain.RoomState, events <-chan Event) *Subscription {
	return &Subscription{Snapshot: snapshot, events: events}
}

func (s *Subscription) Events() <-chan Event { return s.events }

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.actor == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = s.actor.do(ctx, func(context.Context, *roomActor) (any, error) {
			s.actor.removeSubscriber(s.id)
			return nil, nil
		})
	})
}
