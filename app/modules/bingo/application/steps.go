package bingoservice

import (
	"context"
	"fmt"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/google/uuid"
)

// The methods below run on the actor goroutine only.

func (a *roomActor) snapshot() *bingodomain.RoomState {
	state := a.room.Snapshot()
	return &state
}

func (a *roomActor) playerCount() int {
	return len(a.room.Snapshot().Players)
}

func (a *roomActor) join(ctx context.Context, user User) (*bingodomain.RoomState, error) {
	joined, err := a.room.Join(user.ID, user.Name)
	if err != nil {
		return nil, err
	}
	if joined {
		ev := Event{Name: EventPlayerJoined, Data: PlayerData{UserID: user.ID, Username: user.Name, PlayerCount: a.playerCount()}}
		if err := a.commit(ctx, nil, ev); err != nil {
			return nil, err
		}
		a.logger.InfoContext(ctx, "Player joined room", attr.UserID(user.ID))
	}
	return a.snapshot(), nil
}

// subscribe joins if needed and registers the subscriber in the same step,
// so the snapshot and the event stream line up exactly.
func (a *roomActor) subscribe(ctx context.Context, user User) (*Subscription, error) {
	state, err := a.join(ctx, user)
	if err != nil {
		return nil, err
	}
	id, ch := a.addSubscriber(user.ID)
	sub := NewSubscription(*state, ch)
	sub.id, sub.actor = id, a
	return sub, nil
}

func (a *roomActor) setCards(ctx context.Context, userID string, count int) (*UpdateCardsResult, error) {
	change, err := a.room.SetCards(userID, count)
	if err != nil {
		return nil, err
	}
	state := a.snapshot()
	if change.Delta != 0 {
		if err := a.commit(ctx, nil, Event{Name: EventRoomState, Data: state}); err != nil {
			return nil, err
		}
		a.deps.publish(ctx, cardsPurchasedTopic, a.code, cardsPurchasedPayload(state, userID, change, a.deps.clock.Now()))
	}
	return &UpdateCardsResult{Change: change, Room: *state}, nil
}

func (a *roomActor) leave(ctx context.Context, userID string) (*bingodomain.Refund, error) {
	waiting := a.room.Status() == bingodomain.StatusWaiting
	refund, err := a.room.Leave(userID)
	if err != nil {
		return nil, err
	}
	ev := Event{Name: EventPlayerLeft, Data: PlayerData{UserID: userID, PlayerCount: a.playerCount()}}
	if !waiting {
		// Seat kept for the running round; nothing to store.
		a.broadcast(ev)
		return &refund, nil
	}
	if err := a.commit(ctx, nil, ev); err != nil {
		return nil, err
	}
	if refund.Cards > 0 {
		change := bingodomain.CardChange{Delta: -refund.Cards, Amount: -refund.Amount}
		a.deps.publish(ctx, cardsPurchasedTopic, a.code, cardsPurchasedPayload(a.snapshot(), userID, change, a.deps.clock.Now()))
	}
	return &refund, nil
}

func (a *roomActor) start(ctx context.Context, userID string) (*bingodomain.RoomState, error) {
	if err := a.room.Start(userID); err != nil {
		return nil, err
	}
	state := a.snapshot()
	if err := a.commit(ctx, nil, Event{Name: EventGameStarted, Data: state}); err != nil {
		return nil, err
	}
	a.limiter = newCooldown(a.deps.cfg.ManualCallCooldown)
	a.logger.InfoContext(ctx, "Game started", attr.Int("round", state.Round), attr.Int64("pot", state.TotalPot))
	return state, nil
}

func (a *roomActor) callNumber(ctx context.Context, userID string) (int, error) {
	if userID != a.room.HostID() {
		return 0, bingodomain.ErrNotHost
	}
	if a.room.Status() != bingodomain.StatusInProgress {
		return 0, fmt.Errorf("%w: no game in progress", bingodomain.ErrInvalidState)
	}
	if !a.limiter.Allow() {
		return 0, bingodomain.ErrCallCooldown
	}
	return a.draw(ctx, false)
}

func (a *roomActor) toggleAutoCall(ctx context.Context, userID string, enabled bool) (bool, error) {
	if err := a.room.SetAutoCall(userID, enabled); err != nil {
		return false, err
	}
	if err := a.commit(ctx, nil, Event{Name: EventAutoCallToggled, Data: AutoCallData{Enabled: enabled}}); err != nil {
		return false, err
	}
	return enabled, nil
}

func (a *roomActor) mark(ctx context.Context, userID string, cardID uuid.UUID, number int) (*bingodomain.Position, error) {
	card, err := a.room.Card(userID, cardID)
	if err != nil {
		return nil, err
	}
	already := false
	if pos, ok := card.Find(number); ok {
		already = card.IsMarked(pos)
	}

	pos, err := a.room.Mark(userID, cardID, number)
	if err != nil {
		return nil, err
	}
	if !already {
		if err := a.commit(ctx, nil); err != nil {
			return nil, err
		}
	}
	return &pos, nil
}

func (a *roomActor) callBingo(ctx context.Context, userID string, cardID uuid.UUID) (*bingodomain.Outcome, error) {
	outcome, err := a.room.CallBingo(userID, cardID)
	a.deps.metrics.RecordBingoClaim(ctx, err == nil)
	if err != nil {
		a.logger.InfoContext(ctx, "Bingo claim rejected", attr.UserID(userID), attr.Error(err))
		return nil, err
	}
	if err := a.finishRound(ctx, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (a *roomActor) newRound(ctx context.Context, userID string) (*bingodomain.RoomState, error) {
	if err := a.room.NewRound(userID); err != nil {
		return nil, err
	}
	state := a.snapshot()
	ev := Event{Name: EventNewRoundReady, Data: NewRoundReadyData{Round: state.Round, Room: *state}}
	if err := a.commit(ctx, nil, ev); err != nil {
		return nil, err
	}
	return state, nil
}

func (a *roomActor) checkCard(userID string, cardID uuid.UUID) (*CardCheck, error) {
	card, err := a.room.Card(userID, cardID)
	if err != nil {
		return nil, err
	}
	cfg := a.room.Config()
	return &CardCheck{
		CardID:      cardID,
		PatternType: cfg.PatternType,
		Complete:    bingodomain.CheckPatternComplete(&card, cfg.PatternType, cfg.Mode),
	}, nil
}

func (a *roomActor) canClose(userID string) *CanCloseResult {
	if err := a.room.CanClose(userID); err != nil {
		return &CanCloseResult{CanClose: false, Reason: err.Error()}
	}
	return &CanCloseResult{CanClose: true}
}

func (a *roomActor) close(ctx context.Context, userID string) ([]bingodomain.Refund, error) {
	round := a.room.Round()
	refunds, err := a.room.Close(userID)
	if err != nil {
		return nil, err
	}
	if err := a.shutdownRoom(ctx, round, "closed_by_host", refunds); err != nil {
		return nil, err
	}
	return refunds, nil
}

func (a *roomActor) closeIfIdle(ctx context.Context) (*IdleCheck, error) {
	ttl := a.deps.cfg.IdleRoomTTL
	if len(a.subs) > 0 {
		return &IdleCheck{RetryIn: ttl}, nil
	}
	idle := a.deps.clock.Now().Sub(a.room.UpdatedAt())
	if idle < ttl {
		return &IdleCheck{RetryIn: ttl - idle}, nil
	}

	round := a.room.Round()
	refunds := a.room.Abandon()
	if err := a.shutdownRoom(ctx, round, "idle", refunds); err != nil {
		return nil, err
	}
	a.logger.InfoContext(ctx, "Closed idle room", attr.Duration("idle_for", idle))
	return &IdleCheck{Closed: true}, nil
}

func (a *roomActor) shutdownRoom(ctx context.Context, round int, reason string, refunds []bingodomain.Refund) error {
	if err := a.commit(ctx, nil, Event{Name: EventRoomClosed, Data: RoomClosedData{Reason: reason}}); err != nil {
		return err
	}
	a.closed = true
	state := a.room.Snapshot()
	a.deps.publish(ctx, roomClosedTopic, a.code, roomClosedPayload(&state, round, reason, refunds))
	a.deps.cancel(ctx, a.code)
	return nil
}

func (a *roomActor) scheduledStart(ctx context.Context, hostID string) (*bingodomain.RoomState, error) {
	if a.room.Status() != bingodomain.StatusWaiting {
		a.logger.InfoContext(ctx, "Skipping scheduled start, room not waiting",
			attr.String("status", string(a.room.Status())))
		return a.snapshot(), nil
	}
	return a.start(ctx, hostID)
}
