package bingoservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	bingometrics "github.com/Black-And-White-Club/mundo-bingo/pkg/observability/metrics/bingo"
	"golang.org/x/time/rate"
)

// actorDeps is shared by every room actor.
type actorDeps struct {
	persist func(ctx context.Context, state bingodomain.RoomState, outcome *bingodomain.Outcome) error
	publish func(ctx context.Context, topic, roomCode string, payload any)
	cancel  func(ctx context.Context, code string)
	onStop  func(a *roomActor)
	logger  *slog.Logger
	metrics bingometrics.BingoMetrics
	clock   bingodomain.Clock
	cfg     Config
}

type stepFunc func(ctx context.Context, a *roomActor) (any, error)

type reply struct {
	value any
	err   error
}

type command struct {
	ctx   context.Context
	step  stepFunc
	reply chan reply
}

type subscriber struct {
	id     uint64
	userID string
	ch     chan Event
}

// roomActor owns one room. All reads and writes of room happen on its
// goroutine, in inbox order.
type roomActor struct {
	code   string
	room   *bingodomain.Room
	saved  bingodomain.RoomState
	rng    *rand.Rand
	deps   *actorDeps
	logger *slog.Logger

	inbox chan command
	quit  chan struct{}
	done  chan struct{}

	subs    map[uint64]*subscriber
	nextSub uint64

	limiter    *rate.Limiter
	autoTicker *time.Ticker
	forceTimer *time.Timer
	closed     bool
}

func newRoomActor(room *bingodomain.Room, rng *rand.Rand, deps *actorDeps) *roomActor {
	return &roomActor{
		code:    room.Code(),
		room:    room,
		saved:   room.Snapshot(),
		rng:     rng,
		deps:    deps,
		logger:  deps.logger.With(attr.RoomCode(room.Code())),
		inbox:   make(chan command),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		subs:    make(map[uint64]*subscriber),
		limiter: newCooldown(deps.cfg.ManualCallCooldown),
	}
}

// newCooldown allows one manual call per window.
func newCooldown(d time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(d), 1)
}

func (a *roomActor) run() {
	defer close(a.done)
	a.syncTimers()

	for {
		var autoC, forceC <-chan time.Time
		if a.autoTicker != nil {
			autoC = a.autoTicker.C
		}
		if a.forceTimer != nil {
			forceC = a.forceTimer.C
		}

		select {
		case cmd := <-a.inbox:
			a.handle(cmd)
		case <-autoC:
			a.autoDraw()
		case <-forceC:
			a.forceTimer = nil
			a.forceAutoCall()
		case <-a.quit:
			a.stopTimers()
			a.closeSubscribers()
			return
		}

		if a.closed {
			a.stopTimers()
			a.closeSubscribers()
			a.deps.onStop(a)
			return
		}
		a.syncTimers()
	}
}

// do runs step on the actor goroutine and waits for its reply.
func (a *roomActor) do(ctx context.Context, step stepFunc) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, a.deps.cfg.RequestTimeout)
	defer cancel()

	cmd := command{ctx: ctx, step: step, reply: make(chan reply, 1)}
	select {
	case a.inbox <- cmd:
	case <-a.done:
		return nil, bingodomain.ErrRoomNotFound
	case <-ctx.Done():
		return nil, contextErr(ctx)
	}

	select {
	case r := <-cmd.reply:
		return r.value, r.err
	case <-a.done:
		select {
		case r := <-cmd.reply:
			return r.value, r.err
		default:
			return nil, bingodomain.ErrRoomNotFound
		}
	case <-ctx.Done():
		return nil, contextErr(ctx)
	}
}

func contextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err())
	}
	return ctx.Err()
}

func (a *roomActor) handle(cmd command) {
	if err := cmd.ctx.Err(); err != nil {
		cmd.reply <- reply{err: contextErr(cmd.ctx)}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in room %s: %v", a.code, r)
			a.logger.Error("Room step panicked", attr.Error(err))
			a.rollback()
			cmd.reply <- reply{err: err}
		}
	}()

	v, err := cmd.step(cmd.ctx, a)
	cmd.reply <- reply{value: v, err: err}
}

// commit persists the room and, once stored, fans out events. On a storage
// failure the room reverts to its last stored state.
func (a *roomActor) commit(ctx context.Context, outcome *bingodomain.Outcome, events ...Event) error {
	state := a.room.Snapshot()

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.deps.cfg.RequestTimeout)
	defer cancel()
	if err := a.deps.persist(pctx, state, outcome); err != nil {
		a.rollback()
		return fmt.Errorf("failed to persist room %s: %w", a.code, err)
	}
	a.saved = state

	for _, ev := range events {
		a.broadcast(ev)
	}
	return nil
}

func (a *roomActor) rollback() {
	room, err := bingodomain.RestoreRoom(a.saved, a.rng, a.deps.clock)
	if err != nil {
		a.logger.Error("Failed to restore room after error", attr.Error(err))
		return
	}
	a.room = room
}

func (a *roomActor) broadcast(ev Event) {
	for id, sub := range a.subs {
		select {
		case sub.ch <- ev:
		default:
			close(sub.ch)
			delete(a.subs, id)
			a.deps.metrics.RecordSubscriberDropped(context.Background())
			a.logger.Warn("Dropped slow subscriber",
				attr.UserID(sub.userID),
				attr.String("event", ev.Name),
			)
		}
	}
}

func (a *roomActor) addSubscriber(userID string) (uint64, <-chan Event) {
	a.nextSub++
	sub := &subscriber{id: a.nextSub, userID: userID, ch: make(chan Event, a.deps.cfg.SubscriberBuffer)}
	a.subs[sub.id] = sub
	return sub.id, sub.ch
}

func (a *roomActor) removeSubscriber(id uint64) {
	if sub, ok := a.subs[id]; ok {
		close(sub.ch)
		delete(a.subs, id)
	}
}

func (a *roomActor) closeSubscribers() {
	for id := range a.subs {
		a.removeSubscriber(id)
	}
}

func (a *roomActor) syncTimers() {
	inProgress := !a.closed && a.room.Status() == bingodomain.StatusInProgress

	wantAuto := inProgress && a.room.AutoCall()
	switch {
	case wantAuto && a.autoTicker == nil:
		a.autoTicker = time.NewTicker(a.deps.cfg.AutoCallInterval)
	case !wantAuto && a.autoTicker != nil:
		a.autoTicker.Stop()
		a.autoTicker = nil
	}

	wantForce := inProgress && !a.room.AutoCall() && a.deps.cfg.AutoCallForceAfter > 0
	switch {
	case wantForce && a.forceTimer == nil:
		a.forceTimer = time.NewTimer(a.deps.cfg.AutoCallForceAfter)
	case !wantForce && a.forceTimer != nil:
		a.forceTimer.Stop()
		a.forceTimer = nil
	}
}

func (a *roomActor) stopTimers() {
	if a.autoTicker != nil {
		a.autoTicker.Stop()
		a.autoTicker = nil
	}
	if a.forceTimer != nil {
		a.forceTimer.Stop()
		a.forceTimer = nil
	}
}

func (a *roomActor) autoDraw() {
	ctx, cancel := context.WithTimeout(context.Background(), a.deps.cfg.RequestTimeout)
	defer cancel()

	if _, err := a.draw(ctx, true); err != nil && !errors.Is(err, bingodomain.ErrPoolExhausted) {
		a.logger.Error("Auto-call draw failed", attr.Error(err))
	}
}

func (a *roomActor) forceAutoCall() {
	if !a.room.ForceAutoCall() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.deps.cfg.RequestTimeout)
	defer cancel()

	data := AutoCallData{Enabled: true, Reason: "host_inactive"}
	if err := a.commit(ctx, nil,
		Event{Name: EventAutoCallForced, Data: data},
		Event{Name: EventAutoCallToggled, Data: data},
	); err != nil {
		a.logger.Error("Failed to force auto-call", attr.Error(err))
		return
	}
	a.logger.Info("Auto-call forced after host inactivity",
		attr.Duration("inactive_for", a.deps.cfg.AutoCallForceAfter))
}

// draw calls the next number. Running the pool dry finishes the round.
func (a *roomActor) draw(ctx context.Context, auto bool) (int, error) {
	n, outcome, err := a.room.Draw()
	if outcome != nil {
		if ferr := a.finishRound(ctx, outcome); ferr != nil {
			return 0, ferr
		}
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	state := a.room.Snapshot()
	data := NumberCalledData{
		Number:       n,
		DrawnNumbers: state.DrawnNumbers,
		Remaining:    state.Mode.PoolSize() - len(state.DrawnNumbers),
		Auto:         auto,
	}
	if err := a.commit(ctx, nil, Event{Name: EventNumberCalled, Data: data}); err != nil {
		return 0, err
	}

	a.deps.metrics.RecordNumberDrawn(ctx, int(state.Mode), auto)
	if a.forceTimer != nil {
		a.forceTimer.Reset(a.deps.cfg.AutoCallForceAfter)
	}
	return n, nil
}

func (a *roomActor) finishRound(ctx context.Context, outcome *bingodomain.Outcome) error {
	if err := a.commit(ctx, outcome, Event{Name: EventGameOver, Data: outcome}); err != nil {
		return err
	}
	a.deps.metrics.RecordGameFinished(ctx, string(outcome.PatternType), outcome.Exhausted)
	a.deps.publish(ctx, gameFinishedTopic, a.code, gameFinishedPayload(a.room.ID(), a.code, outcome))

	a.logger.InfoContext(ctx, "Round finished",
		attr.Int("round", outcome.Round),
		attr.String("winner_id", outcome.WinnerID),
		attr.Bool("exhausted", outcome.Exhausted),
		attr.Int64("pot", outcome.Pot),
	)
	return nil
}
