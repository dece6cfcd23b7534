package bingoservice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

// ------------------------
// Fake Repo
// ------------------------

// FakeRepo keeps rooms in memory. Any Func field that is set replaces the
// default behaviour for that method.
type FakeRepo struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]bingodb.Room
	rounds []bingodb.RoundResult
	trace  []string

	GetRoomFunc          func(ctx context.Context, code string) (*bingodb.Room, error)
	InsertRoomFunc       func(ctx context.Context, room *bingodb.Room) error
	UpsertRoomFunc       func(ctx context.Context, room *bingodb.Room) error
	InsertRoundFunc      func(ctx context.Context, round *bingodb.RoundResult) error
	MarkRoundSettledFunc func(ctx context.Context, roomID uuid.UUID, round int, settledAt time.Time) error
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{rooms: make(map[uuid.UUID]bingodb.Room)}
}

func (f *FakeRepo) record(op string) {
	f.trace = append(f.trace, op)
}

func (f *FakeRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRepo) GetRoom(ctx context.Context, _ bun.IDB, code string) (*bingodb.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRoom")
	if f.GetRoomFunc != nil {
		return f.GetRoomFunc(ctx, code)
	}
	var found *bingodb.Room
	for _, r := range f.rooms {
		if r.Code != code {
			continue
		}
		r := r
		if r.ClosedAt == nil {
			return &r, nil
		}
		found = &r
	}
	if found == nil {
		return nil, bingodb.ErrNotFound
	}
	return found, nil
}

func (f *FakeRepo) InsertRoom(ctx context.Context, _ bun.IDB, room *bingodb.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertRoom")
	if f.InsertRoomFunc != nil {
		return f.InsertRoomFunc(ctx, room)
	}
	for _, r := range f.rooms {
		if r.Code == room.Code && r.ClosedAt == nil {
			return bingodb.ErrCodeTaken
		}
	}
	f.rooms[room.ID] = *room
	return nil
}

func (f *FakeRepo) UpsertRoom(ctx context.Context, _ bun.IDB, room *bingodb.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpsertRoom")
	if f.UpsertRoomFunc != nil {
		return f.UpsertRoomFunc(ctx, room)
	}
	f.rooms[room.ID] = *room
	return nil
}

func (f *FakeRepo) InsertRound(ctx context.Context, _ bun.IDB, round *bingodb.RoundResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertRound")
	if f.InsertRoundFunc != nil {
		return f.InsertRoundFunc(ctx, round)
	}
	f.rounds = append(f.rounds, *round)
	return nil
}

func (f *FakeRepo) MarkRoundSettled(ctx context.Context, _ bun.IDB, roomID uuid.UUID, round int, settledAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkRoundSettled")
	if f.MarkRoundSettledFunc != nil {
		return f.MarkRoundSettledFunc(ctx, roomID, round, settledAt)
	}
	for i := range f.rounds {
		if f.rounds[i].RoomID == roomID && f.rounds[i].Round == round {
			t := settledAt
			f.rounds[i].Settled = true
			f.rounds[i].SettledAt = &t
			return nil
		}
	}
	return bingodb.ErrNotFound
}

func (f *FakeRepo) ListRoundsSince(_ context.Context, _ bun.IDB, since time.Time) ([]bingodb.RoundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListRoundsSince")
	var out []bingodb.RoundResult
	for _, r := range f.rounds {
		if !r.FinishedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FakeRepo) ListInProgressRoomCodes(_ context.Context, _ bun.IDB) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListInProgressRoomCodes")
	var out []string
	for _, r := range f.rooms {
		if r.Status == string(bingodomain.StatusInProgress) && r.ClosedAt == nil {
			out = append(out, r.Code)
		}
	}
	return out, nil
}

// Rounds returns the stored round results.
func (f *FakeRepo) Rounds() []bingodb.RoundResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bingodb.RoundResult, len(f.rounds))
	copy(out, f.rounds)
	return out
}

// Stored returns the persisted row for code, open rooms first.
func (f *FakeRepo) Stored(code string) (bingodb.Room, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *bingodb.Room
	for _, r := range f.rooms {
		if r.Code != code {
			continue
		}
		r := r
		if r.ClosedAt == nil {
			return r, true
		}
		found = &r
	}
	if found == nil {
		return bingodb.Room{}, false
	}
	return *found, true
}

// ------------------------
// Fake Publisher
// ------------------------

type publishedEvent struct {
	Topic    string
	RoomCode string
	Payload  any
}

type FakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent

	PublishFunc func(ctx context.Context, topic, roomCode string, payload any) error
}

func (f *FakePublisher) Publish(ctx context.Context, topic, roomCode string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishFunc != nil {
		if err := f.PublishFunc(ctx, topic, roomCode, payload); err != nil {
			return err
		}
	}
	f.events = append(f.events, publishedEvent{Topic: topic, RoomCode: roomCode, Payload: payload})
	return nil
}

func (f *FakePublisher) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Topic)
	}
	return out
}

func (f *FakePublisher) ByTopic(topic string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.events {
		if e.Topic == topic {
			out = append(out, e.Payload)
		}
	}
	return out
}

// ------------------------
// Fake Scheduler
// ------------------------

type scheduledJob struct {
	Kind   string
	RoomID uuid.UUID
	Code   string
	HostID string
	At     time.Time
}

type FakeScheduler struct {
	mu        sync.Mutex
	jobs      []scheduledJob
	cancelled []string
}

func (f *FakeScheduler) ScheduleStart(_ context.Context, roomID uuid.UUID, code, hostID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, scheduledJob{Kind: "start", RoomID: roomID, Code: code, HostID: hostID, At: at})
	return nil
}

func (f *FakeScheduler) ScheduleIdleCheck(_ context.Context, roomID uuid.UUID, code string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, scheduledJob{Kind: "idle", RoomID: roomID, Code: code, At: at})
	return nil
}

func (f *FakeScheduler) CancelRoomJobs(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, code)
	return nil
}

func (f *FakeScheduler) Jobs() []scheduledJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scheduledJob, len(f.jobs))
	copy(out, f.jobs)
	return out
}

func (f *FakeScheduler) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cancelled))
	copy(out, f.cancelled)
	return out
}

// ------------------------
// Fake Clock
// ------------------------

type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{now: t} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ------------------------
// Harness
// ------------------------

type testHarness struct {
	svc       *BingoService
	repo      *FakeRepo
	publisher *FakePublisher
	scheduler *FakeScheduler
	clock     *FakeClock
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	h := &testHarness{
		repo:      NewFakeRepo(),
		publisher: &FakePublisher{},
		scheduler: &FakeScheduler{},
		clock:     NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	h.svc = NewBingoService(h.repo, logger, nil, tracer, nil, h.publisher, h.scheduler, cfg)
	h.svc.clock = h.clock
	h.svc.rooms.deps.clock = h.clock
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.svc.Shutdown(ctx)
	})
	return h
}

// quietConfig disables timers so tests drive every draw explicitly.
func quietConfig() Config {
	return Config{
		AutoCallInterval:   time.Hour,
		ManualCallCooldown: time.Nanosecond,
		RequestTimeout:     2 * time.Second,
		IdleRoomTTL:        time.Hour,
		SubscriberBuffer:   256,
	}
}

func defaultRoomConfig() bingodomain.RoomConfig {
	return bingodomain.RoomConfig{
		Mode:              bingodomain.Mode75,
		PatternType:       bingodomain.PatternLine,
		MaxPlayers:        10,
		MaxCardsPerPlayer: 4,
		CardCost:          10,
		CurrencyType:      bingodomain.CurrencyCoins,
	}
}
