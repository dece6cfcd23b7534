package bingoservice

import (
	"context"
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/google/uuid"
)

// Service is the bingo room API used by the HTTP, socket, event and job
// adapters.
type Service interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResult, error)
	GetRoom(ctx context.Context, code string) (*bingodomain.RoomState, error)
	JoinRoom(ctx context.Context, code string, user User) (*bingodomain.RoomState, error)
	UpdateCards(ctx context.Context, code, userID string, count int) (*UpdateCardsResult, error)
	CanCloseRoom(ctx context.Context, code, userID string) (*CanCloseResult, error)
	CloseRoom(ctx context.Context, code, userID string) ([]bingodomain.Refund, error)
	LeaveRoom(ctx context.Context, code, userID string) (*bingodomain.Refund, error)

	StartGame(ctx context.Context, code, userID string) (*bingodomain.RoomState, error)
	CallNumber(ctx context.Context, code, userID string) (int, error)
	ToggleAutoCall(ctx context.Context, code, userID string, enabled bool) (bool, error)
	MarkNumber(ctx context.Context, code, userID string, cardID uuid.UUID, number int) (*bingodomain.Position, error)
	CallBingo(ctx context.Context, code, userID string, cardID uuid.UUID) (*bingodomain.Outcome, error)
	RequestNewRound(ctx context.Context, code, userID string) (*bingodomain.RoomState, error)
	CheckCard(ctx context.Context, code, userID string, cardID uuid.UUID) (*CardCheck, error)

	Subscribe(ctx context.Context, code string, user User) (*Subscription, error)

	RecordSettlement(ctx context.Context, payload bingoevents.WalletSettledPayloadV1) error
	StartScheduledGame(ctx context.Context, roomID uuid.UUID, code, hostID string) error
	CloseIdleRoom(ctx context.Context, roomID uuid.UUID, code string) (*IdleCheck, error)

	Shutdown(ctx context.Context) error
}

// EventPublisher sends integration events to the economy service.
type EventPublisher interface {
	Publish(ctx context.Context, topic, roomCode string, payload any) error
}

// JobScheduler defers room work to the job queue. Jobs carry the room ID as
// well as the code since codes are reused once a room closes.
type JobScheduler interface {
	ScheduleStart(ctx context.Context, roomID uuid.UUID, code, hostID string, at time.Time) error
	ScheduleIdleCheck(ctx context.Context, roomID uuid.UUID, code string, at time.Time) error
	CancelRoomJobs(ctx context.Context, code string) error
}

// User identifies the caller as asserted by the transport.
type User struct {
	ID   string
	Name string
}

type CreateRoomRequest struct {
	Host   User
	Config bingodomain.RoomConfig
	// StartAt is an optional natural language start time, e.g. "in 10 minutes".
	StartAt string
}

type CreateRoomResult struct {
	Room           bingodomain.RoomState `json:"room"`
	ScheduledStart *time.Time            `json:"scheduled_start,omitempty"`
}

type UpdateCardsResult struct {
	Change bingodomain.CardChange `json:"change"`
	Room   bingodomain.RoomState  `json:"room"`
}

type CanCloseResult struct {
	CanClose bool   `json:"can_close"`
	Reason   string `json:"reason,omitempty"`
}

type CardCheck struct {
	CardID      uuid.UUID               `json:"card_id"`
	PatternType bingodomain.PatternType `json:"pattern_type"`
	Complete    bool                    `json:"complete"`
}

// IdleCheck tells the idle job what happened. RetryIn is set when the room
// was active and should be checked again later.
type IdleCheck struct {
	Closed  bool
	RetryIn time.Duration
}

// Config holds the room behaviour tunables.
type Config struct {
	AutoCallInterval   time.Duration
	ManualCallCooldown time.Duration
	AutoCallForceAfter time.Duration
	RequestTimeout     time.Duration
	IdleRoomTTL        time.Duration
	SubscriberBuffer   int
}

func (c Config) withDefaults() Config {
	if c.AutoCallInterval <= 0 {
		c.AutoCallInterval = 5 * time.Second
	}
	if c.ManualCallCooldown <= 0 {
		c.ManualCallCooldown = 2 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.IdleRoomTTL <= 0 {
		c.IdleRoomTTL = 6 * time.Hour
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 64
	}
	return c
}
