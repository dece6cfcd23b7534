package bingodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for bingo persistence.
type Repository interface {
	// GetRoom retrieves the open room with code, or the most recently
	// closed one if none is open.
	GetRoom(ctx context.Context, db bun.IDB, code string) (*Room, error)

	// InsertRoom stores a new room. It returns ErrCodeTaken if an open room
	// already uses the code.
	InsertRoom(ctx context.Context, db bun.IDB, room *Room) error

	// UpsertRoom writes the full room snapshot.
	UpsertRoom(ctx context.Context, db bun.IDB, room *Room) error

	// InsertRound records a finished round. Re-inserting the same round is a no-op.
	InsertRound(ctx context.Context, db bun.IDB, round *RoundResult) error

	// MarkRoundSettled flags a round as paid out by the wallet service.
	MarkRoundSettled(ctx context.Context, db bun.IDB, roomID uuid.UUID, round int, settledAt time.Time) error

	// ListRoundsSince returns finished rounds ordered by finish time.
	ListRoundsSince(ctx context.Context, db bun.IDB, since time.Time) ([]RoundResult, error)

	// ListInProgressRoomCodes returns codes of open rooms with a game running.
	ListInProgressRoomCodes(ctx context.Context, db bun.IDB) ([]string, error)
}
