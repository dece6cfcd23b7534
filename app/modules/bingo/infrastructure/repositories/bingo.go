package bingodb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	// ErrNotFound is returned when a room or round does not exist.
	ErrNotFound = errors.New("bingo record not found")
	// ErrCodeTaken is returned when an open room already holds a code.
	ErrCodeTaken = errors.New("room code already in use")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new bingo repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) GetRoom(ctx context.Context, db bun.IDB, code string) (*Room, error) {
	db = r.resolveDB(db)
	room := new(Room)
	err := db.NewSelect().
		Model(room).
		Where("code = ?", code).
		OrderExpr("closed_at IS NULL DESC, created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bingo room: %w", err)
	}
	return room, nil
}

func (r *Impl) InsertRoom(ctx context.Context, db bun.IDB, room *Room) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(room).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("failed to insert bingo room: %w", err)
	}
	return nil
}

func (r *Impl) UpsertRoom(ctx context.Context, db bun.IDB, room *Room) error {
	db = r.resolveDB(db)
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = time.Now().UTC()
	}
	_, err := db.NewInsert().
		Model(room).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("host_id = EXCLUDED.host_id").
		Set("total_pot = EXCLUDED.total_pot").
		Set("round = EXCLUDED.round").
		Set("auto_call = EXCLUDED.auto_call").
		Set("drawn_numbers = EXCLUDED.drawn_numbers").
		Set("players = EXCLUDED.players").
		Set("last_outcome = EXCLUDED.last_outcome").
		Set("updated_at = EXCLUDED.updated_at").
		Set("closed_at = EXCLUDED.closed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert bingo room: %w", err)
	}
	return nil
}

func (r *Impl) InsertRound(ctx context.Context, db bun.IDB, round *RoundResult) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(round).
		On("CONFLICT (room_id, round) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert bingo round: %w", err)
	}
	return nil
}

func (r *Impl) MarkRoundSettled(ctx context.Context, db bun.IDB, roomID uuid.UUID, round int, settledAt time.Time) error {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*RoundResult)(nil)).
		Set("settled = TRUE").
		Set("settled_at = ?", settledAt).
		Where("room_id = ?", roomID).
		Where("round = ?", round).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark round settled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Impl) ListRoundsSince(ctx context.Context, db bun.IDB, since time.Time) ([]RoundResult, error) {
	db = r.resolveDB(db)
	var rounds []RoundResult
	err := db.NewSelect().
		Model(&rounds).
		Where("finished_at >= ?", since).
		Order("finished_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bingo rounds: %w", err)
	}
	return rounds, nil
}

func (r *Impl) ListInProgressRoomCodes(ctx context.Context, db bun.IDB) ([]string, error) {
	db = r.resolveDB(db)
	var codes []string
	err := db.NewSelect().
		Model((*Room)(nil)).
		Column("code").
		Where("closed_at IS NULL").
		Where("status = ?", "in_progress").
		Order("code ASC").
		Scan(ctx, &codes)
	if err != nil {
		return nil, fmt.Errorf("failed to list open rooms: %w", err)
	}
	return codes, nil
}
