package bingoservice

import (
	"context"
	"errors"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func (s *BingoService) StartGame(ctx context.Context, code, userID string) (*bingodomain.RoomState, error) {
	result, err := withTelemetry(s, ctx, "StartGame", code, func(ctx context.Context) (results.OperationResult[*bingodomain.RoomState, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.RoomState, error) {
			return a.start(ctx, userID)
		})
	})
	return unwrap(result, err)
}

// CallNumber draws the next number on the host's request, subject to the
// manual cooldown.
func (s *BingoService) CallNumber(ctx context.Context, code, userID string) (int, error) {
	result, err := withTelemetry(s, ctx, "CallNumber", code, func(ctx context.Context) (results.OperationResult[int, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (int, error) {
			return a.callNumber(ctx, userID)
		})
	})
	return unwrap(result, err)
}

func (s *BingoService) ToggleAutoCall(ctx context.Context, code, userID string, enabled bool) (bool, error) {
	result, err := withTelemetry(s, ctx, "ToggleAutoCall", code, func(ctx context.Context) (results.OperationResult[bool, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (bool, error) {
			return a.toggleAutoCall(ctx, userID, enabled)
		})
	})
	return unwrap(result, err)
}

func (s *BingoService) MarkNumber(ctx context.Context, code, userID string, cardID uuid.UUID, number int) (*bingodomain.Position, error) {
	result, err := withTelemetry(s, ctx, "MarkNumber", code, func(ctx context.Context) (results.OperationResult[*bingodomain.Position, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.Position, error) {
			return a.mark(ctx, userID, cardID, number)
		})
	})
	return unwrap(result, err)
}

// CallBingo verifies a claim. Only the first valid claim in a round wins.
func (s *BingoService) CallBingo(ctx context.Context, code, userID string, cardID uuid.UUID) (*bingodomain.Outcome, error) {
	result, err := withTelemetry(s, ctx, "CallBingo", code, func(ctx context.Context) (results.OperationResult[*bingodomain.Outcome, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.Outcome, error) {
			return a.callBingo(ctx, userID, cardID)
		})
	})
	return unwrap(result, err)
}

func (s *BingoService) RequestNewRound(ctx context.Context, code, userID string) (*bingodomain.RoomState, error) {
	result, err := withTelemetry(s, ctx, "RequestNewRound", code, func(ctx context.Context) (results.OperationResult[*bingodomain.RoomState, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.RoomState, error) {
			return a.newRound(ctx, userID)
		})
	})
	return unwrap(result, err)
}

// CheckCard runs the pattern check on one of the caller's cards without
// claiming anything.
func (s *BingoService) CheckCard(ctx context.Context, code, userID string, cardID uuid.UUID) (*CardCheck, error) {
	result, err := withTelemetry(s, ctx, "CheckCard", code, func(ctx context.Context) (results.OperationResult[*CardCheck, error], error) {
		return submit(s, ctx, code, func(_ context.Context, a *roomActor) (*CardCheck, error) {
			return a.checkCard(userID, cardID)
		})
	})
	return unwrap(result, err)
}

// StartScheduledGame starts a game on behalf of its host when a scheduled
// start fires. Rooms that already moved on are left alone.
func (s *BingoService) StartScheduledGame(ctx context.Context, roomID uuid.UUID, code, hostID string) error {
	result, err := withTelemetry(s, ctx, "StartScheduledGame", code, func(ctx context.Context) (results.OperationResult[*bingodomain.RoomState, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.RoomState, error) {
			if a.room.ID() != roomID {
				return nil, bingodomain.ErrRoomNotFound
			}
			return a.scheduledStart(ctx, hostID)
		})
	})
	_, err = unwrap(result, err)
	return err
}

// RecordSettlement marks a finished round as paid out.
func (s *BingoService) RecordSettlement(ctx context.Context, payload bingoevents.WalletSettledPayloadV1) error {
	result, err := withTelemetry(s, ctx, "RecordSettlement", payload.RoomCode, func(ctx context.Context) (results.OperationResult[struct{}, error], error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[struct{}, error], error) {
			settledAt := payload.SettledAt
			if settledAt.IsZero() {
				settledAt = s.clock.Now()
			}
			err := s.repo.MarkRoundSettled(ctx, db, payload.RoomID, payload.Round, settledAt)
			if errors.Is(err, bingodb.ErrNotFound) {
				return results.FailureResult[struct{}, error](err), nil
			}
			if err != nil {
				return results.OperationResult[struct{}, error]{}, err
			}
			return results.SuccessResult[struct{}, error](struct{}{}), nil
		})
	})
	_, err = unwrap(result, err)
	return err
}

// ResumeRooms restores rooms with a game in progress so auto-call timers
// keep running after a restart.
func (s *BingoService) ResumeRooms(ctx context.Context) error {
	codes, err := s.repo.ListInProgressRoomCodes(ctx, nil)
	if err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := s.rooms.get(ctx, code); err != nil {
			s.logger.WarnContext(ctx, "Failed to resume room", attr.RoomCode(code), attr.Error(err))
		}
	}
	s.logger.InfoContext(ctx, "Resumed in-progress rooms", attr.Int("count", len(codes)))
	return nil
}
