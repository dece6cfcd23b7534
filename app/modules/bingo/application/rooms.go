package bingoservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/results"
	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const maxCodeAttempts = 10

var startTimeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseStartTime reads phrases like "in 10 minutes" or "at 9pm" relative to now.
func parseStartTime(text string, now time.Time) (time.Time, error) {
	r, err := startTimeParser.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: could not parse start time: %v", bingodomain.ErrInvalidConfig, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("%w: could not understand start time %q", bingodomain.ErrInvalidConfig, text)
	}
	if !r.Time.After(now) {
		return time.Time{}, fmt.Errorf("%w: start time must be in the future", bingodomain.ErrInvalidConfig)
	}
	return r.Time, nil
}

// CreateRoom opens a room hosted by req.Host, who is seated as the first player.
func (s *BingoService) CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResult, error) {
	result, err := withTelemetry(s, ctx, "CreateRoom", req.Host.ID, func(ctx context.Context) (results.OperationResult[*CreateRoomResult, error], error) {
		return s.createRoomLogic(ctx, req)
	})
	return unwrap(result, err)
}

func (s *BingoService) createRoomLogic(ctx context.Context, req CreateRoomRequest) (results.OperationResult[*CreateRoomResult, error], error) {
	if req.Host.ID == "" {
		return results.FailureResult[*CreateRoomResult, error](fmt.Errorf("%w: host is required", bingodomain.ErrInvalidConfig)), nil
	}
	if err := req.Config.Validate(); err != nil {
		return results.FailureResult[*CreateRoomResult, error](err), nil
	}

	var startAt *time.Time
	if text := strings.TrimSpace(req.StartAt); text != "" {
		t, err := parseStartTime(text, s.clock.Now())
		if err != nil {
			return results.FailureResult[*CreateRoomResult, error](err), nil
		}
		if s.scheduler == nil {
			return results.OperationResult[*CreateRoomResult, error]{}, errors.New("scheduled start is not available")
		}
		startAt = &t
	}

	rng := bingodomain.NewRandom()
	var room *bingodomain.Room
	for attempt := 0; attempt < maxCodeAttempts && room == nil; attempt++ {
		candidate, err := bingodomain.NewRoom(bingodomain.GenerateRoomCode(rng), req.Host.ID, req.Config, rng, s.clock)
		if err != nil {
			return classify[*CreateRoomResult](err)
		}
		if _, err := candidate.Join(req.Host.ID, req.Host.Name); err != nil {
			return classify[*CreateRoomResult](err)
		}

		err = s.repo.InsertRoom(ctx, nil, bingodb.FromState(candidate.Snapshot()))
		switch {
		case errors.Is(err, bingodb.ErrCodeTaken):
			continue
		case err != nil:
			return results.OperationResult[*CreateRoomResult, error]{}, err
		}
		room = candidate
	}
	if room == nil {
		return results.OperationResult[*CreateRoomResult, error]{}, fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
	}

	if _, err := s.rooms.add(room, rng); err != nil {
		return results.OperationResult[*CreateRoomResult, error]{}, err
	}

	out := &CreateRoomResult{Room: room.Snapshot()}
	s.scheduleIdleCheck(ctx, room.ID(), room.Code(), s.cfg.IdleRoomTTL)

	if startAt != nil {
		if err := s.scheduler.ScheduleStart(ctx, room.ID(), room.Code(), req.Host.ID, *startAt); err != nil {
			s.logger.WarnContext(ctx, "Failed to schedule room start",
				attr.RoomCode(room.Code()), attr.Time("start_at", *startAt), attr.Error(err))
		} else {
			out.ScheduledStart = startAt
		}
	}

	s.logger.InfoContext(ctx, "Room created",
		attr.ExtractCorrelationID(ctx),
		attr.RoomCode(room.Code()),
		attr.UserID(req.Host.ID),
		attr.Int("mode", int(req.Config.Mode)),
		attr.String("pattern_type", string(req.Config.PatternType)),
	)
	return results.SuccessResult[*CreateRoomResult, error](out), nil
}

func (s *BingoService) scheduleIdleCheck(ctx context.Context, roomID uuid.UUID, code string, in time.Duration) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.ScheduleIdleCheck(ctx, roomID, code, s.clock.Now().Add(in)); err != nil {
		s.logger.WarnContext(ctx, "Failed to schedule idle check", attr.RoomCode(code), attr.Error(err))
	}
}

// GetRoom returns the room's current snapshot.
func (s *BingoService) GetRoom(ctx context.Context, code string) (*bingodomain.RoomState, error) {
	result, err := withTelemetry(s, ctx, "GetRoom", code, func(ctx context.Context) (results.OperationResult[*bingodomain.RoomState, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.RoomState, error) {
			return a.snapshot(), nil
		})
	})
	return unwrap(result, err)
}

// JoinRoom seats user. Joining again is harmless.
func (s *BingoService) JoinRoom(ctx context.Context, code string, user User) (*bingodomain.RoomState, error) {
	result, err := withTelemetry(s, ctx, "JoinRoom", code, func(ctx context.Context) (results.OperationResult[*bingodomain.RoomState, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.RoomState, error) {
			return a.join(ctx, user)
		})
	})
	return unwrap(result, err)
}

// UpdateCards sets how many cards userID holds for the coming round.
func (s *BingoService) UpdateCards(ctx context.Context, code, userID string, count int) (*UpdateCardsResult, error) {
	result, err := withTelemetry(s, ctx, "UpdateCards", code, func(ctx context.Context) (results.OperationResult[*UpdateCardsResult, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*UpdateCardsResult, error) {
			return a.setCards(ctx, userID, count)
		})
	})
	return unwrap(result, err)
}

func (s *BingoService) CanCloseRoom(ctx context.Context, code, userID string) (*CanCloseResult, error) {
	result, err := withTelemetry(s, ctx, "CanCloseRoom", code, func(ctx context.Context) (results.OperationResult[*CanCloseResult, error], error) {
		return submit(s, ctx, code, func(_ context.Context, a *roomActor) (*CanCloseResult, error) {
			return a.canClose(userID), nil
		})
	})
	return unwrap(result, err)
}

// CloseRoom closes the room for the host and returns the refunds owed.
func (s *BingoService) CloseRoom(ctx context.Context, code, userID string) ([]bingodomain.Refund, error) {
	result, err := withTelemetry(s, ctx, "CloseRoom", code, func(ctx context.Context) (results.OperationResult[[]bingodomain.Refund, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) ([]bingodomain.Refund, error) {
			return a.close(ctx, userID)
		})
	})
	return unwrap(result, err)
}

func (s *BingoService) LeaveRoom(ctx context.Context, code, userID string) (*bingodomain.Refund, error) {
	result, err := withTelemetry(s, ctx, "LeaveRoom", code, func(ctx context.Context) (results.OperationResult[*bingodomain.Refund, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*bingodomain.Refund, error) {
			return a.leave(ctx, userID)
		})
	})
	return unwrap(result, err)
}

// Subscribe joins user to the room and starts streaming its events.
func (s *BingoService) Subscribe(ctx context.Context, code string, user User) (*Subscription, error) {
	result, err := withTelemetry(s, ctx, "Subscribe", code, func(ctx context.Context) (results.OperationResult[*Subscription, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*Subscription, error) {
			return a.subscribe(ctx, user)
		})
	})
	return unwrap(result, err)
}

// CloseIdleRoom closes the room if nothing happened in it for the idle TTL.
// A room that is gone, or whose code now belongs to another room, reports
// Closed.
func (s *BingoService) CloseIdleRoom(ctx context.Context, roomID uuid.UUID, code string) (*IdleCheck, error) {
	result, err := withTelemetry(s, ctx, "CloseIdleRoom", code, func(ctx context.Context) (results.OperationResult[*IdleCheck, error], error) {
		return submit(s, ctx, code, func(ctx context.Context, a *roomActor) (*IdleCheck, error) {
			if a.room.ID() != roomID {
				return &IdleCheck{Closed: true}, nil
			}
			return a.closeIfIdle(ctx)
		})
	})
	check, err := unwrap(result, err)
	if errors.Is(err, bingodomain.ErrRoomNotFound) {
		return &IdleCheck{Closed: true}, nil
	}
	return check, err
}
