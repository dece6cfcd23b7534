package bingohandlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingoqueue "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/queue"
	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/jwt"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace/noop"
)

// ------------------------
// Fake Service
// ------------------------

type FakeService struct {
	CreateRoomFunc         func(ctx context.Context, req bingoservice.CreateRoomRequest) (*bingoservice.CreateRoomResult, error)
	GetRoomFunc            func(ctx context.Context, code string) (*bingodomain.RoomState, error)
	JoinRoomFunc           func(ctx context.Context, code string, user bingoservice.User) (*bingodomain.RoomState, error)
	UpdateCardsFunc        func(ctx context.Context, code, userID string, count int) (*bingoservice.UpdateCardsResult, error)
	CanCloseRoomFunc       func(ctx context.Context, code, userID string) (*bingoservice.CanCloseResult, error)
	CloseRoomFunc          func(ctx context.Context, code, userID string) ([]bingodomain.Refund, error)
	LeaveRoomFunc          func(ctx context.Context, code, userID string) (*bingodomain.Refund, error)
	StartGameFunc          func(ctx context.Context, code, userID string) (*bingodomain.RoomState, error)
	CallNumberFunc         func(ctx context.Context, code, userID string) (int, error)
	ToggleAutoCallFunc     func(ctx context.Context, code, userID string, enabled bool) (bool, error)
	MarkNumberFunc         func(ctx context.Context, code, userID string, cardID uuid.UUID, number int) (*bingodomain.Position, error)
	CallBingoFunc          func(ctx context.Context, code, userID string, cardID uuid.UUID) (*bingodomain.Outcome, error)
	RequestNewRoundFunc    func(ctx context.Context, code, userID string) (*bingodomain.RoomState, error)
	CheckCardFunc          func(ctx context.Context, code, userID string, cardID uuid.UUID) (*bingoservice.CardCheck, error)
	SubscribeFunc          func(ctx context.Context, code string, user bingoservice.User) (*bingoservice.Subscription, error)
	RecordSettlementFunc   func(ctx context.Context, payload bingoevents.WalletSettledPayloadV1) error
	StartScheduledGameFunc func(ctx context.Context, roomID uuid.UUID, code, hostID string) error
	CloseIdleRoomFunc      func(ctx context.Context, roomID uuid.UUID, code string) (*bingoservice.IdleCheck, error)

	mu    sync.Mutex
	trace []string
}

func (f *FakeService) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeService) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeService) CreateRoom(ctx context.Context, req bingoservice.CreateRoomRequest) (*bingoservice.CreateRoomResult, error) {
	f.record("CreateRoom")
	if f.CreateRoomFunc != nil {
		return f.CreateRoomFunc(ctx, req)
	}
	return &bingoservice.CreateRoomResult{Room: bingodomain.RoomState{Code: "ABC123", HostID: req.Host.ID, RoomConfig: req.Config}}, nil
}

func (f *FakeService) GetRoom(ctx context.Context, code string) (*bingodomain.RoomState, error) {
	f.record("GetRoom")
	if f.GetRoomFunc != nil {
		return f.GetRoomFunc(ctx, code)
	}
	return &bingodomain.RoomState{Code: code}, nil
}

func (f *FakeService) JoinRoom(ctx context.Context, code string, user bingoservice.User) (*bingodomain.RoomState, error) {
	f.record("JoinRoom")
	if f.JoinRoomFunc != nil {
		return f.JoinRoomFunc(ctx, code, user)
	}
	return &bingodomain.RoomState{Code: code}, nil
}

func (f *FakeService) UpdateCards(ctx context.Context, code, userID string, count int) (*bingoservice.UpdateCardsResult, error) {
	f.record("UpdateCards")
	if f.UpdateCardsFunc != nil {
		return f.UpdateCardsFunc(ctx, code, userID, count)
	}
	return &bingoservice.UpdateCardsResult{
		Change: bingodomain.CardChange{Delta: count, Cards: count},
		Room:   bingodomain.RoomState{Code: code},
	}, nil
}

func (f *FakeService) CanCloseRoom(ctx context.Context, code, userID string) (*bingoservice.CanCloseResult, error) {
	f.record("CanCloseRoom")
	if f.CanCloseRoomFunc != nil {
		return f.CanCloseRoomFunc(ctx, code, userID)
	}
	return &bingoservice.CanCloseResult{CanClose: true}, nil
}

func (f *FakeService) CloseRoom(ctx context.Context, code, userID string) ([]bingodomain.Refund, error) {
	f.record("CloseRoom")
	if f.CloseRoomFunc != nil {
		return f.CloseRoomFunc(ctx, code, userID)
	}
	return nil, nil
}

func (f *FakeService) LeaveRoom(ctx context.Context, code, userID string) (*bingodomain.Refund, error) {
	f.record("LeaveRoom")
	if f.LeaveRoomFunc != nil {
		return f.LeaveRoomFunc(ctx, code, userID)
	}
	return &bingodomain.Refund{UserID: userID}, nil
}

func (f *FakeService) StartGame(ctx context.Context, code, userID string) (*bingodomain.RoomState, error) {
	f.record("StartGame")
	if f.StartGameFunc != nil {
		return f.StartGameFunc(ctx, code, userID)
	}
	return &bingodomain.RoomState{Code: code, Status: bingodomain.StatusInProgress}, nil
}

func (f *FakeService) CallNumber(ctx context.Context, code, userID string) (int, error) {
	f.record("CallNumber")
	if f.CallNumberFunc != nil {
		return f.CallNumberFunc(ctx, code, userID)
	}
	return 7, nil
}

func (f *FakeService) ToggleAutoCall(ctx context.Context, code, userID string, enabled bool) (bool, error) {
	f.record("ToggleAutoCall")
	if f.ToggleAutoCallFunc != nil {
		return f.ToggleAutoCallFunc(ctx, code, userID, enabled)
	}
	return enabled, nil
}

func (f *FakeService) MarkNumber(ctx context.Context, code, userID string, cardID uuid.UUID, number int) (*bingodomain.Position, error) {
	f.record("MarkNumber")
	if f.MarkNumberFunc != nil {
		return f.MarkNumberFunc(ctx, code, userID, cardID, number)
	}
	return &bingodomain.Position{}, nil
}

func (f *FakeService) CallBingo(ctx context.Context, code, userID string, cardID uuid.UUID) (*bingodomain.Outcome, error) {
	f.record("CallBingo")
	if f.CallBingoFunc != nil {
		return f.CallBingoFunc(ctx, code, userID, cardID)
	}
	return &bingodomain.Outcome{WinnerID: userID, CardID: &cardID}, nil
}

func (f *FakeService) RequestNewRound(ctx context.Context, code, userID string) (*bingodomain.RoomState, error) {
	f.record("RequestNewRound")
	if f.RequestNewRoundFunc != nil {
		return f.RequestNewRoundFunc(ctx, code, userID)
	}
	return &bingodomain.RoomState{Code: code, Status: bingodomain.StatusWaiting}, nil
}

func (f *FakeService) CheckCard(ctx context.Context, code, userID string, cardID uuid.UUID) (*bingoservice.CardCheck, error) {
	f.record("CheckCard")
	if f.CheckCardFunc != nil {
		return f.CheckCardFunc(ctx, code, userID, cardID)
	}
	return &bingoservice.CardCheck{CardID: cardID, PatternType: bingodomain.PatternLine}, nil
}

func (f *FakeService) Subscribe(ctx context.Context, code string, user bingoservice.User) (*bingoservice.Subscription, error) {
	f.record("Subscribe")
	if f.SubscribeFunc != nil {
		return f.SubscribeFunc(ctx, code, user)
	}
	return bingoservice.NewSubscription(bingodomain.RoomState{Code: code}, make(chan bingoservice.Event)), nil
}

func (f *FakeService) RecordSettlement(ctx context.Context, payload bingoevents.WalletSettledPayloadV1) error {
	f.record("RecordSettlement")
	if f.RecordSettlementFunc != nil {
		return f.RecordSettlementFunc(ctx, payload)
	}
	return nil
}

func (f *FakeService) StartScheduledGame(ctx context.Context, roomID uuid.UUID, code, hostID string) error {
	f.record("StartScheduledGame")
	if f.StartScheduledGameFunc != nil {
		return f.StartScheduledGameFunc(ctx, roomID, code, hostID)
	}
	return nil
}

func (f *FakeService) CloseIdleRoom(ctx context.Context, roomID uuid.UUID, code string) (*bingoservice.IdleCheck, error) {
	f.record("CloseIdleRoom")
	if f.CloseIdleRoomFunc != nil {
		return f.CloseIdleRoomFunc(ctx, roomID, code)
	}
	return &bingoservice.IdleCheck{Closed: true}, nil
}

func (f *FakeService) Shutdown(context.Context) error { return nil }

var _ bingoservice.Service = (*FakeService)(nil)

// ------------------------
// Test router
// ------------------------

const testSecret = "test-secret"

var testTokens = jwt.NewService(testSecret, "mundoxyz")

func tokenFor(t *testing.T, userID, username string) string {
	t.Helper()
	token, err := testTokens.GenerateToken(userID, username, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

// ------------------------
// Fake Jobs
// ------------------------

type FakeJobs struct {
	GetScheduledJobsFunc func(ctx context.Context, code string) ([]bingoqueue.JobInfo, error)
}

func (f *FakeJobs) GetScheduledJobs(ctx context.Context, code string) ([]bingoqueue.JobInfo, error) {
	if f.GetScheduledJobsFunc != nil {
		return f.GetScheduledJobsFunc(ctx, code)
	}
	return nil, nil
}

// newTestRouter wires the handlers the way the module does, without the
// rate limiter.
func newTestRouter(svc bingoservice.Service) http.Handler {
	return newJobsRouter(svc, nil)
}

func newJobsRouter(svc bingoservice.Service, jobs JobLister) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	h := NewBingoHandlers(svc, jobs, logger, tracer, nil)

	r := chi.NewRouter()
	r.Route("/api/bingo", func(r chi.Router) {
		r.Use(AuthMiddleware(testTokens))
		h.RegisterRoutes(r)
	})
	r.With(AuthMiddleware(testTokens)).Get("/ws", h.HandleWebSocket)
	return r
}
