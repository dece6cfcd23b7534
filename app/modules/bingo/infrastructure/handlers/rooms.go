package bingohandlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateRoomRequest is the body of POST /rooms.
type CreateRoomRequest struct {
	Mode              int    `json:"mode"`
	PatternType       string `json:"pattern_type"`
	MaxPlayers        int    `json:"max_players"`
	MaxCardsPerPlayer int    `json:"max_cards_per_player"`
	CardCost          int64  `json:"card_cost"`
	CurrencyType      string `json:"currency_type"`
	// StartAt schedules the first game, e.g. "in 10 minutes".
	StartAt string `json:"start_at,omitempty"`
	// Cards optionally buys the host's cards right away.
	Cards int `json:"cards,omitempty"`
}

func (req CreateRoomRequest) config() bingodomain.RoomConfig {
	return bingodomain.RoomConfig{
		Mode:              bingodomain.Mode(req.Mode),
		PatternType:       bingodomain.PatternType(req.PatternType),
		MaxPlayers:        req.MaxPlayers,
		MaxCardsPerPlayer: req.MaxCardsPerPlayer,
		CardCost:          req.CardCost,
		CurrencyType:      bingodomain.Currency(req.CurrencyType),
	}
}

// CardsRequest is the body of the join and update-cards endpoints.
type CardsRequest struct {
	Cards int `json:"cards"`
}

var errBadBody = &bingodomain.RuleError{Kind: bingodomain.KindValidation, Code: "bad_request", Message: "malformed request body"}

// decodeBody fills v from the request. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

func (h *BingoHandlers) start(r *http.Request, name string) (context.Context, trace.Span, bingoservice.User) {
	user, _ := UserFromContext(r.Context())
	ctx, span := h.tracer.Start(r.Context(), "BingoHandlers."+name,
		trace.WithAttributes(attribute.String("user_id", user.ID)),
	)
	if code := chi.URLParam(r, "code"); code != "" {
		span.SetAttributes(attribute.String("room_code", code))
	}
	return ctx, span, user
}

func (h *BingoHandlers) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "CreateRoom")
	defer span.End()

	var req CreateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, "CreateRoom", err)
		return
	}

	res, err := h.service.CreateRoom(ctx, bingoservice.CreateRoomRequest{
		Host:    user,
		Config:  req.config(),
		StartAt: req.StartAt,
	})
	if err != nil {
		h.writeError(w, r, "CreateRoom", err)
		return
	}

	if req.Cards > 0 {
		updated, err := h.service.UpdateCards(ctx, res.Room.Code, user.ID, req.Cards)
		if err != nil {
			// The room exists; report it with the card error so the client can retry the purchase.
			h.logger.WarnContext(ctx, "Host card purchase failed after room creation",
				attr.RoomCode(res.Room.Code), attr.UserID(user.ID), attr.Error(err))
			h.writeError(w, r, "CreateRoom", err)
			return
		}
		res.Room = updated.Room
	}

	h.logger.InfoContext(ctx, "Room created over HTTP", attr.RoomCode(res.Room.Code), attr.UserID(user.ID))
	writeSuccess(w, http.StatusCreated, res)
}

func (h *BingoHandlers) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := h.start(r, "GetRoom")
	defer span.End()

	room, err := h.service.GetRoom(ctx, chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, "GetRoom", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"room": room})
}

func (h *BingoHandlers) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "JoinRoom")
	defer span.End()

	var req CardsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, "JoinRoom", err)
		return
	}

	code := chi.URLParam(r, "code")
	room, err := h.service.JoinRoom(ctx, code, user)
	if err != nil {
		h.writeError(w, r, "JoinRoom", err)
		return
	}
	if req.Cards > 0 {
		updated, err := h.service.UpdateCards(ctx, code, user.ID, req.Cards)
		if err != nil {
			h.writeError(w, r, "JoinRoom", err)
			return
		}
		room = &updated.Room
	}
	writeSuccess(w, http.StatusOK, map[string]any{"room": room})
}

func (h *BingoHandlers) HandleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "LeaveRoom")
	defer span.End()

	refund, err := h.service.LeaveRoom(ctx, chi.URLParam(r, "code"), user.ID)
	if err != nil {
		h.writeError(w, r, "LeaveRoom", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"refund": refund})
}

func (h *BingoHandlers) HandleUpdateCards(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "UpdateCards")
	defer span.End()

	var req CardsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, "UpdateCards", err)
		return
	}

	res, err := h.service.UpdateCards(ctx, chi.URLParam(r, "code"), user.ID, req.Cards)
	if err != nil {
		h.writeError(w, r, "UpdateCards", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *BingoHandlers) HandleCanClose(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "CanCloseRoom")
	defer span.End()

	res, err := h.service.CanCloseRoom(ctx, chi.URLParam(r, "code"), user.ID)
	if err != nil {
		h.writeError(w, r, "CanCloseRoom", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *BingoHandlers) HandleCloseRoom(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "CloseRoom")
	defer span.End()

	code := chi.URLParam(r, "code")
	refunds, err := h.service.CloseRoom(ctx, code, user.ID)
	if err != nil {
		h.writeError(w, r, "CloseRoom", err)
		return
	}
	h.logger.InfoContext(ctx, "Room closed over HTTP",
		attr.RoomCode(code), attr.UserID(user.ID), attr.Int("refunds", len(refunds)))
	writeSuccess(w, http.StatusOK, map[string]any{"refunds": refunds})
}

func (h *BingoHandlers) HandleCheckCard(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "CheckCard")
	defer span.End()

	cardID, err := uuid.Parse(chi.URLParam(r, "cardID"))
	if err != nil {
		h.writeError(w, r, "CheckCard", bingodomain.ErrCardNotFound)
		return
	}

	res, err := h.service.CheckCard(ctx, chi.URLParam(r, "code"), user.ID, cardID)
	if err != nil {
		h.writeError(w, r, "CheckCard", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

// HandleRoomJobs lists the scheduled start and idle-check jobs of a room.
// Only the host may see them.
func (h *BingoHandlers) HandleRoomJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span, user := h.start(r, "RoomJobs")
	defer span.End()

	code := chi.URLParam(r, "code")
	room, err := h.service.GetRoom(ctx, code)
	if err != nil {
		h.writeError(w, r, "RoomJobs", err)
		return
	}
	if room.HostID != user.ID {
		h.writeError(w, r, "RoomJobs", bingodomain.ErrNotHost)
		return
	}

	jobs, err := h.jobs.GetScheduledJobs(ctx, code)
	if err != nil {
		h.writeError(w, r, "RoomJobs", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"jobs": jobs})
}
