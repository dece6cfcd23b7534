package bingohandlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingoqueue "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/queue"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

// JobLister reads the queued jobs of a room.
type JobLister interface {
	GetScheduledJobs(ctx context.Context, code string) ([]bingoqueue.JobInfo, error)
}

// BingoHandlers serves the REST API and the real-time socket for rooms.
type BingoHandlers struct {
	service  bingoservice.Service
	jobs     JobLister
	logger   *slog.Logger
	tracer   trace.Tracer
	upgrader *socketUpgrader
}

// NewBingoHandlers creates the handlers. jobs may be nil, which disables the
// jobs endpoint. allowedOrigins limits WebSocket upgrades; an empty list
// accepts any origin.
func NewBingoHandlers(
	service bingoservice.Service,
	jobs JobLister,
	logger *slog.Logger,
	tracer trace.Tracer,
	allowedOrigins []string,
) *BingoHandlers {
	return &BingoHandlers{
		service:  service,
		jobs:     jobs,
		logger:   logger,
		tracer:   tracer,
		upgrader: newSocketUpgrader(allowedOrigins),
	}
}

// RegisterRoutes mounts the room endpoints on r. Callers wrap r with
// AuthMiddleware; every route needs a caller identity.
func (h *BingoHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/rooms", h.HandleCreateRoom)
	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", h.HandleGetRoom)
		r.Delete("/", h.HandleCloseRoom)
		r.Post("/join", h.HandleJoinRoom)
		r.Post("/leave", h.HandleLeaveRoom)
		r.Post("/update-cards", h.HandleUpdateCards)
		r.Get("/can-close", h.HandleCanClose)
		r.Post("/can-close", h.HandleCanClose)
		r.Get("/cards/{cardID}/check", h.HandleCheckCard)
		if h.jobs != nil {
			r.Get("/jobs", h.HandleRoomJobs)
		}
	})
}

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failureResponse{Success: false, Message: message})
}

// statusFor maps a service error to an HTTP status. Rule errors carry their
// own message; anything else is reported generically.
func statusFor(err error) (int, failureResponse) {
	if re, ok := bingodomain.AsRuleError(err); ok {
		resp := failureResponse{Message: err.Error(), Code: re.Code}
		switch re.Kind {
		case bingodomain.KindValidation:
			return http.StatusBadRequest, resp
		case bingodomain.KindForbidden:
			return http.StatusForbidden, resp
		case bingodomain.KindNotFound:
			return http.StatusNotFound, resp
		case bingodomain.KindConflict, bingodomain.KindExhausted:
			return http.StatusConflict, resp
		case bingodomain.KindCooldown:
			return http.StatusTooManyRequests, resp
		}
		return http.StatusBadRequest, resp
	}
	if errors.Is(err, bingoservice.ErrRequestTimeout) || errors.Is(err, bingoservice.ErrShuttingDown) {
		return http.StatusServiceUnavailable, failureResponse{Message: err.Error()}
	}
	return http.StatusInternalServerError, failureResponse{Message: "internal server error"}
}

func (h *BingoHandlers) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, resp := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Bingo request failed",
			attr.String("operation", op),
			attr.String("path", r.URL.Path),
			attr.Error(err),
		)
	}
	writeJSON(w, status, resp)
}
