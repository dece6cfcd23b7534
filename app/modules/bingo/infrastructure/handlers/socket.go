package bingohandlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// Events a client sends over the socket.
const (
	EventJoinRoom        = "bingo:join_room"
	EventLeaveRoom       = "bingo:leave_room"
	EventStartGame       = "bingo:start_game"
	EventCallNumber      = "bingo:call_number"
	EventToggleAutoCall  = "bingo:toggle_auto_call"
	EventMarkNumber      = "bingo:mark_number"
	EventCallBingo       = "bingo:call_bingo"
	EventRequestNewRound = "bingo:request_new_round"

	eventAck = "ack"
)

// Envelope is one socket frame in either direction. Ack is set by the client
// when it wants a reply and echoed back on the matching "ack" frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   *int64 `json:"ack,omitempty"`
}

// RoomCommand carries the fields of every client event; each event reads the
// ones it needs.
type RoomCommand struct {
	RoomCode string    `json:"room_code"`
	Enabled  bool      `json:"enabled"`
	CardID   uuid.UUID `json:"card_id"`
	Number   int       `json:"number"`
}

// MarkAck answers bingo:mark_number.
type MarkAck struct {
	Marked bool   `json:"marked"`
	Error  string `json:"error,omitempty"`
}

// ResultAck answers every other acknowledged event.
type ResultAck struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorData struct {
	RoomCode string `json:"room_code,omitempty"`
	Event    string `json:"event,omitempty"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
}

type socketUpgrader struct {
	websocket.Upgrader
}

func newSocketUpgrader(allowedOrigins []string) *socketUpgrader {
	return &socketUpgrader{websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}}
}

// HandleWebSocket upgrades an authenticated request to the real-time room
// channel. A client may follow several rooms on one connection.
func (h *BingoHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "missing token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", attr.UserID(user.ID), attr.Error(err))
		return
	}

	// The request context ends when the handler returns; the session outlives it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &socketClient{
		h:      h,
		conn:   conn,
		user:   user,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[string]*roomStream),
	}

	h.logger.InfoContext(ctx, "Socket connected", attr.UserID(user.ID))
	go c.writePump()
	go c.readPump()
}

type socketClient struct {
	h      *BingoHandlers
	conn   *websocket.Conn
	user   bingoservice.User
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	rooms map[string]*roomStream
}

func (c *socketClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.h.logger.WarnContext(c.ctx, "Socket read failed", attr.UserID(c.user.ID), attr.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.emit(bingoservice.EventError, errorData{Message: "malformed message"})
			continue
		}
		c.dispatch(env)
	}
}

func (c *socketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// close ends the session and drops every room subscription. Room seats are
// kept; a reconnecting client sends bingo:join_room again.
func (c *socketClient) close() {
	c.cancel()
	c.mu.Lock()
	streams := c.rooms
	c.rooms = make(map[string]*roomStream)
	c.mu.Unlock()
	for _, st := range streams {
		st.halt()
	}
	c.h.logger.InfoContext(c.ctx, "Socket disconnected", attr.UserID(c.user.ID))
}

func (c *socketClient) write(v outbound) {
	data, err := json.Marshal(v)
	if err != nil {
		c.h.logger.ErrorContext(c.ctx, "Failed to encode socket frame", attr.String("event", v.Event), attr.Error(err))
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		// A client this far behind cannot be resynced frame by frame.
		c.h.logger.WarnContext(c.ctx, "Socket send buffer full, disconnecting", attr.UserID(c.user.ID))
		c.cancel()
	}
}

func (c *socketClient) emit(event string, data any) {
	c.write(outbound{Event: event, Data: data})
}

func (c *socketClient) ack(id *int64, data any) {
	if id == nil {
		return
	}
	c.write(outbound{Event: eventAck, Ack: id, Data: data})
}

func (c *socketClient) emitError(event, code string, err error) {
	status, resp := statusFor(err)
	if status >= http.StatusInternalServerError {
		c.h.logger.ErrorContext(c.ctx, "Socket command failed",
			attr.String("event", event), attr.RoomCode(code), attr.UserID(c.user.ID), attr.Error(err))
	}
	c.emit(bingoservice.EventError, errorData{RoomCode: code, Event: event, Message: resp.Message, Code: resp.Code})
}

// fail reports err to the client: through the ack when one was requested,
// as bingo:error otherwise.
func (c *socketClient) fail(env Envelope, code string, err error) {
	if env.Ack == nil {
		c.emitError(env.Event, code, err)
		return
	}
	_, resp := statusFor(err)
	if env.Event == EventMarkNumber {
		c.ack(env.Ack, MarkAck{Marked: false, Error: resp.Message})
		return
	}
	c.ack(env.Ack, ResultAck{Success: false, Message: resp.Message})
}

func (c *socketClient) dispatch(env Envelope) {
	var cmd RoomCommand
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			c.fail(env, "", errBadBody)
			return
		}
	}

	ctx, span := c.h.tracer.Start(c.ctx, "BingoSocket."+env.Event, trace.WithAttributes(
		attribute.String("user_id", c.user.ID),
		attribute.String("room_code", cmd.RoomCode),
	))
	defer span.End()

	svc := c.h.service
	code := cmd.RoomCode

	switch env.Event {
	case EventJoinRoom:
		snapshot, err := c.join(ctx, code)
		if err != nil {
			c.fail(env, code, err)
			return
		}
		c.ack(env.Ack, ResultAck{Success: true, Data: snapshot})

	case EventLeaveRoom:
		refund, err := svc.LeaveRoom(ctx, code, c.user.ID)
		if err != nil {
			c.fail(env, code, err)
			return
		}
		c.unsubscribe(code)
		c.ack(env.Ack, ResultAck{Success: true, Data: refund})

	case EventStartGame:
		room, err := svc.StartGame(ctx, code, c.user.ID)
		if err != nil {
			c.fail(env, code, err)
			return
		}
		c.ack(env.Ack, ResultAck{Success: true, Data: room})

	case EventCallNumber:
		n, err := svc.CallNumber(ctx, code, c.user.ID)
		if err != nil {
			c.fail(env, code, err)
			return
		}
		c.ack(env.Ack, ResultAck{Success: true, Data: map[string]int{"number": n}})

	case EventToggleAutoCall:
		enabled, err := svc.ToggleAutoCall(ctx, code, c.user.ID, cmd.Enabled)
		if err != nil {
			c.fail(env, code, err)
			return
		}
		c.ack(env.Ack, ResultAck{Success: true, Data: bingoservice.AutoCallData{Enabled: enabled}})

	case EventMarkNumber:
		if _, err := svc.MarkNumber(ctx, code, c.user.ID, cmd.CardID, cmd.Number); err != nil {
			c.fail(env, code, err)
			return
		}
		c.ack(env.Ack, MarkAck{Marked: true})

	case EventCallBingo:
		outcome, err := svc.CallBingo(ctx, code, c.user.ID, cmd.CardID)
		if err != nil {
			c.fail(env, code, err)
			return
		}
		c.ack(env.Ack, ResultAck{Success: true, Data: outcome})

	case EventRequestNewRound:
		room, err := svc.RequestNewRound(ctx, code, c.user.ID)
		if err != nil {
			c.fail(env, code, err)
			return
		}
		c.ack(env.Ack, ResultAck{Success: true, Data: room})

	default:
		c.h.logger.WarnContext(ctx, "Unknown socket event", attr.String("event", env.Event), attr.UserID(c.user.ID))
		c.fail(env, code, &bingodomain.RuleError{
			Kind:    bingodomain.KindValidation,
			Code:    "unknown_event",
			Message: "unknown event " + env.Event,
		})
	}
}

// roomStream is one room's forwarding loop. The loop owns the subscription
// and closes it on exit.
type roomStream struct {
	sub  *bingoservice.Subscription
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newRoomStream(sub *bingoservice.Subscription) *roomStream {
	return &roomStream{sub: sub, stop: make(chan struct{}), done: make(chan struct{})}
}

// halt stops the loop and waits until it can no longer write to the socket.
func (st *roomStream) halt() {
	st.once.Do(func() { close(st.stop) })
	<-st.done
}

func (st *roomStream) stopped() bool {
	select {
	case <-st.stop:
		return true
	default:
		return false
	}
}

// join subscribes to the room, replacing any previous subscription so that a
// repeated join acts as a resync. The old stream is drained before the new
// snapshot goes out, so nothing it carried can follow the snapshot.
func (c *socketClient) join(ctx context.Context, code string) (*bingodomain.RoomState, error) {
	sub, err := c.h.service.Subscribe(ctx, code, c.user)
	if err != nil {
		return nil, err
	}

	st := newRoomStream(sub)
	c.mu.Lock()
	prev := c.rooms[code]
	c.rooms[code] = st
	c.mu.Unlock()
	if prev != nil {
		prev.halt()
	}

	c.emit(bingoservice.EventRoomState, sub.Snapshot)
	go c.forward(code, st)
	return &sub.Snapshot, nil
}

func (c *socketClient) unsubscribe(code string) {
	c.mu.Lock()
	st := c.rooms[code]
	delete(c.rooms, code)
	c.mu.Unlock()
	if st != nil {
		st.halt()
	}
}

// drop forgets st if it is still the stream for code.
func (c *socketClient) drop(code string, st *roomStream) {
	c.mu.Lock()
	if c.rooms[code] == st {
		delete(c.rooms, code)
	}
	c.mu.Unlock()
}

// forward relays room events to the socket. When the room drops the
// subscription because the client fell behind, it subscribes again and sends
// a fresh bingo:room_state.
func (c *socketClient) forward(code string, st *roomStream) {
	sub := st.sub
	defer func() {
		sub.Close()
		close(st.done)
	}()

	for {
		roomClosed := false
	relay:
		for {
			select {
			case <-st.stop:
				return
			case <-c.ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					break relay
				}
				if st.stopped() {
					return
				}
				if ev.Name == bingoservice.EventRoomClosed {
					roomClosed = true
				}
				c.emit(ev.Name, ev.Data)
			}
		}

		if roomClosed {
			c.drop(code, st)
			return
		}
		if c.ctx.Err() != nil || st.stopped() {
			return
		}

		next, err := c.h.service.Subscribe(c.ctx, code, c.user)
		if err != nil {
			c.drop(code, st)
			c.emitError(EventJoinRoom, code, err)
			return
		}
		sub.Close()
		sub = next
		if st.stopped() {
			return
		}

		c.h.logger.InfoContext(c.ctx, "Resubscribed lagging socket", attr.RoomCode(code), attr.UserID(c.user.ID))
		c.emit(bingoservice.EventRoomState, sub.Snapshot)
	}
}
