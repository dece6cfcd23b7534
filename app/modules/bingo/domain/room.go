package bingodomain

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
)

// RoomConfig is fixed at creation and survives every round.
type RoomConfig struct {
	Mode              Mode        `json:"mode"`
	PatternType       PatternType `json:"pattern_type"`
	MaxPlayers        int         `json:"max_players"`
	MaxCardsPerPlayer int         `json:"max_cards_per_player"`
	CardCost          int64       `json:"card_cost"`
	CurrencyType      Currency    `json:"currency_type"`
}

func (c RoomConfig) Validate() error {
	if !c.Mode.Valid() {
		return ErrInvalidMode
	}
	if !c.PatternType.Valid() {
		return ErrInvalidPattern
	}
	if !c.CurrencyType.Valid() {
		return ErrInvalidCurrency
	}
	if c.MaxPlayers < 1 || c.MaxPlayers > 100 {
		return fmt.Errorf("%w: max_players must be between 1 and 100", ErrInvalidConfig)
	}
	if c.MaxCardsPerPlayer < 1 || c.MaxCardsPerPlayer > 10 {
		return fmt.Errorf("%w: max_cards_per_player must be between 1 and 10", ErrInvalidConfig)
	}
	if c.CardCost < 0 {
		return fmt.Errorf("%w: card_cost must not be negative", ErrInvalidConfig)
	}
	return nil
}

type Player struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	CardsPurchased int       `json:"cards_purchased"`
	IsReady        bool      `json:"is_ready"`
	Cards          []Card    `json:"cards"`
	JoinedAt       time.Time `json:"joined_at"`
}

func (p Player) clone() Player {
	out := p
	out.Cards = make([]Card, len(p.Cards))
	for i, c := range p.Cards {
		out.Cards[i] = c.Clone()
	}
	return out
}

// Outcome describes how a round ended. WinnerID is empty when the pool ran
// out with nobody calling a valid bingo.
type Outcome struct {
	Round        int         `json:"round"`
	WinnerID     string      `json:"winner_id,omitempty"`
	WinnerName   string      `json:"winner_name,omitempty"`
	CardID       *uuid.UUID  `json:"card_id,omitempty"`
	PatternType  PatternType `json:"pattern_type"`
	HostID       string      `json:"host_id"`
	Exhausted    bool        `json:"exhausted"`
	Pot          int64       `json:"pot"`
	Currency     Currency    `json:"currency_type"`
	Prizes       PrizeSplit  `json:"prizes"`
	DrawnNumbers []int       `json:"drawn_numbers"`
	FinishedAt   time.Time   `json:"finished_at"`
}

// Refund is money owed back to a player when a room closes mid-round.
type Refund struct {
	UserID string `json:"user_id"`
	Cards  int    `json:"cards"`
	Amount int64  `json:"amount"`
}

// RoomState is the full observable state of a room, used for snapshots and
// persistence.
type RoomState struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	RoomConfig              // flattened into the snapshot
	Status       Status     `json:"status"`
	HostID       string     `json:"host_id"`
	TotalPot     int64      `json:"total_pot"`
	Round        int        `json:"round"`
	AutoCall     bool       `json:"auto_call"`
	DrawnNumbers []int      `json:"drawn_numbers"`
	Players      []Player   `json:"players"`
	LastOutcome  *Outcome   `json:"last_outcome,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// Room is the aggregate the state machine runs on.
type Room struct {
	state  RoomState
	pool   *DrawPool
	dealer *Dealer
	clock  Clock
}

func NewRoom(code, hostID string, cfg RoomConfig, rng *rand.Rand, clock Clock) (*Room, error) {
	if !ValidRoomCode(code) {
		return nil, fmt.Errorf("%w: room code must be six digits", ErrInvalidConfig)
	}
	if hostID == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRandom()
	}
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()
	dealer := NewDealer(rng)
	return &Room{
		state: RoomState{
			ID:           dealer.newID(),
			Code:         code,
			RoomConfig:   cfg,
			Status:       StatusWaiting,
			HostID:       hostID,
			Round:        1,
			DrawnNumbers: []int{},
			Players:      []Player{},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		pool:   NewDrawPool(cfg.Mode, rng),
		dealer: dealer,
		clock:  clock,
	}, nil
}

// RestoreRoom rebuilds a room from a persisted snapshot.
func RestoreRoom(state RoomState, rng *rand.Rand, clock Clock) (*Room, error) {
	if err := state.RoomConfig.Validate(); err != nil {
		return nil, err
	}
	switch state.Status {
	case StatusWaiting, StatusInProgress, StatusFinished:
	default:
		return nil, fmt.Errorf("unknown room status %q", state.Status)
	}
	if rng == nil {
		rng = NewRandom()
	}
	if clock == nil {
		clock = RealClock{}
	}
	pool, err := RestoreDrawPool(state.Mode, state.DrawnNumbers, rng)
	if err != nil {
		return nil, err
	}
	r := &Room{pool: pool, dealer: NewDealer(rng), clock: clock}
	r.state = cloneState(state)
	return r, nil
}

func cloneState(s RoomState) RoomState {
	out := s
	out.DrawnNumbers = slices.Clone(s.DrawnNumbers)
	if out.DrawnNumbers == nil {
		out.DrawnNumbers = []int{}
	}
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p.clone()
	}
	if s.LastOutcome != nil {
		o := *s.LastOutcome
		o.DrawnNumbers = slices.Clone(o.DrawnNumbers)
		out.LastOutcome = &o
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		out.ClosedAt = &t
	}
	return out
}

// Snapshot returns a deep copy of the current state.
func (r *Room) Snapshot() RoomState {
	r.state.DrawnNumbers = r.pool.Drawn()
	return cloneState(r.state)
}

func (r *Room) ID() uuid.UUID      { return r.state.ID }
func (r *Room) Code() string       { return r.state.Code }
func (r *Room) Status() Status     { return r.state.Status }
func (r *Room) HostID() string     { return r.state.HostID }
func (r *Room) Config() RoomConfig { return r.state.RoomConfig }
func (r *Room) AutoCall() bool     { return r.state.AutoCall }
func (r *Room) Round() int         { return r.state.Round }
func (r *Room) TotalPot() int64    { return r.state.TotalPot }
func (r *Room) Closed() bool       { return r.state.ClosedAt != nil }
func (r *Room) UpdatedAt() time.Time {
	return r.state.UpdatedAt
}

func (r *Room) touch() { r.state.UpdatedAt = r.clock.Now() }

func (r *Room) player(userID string) (*Player, bool) {
	for i := range r.state.Players {
		if r.state.Players[i].UserID == userID {
			return &r.state.Players[i], true
		}
	}
	return nil, false
}

// Player returns a copy of userID's seat.
func (r *Room) Player(userID string) (Player, bool) {
	p, ok := r.player(userID)
	if !ok {
		return Player{}, false
	}
	return p.clone(), true
}

func (r *Room) IsMember(userID string) bool {
	if userID == r.state.HostID {
		return true
	}
	_, ok := r.player(userID)
	return ok
}

// Join seats userID. Rejoining is a no-op that reports false.
func (r *Room) Join(userID, username string) (bool, error) {
	if r.Closed() {
		return false, ErrRoomNotFound
	}
	if p, ok := r.player(userID); ok {
		if username != "" {
			p.Username = username
		}
		return false, nil
	}
	if len(r.state.Players) >= r.state.MaxPlayers {
		return false, ErrRoomFull
	}
	r.state.Players = append(r.state.Players, Player{
		UserID:   userID,
		Username: username,
		Cards:    []Card{},
		JoinedAt: r.clock.Now(),
	})
	r.touch()
	return true, nil
}

// Leave removes userID while waiting and returns their refund. Once a game
// has started the seat stays so the round result remains consistent.
func (r *Room) Leave(userID string) (Refund, error) {
	p, ok := r.player(userID)
	if !ok {
		return Refund{}, ErrNotInRoom
	}
	if r.state.Status != StatusWaiting {
		return Refund{UserID: userID}, nil
	}
	refund := Refund{UserID: userID, Cards: p.CardsPurchased, Amount: int64(p.CardsPurchased) * r.state.CardCost}
	r.state.TotalPot -= refund.Amount
	r.state.Players = slices.DeleteFunc(r.state.Players, func(pl Player) bool { return pl.UserID == userID })
	r.touch()
	return refund, nil
}

// CardChange reports a SetCards result. Delta is negative when cards were
// returned.
type CardChange struct {
	Delta  int   `json:"delta"`
	Amount int64 `json:"amount"`
	Cards  int   `json:"cards"`
}

// SetCards sets how many cards userID holds this round.
func (r *Room) SetCards(userID string, count int) (CardChange, error) {
	if r.state.Status != StatusWaiting {
		return CardChange{}, fmt.Errorf("%w: cards can only change while waiting", ErrInvalidState)
	}
	p, ok := r.player(userID)
	if !ok {
		return CardChange{}, ErrNotInRoom
	}
	if count < 0 || count > r.state.MaxCardsPerPlayer {
		return CardChange{}, fmt.Errorf("%w: must be between 0 and %d", ErrInvalidCardCount, r.state.MaxCardsPerPlayer)
	}

	delta := count - p.CardsPurchased
	switch {
	case delta > 0:
		for i := 0; i < delta; i++ {
			p.Cards = append(p.Cards, r.dealer.Deal(r.state.Mode))
		}
	case delta < 0:
		p.Cards = p.Cards[:count]
	}
	p.CardsPurchased = count
	p.IsReady = count > 0
	amount := int64(delta) * r.state.CardCost
	r.state.TotalPot += amount
	r.touch()
	return CardChange{Delta: delta, Amount: amount, Cards: count}, nil
}

// Start moves waiting to in_progress.
func (r *Room) Start(userID string) error {
	if userID != r.state.HostID {
		return ErrNotHost
	}
	if r.state.Status != StatusWaiting {
		return fmt.Errorf("%w: game already %s", ErrInvalidState, r.state.Status)
	}
	if !slices.ContainsFunc(r.state.Players, func(p Player) bool { return p.CardsPurchased > 0 }) {
		return ErrNoCardsPurchased
	}
	r.pool.Reset()
	r.state.Status = StatusInProgress
	r.touch()
	return nil
}

// Draw calls the next number. Drawing from an empty pool ends the round with
// no winner and returns the outcome alongside ErrPoolExhausted.
func (r *Room) Draw() (int, *Outcome, error) {
	if r.state.Status != StatusInProgress {
		return 0, nil, fmt.Errorf("%w: no game in progress", ErrInvalidState)
	}
	n, err := r.pool.Next()
	if err != nil {
		out := r.finish(nil, nil)
		return 0, out, err
	}
	r.state.DrawnNumbers = r.pool.Drawn()
	r.touch()
	return n, nil, nil
}

// Mark daubs number on one of userID's cards. Marking twice is accepted.
func (r *Room) Mark(userID string, cardID uuid.UUID, number int) (Position, error) {
	if r.state.Status != StatusInProgress {
		return Position{}, fmt.Errorf("%w: no game in progress", ErrInvalidState)
	}
	card, err := r.card(userID, cardID)
	if err != nil {
		return Position{}, err
	}
	if !r.pool.IsDrawn(number) {
		return Position{}, ErrNumberNotDrawn
	}
	pos, ok := card.Find(number)
	if !ok {
		return Position{}, ErrNumberNotOnCard
	}
	if card.Mark(pos) {
		r.touch()
	}
	return pos, nil
}

func (r *Room) card(userID string, cardID uuid.UUID) (*Card, error) {
	p, ok := r.player(userID)
	if !ok {
		return nil, ErrNotInRoom
	}
	for i := range p.Cards {
		if p.Cards[i].ID == cardID {
			return &p.Cards[i], nil
		}
	}
	return nil, ErrCardNotFound
}

// Card returns a copy of one of userID's cards.
func (r *Room) Card(userID string, cardID uuid.UUID) (Card, error) {
	c, err := r.card(userID, cardID)
	if err != nil {
		return Card{}, err
	}
	return c.Clone(), nil
}

// CallBingo verifies the claim and, if valid, finishes the round. Any claim
// after the round finished fails with ErrInvalidState.
func (r *Room) CallBingo(userID string, cardID uuid.UUID) (*Outcome, error) {
	if r.state.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: round already finished", ErrInvalidState)
	}
	card, err := r.card(userID, cardID)
	if err != nil {
		return nil, err
	}
	if !CheckPatternComplete(card, r.state.PatternType, r.state.Mode) {
		return nil, ErrPatternIncomplete
	}
	p, _ := r.player(userID)
	return r.finish(p, card), nil
}

func (r *Room) finish(winner *Player, card *Card) *Outcome {
	now := r.clock.Now()
	out := &Outcome{
		Round:        r.state.Round,
		PatternType:  r.state.PatternType,
		HostID:       r.state.HostID,
		Pot:          r.state.TotalPot,
		Currency:     r.state.CurrencyType,
		Prizes:       SplitPot(r.state.TotalPot),
		DrawnNumbers: r.pool.Drawn(),
		FinishedAt:   now,
	}
	if winner == nil {
		out.Exhausted = true
	} else {
		out.WinnerID = winner.UserID
		out.WinnerName = winner.Username
		id := card.ID
		out.CardID = &id
	}
	r.state.Status = StatusFinished
	r.state.AutoCall = false
	r.state.LastOutcome = out
	r.state.UpdatedAt = now
	o := *out
	o.DrawnNumbers = slices.Clone(out.DrawnNumbers)
	return &o
}

// SetAutoCall toggles timer driven calling. Host only.
func (r *Room) SetAutoCall(userID string, enabled bool) error {
	if userID != r.state.HostID {
		return ErrNotHost
	}
	if r.state.Status == StatusFinished {
		return fmt.Errorf("%w: round finished", ErrInvalidState)
	}
	r.state.AutoCall = enabled
	r.touch()
	return nil
}

// ForceAutoCall turns auto-call on without a host request. It reports whether
// anything changed.
func (r *Room) ForceAutoCall() bool {
	if r.state.AutoCall || r.state.Status != StatusInProgress {
		return false
	}
	r.state.AutoCall = true
	r.touch()
	return true
}

// NewRound resets a finished room for another game. Any member may ask.
func (r *Room) NewRound(userID string) error {
	if !r.IsMember(userID) {
		return ErrNotInRoom
	}
	if r.state.Status != StatusFinished {
		return fmt.Errorf("%w: round not finished", ErrInvalidState)
	}
	for i := range r.state.Players {
		p := &r.state.Players[i]
		p.Cards = []Card{}
		p.CardsPurchased = 0
		p.IsReady = false
	}
	r.pool.Reset()
	r.state.DrawnNumbers = []int{}
	r.state.TotalPot = 0
	r.state.AutoCall = false
	r.state.Round++
	r.state.Status = StatusWaiting
	r.touch()
	return nil
}

// CanClose reports whether userID may close the room now.
func (r *Room) CanClose(userID string) error {
	if userID != r.state.HostID {
		return ErrNotHost
	}
	if r.state.Status == StatusInProgress {
		return ErrRoomBusy
	}
	return nil
}

// Close shuts the room on the host's request.
func (r *Room) Close(userID string) ([]Refund, error) {
	if err := r.CanClose(userID); err != nil {
		return nil, err
	}
	return r.closeWithRefunds(), nil
}

// Abandon closes the room regardless of state, refunding any open round.
func (r *Room) Abandon() []Refund {
	return r.closeWithRefunds()
}

func (r *Room) closeWithRefunds() []Refund {
	var refunds []Refund
	if r.state.Status != StatusFinished {
		for _, p := range r.state.Players {
			if p.CardsPurchased == 0 {
				continue
			}
			refunds = append(refunds, Refund{
				UserID: p.UserID,
				Cards:  p.CardsPurchased,
				Amount: int64(p.CardsPurchased) * r.state.CardCost,
			})
		}
	}
	now := r.clock.Now()
	r.state.ClosedAt = &now
	r.state.AutoCall = false
	r.state.UpdatedAt = now
	return refunds
}
