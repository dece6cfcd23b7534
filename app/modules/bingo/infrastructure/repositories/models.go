package bingodb

import (
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Room is the persisted snapshot of a bingo room.
type Room struct {
	bun.BaseModel     `bun:"table:bingo_rooms,alias:br"`
	ID                uuid.UUID            `bun:"id,pk,type:uuid"`
	Code              string               `bun:"code,notnull"`
	Mode              int                  `bun:"mode,notnull"`
	PatternType       string               `bun:"pattern_type,notnull"`
	Status            string               `bun:"status,notnull"`
	HostID            string               `bun:"host_id,notnull"`
	MaxPlayers        int                  `bun:"max_players,notnull"`
	MaxCardsPerPlayer int                  `bun:"max_cards_per_player,notnull"`
	CardCost          int64                `bun:"card_cost,notnull"`
	CurrencyType      string               `bun:"currency_type,notnull"`
	TotalPot          int64                `bun:"total_pot,notnull"`
	Round             int                  `bun:"round,notnull"`
	AutoCall          bool                 `bun:"auto_call,notnull"`
	DrawnNumbers      []int                `bun:"drawn_numbers,type:jsonb,notnull"`
	Players           []bingodomain.Player `bun:"players,type:jsonb,notnull"`
	LastOutcome       *bingodomain.Outcome `bun:"last_outcome,type:jsonb"`
	CreatedAt         time.Time            `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time            `bun:",nullzero,notnull,default:current_timestamp"`
	ClosedAt          *time.Time           `bun:"closed_at"`
}

// RoundResult is one finished round, kept for settlement and reporting.
type RoundResult struct {
	bun.BaseModel `bun:"table:bingo_rounds,alias:brr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid"`
	RoomID        uuid.UUID  `bun:"room_id,notnull,type:uuid"`
	RoomCode      string     `bun:"room_code,notnull"`
	Round         int        `bun:"round,notnull"`
	Mode          int        `bun:"mode,notnull"`
	PatternType   string     `bun:"pattern_type,notnull"`
	HostID        string     `bun:"host_id,notnull"`
	WinnerID      string     `bun:"winner_id,nullzero"`
	WinnerName    string     `bun:"winner_name,nullzero"`
	CardID        *uuid.UUID `bun:"card_id,type:uuid"`
	Exhausted     bool       `bun:"exhausted,notnull"`
	DrawnCount    int        `bun:"drawn_count,notnull"`
	Pot           int64      `bun:"pot,notnull"`
	CurrencyType  string     `bun:"currency_type,notnull"`
	PrizeWinner   int64      `bun:"prize_winner,notnull"`
	PrizeHost     int64      `bun:"prize_host,notnull"`
	PrizePlatform int64      `bun:"prize_platform,notnull"`
	Settled       bool       `bun:"settled,notnull"`
	SettledAt     *time.Time `bun:"settled_at"`
	FinishedAt    time.Time  `bun:"finished_at,notnull"`
}

// FromState converts a domain snapshot to its row.
func FromState(s bingodomain.RoomState) *Room {
	return &Room{
		ID:                s.ID,
		Code:              s.Code,
		Mode:              int(s.Mode),
		PatternType:       string(s.PatternType),
		Status:            string(s.Status),
		HostID:            s.HostID,
		MaxPlayers:        s.MaxPlayers,
		MaxCardsPerPlayer: s.MaxCardsPerPlayer,
		CardCost:          s.CardCost,
		CurrencyType:      string(s.CurrencyType),
		TotalPot:          s.TotalPot,
		Round:             s.Round,
		AutoCall:          s.AutoCall,
		DrawnNumbers:      s.DrawnNumbers,
		Players:           s.Players,
		LastOutcome:       s.LastOutcome,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		ClosedAt:          s.ClosedAt,
	}
}

// State converts the row back to a domain snapshot.
func (r *Room) State() bingodomain.RoomState {
	drawn := r.DrawnNumbers
	if drawn == nil {
		drawn = []int{}
	}
	players := r.Players
	if players == nil {
		players = []bingodomain.Player{}
	}
	return bingodomain.RoomState{
		ID:   r.ID,
		Code: r.Code,
		RoomConfig: bingodomain.RoomConfig{
			Mode:              bingodomain.Mode(r.Mode),
			PatternType:       bingodomain.PatternType(r.PatternType),
			MaxPlayers:        r.MaxPlayers,
			MaxCardsPerPlayer: r.MaxCardsPerPlayer,
			CardCost:          r.CardCost,
			CurrencyType:      bingodomain.Currency(r.CurrencyType),
		},
		Status:       bingodomain.Status(r.Status),
		HostID:       r.HostID,
		TotalPot:     r.TotalPot,
		Round:        r.Round,
		AutoCall:     r.AutoCall,
		DrawnNumbers: drawn,
		Players:      players,
		LastOutcome:  r.LastOutcome,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		ClosedAt:     r.ClosedAt,
	}
}

// RoundFromOutcome builds the round row for a finished round.
func RoundFromOutcome(room bingodomain.RoomState, o *bingodomain.Outcome) *RoundResult {
	return &RoundResult{
		ID:            uuid.New(),
		RoomID:        room.ID,
		RoomCode:      room.Code,
		Round:         o.Round,
		Mode:          int(room.Mode),
		PatternType:   string(o.PatternType),
		HostID:        o.HostID,
		WinnerID:      o.WinnerID,
		WinnerName:    o.WinnerName,
		CardID:        o.CardID,
		Exhausted:     o.Exhausted,
		DrawnCount:    len(o.DrawnNumbers),
		Pot:           o.Pot,
		CurrencyType:  string(o.Currency),
		PrizeWinner:   o.Prizes.Winner,
		PrizeHost:     o.Prizes.Host,
		PrizePlatform: o.Prizes.Platform,
		FinishedAt:    o.FinishedAt,
	}
}
