// Package bingoevents defines the topics and payloads the bingo service
// exchanges with the economy service over the event bus.
package bingoevents

import (
	"time"

	"github.com/google/uuid"
)

const (
	// CardsPurchasedV1 is published when a player's card count changes.
	// Negative deltas are returns and should be credited back.
	CardsPurchasedV1 = "bingo.cards.purchased.v1"

	// GameFinishedV1 is published once per finished round with the prize split.
	GameFinishedV1 = "bingo.game.finished.v1"

	// RoomClosedV1 is published when a room closes with refunds owed.
	RoomClosedV1 = "bingo.room.closed.v1"

	// WalletSettledV1 is consumed: the wallet paid out a finished round.
	WalletSettledV1 = "wallet.bingo.settled.v1"
)

type CardsPurchasedPayloadV1 struct {
	RoomID     uuid.UUID `json:"room_id"`
	RoomCode   string    `json:"room_code"`
	Round      int       `json:"round"`
	UserID     string    `json:"user_id"`
	Delta      int       `json:"delta"`
	Cards      int       `json:"cards"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type GameFinishedPayloadV1 struct {
	RoomID        uuid.UUID  `json:"room_id"`
	RoomCode      string     `json:"room_code"`
	Round         int        `json:"round"`
	HostID        string     `json:"host_id"`
	WinnerID      string     `json:"winner_id,omitempty"`
	WinnerName    string     `json:"winner_name,omitempty"`
	CardID        *uuid.UUID `json:"card_id,omitempty"`
	PatternType   string     `json:"pattern_type"`
	Exhausted     bool       `json:"exhausted"`
	Pot           int64      `json:"pot"`
	Currency      string     `json:"currency_type"`
	PrizeWinner   int64      `json:"prize_winner"`
	PrizeHost     int64      `json:"prize_host"`
	PrizePlatform int64      `json:"prize_platform"`
	FinishedAt    time.Time  `json:"finished_at"`
}

type RefundV1 struct {
	UserID string `json:"user_id"`
	Cards  int    `json:"cards"`
	Amount int64  `json:"amount"`
}

type RoomClosedPayloadV1 struct {
	RoomID   uuid.UUID  `json:"room_id"`
	RoomCode string     `json:"room_code"`
	Round    int        `json:"round"`
	Reason   string     `json:"reason"`
	Currency string     `json:"currency_type"`
	Refunds  []RefundV1 `json:"refunds"`
	ClosedAt time.Time  `json:"closed_at"`
}

type WalletSettledPayloadV1 struct {
	RoomID    uuid.UUID `json:"room_id"`
	RoomCode  string    `json:"room_code"`
	Round     int       `json:"round"`
	SettledAt time.Time `json:"settled_at"`
}
