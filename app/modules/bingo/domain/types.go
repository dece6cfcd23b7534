// Package bingodomain holds the pure bingo rules: cards, win patterns, the
// draw pool and the room state machine. Nothing in here is safe for
// concurrent use; the application layer serializes access per room.
package bingodomain

import (
	"crypto/rand"
	"fmt"
	mathrand "math/rand/v2"
	"time"
)

// Mode is the size of the ball pool, 75 (American) or 90 (British).
type Mode int

const (
	Mode75 Mode = 75
	Mode90 Mode = 90
)

// ParseMode validates a raw mode value.
func ParseMode(v int) (Mode, error) {
	m := Mode(v)
	if !m.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMode, v)
	}
	return m, nil
}

func (m Mode) Valid() bool { return m == Mode75 || m == Mode90 }

// PoolSize is the number of balls in a full pool for this mode.
func (m Mode) PoolSize() int { return int(m) }

// Rows returns the card grid height for this mode.
func (m Mode) Rows() int {
	if m == Mode90 {
		return 3
	}
	return 5
}

// Cols returns the card grid width for this mode.
func (m Mode) Cols() int {
	if m == Mode90 {
		return 9
	}
	return 5
}

// PatternType is the winning configuration a room plays for.
type PatternType string

const (
	PatternLine     PatternType = "line"
	PatternCorners  PatternType = "corners"
	PatternFullCard PatternType = "fullcard"
)

func (p PatternType) Valid() bool {
	switch p {
	case PatternLine, PatternCorners, PatternFullCard:
		return true
	}
	return false
}

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Currency is the platform currency a room charges cards in.
type Currency string

const (
	CurrencyCoins Currency = "coins"
	CurrencyFires Currency = "fires"
)

func (c Currency) Valid() bool { return c == CurrencyCoins || c == CurrencyFires }

// Position addresses one cell of a card grid.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// NewRandom returns a generator seeded from crypto/rand. Draw order and card
// layouts must not be predictable by players.
func NewRandom() *mathrand.Rand {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("bingo: crypto/rand unavailable: %v", err))
	}
	return mathrand.New(mathrand.NewChaCha8(seed))
}
