package bingoservice

import (
	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
)

// Real-time event names sent to room subscribers.
const (
	EventRoomState       = "bingo:room_state"
	EventNumberCalled    = "bingo:number_called"
	EventGameOver        = "bingo:game_over"
	EventNewRoundReady   = "bingo:new_round_ready"
	EventAutoCallToggled = "bingo:auto_call_toggled"
	EventAutoCallForced  = "bingo:auto_call_forced"
	EventPlayerJoined    = "bingo:player_joined"
	EventPlayerLeft      = "bingo:player_left"
	EventGameStarted     = "bingo:game_started"
	EventRoomClosed      = "bingo:room_closed"
	EventError           = "bingo:error"
)

// Event is one message fanned out to a room's subscribers.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type NumberCalledData struct {
	Number       int   `json:"number"`
	DrawnNumbers []int `json:"drawn_numbers"`
	Remaining    int   `json:"remaining"`
	Auto         bool  `json:"auto"`
}

type NewRoundReadyData struct {
	Round int                   `json:"round"`
	Room  bingodomain.RoomState `json:"room"`
}

type AutoCallData struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

type PlayerData struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	PlayerCount int    `json:"player_count"`
}

type RoomClosedData struct {
	Reason string `json:"reason"`
}
