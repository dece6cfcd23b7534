package bingoqueue

import "github.com/google/uuid"

const (
	kindStartGame = "bingo_start_game"
	kindIdleCheck = "bingo_idle_check"

	// queueName is the dedicated River queue for bingo jobs.
	queueName = "bingo"
)

// StartGameJob starts a room's game at its scheduled time.
type StartGameJob struct {
	RoomID   uuid.UUID `json:"room_id"`
	RoomCode string    `json:"room_code"`
	HostID   string    `json:"host_id"`
}

// Kind returns the job type identifier for River
func (StartGameJob) Kind() string { return kindStartGame }

// IdleCheckJob closes a room nobody has touched for the idle TTL. It snoozes
// itself while the room is still in use.
type IdleCheckJob struct {
	RoomID   uuid.UUID `json:"room_id"`
	RoomCode string    `json:"room_code"`
}

// Kind returns the job type identifier for River
func (IdleCheckJob) Kind() string { return kindIdleCheck }

// JobInfo represents information about a scheduled job (for debugging/monitoring)
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	RoomCode    string `json:"room_code"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
