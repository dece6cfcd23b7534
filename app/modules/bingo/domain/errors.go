package bingodomain

import "errors"

// ErrorKind classifies a rule violation so transports can map it to a status.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindForbidden  ErrorKind = "forbidden"
	KindNotFound   ErrorKind = "not_found"
	KindExhausted  ErrorKind = "pool_exhausted"
	KindCooldown   ErrorKind = "cooldown"
)

// RuleError is a request the room rejected. It never indicates corrupted state.
type RuleError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func newRule(kind ErrorKind, code, msg string) *RuleError {
	return &RuleError{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidMode       = newRule(KindValidation, "invalid_mode", "mode must be 75 or 90")
	ErrInvalidPattern    = newRule(KindValidation, "invalid_pattern", "pattern must be line, corners or fullcard")
	ErrInvalidCurrency   = newRule(KindValidation, "invalid_currency", "currency must be coins or fires")
	ErrInvalidConfig     = newRule(KindValidation, "invalid_config", "invalid room configuration")
	ErrInvalidCardCount  = newRule(KindValidation, "invalid_card_count", "card count out of range")
	ErrInvalidPosition   = newRule(KindValidation, "invalid_position", "position does not hold that number")
	ErrNumberNotDrawn    = newRule(KindValidation, "number_not_drawn", "number has not been called yet")
	ErrNumberNotOnCard   = newRule(KindValidation, "number_not_on_card", "number is not on this card")
	ErrCardNotFound      = newRule(KindNotFound, "card_not_found", "card not found")
	ErrRoomNotFound      = newRule(KindNotFound, "room_not_found", "room not found")
	ErrNotInRoom         = newRule(KindNotFound, "not_in_room", "player is not in this room")
	ErrNotHost           = newRule(KindForbidden, "not_host", "only the host can do that")
	ErrRoomFull          = newRule(KindConflict, "room_full", "room is full")
	ErrInvalidState      = newRule(KindConflict, "invalid_state", "action not allowed in the current room state")
	ErrNoCardsPurchased  = newRule(KindConflict, "no_cards", "at least one player must buy a card before starting")
	ErrPatternIncomplete = newRule(KindConflict, "pattern_incomplete", "pattern is not complete")
	ErrRoomBusy          = newRule(KindConflict, "room_busy", "room cannot be closed while a game is running")
	ErrPoolExhausted     = newRule(KindExhausted, "pool_exhausted", "all numbers have been called")
	ErrCallCooldown      = newRule(KindCooldown, "cooldown", "wait before calling another number")
)

// AsRuleError unwraps err to a RuleError if it is one.
func AsRuleError(err error) (*RuleError, bool) {
	var re *RuleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsRuleError reports whether err is a domain rejection rather than a fault.
func IsRuleError(err error) bool {
	_, ok := AsRuleError(err)
	return ok
}
