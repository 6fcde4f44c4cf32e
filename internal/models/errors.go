// internal/models/errors.go
package models

// ErrorCode identifies a recoverable validation failure. The codes are part of
// the wire contract and carry meaning across clients.
type ErrorCode string

const (
	ErrRoomNotFound        ErrorCode = "ROOM_NOT_FOUND"
	ErrRoomLocked          ErrorCode = "ROOM_LOCKED"
	ErrRoomFull            ErrorCode = "ROOM_FULL"
	ErrNameInvalid         ErrorCode = "NAME_INVALID"
	ErrNameTaken           ErrorCode = "NAME_TAKEN"
	ErrAlreadyHost         ErrorCode = "ALREADY_HOST"
	ErrNotHost             ErrorCode = "NOT_HOST"
	ErrNotRoundLeader      ErrorCode = "NOT_ROUND_LEADER"
	ErrRoundAlreadyStarted ErrorCode = "ROUND_ALREADY_STARTED"
	ErrInvalidCategory     ErrorCode = "INVALID_CATEGORY"
	ErrInvalidState        ErrorCode = "INVALID_STATE"
	ErrNotEnoughPlayers    ErrorCode = "NOT_ENOUGH_PLAYERS"
	ErrPlayerNoped         ErrorCode = "PLAYER_NOPED"
	ErrBoosterBlocked      ErrorCode = "BOOSTER_BLOCKED_BY_SHIELD"
)

// GameError is returned to the caller of a client command on any validation
// failure. It is sent to the offending connection only, never broadcast.
type GameError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *GameError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewGameError builds a coded error with a human-readable message.
func NewGameError(code ErrorCode, message string) *GameError {
	return &GameError{Code: code, Message: message}
}
