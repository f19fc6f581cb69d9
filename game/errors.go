package game

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPlayerNotFound   = errors.New("player not in room")
	ErrStaleConnection  = errors.New("player has reconnected on another connection")
	ErrInvalidAvatar    = errors.New("avatar must not be empty")
	ErrAvatarTaken      = errors.New("avatar already selected")
	ErrRoomFull         = errors.New("room is full")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrGameNotRunning   = errors.New("game is not running")
	ErrAlreadyFinished  = errors.New("player already finished")
)
