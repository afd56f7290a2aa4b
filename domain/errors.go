package domain

import "errors"

// Room errors. The text of each error is also the wire code sent to clients.
var (
	ErrRoomFull      = errors.New("room-full")
	ErrRoomNotFound  = errors.New("room-not-found")
	ErrNotInRoom     = errors.New("not-in-room")
	ErrWrongRoomKind = errors.New("wrong-room-kind")
)

var (
	ErrInvalidPayload = errors.New("invalid-payload")
	ErrRateLimited    = errors.New("rate-limited")
)
