package game

import (
	"errors"

	"roomsync/domain"
	"roomsync/features"
	"roomsync/world"
)

var wireErrors = []error{
	domain.ErrRoomFull,
	domain.ErrRoomNotFound,
	domain.ErrNotInRoom,
	domain.ErrWrongRoomKind,
	domain.ErrInvalidPayload,
	world.ErrWorldFull,
	features.ErrUnknownFeature,
	features.ErrFeatureLimit,
}

// errorCode maps err onto the kebab-case code sent to clients.
func errorCode(err error) string {
	for _, sentinel := range wireErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "unknown-error"
}
