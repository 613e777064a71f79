package room

import "errors"

// Action guard failures. Every one of these is reported only to the acting
// caller and leaves room state untouched.
var (
	// ErrRoomNotFound is returned when no live room matches the given code.
	ErrRoomNotFound = errors.New("room not found")

	// ErrUnauthorized is returned when a non-admin attempts an admin-only action.
	ErrUnauthorized = errors.New("only the room admin can do that")

	// ErrInvalidState is returned when an action is illegal for the room's
	// current status/rematch combination.
	ErrInvalidState = errors.New("action not allowed in current room state")

	// ErrRoomFull is returned when the player cap has been reached.
	ErrRoomFull = errors.New("room is full")

	// ErrGameInProgress is returned when a connection without a matching
	// durable identity tries to enter a room that is no longer lobby-like.
	ErrGameInProgress = errors.New("game already in progress")

	// ErrUpstreamFailure is returned when the question generator call fails.
	ErrUpstreamFailure = errors.New("question generation failed")
)
