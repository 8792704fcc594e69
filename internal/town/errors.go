package town

import "errors"

var (
	// ErrPlayerNotFound is returned when an operation names a player
	// that is not (or no longer) registered with the controller.
	ErrPlayerNotFound = errors.New("town: player not found")

	// ErrSessionNotFound is returned by destroySession-style operations
	// given an unknown or already-destroyed session.
	ErrSessionNotFound = errors.New("town: session not found")

	// ErrAreaInactiveTopic, ErrAreaDuplicateLabel and ErrAreaOverlap are
	// the three rejection causes for AddConversationArea (spec §7
	// ErrorKind 2). AddConversationArea itself returns only a bool per
	// spec §4.1; AddConversationAreaErr exposes the cause for callers
	// (tests, HTTP handlers wanting a 400 message) that need it.
	ErrAreaInactiveTopic  = errors.New("town: conversation area has no active topic")
	ErrAreaDuplicateLabel = errors.New("town: conversation area label already in use")
	ErrAreaOverlap        = errors.New("town: conversation area overlaps an existing area")

	// ErrAreaRejected is AddConversationAreaErr's result when its
	// pre-check passes but a racing mutation (an area with the same
	// label or an overlapping box) is installed before its second locked
	// section; the specific cause is not reported in that case.
	ErrAreaRejected = errors.New("town: conversation area rejected")
)
