package world

import "errors"

// Core failure taxonomy. Operations return these wrapped with context;
// callers classify with errors.Is and are responsible for user-facing
// messaging.
var (
	// ErrNotFound indicates a referenced entity or id is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is not legal in the
	// entity's current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientResource indicates energy, credits, capacity, or a
	// cooldown requirement was not satisfied.
	ErrInsufficientResource = errors.New("insufficient resource")

	// ErrConflict indicates a concurrent settlement already consumed the
	// target (e.g. an auction that has already closed).
	ErrConflict = errors.New("conflict")

	// ErrCollaboratorUnavailable indicates an external collaborator
	// (narrative, persistence) failed. Never fatal to game state.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)
