package coordinator

import "errors"

var (
	// ErrEmptyReason rejects an override activation with a blank reason.
	ErrEmptyReason = errors.New("override reason must not be empty")
	// ErrBadDuration rejects a duration outside the enumerated set.
	ErrBadDuration = errors.New("override duration not allowed")
	// ErrOverrideActive rejects activation while a window is already open.
	// Callers must end the current window first.
	ErrOverrideActive = errors.New("override already active")
	// ErrOverrideInactive rejects ending a window that is not open.
	ErrOverrideInactive = errors.New("override not active")
	// ErrAlertNotFound signals a dismiss that matched nothing. Benign; the
	// HTTP layer maps it to a no-op success.
	ErrAlertNotFound = errors.New("alert not found")
)
