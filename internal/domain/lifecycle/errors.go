package lifecycle

import "errors"

var (
	// ErrStaleTransition means the trigger's precondition does not hold
	// against the issue's current state. Callers may re-read and retry.
	ErrStaleTransition = errors.New("stale transition")

	ErrInvalidStatus    = errors.New("invalid workflow status")
	ErrUnknownTrigger   = errors.New("unknown lifecycle trigger")
	ErrActorNotAllowed  = errors.New("actor not allowed for trigger")
	ErrInconsistentView = errors.New("issue projection disagrees with timeline")
)
