package timeline

import "errors"

var (
	ErrUnknownEventType    = errors.New("unknown timeline event type")
	ErrUnknownActorType    = errors.New("unknown timeline actor type")
	ErrDescriptionRequired = errors.New("event description is required")
	ErrDescriptionTooLong  = errors.New("event description exceeds limit")
	ErrUnknownPayloadKind  = errors.New("unknown payload kind")
)
