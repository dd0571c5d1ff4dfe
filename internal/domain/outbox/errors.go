package outbox

import "errors"

var (
	ErrEventNotFound  = errors.New("outbox event not found")
	ErrMissingID      = errors.New("outbox id is required")
	ErrMissingTopic   = errors.New("outbox topic is required")
	ErrMissingPayload = errors.New("outbox payload is required")
	ErrInvalidStatus  = errors.New("invalid outbox status")
)
