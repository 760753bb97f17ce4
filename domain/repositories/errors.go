package repositories

import "errors"

// Sentinel errors shared by capability implementations.
var (
	// ErrDecode marks an unsupported or corrupt audio payload. Recoverable
	// per message: the session reports it and keeps the connection alive.
	ErrDecode = errors.New("audio decode error")

	// ErrInference marks a failure inside transcription, generation or
	// synthesis. Not retried; it surfaces through the generic error path.
	ErrInference = errors.New("inference error")
)
