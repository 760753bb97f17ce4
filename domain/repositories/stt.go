package repositories

import "context"

// SpeechToText abstracts speech recognition services.
type SpeechToText interface {
	// Transcribe converts one complete utterance of mono float32 samples
	// to text. A blocking call; callers bound it with the context.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
