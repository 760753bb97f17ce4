package repositories

import "context"

// TextToSpeech abstracts speech synthesis.
type TextToSpeech interface {
	// SynthesizeStream converts text to a stream of mono float32 audio
	// chunks at SampleRate. Backends without incremental output deliver
	// the whole utterance as a single chunk. The channel is closed when
	// synthesis finishes or the context is cancelled.
	SynthesizeStream(ctx context.Context, text string) (<-chan []float32, error)

	// SampleRate is the rate of the chunks produced by SynthesizeStream.
	SampleRate() int
}
