package repositories

// SpeechClassifier scores fixed-size audio windows for speech content.
//
// Implementations are stateful across calls and must see every window in
// order, so one classifier instance belongs to exactly one segmenter and is
// never shared between sessions.
type SpeechClassifier interface {
	// Probability returns the speech probability in [0, 1] for one window
	// of mono float32 samples at the given rate.
	Probability(window []float32, sampleRate int) (float64, error)

	// Reset clears the classifier's internal state. Called together with
	// the owning segmenter's reset.
	Reset()
}
