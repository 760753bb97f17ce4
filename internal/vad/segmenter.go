// Package vad implements the voice-activity segmenter that turns a raw
// audio stream into discrete utterances.
//
// The segmenter feeds fixed-size windows to a stateful speech classifier
// and applies duration hysteresis in both directions: speech has to persist
// for a minimum run before an utterance opens, and silence has to persist
// for a minimum run before it closes. Short noise bursts and brief gaps
// inside continuous speech therefore do not flip the state.
package vad

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/samtale/samtale/domain/repositories"
	"github.com/samtale/samtale/internal/audio"
)

// EventType distinguishes utterance boundary events.
type EventType string

const (
	EventSpeechStart EventType = "speech_start"
	EventSpeechEnd   EventType = "speech_end"
)

// Event is an utterance boundary detected by the segmenter. Audio carries
// the full buffered utterance on EventSpeechEnd and is nil otherwise.
type Event struct {
	Type  EventType
	Audio []float32
}

// Config holds the segmentation thresholds. Durations are converted to
// sample counts at SampleRate.
type Config struct {
	SampleRate int           // classifier rate, 16 kHz in the reference setup
	WindowSize int           // samples per classifier window, a model constraint
	Threshold  float64       // speech probability cutoff
	MinSpeech  time.Duration // sustained speech required to open an utterance
	MinSilence time.Duration // sustained silence required to close one
}

// Segmenter is the two-state utterance detector. It owns its classifier:
// the classifier carries hidden state across windows, so sharing one across
// segmenters would corrupt both.
type Segmenter struct {
	cfg        Config
	classifier repositories.SpeechClassifier
	logger     *zap.Logger

	minSpeechSamples  int
	minSilenceSamples int

	active         bool
	speechSamples  int
	silenceSamples int
	buffer         []float32
}

// NewSegmenter creates an idle segmenter around the given classifier.
func NewSegmenter(cfg Config, classifier repositories.SpeechClassifier, logger *zap.Logger) *Segmenter {
	return &Segmenter{
		cfg:               cfg,
		classifier:        classifier,
		logger:            logger,
		minSpeechSamples:  int(cfg.MinSpeech.Seconds() * float64(cfg.SampleRate)),
		minSilenceSamples: int(cfg.MinSilence.Seconds() * float64(cfg.SampleRate)),
	}
}

// Active reports whether an utterance is currently open.
func (s *Segmenter) Active() bool {
	return s.active
}

// Reset forces the segmenter back to idle, clearing counters, the buffered
// audio and the classifier's hidden state.
func (s *Segmenter) Reset() {
	s.classifier.Reset()
	s.active = false
	s.speechSamples = 0
	s.silenceSamples = 0
	s.buffer = nil
}

// Process consumes an arbitrary-length audio buffer, re-chunked into fixed
// windows with a zero-padded trailing window. It returns the last boundary
// event observed during the call, or nil when no transition happened.
//
// The classifier must see every window in order, so Process never skips
// windows even while idle.
func (s *Segmenter) Process(samples []float32) (*Event, error) {
	var event *Event

	for offset := 0; offset < len(samples); offset += s.cfg.WindowSize {
		window := audio.Window(samples, offset, s.cfg.WindowSize)

		prob, err := s.classifier.Probability(window, s.cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("classify window: %w", err)
		}

		if e := s.step(window, prob >= s.cfg.Threshold); e != nil {
			event = e
		}
	}

	return event, nil
}

// step advances the state machine by one classified window.
func (s *Segmenter) step(window []float32, speech bool) *Event {
	if s.active {
		s.buffer = append(s.buffer, window...)

		if speech {
			s.silenceSamples = 0
			return nil
		}

		s.silenceSamples += len(window)
		if s.silenceSamples < s.minSilenceSamples {
			return nil
		}

		utterance := s.buffer
		s.logger.Debug("Utterance closed",
			zap.Int("samples", len(utterance)),
			zap.Int("silenceSamples", s.silenceSamples))

		s.active = false
		s.buffer = nil
		s.speechSamples = 0
		s.silenceSamples = 0
		return &Event{Type: EventSpeechEnd, Audio: utterance}
	}

	if !speech {
		// Isolated blips do not carry over.
		s.speechSamples = 0
		s.buffer = nil
		return nil
	}

	s.silenceSamples = 0
	s.speechSamples += len(window)
	s.buffer = append(s.buffer, window...)

	if s.speechSamples < s.minSpeechSamples {
		return nil
	}

	// The pending buffer rides across the transition so the start of the
	// utterance is not clipped.
	s.active = true
	s.logger.Debug("Utterance opened", zap.Int("preTriggerSamples", len(s.buffer)))
	return &Event{Type: EventSpeechStart}
}
