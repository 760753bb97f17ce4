package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/samtale/samtale/domain/repositories"
)

// MockSpeechToText is a placeholder recognizer for development without
// cloud credentials. It answers based on utterance length.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock recognizer.
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Transcribe implements repositories.SpeechToText.
func (s *MockSpeechToText) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	s.logger.Info("Mock transcription",
		zap.Int("samples", len(samples)),
		zap.Int("sampleRate", sampleRate))

	// Rough utterance duration drives the canned answer.
	switch seconds := float64(len(samples)) / float64(sampleRate); {
	case seconds > 4:
		return "Kan du fortelle meg litt om hva du kan hjelpe med?", nil
	case seconds > 1.5:
		return "Hei, hvordan går det med deg?", nil
	default:
		return "hallo", nil
	}
}
