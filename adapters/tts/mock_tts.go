package tts

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/samtale/samtale/domain/repositories"
)

// MockTTS synthesizes a quiet sine tone whose length tracks the text,
// for local development without an API key.
type MockTTS struct {
	sampleRate int
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

func NewMockTTS(sampleRate int, logger *zap.Logger) *MockTTS {
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	return &MockTTS{sampleRate: sampleRate, logger: logger}
}

func (m *MockTTS) SampleRate() int {
	return m.sampleRate
}

// SynthesizeStream emits roughly 60ms of tone per character, chunked the
// way the real adapter chunks network reads.
func (m *MockTTS) SynthesizeStream(ctx context.Context, text string) (<-chan []float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, repositories.ErrInference
	}

	m.logger.Debug("mock TTS synthesis", zap.String("text", text))

	totalSamples := len(text) * m.sampleRate * 60 / 1000
	const chunkSamples = 1024

	out := make(chan []float32, 10)
	go func() {
		defer close(out)
		for offset := 0; offset < totalSamples; offset += chunkSamples {
			n := chunkSamples
			if offset+n > totalSamples {
				n = totalSamples - offset
			}
			chunk := make([]float32, n)
			for i := range chunk {
				t := float64(offset+i) / float64(m.sampleRate)
				chunk[i] = float32(0.1 * math.Sin(2*math.Pi*220*t))
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
