// Package stt provides speech recognition adapters.
package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/samtale/samtale/domain/repositories"
	"github.com/samtale/samtale/internal/audio"
)

// GoogleSpeechToText implements SpeechToText using Google Cloud
// Speech-to-Text. The client is created once and is safe for concurrent
// use, so one adapter serves every session.
type GoogleSpeechToText struct {
	client   *speech.Client
	language string
	logger   *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the adapter. Credentials come from the
// standard GOOGLE_APPLICATION_CREDENTIALS machinery.
func NewGoogleSpeechToText(ctx context.Context, language string, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	if language == "" {
		language = "nb-NO"
	}

	return &GoogleSpeechToText{
		client:   client,
		language: language,
		logger:   logger,
	}, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// Transcribe runs one synchronous recognition pass over a complete
// utterance. Utterances are bounded by the segmenter's silence threshold,
// so they always fit the non-streaming API.
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(sampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: audio.FloatToPCM16(samples),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: recognize: %v", repositories.ErrInference, err)
	}

	var transcript string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			transcript += result.Alternatives[0].Transcript
		}
	}

	g.logger.Debug("Transcription completed",
		zap.Int("samples", len(samples)),
		zap.Int("chars", len(transcript)))

	return transcript, nil
}
