package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected 16kHz pipeline rate, got %d", cfg.SampleRate)
	}
	if cfg.TTSSampleRate != 24000 {
		t.Errorf("Expected 24kHz synthesis rate, got %d", cfg.TTSSampleRate)
	}
	if cfg.VADThreshold != 0.5 {
		t.Errorf("Expected VAD threshold 0.5, got %f", cfg.VADThreshold)
	}
	if cfg.VADWindowSize != 512 {
		t.Errorf("Expected 512-sample windows, got %d", cfg.VADWindowSize)
	}
	if cfg.MinSpeech != 250*time.Millisecond {
		t.Errorf("Expected 250ms min speech, got %s", cfg.MinSpeech)
	}
	if cfg.MinSilence != 700*time.Millisecond {
		t.Errorf("Expected 700ms min silence, got %s", cfg.MinSilence)
	}
	if cfg.PersonaPrompt == "" {
		t.Error("Expected a default persona prompt")
	}
	if cfg.InputCodec != "pcm16" {
		t.Errorf("Expected pcm16 input codec, got %s", cfg.InputCodec)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SAMTALE_VAD_THRESHOLD", "0.75")
	t.Setenv("SAMTALE_VAD_MIN_SPEECH", "100ms")
	t.Setenv("SAMTALE_MAX_INFLIGHT", "8")
	t.Setenv("SAMTALE_INPUT_CODEC", "opus")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Expected port 9999, got %s", cfg.Port)
	}
	if cfg.VADThreshold != 0.75 {
		t.Errorf("Expected threshold 0.75, got %f", cfg.VADThreshold)
	}
	if cfg.MinSpeech != 100*time.Millisecond {
		t.Errorf("Expected 100ms min speech, got %s", cfg.MinSpeech)
	}
	if cfg.MaxInflight != 8 {
		t.Errorf("Expected 8 inflight, got %d", cfg.MaxInflight)
	}
	if cfg.InputCodec != "opus" {
		t.Errorf("Expected opus codec, got %s", cfg.InputCodec)
	}
}

func TestMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("SAMTALE_SAMPLE_RATE", "not-a-number")
	t.Setenv("SAMTALE_VAD_MIN_SILENCE", "soon")

	cfg := Load()

	if cfg.SampleRate != 16000 {
		t.Errorf("Expected fallback sample rate, got %d", cfg.SampleRate)
	}
	if cfg.MinSilence != 700*time.Millisecond {
		t.Errorf("Expected fallback min silence, got %s", cfg.MinSilence)
	}
}
