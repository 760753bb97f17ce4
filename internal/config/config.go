// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default persona prompt: a short, natural-sounding Norwegian assistant.
const defaultPersonaPrompt = "Du er en vennlig og hjelpsom norsk assistent som heter Samtale. " +
	"Du svarer alltid på norsk. Hold svarene korte og naturlige, " +
	"som i en vanlig samtale. Bruk bokmål."

// Config holds every tunable the server reads at startup.
type Config struct {
	// Server
	Port string

	// Pipeline
	SampleRate    int // inbound pipeline rate, Hz
	TTSSampleRate int // synthesis output rate, Hz
	PersonaPrompt string

	// Voice activity detection
	VADThreshold  float64
	VADWindowSize int // samples per classifier window
	MinSpeech     time.Duration
	MinSilence    time.Duration

	// Inference
	InferenceTimeout time.Duration
	MaxInflight      int

	// Audio input
	InputCodec string // "pcm16" or "opus"

	// Static assets, empty disables serving
	StaticDir string
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() Config {
	godotenv.Load()

	return Config{
		Port:             getEnv("PORT", "8080"),
		SampleRate:       getEnvInt("SAMTALE_SAMPLE_RATE", 16000),
		TTSSampleRate:    getEnvInt("SAMTALE_TTS_SAMPLE_RATE", 24000),
		PersonaPrompt:    getEnv("SAMTALE_PERSONA_PROMPT", defaultPersonaPrompt),
		VADThreshold:     getEnvFloat("SAMTALE_VAD_THRESHOLD", 0.5),
		VADWindowSize:    getEnvInt("SAMTALE_VAD_WINDOW_SIZE", 512),
		MinSpeech:        getEnvDuration("SAMTALE_VAD_MIN_SPEECH", 250*time.Millisecond),
		MinSilence:       getEnvDuration("SAMTALE_VAD_MIN_SILENCE", 700*time.Millisecond),
		InferenceTimeout: getEnvDuration("SAMTALE_INFERENCE_TIMEOUT", 60*time.Second),
		MaxInflight:      getEnvInt("SAMTALE_MAX_INFLIGHT", 4),
		InputCodec:       getEnv("SAMTALE_INPUT_CODEC", "pcm16"),
		StaticDir:        getEnv("SAMTALE_STATIC_DIR", "static"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
