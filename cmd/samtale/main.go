package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/samtale/samtale/adapters/audiodec"
	"github.com/samtale/samtale/adapters/llm"
	"github.com/samtale/samtale/adapters/stt"
	"github.com/samtale/samtale/adapters/tts"
	vadcls "github.com/samtale/samtale/adapters/vad"
	"github.com/samtale/samtale/domain/repositories"
	"github.com/samtale/samtale/internal/api"
	"github.com/samtale/samtale/internal/config"
	"github.com/samtale/samtale/internal/vad"
	"github.com/samtale/samtale/internal/websocket"
	"github.com/samtale/samtale/usecase"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	caps := buildCapabilities(cfg, logger)

	conversationService := usecase.NewConversationService(caps, usecase.Config{
		SampleRate:    cfg.SampleRate,
		PersonaPrompt: cfg.PersonaPrompt,
		Segmenter: vad.Config{
			SampleRate: cfg.SampleRate,
			WindowSize: cfg.VADWindowSize,
			Threshold:  cfg.VADThreshold,
			MinSpeech:  cfg.MinSpeech,
			MinSilence: cfg.MinSilence,
		},
		InferenceTimeout: cfg.InferenceTimeout,
		MaxInflight:      cfg.MaxInflight,
	}, logger)

	hub := websocket.NewHub(conversationService, logger)
	go hub.Run()

	api.InitRoutes(e, hub, cfg.StaticDir, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("inputCodec", cfg.InputCodec),
		zap.Int("sampleRate", cfg.SampleRate))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildCapabilities selects real adapters when their credentials are
// present and falls back to mocks otherwise, so the server always starts.
func buildCapabilities(cfg config.Config, logger *zap.Logger) usecase.Capabilities {
	var decoder repositories.AudioDecoder
	if cfg.InputCodec == "opus" {
		decoder = audiodec.NewOpusDecoder()
	} else {
		decoder = audiodec.NewPCMDecoder(cfg.SampleRate)
	}

	var transcribe repositories.SpeechToText
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		speechToText, err := stt.NewGoogleSpeechToText(context.Background(),
			os.Getenv("SAMTALE_STT_LANGUAGE"), logger)
		if err != nil {
			logger.Fatal("failed to create speech client", zap.Error(err))
		}
		transcribe = speechToText
	} else {
		logger.Warn("GOOGLE_APPLICATION_CREDENTIALS not set, using mock transcription")
		transcribe = stt.NewMockSpeechToText(logger)
	}

	var generate repositories.LanguageModel
	if os.Getenv("GEMINI_API_KEY") != "" {
		gemini, err := llm.NewGeminiLLM(logger)
		if err != nil {
			logger.Fatal("failed to create Gemini client", zap.Error(err))
		}
		generate = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, using mock language model")
		generate = llm.NewMockLLM(logger)
	}

	var synthesize repositories.TextToSpeech
	if os.Getenv("ELEVEN_LABS_API_KEY") != "" {
		elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("failed to create TTS client", zap.Error(err))
		}
		synthesize = elevenLabs
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY not set, using mock synthesis")
		synthesize = tts.NewMockTTS(cfg.TTSSampleRate, logger)
	}

	return usecase.Capabilities{
		Decoder:    decoder,
		Transcribe: transcribe,
		Generate:   generate,
		Synthesize: synthesize,
		NewClassifier: func() repositories.SpeechClassifier {
			return vadcls.NewEnergyClassifier()
		},
	}
}
