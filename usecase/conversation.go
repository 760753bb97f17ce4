// Package usecase orchestrates the conversation pipeline: inbound audio is
// segmented into utterances, transcribed, answered incrementally by the
// language model, and synthesized sentence by sentence while the reply is
// still being generated.
package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samtale/samtale/domain/entities"
	"github.com/samtale/samtale/domain/repositories"
	"github.com/samtale/samtale/internal/audio"
	"github.com/samtale/samtale/internal/protocol"
	"github.com/samtale/samtale/internal/vad"
)

// sentenceEnd matches a sentence-terminating punctuation mark, optionally
// followed by trailing whitespace. Reaching it flushes the buffered text to
// synthesis so playback starts before the full reply exists.
var sentenceEnd = regexp.MustCompile(`[.!?;:]\s*$`)

// SendFunc delivers one outbound frame. Implementations must preserve call
// order per connection; the pipeline relies on it for the status/text/audio
// interleaving guarantees.
type SendFunc func(frame []byte) error

// Capabilities bundles the inference collaborators the pipeline consumes.
// The bundle is constructed once at startup and shared read-only across
// connections; only classifiers are per-session, hence the factory.
type Capabilities struct {
	Decoder    repositories.AudioDecoder
	Transcribe repositories.SpeechToText
	Generate   repositories.LanguageModel
	Synthesize repositories.TextToSpeech

	// NewClassifier returns a fresh classifier for one segmenter. The
	// classifier is stateful across windows and must never be shared.
	NewClassifier func() repositories.SpeechClassifier
}

// Config holds the pipeline tuning knobs.
type Config struct {
	SampleRate       int           // pipeline rate for inbound audio
	PersonaPrompt    string        // seeded as the system turn
	Segmenter        vad.Config
	InferenceTimeout time.Duration // per model call; zero disables the guard
	MaxInflight      int           // cap on concurrent model calls across sessions
}

// ConversationService creates conversations and enforces the global
// concurrent-inference cap.
type ConversationService struct {
	caps   Capabilities
	cfg    Config
	gate   chan struct{}
	logger *zap.Logger
}

// NewConversationService creates the shared pipeline service.
func NewConversationService(caps Capabilities, cfg Config, logger *zap.Logger) *ConversationService {
	inflight := cfg.MaxInflight
	if inflight <= 0 {
		inflight = 4
	}
	return &ConversationService{
		caps:   caps,
		cfg:    cfg,
		gate:   make(chan struct{}, inflight),
		logger: logger,
	}
}

// NewConversation builds the per-connection pipeline state: a seeded
// session and a segmenter around a fresh classifier.
func (s *ConversationService) NewConversation(send SendFunc) *Conversation {
	session := entities.NewSession(s.cfg.PersonaPrompt)
	logger := s.logger.With(zap.String("sessionID", session.ID))
	return &Conversation{
		svc:       s,
		session:   session,
		segmenter: vad.NewSegmenter(s.cfg.Segmenter, s.caps.NewClassifier(), logger),
		send:      send,
		logger:    logger,
	}
}

// acquire blocks until an inference slot is free, then returns its release.
func (s *ConversationService) acquire() func() {
	s.gate <- struct{}{}
	return func() { <-s.gate }
}

// Conversation drives the pipeline for one connection. All methods run on
// the connection's receive goroutine; outbound ordering is guaranteed by
// the SendFunc.
type Conversation struct {
	svc       *ConversationService
	session   *entities.Session
	segmenter *vad.Segmenter
	send      SendFunc
	logger    *zap.Logger
}

// SessionID returns the session identifier for logging.
func (c *Conversation) SessionID() string {
	return c.session.ID
}

// HandleAudio processes one inbound audio payload. Decode failures are
// per-message and recoverable: an ERROR frame goes out and the payload is
// dropped. Any other failure is returned to the connection handler, which
// treats the connection as unusable.
func (c *Conversation) HandleAudio(ctx context.Context, payload []byte) error {
	samples, err := c.svc.caps.Decoder.Decode(payload, c.svc.cfg.SampleRate)
	if err != nil {
		c.logger.Warn("Audio decode failed", zap.Error(err))
		return c.send(protocol.ErrorFrame("audio decode error: " + err.Error()))
	}

	event, err := c.segmenter.Process(samples)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	switch event.Type {
	case vad.EventSpeechStart:
		if err := c.send(protocol.VADFrame(string(vad.EventSpeechStart))); err != nil {
			return err
		}
		return c.setStatus(entities.PhaseListening)

	case vad.EventSpeechEnd:
		if err := c.send(protocol.VADFrame(string(vad.EventSpeechEnd))); err != nil {
			return err
		}
		return c.processUtterance(ctx, event.Audio)
	}

	return nil
}

// Reset returns the segmenter and its classifier to idle. Used when
// recovering from an inference timeout.
func (c *Conversation) Reset() {
	c.segmenter.Reset()
}

// processUtterance runs transcription, generation and synthesis for one
// complete utterance, streaming results as they appear.
func (c *Conversation) processUtterance(ctx context.Context, utterance []float32) error {
	if err := c.setStatus(entities.PhaseThinking); err != nil {
		return err
	}

	text, err := c.transcribe(ctx, utterance)
	if err != nil {
		return c.recoverOrFail(err, "transcription")
	}

	if strings.TrimSpace(text) == "" {
		// Nothing intelligible: no turn is recorded.
		return c.setStatus(entities.PhaseReady)
	}

	c.logger.Info("User utterance transcribed", zap.String("text", text))
	if err := c.send(protocol.ASRFrame(text)); err != nil {
		return err
	}
	c.session.AddTurn(entities.RoleUser, text)

	if err := c.setStatus(entities.PhaseSpeaking); err != nil {
		return err
	}

	reply, err := c.streamReply(ctx)
	if err != nil {
		return c.recoverOrFail(err, "generation")
	}

	if err := c.send(protocol.LLMFrame("", true)); err != nil {
		return err
	}

	c.session.AddTurn(entities.RoleAssistant, reply)
	c.logger.Info("Assistant reply completed", zap.String("text", reply))

	return c.setStatus(entities.PhaseReady)
}

// streamReply runs one generation pass over the full history, emitting each
// token as it arrives and flushing completed sentences to synthesis. It
// returns the accumulated reply text.
func (c *Conversation) streamReply(ctx context.Context) (string, error) {
	genCtx, cancel := c.inferenceContext(ctx)
	defer cancel()

	release := c.svc.acquire()
	tokens, err := c.svc.caps.Generate.GenerateStream(genCtx, c.session.History())
	release()
	if err != nil {
		return "", err
	}

	var full, sentence strings.Builder
	for token := range tokens {
		full.WriteString(token)
		sentence.WriteString(token)

		if err := c.send(protocol.LLMFrame(token, false)); err != nil {
			return "", err
		}

		if sentenceEnd.MatchString(sentence.String()) {
			if err := c.synthesize(ctx, strings.TrimSpace(sentence.String())); err != nil {
				return "", err
			}
			sentence.Reset()
		}
	}

	if rest := strings.TrimSpace(sentence.String()); rest != "" {
		if err := c.synthesize(ctx, rest); err != nil {
			return "", err
		}
	}

	return full.String(), nil
}

// synthesize converts one sentence to speech and sends its audio chunks in
// order. Chunks are converted to s16le on the way out.
func (c *Conversation) synthesize(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	ttsCtx, cancel := c.inferenceContext(ctx)
	defer cancel()

	release := c.svc.acquire()
	chunks, err := c.svc.caps.Synthesize.SynthesizeStream(ttsCtx, text)
	if err != nil {
		release()
		return err
	}

	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		if err := c.send(protocol.AudioOutFrame(audio.FloatToPCM16(chunk))); err != nil {
			release()
			return err
		}
	}
	release()

	return ttsCtx.Err()
}

// transcribe runs speech recognition under the inference gate and timeout.
func (c *Conversation) transcribe(ctx context.Context, utterance []float32) (string, error) {
	asrCtx, cancel := c.inferenceContext(ctx)
	defer cancel()

	release := c.svc.acquire()
	defer release()

	return c.svc.caps.Transcribe.Transcribe(asrCtx, utterance, c.svc.cfg.SampleRate)
}

// inferenceContext bounds one model call with the configured timeout.
func (c *Conversation) inferenceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.svc.cfg.InferenceTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.svc.cfg.InferenceTimeout)
}

// recoverOrFail converts a timed-out model call into a recoverable error
// frame plus a segmenter reset. Every other inference failure propagates
// and tears the connection down.
func (c *Conversation) recoverOrFail(err error, stage string) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	c.logger.Warn("Inference timed out", zap.String("stage", stage), zap.Error(err))
	c.Reset()
	if sendErr := c.send(protocol.ErrorFrame(stage + " timed out")); sendErr != nil {
		return sendErr
	}
	return c.setStatus(entities.PhaseReady)
}

// setStatus records the advisory phase and reflects it to the client.
func (c *Conversation) setStatus(phase entities.Phase) error {
	c.session.SetPhase(phase)
	return c.send(protocol.StatusFrame(string(phase)))
}
