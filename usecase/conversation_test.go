package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/samtale/samtale/domain/entities"
	"github.com/samtale/samtale/domain/repositories"
	"github.com/samtale/samtale/internal/audio"
	"github.com/samtale/samtale/internal/protocol"
	"github.com/samtale/samtale/internal/vad"
)

// frameRecorder captures outbound frames in send order.
type frameRecorder struct {
	frames [][]byte
}

func (r *frameRecorder) send(frame []byte) error {
	r.frames = append(r.frames, frame)
	return nil
}

// decoded returns the tag sequence with parsed JSON payloads for
// structured frames.
func (r *frameRecorder) decoded(t *testing.T) []recordedFrame {
	t.Helper()
	var out []recordedFrame
	for i, frame := range r.frames {
		tag, payload, err := protocol.Decode(frame)
		if err != nil {
			t.Fatalf("Frame %d does not decode: %v", i, err)
		}
		rf := recordedFrame{tag: tag, raw: payload}
		if tag != protocol.MsgAudioOut {
			if err := json.Unmarshal(payload, &rf.fields); err != nil {
				t.Fatalf("Frame %d (%s) has invalid JSON payload: %v", i, tag, err)
			}
		}
		out = append(out, rf)
	}
	return out
}

type recordedFrame struct {
	tag    protocol.MsgType
	raw    []byte
	fields map[string]interface{}
}

// pcmDecoder converts s16le payloads straight to float samples.
type pcmDecoder struct {
	fail bool
}

func (d *pcmDecoder) Decode(data []byte, targetRate int) ([]float32, error) {
	if d.fail {
		return nil, fmt.Errorf("%w: corrupt payload", repositories.ErrDecode)
	}
	return audio.PCM16ToFloat(data), nil
}

// levelClassifier scores windows by their first sample, so tests drive the
// segmenter through the audio content itself.
type levelClassifier struct {
	resets int
}

func (c *levelClassifier) Probability(window []float32, sampleRate int) (float64, error) {
	if len(window) > 0 && window[0] > 0.5 {
		return 0.9, nil
	}
	return 0.1, nil
}

func (c *levelClassifier) Reset() { c.resets++ }

type fixedTranscriber struct {
	text      string
	err       error
	lastLen   int
	callCount int
}

func (s *fixedTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	s.callCount++
	s.lastLen = len(samples)
	if s.err != nil {
		return "", s.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.text, nil
}

type scriptedGenerator struct {
	tokens      []string
	lastHistory []entities.ConversationTurn
}

func (g *scriptedGenerator) GenerateStream(ctx context.Context, history []entities.ConversationTurn) (<-chan string, error) {
	g.lastHistory = history
	out := make(chan string)
	go func() {
		defer close(out)
		for _, token := range g.tokens {
			select {
			case out <- token:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type recordingSynthesizer struct {
	texts []string
	chunk []float32
}

func (s *recordingSynthesizer) SynthesizeStream(ctx context.Context, text string) (<-chan []float32, error) {
	s.texts = append(s.texts, text)
	out := make(chan []float32, 1)
	chunk := s.chunk
	if chunk == nil {
		chunk = []float32{0.1, -0.1, 0.25}
	}
	out <- chunk
	close(out)
	return out, nil
}

func (s *recordingSynthesizer) SampleRate() int { return 24000 }

type testFixture struct {
	recorder   *frameRecorder
	decoder    *pcmDecoder
	classifier *levelClassifier
	stt        *fixedTranscriber
	llm        *scriptedGenerator
	tts        *recordingSynthesizer
	conv       *Conversation
}

func newFixture(t *testing.T) *testFixture {
	f := &testFixture{
		recorder:   &frameRecorder{},
		decoder:    &pcmDecoder{},
		classifier: &levelClassifier{},
		stt:        &fixedTranscriber{text: "hallo"},
		llm:        &scriptedGenerator{tokens: []string{"Hei", ". ", "Hvordan", " går", " det", "?"}},
		tts:        &recordingSynthesizer{},
	}

	caps := Capabilities{
		Decoder:       f.decoder,
		Transcribe:    f.stt,
		Generate:      f.llm,
		Synthesize:    f.tts,
		NewClassifier: func() repositories.SpeechClassifier { return f.classifier },
	}
	cfg := Config{
		SampleRate:    16000,
		PersonaPrompt: "Du er en vennlig norsk assistent.",
		Segmenter: vad.Config{
			SampleRate: 16000,
			WindowSize: 512,
			Threshold:  0.5,
			MinSpeech:  250 * time.Millisecond,
			MinSilence: 700 * time.Millisecond,
		},
		InferenceTimeout: 5 * time.Second,
		MaxInflight:      2,
	}

	svc := NewConversationService(caps, cfg, zaptest.NewLogger(t))
	f.conv = svc.NewConversation(f.recorder.send)
	return f
}

// speechPayload is 300ms of constant-level "speech" samples as s16le.
func speechPayload() []byte {
	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = 0.8
	}
	return audio.FloatToPCM16(samples)
}

// silencePayload is 800ms of zeros as s16le.
func silencePayload() []byte {
	return audio.FloatToPCM16(make([]float32, 12800))
}

func TestEndToEndExchangeOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio(speech): %v", err)
	}
	if err := f.conv.HandleAudio(ctx, silencePayload()); err != nil {
		t.Fatalf("HandleAudio(silence): %v", err)
	}

	frames := f.recorder.decoded(t)

	// Build a compact trace: tag plus the discriminating field.
	var trace []string
	for _, fr := range frames {
		switch fr.tag {
		case protocol.MsgVADEvent:
			trace = append(trace, "vad:"+fr.fields["event"].(string))
		case protocol.MsgStatus:
			trace = append(trace, "status:"+fr.fields["status"].(string))
		case protocol.MsgTextASR:
			trace = append(trace, "asr:"+fr.fields["text"].(string))
		case protocol.MsgTextLLM:
			if fr.fields["done"] == true {
				trace = append(trace, "llm:done")
			} else {
				trace = append(trace, "llm:token")
			}
		case protocol.MsgAudioOut:
			trace = append(trace, "audio")
		default:
			trace = append(trace, fr.tag.String())
		}
	}

	want := []string{
		"vad:speech_start",
		"status:listening",
		"vad:speech_end",
		"status:thinking",
		"asr:hallo",
		"status:speaking",
		"llm:token", // Hei
		"llm:token", // ". " ends the first sentence
		"audio",
		"llm:token", // Hvordan
		"llm:token", // " går"
		"llm:token", // " det"
		"llm:token", // "?" ends the second sentence
		"audio",
		"llm:done",
		"status:ready",
	}

	if len(trace) != len(want) {
		t.Fatalf("Expected %d frames, got %d: %v", len(want), len(trace), trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("Frame %d: expected %s, got %s (full trace %v)", i, want[i], trace[i], trace)
		}
	}

	// The transcriber saw the buffered utterance, pre-trigger audio
	// included.
	if f.stt.lastLen == 0 {
		t.Error("Transcriber received no samples")
	}
}

func TestSentenceFlushInvokesSynthesisPerSentence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	if err := f.conv.HandleAudio(ctx, silencePayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}

	if len(f.tts.texts) != 2 {
		t.Fatalf("Expected 2 synthesis calls, got %d: %v", len(f.tts.texts), f.tts.texts)
	}
	if f.tts.texts[0] != "Hei." {
		t.Errorf("Expected first sentence 'Hei.', got %q", f.tts.texts[0])
	}
	if f.tts.texts[1] != "Hvordan går det?" {
		t.Errorf("Expected second sentence 'Hvordan går det?', got %q", f.tts.texts[1])
	}
}

func TestTrailingTextWithoutTerminatorIsFlushed(t *testing.T) {
	f := newFixture(t)
	f.llm.tokens = []string{"Ja", "visst ", "da"}
	ctx := context.Background()

	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	if err := f.conv.HandleAudio(ctx, silencePayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}

	if len(f.tts.texts) != 1 || f.tts.texts[0] != "Javisst da" {
		t.Errorf("Expected trailing flush of 'Javisst da', got %v", f.tts.texts)
	}
}

func TestEmptyTranscriptionShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.stt.text = "   "
	ctx := context.Background()

	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	if err := f.conv.HandleAudio(ctx, silencePayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}

	frames := f.recorder.decoded(t)
	for _, fr := range frames {
		switch fr.tag {
		case protocol.MsgTextASR, protocol.MsgTextLLM, protocol.MsgAudioOut:
			t.Errorf("Unexpected %s frame after empty transcription", fr.tag)
		}
	}

	last := frames[len(frames)-1]
	if last.tag != protocol.MsgStatus || last.fields["status"] != "ready" {
		t.Errorf("Expected final ready status, got %s %v", last.tag, last.fields)
	}

	// No turn recorded: only the system seed remains.
	if got := len(f.llm.lastHistory); got != 0 {
		t.Errorf("Generator must not run, but saw history of %d turns", got)
	}
}

func TestHistoryAccumulatesAcrossExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	if err := f.conv.HandleAudio(ctx, silencePayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}

	// system + user when generation ran.
	if len(f.llm.lastHistory) != 2 {
		t.Fatalf("Expected generator to see 2 turns, got %d", len(f.llm.lastHistory))
	}
	if f.llm.lastHistory[0].Role != entities.RoleSystem {
		t.Errorf("Expected system turn first, got %s", f.llm.lastHistory[0].Role)
	}
	if f.llm.lastHistory[1].Role != entities.RoleUser || f.llm.lastHistory[1].Content != "hallo" {
		t.Errorf("Expected user turn 'hallo', got %+v", f.llm.lastHistory[1])
	}
}

func TestDecodeErrorIsRecoverable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.decoder.fail = true
	if err := f.conv.HandleAudio(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Decode failure must not kill the session: %v", err)
	}

	frames := f.recorder.decoded(t)
	if len(frames) != 1 || frames[0].tag != protocol.MsgError {
		t.Fatalf("Expected a single ERROR frame, got %d frames", len(frames))
	}

	// The session keeps working afterwards.
	f.decoder.fail = false
	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio after recovery: %v", err)
	}
	if err := f.conv.HandleAudio(ctx, silencePayload()); err != nil {
		t.Fatalf("HandleAudio after recovery: %v", err)
	}
	if len(f.tts.texts) == 0 {
		t.Error("Expected the pipeline to complete after a decode error")
	}
}

func TestInferenceTimeoutResetsSegmenter(t *testing.T) {
	f := newFixture(t)
	f.stt.err = context.DeadlineExceeded
	ctx := context.Background()

	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	if err := f.conv.HandleAudio(ctx, silencePayload()); err != nil {
		t.Fatalf("Timeout must be recoverable: %v", err)
	}

	frames := f.recorder.decoded(t)
	sawError := false
	for _, fr := range frames {
		if fr.tag == protocol.MsgError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("Expected an ERROR frame after inference timeout")
	}
	if f.classifier.resets == 0 {
		t.Error("Expected the classifier to be reset after a timeout")
	}

	last := frames[len(frames)-1]
	if last.tag != protocol.MsgStatus || last.fields["status"] != "ready" {
		t.Errorf("Expected final ready status, got %s %v", last.tag, last.fields)
	}
}

func TestNonTimeoutInferenceErrorIsFatal(t *testing.T) {
	f := newFixture(t)
	f.stt.err = errors.New("model exploded")
	ctx := context.Background()

	if err := f.conv.HandleAudio(ctx, speechPayload()); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	err := f.conv.HandleAudio(ctx, silencePayload())
	if err == nil {
		t.Fatal("Expected transcription failure to propagate")
	}
}
