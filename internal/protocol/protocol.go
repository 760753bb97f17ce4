// Package protocol defines the binary WebSocket framing used between the
// browser client and the conversation server.
//
// Each frame is one tag byte followed by the payload:
//
//	0x01 HANDSHAKE  client→server  JSON client config
//	0x02 AUDIO_IN   client→server  raw encoded audio bytes
//	0x03 AUDIO_OUT  server→client  PCM s16le audio chunk
//	0x04 TEXT_ASR   server→client  JSON {"text": "..."}
//	0x05 TEXT_LLM   server→client  JSON {"text": "...", "done": bool}
//	0x06 VAD_EVENT  server→client  JSON {"event": "speech_start"|"speech_end"}
//	0x07 ERROR      server→client  JSON {"error": "..."}
//	0x08 STATUS     server→client  JSON {"status": "ready"|"listening"|"thinking"|"speaking"}
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MsgType is the one-byte tag identifying a frame's kind.
type MsgType byte

// Frame tags. The set is closed: decoding any other byte fails.
const (
	MsgHandshake MsgType = 0x01
	MsgAudioIn   MsgType = 0x02
	MsgAudioOut  MsgType = 0x03
	MsgTextASR   MsgType = 0x04
	MsgTextLLM   MsgType = 0x05
	MsgVADEvent  MsgType = 0x06
	MsgError     MsgType = 0x07
	MsgStatus    MsgType = 0x08
)

// Protocol errors returned by Decode.
var (
	ErrEmptyFrame  = errors.New("protocol: empty frame")
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// String returns the wire name of the tag.
func (t MsgType) String() string {
	switch t {
	case MsgHandshake:
		return "HANDSHAKE"
	case MsgAudioIn:
		return "AUDIO_IN"
	case MsgAudioOut:
		return "AUDIO_OUT"
	case MsgTextASR:
		return "TEXT_ASR"
	case MsgTextLLM:
		return "TEXT_LLM"
	case MsgVADEvent:
		return "VAD_EVENT"
	case MsgError:
		return "ERROR"
	case MsgStatus:
		return "STATUS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
	}
}

// valid reports whether t is one of the eight recognized tags.
func (t MsgType) valid() bool {
	return t >= MsgHandshake && t <= MsgStatus
}

// Encode prepends the tag byte to payload. The payload is copied, never
// aliased, so callers may reuse their buffers.
func Encode(t MsgType, payload []byte) []byte {
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(t)
	copy(frame[1:], payload)
	return frame
}

// Decode splits a frame into its tag and payload. It fails on an empty
// frame or an unrecognized tag byte; both wrap a protocol sentinel error.
func Decode(frame []byte) (MsgType, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	t := MsgType(frame[0])
	if !t.valid() {
		return 0, nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, frame[0])
	}
	return t, frame[1:], nil
}

// encodeJSON marshals v and wraps it in a frame of type t. The structured
// payloads below are flat string-keyed records, so marshalling cannot fail.
func encodeJSON(t MsgType, v interface{}) []byte {
	payload, _ := json.Marshal(v)
	return Encode(t, payload)
}

// StatusPayload is the STATUS record.
type StatusPayload struct {
	Status string `json:"status"`
}

// ASRPayload is the TEXT_ASR record.
type ASRPayload struct {
	Text string `json:"text"`
}

// LLMPayload is the TEXT_LLM record.
type LLMPayload struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// VADPayload is the VAD_EVENT record.
type VADPayload struct {
	Event string `json:"event"`
}

// ErrorPayload is the ERROR record.
type ErrorPayload struct {
	Error string `json:"error"`
}

// StatusFrame builds a STATUS frame.
func StatusFrame(status string) []byte {
	return encodeJSON(MsgStatus, StatusPayload{Status: status})
}

// ASRFrame builds a TEXT_ASR frame carrying a transcription.
func ASRFrame(text string) []byte {
	return encodeJSON(MsgTextASR, ASRPayload{Text: text})
}

// LLMFrame builds a TEXT_LLM frame carrying one generated token. The done
// marker is an empty-text frame with done set.
func LLMFrame(text string, done bool) []byte {
	return encodeJSON(MsgTextLLM, LLMPayload{Text: text, Done: done})
}

// VADFrame builds a VAD_EVENT frame.
func VADFrame(event string) []byte {
	return encodeJSON(MsgVADEvent, VADPayload{Event: event})
}

// ErrorFrame builds an ERROR frame.
func ErrorFrame(message string) []byte {
	return encodeJSON(MsgError, ErrorPayload{Error: message})
}

// AudioOutFrame builds an AUDIO_OUT frame around raw s16le PCM bytes.
func AudioOutFrame(pcm []byte) []byte {
	return Encode(MsgAudioOut, pcm)
}
