package entities

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Phase is the advisory pipeline state reflected to the client through
// STATUS frames. It is informational only; no phase blocks inbound audio.
type Phase string

const (
	PhaseReady     Phase = "ready"
	PhaseListening Phase = "listening"
	PhaseThinking  Phase = "thinking"
	PhaseSpeaking  Phase = "speaking"
)

// ConversationTurn is one role-tagged text turn. History is replayed
// verbatim as generation context, so order is meaningful.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the per-connection conversation state. It lives exactly as
// long as its connection and is owned by a single connection handler; there
// is no cross-session sharing and no persistence.
type Session struct {
	ID        string
	CreatedAt time.Time

	history []ConversationTurn
	phase   Phase
}

// NewSession creates a session whose history is seeded with the persona
// prompt as a system turn.
func NewSession(personaPrompt string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		phase:     PhaseReady,
	}
	s.history = append(s.history, ConversationTurn{
		Role:      RoleSystem,
		Content:   personaPrompt,
		Timestamp: s.CreatedAt,
	})
	return s
}

// AddTurn appends a turn to the conversation history. History is
// append-only; turns are never rewritten or reordered.
func (s *Session) AddTurn(role Role, content string) {
	s.history = append(s.history, ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// History returns a copy of the conversation history in chronological
// order. The copy keeps callers from mutating turns the session still owns.
func (s *Session) History() []ConversationTurn {
	history := make([]ConversationTurn, len(s.history))
	copy(history, s.history)
	return history
}

// Len returns the number of turns, including the system seed.
func (s *Session) Len() int {
	return len(s.history)
}

// SetPhase records the advisory pipeline phase.
func (s *Session) SetPhase(p Phase) {
	s.phase = p
}

// Phase returns the advisory pipeline phase.
func (s *Session) Phase() Phase {
	return s.phase
}
