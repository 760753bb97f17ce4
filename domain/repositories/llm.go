package repositories

import (
	"context"

	"github.com/samtale/samtale/domain/entities"
)

// LanguageModel abstracts incremental text generation.
type LanguageModel interface {
	// GenerateStream produces the reply to the given conversation history
	// as a stream of text tokens. The history includes the system turn and
	// every prior exchange, in order. The channel is closed when
	// generation finishes or the context is cancelled.
	GenerateStream(ctx context.Context, history []entities.ConversationTurn) (<-chan string, error)
}
