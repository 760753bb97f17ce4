package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samtale/samtale/domain/entities"
	"github.com/samtale/samtale/domain/repositories"
)

// MockLLM streams canned replies for local development without an API key.
type MockLLM struct {
	logger *zap.Logger
}

var _ repositories.LanguageModel = (*MockLLM)(nil)

func NewMockLLM(logger *zap.Logger) *MockLLM {
	return &MockLLM{logger: logger}
}

// GenerateStream picks a reply based on the last user turn and emits it
// word by word with a small delay to imitate network streaming.
func (m *MockLLM) GenerateStream(ctx context.Context, history []entities.ConversationTurn) (<-chan string, error) {
	var lastUser string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == entities.RoleUser {
			lastUser = history[i].Content
			break
		}
	}

	reply := "Hei! Hyggelig å snakke med deg. Hvordan har du det i dag?"
	switch {
	case strings.Contains(strings.ToLower(lastUser), "vær"):
		reply = "Jeg kan dessverre ikke sjekke været, men jeg håper sola skinner der du er!"
	case strings.Contains(strings.ToLower(lastUser), "navn"):
		reply = "Jeg heter Samtale. Hva heter du?"
	}

	m.logger.Debug("mock LLM reply", zap.String("reply", reply))

	out := make(chan string)
	go func() {
		defer close(out)
		words := strings.Fields(reply)
		for i, word := range words {
			token := word
			if i < len(words)-1 {
				token += " "
			}
			select {
			case out <- token:
			case <-ctx.Done():
				return
			}
			time.Sleep(30 * time.Millisecond)
		}
	}()

	return out, nil
}
