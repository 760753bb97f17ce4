// Package llm provides language-model adapters.
package llm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/samtale/samtale/domain/entities"
	"github.com/samtale/samtale/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.3
	defaultTopP            = 0.9
	defaultMaxOutputTokens = 256
)

// GeminiLLM implements LanguageModel using Google's Gemini API.
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	maxOutputTokens int32
}

var _ repositories.LanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini adapter. GEMINI_API_KEY must be set.
func NewGeminiLLM(logger *zap.Logger) (*GeminiLLM, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultModel
	}

	return &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     defaultTemperature,
		topP:            defaultTopP,
		maxOutputTokens: defaultMaxOutputTokens,
	}, nil
}

// GenerateStream streams the model's reply token by token. The returned
// channel closes when the stream ends; a mid-stream failure is logged and
// closes the channel early, leaving the reply truncated rather than
// retried.
func (g *GeminiLLM) GenerateStream(ctx context.Context, history []entities.ConversationTurn) (<-chan string, error) {
	contents, systemPrompt := convertHistory(history)
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: empty conversation history", repositories.ErrInference)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		TopP:            genai.Ptr(g.topP),
		MaxOutputTokens: g.maxOutputTokens,
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	out := make(chan string)
	go func() {
		defer close(out)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				g.logger.Error("Gemini stream failed", zap.Error(err))
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case out <- part.Text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// convertHistory maps conversation turns to Gemini contents. The system
// turn becomes the system instruction instead of a content entry.
func convertHistory(history []entities.ConversationTurn) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemPrompt string

	for _, turn := range history {
		switch turn.Role {
		case entities.RoleSystem:
			systemPrompt = turn.Content
		case entities.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		}
	}

	return contents, systemPrompt
}
