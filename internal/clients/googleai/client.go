package googleai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"voice-assistant/internal/callsession"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voice/prompt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrEmptyResponse = errors.New("gemini returned no text")

type generateFunc func(ctx context.Context, history []*genai.Content, utterance string) (string, error)

// Reasoner answers caller utterances with Gemini.
type Reasoner struct {
	client   *genai.Client
	generate generateFunc
	logger   *observability.Logger
}

// NewReasoner creates the Gemini client once; it is safe for concurrent use.
func NewReasoner(ctx context.Context, apiKey, modelName string, logger *observability.Logger) (*Reasoner, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}

	model := c.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt.SystemInstruction)},
	}

	return &Reasoner{
		client:   c,
		generate: chatGenerator(model),
		logger:   logger,
	}, nil
}

func chatGenerator(model *genai.GenerativeModel) generateFunc {
	return func(ctx context.Context, history []*genai.Content, utterance string) (string, error) {
		chat := model.StartChat()
		chat.History = history

		resp, err := chat.SendMessage(ctx, genai.Text(utterance))
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", ErrEmptyResponse
		}

		var reply strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				reply.WriteString(string(text))
			}
		}
		return reply.String(), nil
	}
}

// Respond returns the next assistant utterance given the prior turns.
// Any failure degrades to prompt.FallbackReply.
func (r *Reasoner) Respond(ctx context.Context, utterance string, history []callsession.Turn) string {
	reply, err := r.generate(ctx, toContents(history), utterance)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		r.logger.Error(ctx, "failed to generate reply", err)
		return prompt.FallbackReply
	}
	return strings.TrimSpace(reply)
}

// Close releases the underlying client.
func (r *Reasoner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func toContents(history []callsession.Turn) []*genai.Content {
	if len(history) == 0 {
		return nil
	}
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := "user"
		if turn.Role == callsession.RoleAssistant {
			role = "model" // Gemini SDK expects "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return contents
}
