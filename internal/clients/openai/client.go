package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"voice-assistant/internal/callsession"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voice/audio"
	"voice-assistant/internal/voice/prompt"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

const defaultSpeechURL = "https://api.openai.com/v1/audio/speech"

var (
	ErrEmptyResponse = errors.New("openai returned no text")
	ErrSpeechFailed  = errors.New("openai speech request failed")
)

type completeFunc func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...openaiOption.RequestOption) (*openai.ChatCompletion, error)

// Reasoner answers caller utterances with an OpenAI chat model.
type Reasoner struct {
	model    openai.ChatModel
	complete completeFunc
	logger   *observability.Logger
}

func NewReasoner(apiKey, model string, logger *observability.Logger) *Reasoner {
	client := openai.NewClient(
		openaiOption.WithAPIKey(apiKey),
	)
	return &Reasoner{
		model:    openai.ChatModel(model),
		complete: client.Chat.Completions.New,
		logger:   logger,
	}
}

// Respond returns the next assistant utterance given the prior turns.
// Any failure degrades to prompt.FallbackReply.
func (r *Reasoner) Respond(ctx context.Context, utterance string, history []callsession.Turn) string {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(prompt.SystemInstruction))
	for _, turn := range history {
		if turn.Role == callsession.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(turn.Text))
	}
	messages = append(messages, openai.UserMessage(utterance))

	resp, err := r.complete(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    r.model,
	})
	if err == nil && (len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "") {
		err = ErrEmptyResponse
	}
	if err != nil {
		r.logger.Error(ctx, "failed to generate reply", err)
		return prompt.FallbackReply
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// Synthesizer converts text to speech with the OpenAI TTS endpoint.
type Synthesizer struct {
	apiKey     string
	voice      string
	speechURL  string
	httpClient *http.Client
	logger     *observability.Logger
}

func NewSynthesizer(apiKey, voice string, logger *observability.Logger) *Synthesizer {
	return &Synthesizer{
		apiKey:    apiKey,
		voice:     voice,
		speechURL: defaultSpeechURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Synthesize returns MP3 speech for text. The TTS voices pick up the language from
// the text itself, so languageCode is only logged.
func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode string) (audio.Clip, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "tts_language", Value: languageCode})

	jsonBody := map[string]interface{}{
		"model":           "tts-1",
		"voice":           s.voice,
		"input":           text,
		"response_format": audio.FormatMP3,
	}
	bodyBytes, err := json.Marshal(jsonBody)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.speechURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error(ctx, "OpenAI TTS request failed", err)
		return audio.Clip{}, fmt.Errorf("OpenAI TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("%w: %d %s", ErrSpeechFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
		s.logger.Error(ctx, "OpenAI TTS returned an error", err)
		return audio.Clip{}, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to read TTS audio: %w", err)
	}
	if len(data) == 0 {
		return audio.Clip{}, fmt.Errorf("%w: empty body", ErrSpeechFailed)
	}
	return audio.Clip{Data: data, Format: audio.FormatMP3}, nil
}
