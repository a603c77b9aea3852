package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voice/audio"
)

const (
	DefaultBaseURL = "https://api.sarvam.ai"

	transcribeModel  = "saarika:v2.5"
	synthesizeModel  = "bulbul:v2"
	translateGender  = "Female"
	autoDetectLocale = "unknown"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status from sarvam")
	ErrNoAudio          = errors.New("sarvam returned no audio")
)

type transcribeResponse struct {
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

type translateRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
	SpeakerGender      string `json:"speaker_gender,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

type synthesizeRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Model              string `json:"model"`
}

type synthesizeResponse struct {
	Audios []string `json:"audios"`
}

// Client talks to the Sarvam speech and text APIs.
type Client struct {
	apiKey           string
	baseURL          string
	sourceLanguage   string
	fallbackLanguage string
	httpClient       *http.Client
	logger           *observability.Logger
}

// NewClient creates a Sarvam client. sourceLanguage is the language replies are written in,
// fallbackLanguage is reported when transcription does not detect one.
func NewClient(apiKey, baseURL, sourceLanguage, fallbackLanguage string, logger *observability.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:           apiKey,
		baseURL:          strings.TrimRight(baseURL, "/"),
		sourceLanguage:   sourceLanguage,
		fallbackLanguage: fallbackLanguage,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create sarvam request: %w", err)
	}
	req.Header.Set("api-subscription-key", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sarvam request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse sarvam response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sarvam request: %w", err)
	}
	return c.do(ctx, path, "application/json", bytes.NewReader(body), out)
}

// Transcribe converts recorded audio to text and reports the detected language.
// Errors are returned to the caller.
func (c *Client) Transcribe(ctx context.Context, recording []byte) (string, string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	filename := "audio.wav"
	if audio.DetectFormat(recording) == audio.FormatMP3 {
		filename = "audio.mp3"
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if _, err := part.Write(recording); err != nil {
		return "", "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if err := form.WriteField("model", transcribeModel); err != nil {
		return "", "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if err := form.WriteField("language_code", autoDetectLocale); err != nil {
		return "", "", fmt.Errorf("failed to build transcription form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", "", fmt.Errorf("failed to build transcription form: %w", err)
	}

	var resp transcribeResponse
	if err := c.do(ctx, "/speech-to-text", form.FormDataContentType(), &body, &resp); err != nil {
		c.logger.Error(ctx, "failed to transcribe audio", err)
		return "", "", err
	}

	language := resp.LanguageCode
	if language == "" || language == autoDetectLocale {
		language = c.fallbackLanguage
	}
	return strings.TrimSpace(resp.Transcript), language, nil
}

// Translate converts text from the source language into targetLanguage.
// On any failure the input text is returned unchanged.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	var resp translateResponse
	err := c.postJSON(ctx, "/translate", translateRequest{
		Input:              text,
		SourceLanguageCode: c.sourceLanguage,
		TargetLanguageCode: targetLanguage,
		SpeakerGender:      translateGender,
	}, &resp)
	if err != nil {
		c.logger.Error(ctx, "failed to translate reply, using untranslated text", err)
		return text
	}
	if resp.TranslatedText == "" {
		c.logger.Warn(ctx, "translation came back empty, using untranslated text")
		return text
	}
	return resp.TranslatedText
}

// Synthesize converts text to WAV speech in the given language.
func (c *Client) Synthesize(ctx context.Context, text, languageCode string) (audio.Clip, error) {
	var resp synthesizeResponse
	err := c.postJSON(ctx, "/text-to-speech", synthesizeRequest{
		Text:               text,
		TargetLanguageCode: languageCode,
		Model:              synthesizeModel,
	}, &resp)
	if err != nil {
		c.logger.Error(ctx, "failed to synthesize speech", err)
		return audio.Clip{}, err
	}
	if len(resp.Audios) == 0 || resp.Audios[0] == "" {
		return audio.Clip{}, ErrNoAudio
	}

	data, err := audio.Base64ToBytes(resp.Audios[0])
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}

	format := audio.DetectFormat(data)
	if format == "" {
		format = audio.FormatWAV
	}
	return audio.Clip{Data: data, Format: format}, nil
}
