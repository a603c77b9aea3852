package main

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voice/audio"
)

var (
	errUnexpectedReply = errors.New("unexpected call-control reply")
	errNoAudio         = errors.New("reply audio is empty")
)

// callReply is the part of the TwiML document the simulator inspects.
type callReply struct {
	XMLName xml.Name   `xml:"Response"`
	Say     []string   `xml:"Say"`
	Play    []string   `xml:"Play"`
	Gather  []struct{} `xml:"Gather"`
	Record  []struct{} `xml:"Record"`
}

type simulator struct {
	baseURL      string
	pin          string
	recordingURL string
	outDir       string
	client       *http.Client
	logger       *observability.Logger
}

// run places one call: start, PIN, one utterance. It returns the path of the saved reply audio.
func (s *simulator) run(ctx context.Context, callSID string) (string, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "call_sid", Value: callSID})

	reply, err := s.post(ctx, url.Values{"CallSid": {callSID}})
	if err != nil {
		return "", err
	}
	if len(reply.Gather) == 0 {
		return "", fmt.Errorf("%w: call start did not ask for a PIN", errUnexpectedReply)
	}

	reply, err = s.post(ctx, url.Values{"CallSid": {callSID}, "Digits": {s.pin}})
	if err != nil {
		return "", err
	}
	if len(reply.Record) == 0 {
		return "", fmt.Errorf("%w: PIN was not accepted: %s", errUnexpectedReply, strings.Join(reply.Say, " "))
	}
	s.logger.Info(ctx, "signed in")

	reply, err = s.post(ctx, url.Values{"CallSid": {callSID}, "RecordingUrl": {s.recordingURL}})
	if err != nil {
		return "", err
	}
	if len(reply.Play) == 0 {
		return "", fmt.Errorf("%w: no audio to play: %s", errUnexpectedReply, strings.Join(reply.Say, " "))
	}

	return s.download(ctx, callSID, strings.TrimSpace(reply.Play[0]))
}

func (s *simulator) post(ctx context.Context, form url.Values) (callReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.baseURL, "/")+"/voice", strings.NewReader(form.Encode()))
	if err != nil {
		return callReply{}, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return callReply{}, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return callReply{}, fmt.Errorf("read webhook reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return callReply{}, fmt.Errorf("%w: status %d: %s", errUnexpectedReply, resp.StatusCode, body)
	}

	var reply callReply
	if err := xml.Unmarshal(body, &reply); err != nil {
		return callReply{}, fmt.Errorf("parse webhook reply: %w", err)
	}
	return reply, nil
}

func (s *simulator) download(ctx context.Context, callSID, playURL string) (string, error) {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(playURL)
	if err != nil {
		return "", fmt.Errorf("parse play url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(ref).String(), nil)
	if err != nil {
		return "", fmt.Errorf("create audio request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: audio status %d: %s", errUnexpectedReply, resp.StatusCode, data)
	}
	if len(data) == 0 {
		return "", errNoAudio
	}

	path := filepath.Join(s.outDir, callSID+"."+extension(resp.Header.Get("Content-Type"), data))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save audio: %w", err)
	}
	return path, nil
}

func extension(contentType string, data []byte) string {
	switch {
	case strings.HasPrefix(contentType, audio.ContentType(audio.FormatMP3)):
		return audio.FormatMP3
	case strings.HasPrefix(contentType, audio.ContentType(audio.FormatWAV)):
		return audio.FormatWAV
	}
	if format := audio.DetectFormat(data); format != "" {
		return format
	}
	return "bin"
}
