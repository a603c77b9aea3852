package processor

//go:generate go run go.uber.org/mock/mockgen@latest -source=interfaces.go -destination=mocks_test.go -package=processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"voice-assistant/internal/callsession"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voice/audio"
)

const DefaultWebhookPath = "/voice"

const (
	BranchPINPrompt     = "pin_prompt"
	BranchPINRejected   = "pin_rejected"
	BranchAuthenticated = "authenticated"
	BranchListen        = "listen"
	BranchUnheard       = "unheard"
	BranchTurn          = "turn"
	BranchFatal         = "fatal"
)

var (
	ErrMissingCallSID     = errors.New("missing call sid")
	ErrAudioNotFound      = errors.New("audio not found")
	ErrSessionUnavailable = errors.New("session store unavailable")
	ErrEmptyAudio         = errors.New("synthesis produced no audio")
	errPanic              = errors.New("panic while handling call event")
)

const (
	msgApology   = "Sorry, an error occurred."
	msgPINPrompt = "Welcome to the voice assistant. Please enter your %d digit PIN."
	msgPINRetry  = "Sorry, that PIN was not recognised. Please enter your %d digit PIN again."
	msgGreeting  = "Hello %s, you are now signed in. How can I help you today?"
	msgGreetAnon = "You are now signed in. How can I help you today?"
	msgUnheard   = "Sorry, I could not hear you. Please say that again after the beep."
)

// Config holds the call flow tunables.
type Config struct {
	WebhookPath       string
	PINLength         int
	GatherTimeout     time.Duration
	RecordTimeout     time.Duration
	RecordMaxLength   time.Duration
	CanonicalLanguage string
	StepTimeout       time.Duration
	TurnTimeout       time.Duration
}

type noopPublisher struct{}

func (noopPublisher) PublishCallAuthenticated(context.Context, string, string) {}
func (noopPublisher) PublishTurnCompleted(context.Context, string, string, int) {}

// CallEvent is one inbound webhook from the telephony provider.
type CallEvent struct {
	CallSID      string
	Digits       string
	RecordingURL string
}

// CallProcessor is the per-call state machine. Each event is handled under the
// session store's per-call lock and its session changes are committed only when
// the event completes without a fatal fault.
type CallProcessor struct {
	cfg         Config
	sessions    callsession.Store
	auth        Authenticator
	recordings  RecordingFetcher
	transcriber Transcriber
	reasoner    Reasoner
	translator  Translator
	synthesizer Synthesizer
	events      EventPublisher
	metrics     *observability.CallMetrics
	logger      *observability.Logger
}

// Dependencies groups the collaborators of a CallProcessor.
type Dependencies struct {
	Sessions    callsession.Store
	Auth        Authenticator
	Recordings  RecordingFetcher
	Transcriber Transcriber
	Reasoner    Reasoner
	Translator  Translator
	Synthesizer Synthesizer
	Events      EventPublisher
	Metrics     *observability.CallMetrics
}

// withDefaults fills unset or non-positive tunables.
func (c Config) withDefaults() Config {
	if c.WebhookPath == "" {
		c.WebhookPath = DefaultWebhookPath
	}
	if c.PINLength <= 0 {
		c.PINLength = 4
	}
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = 10 * time.Second
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = 3 * time.Second
	}
	if c.RecordMaxLength <= 0 {
		c.RecordMaxLength = 30 * time.Second
	}
	if c.CanonicalLanguage == "" {
		c.CanonicalLanguage = "en-IN"
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 10 * time.Second
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 45 * time.Second
	}
	return c
}

func New(cfg Config, deps Dependencies, logger *observability.Logger) *CallProcessor {
	cfg = cfg.withDefaults()
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	return &CallProcessor{
		cfg:         cfg,
		sessions:    deps.Sessions,
		auth:        deps.Auth,
		recordings:  deps.Recordings,
		transcriber: deps.Transcriber,
		reasoner:    deps.Reasoner,
		translator:  deps.Translator,
		synthesizer: deps.Synthesizer,
		events:      deps.Events,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// HandleEvent runs the state machine for ev and always returns a well formed reply.
// Fatal faults, including panics, become a single spoken apology.
func (p *CallProcessor) HandleEvent(ctx context.Context, ev CallEvent) (reply Reply) {
	ev.CallSID = strings.TrimSpace(ev.CallSID)
	ev.Digits = strings.TrimSpace(ev.Digits)
	ev.RecordingURL = strings.TrimSpace(ev.RecordingURL)

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_sid", Value: ev.CallSID})
	if ev.CallSID == "" {
		p.logger.Error(ctx, "call event rejected", ErrMissingCallSID)
		return p.fatal("validate")
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.TurnTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(ctx, "recovered from panic while handling call event", fmt.Errorf("%w: %v", errPanic, r))
			reply = p.fatal("panic")
		}
	}()

	var (
		out         Reply
		afterCommit []func()
		stage       string
	)
	err := p.sessions.Update(ctx, ev.CallSID, func(s *callsession.Session) (err error) {
		defer func() {
			if r := recover(); r != nil {
				stage = "panic"
				err = fmt.Errorf("%w: %v", errPanic, r)
			}
		}()

		out, afterCommit, stage, err = p.route(ctx, s, ev)
		return err
	})
	if err != nil {
		if stage == "" {
			stage = "session"
		}
		p.logger.Error(observability.WithFields(ctx, observability.Field{Key: "stage", Value: stage}), "call event failed", err)
		return p.fatal(stage)
	}

	for _, fn := range afterCommit {
		fn()
	}

	p.metrics.CountEvent(out.Branch)
	p.logger.Info(observability.WithFields(ctx, observability.Field{Key: "branch", Value: out.Branch}), "call event handled")
	return out
}

// route picks the branch for the session's state. It returns the reply, actions to run
// once the session is committed, and the failing stage when err is non-nil.
func (p *CallProcessor) route(ctx context.Context, s *callsession.Session, ev CallEvent) (Reply, []func(), string, error) {
	switch {
	case !s.Authenticated && ev.Digits == "":
		return p.pinPrompt(BranchPINPrompt, msgPINPrompt), nil, "", nil

	case !s.Authenticated:
		return p.authenticate(ctx, s, ev)

	case ev.RecordingURL == "":
		return Reply{Branch: BranchListen, Instructions: p.listen()}, nil, "", nil

	default:
		return p.converse(ctx, s, ev)
	}
}

func (p *CallProcessor) authenticate(ctx context.Context, s *callsession.Session, ev CallEvent) (Reply, []func(), string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, p.cfg.StepTimeout)
	started := time.Now()
	profile := p.auth.Authenticate(stepCtx, ev.Digits)
	cancel()
	p.metrics.ObserveStage("authenticate", started)

	if profile == nil {
		p.metrics.CountAuth("rejected")
		return p.pinPrompt(BranchPINRejected, msgPINRetry), nil, "", nil
	}

	p.metrics.CountAuth("accepted")
	s.Authenticate(callsession.User{ID: profile.ID, DisplayName: profile.Name()})

	greeting := msgGreetAnon
	if name := profile.Name(); name != "" {
		greeting = fmt.Sprintf(msgGreeting, name)
	}

	callSID, userID := ev.CallSID, profile.ID
	after := []func(){func() { p.events.PublishCallAuthenticated(ctx, callSID, userID) }}

	instructions := append([]Instruction{{Kind: InstructionSay, Text: greeting}}, p.listen()...)
	return Reply{Branch: BranchAuthenticated, Instructions: instructions}, after, "", nil
}

// converse runs one conversation turn: download, transcribe, reason, translate, synthesize.
func (p *CallProcessor) converse(ctx context.Context, s *callsession.Session, ev CallEvent) (Reply, []func(), string, error) {
	var recording []byte
	err := p.step(ctx, "download", func(ctx context.Context) error {
		var err error
		recording, err = p.recordings.Fetch(ctx, ev.RecordingURL)
		return err
	})
	if err != nil {
		p.logger.Error(ctx, "could not download recording", err)
		p.metrics.CountFailure("download")
		return p.unheard(), nil, "", nil
	}

	var text, language string
	err = p.step(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		text, language, err = p.transcriber.Transcribe(ctx, recording)
		return err
	})
	if err != nil {
		return Reply{}, nil, "transcribe", fmt.Errorf("failed to transcribe recording: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		p.logger.Info(ctx, "transcript was empty")
		return p.unheard(), nil, "", nil
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "language_code", Value: language})

	prior := make([]callsession.Turn, len(s.History))
	copy(prior, s.History)
	s.Append(callsession.RoleCaller, text)

	var answer string
	_ = p.step(ctx, "reason", func(ctx context.Context) error {
		answer = p.reasoner.Respond(ctx, text, prior)
		return nil
	})
	s.Append(callsession.RoleAssistant, answer)

	spoken := answer
	if !strings.EqualFold(language, p.cfg.CanonicalLanguage) {
		_ = p.step(ctx, "translate", func(ctx context.Context) error {
			spoken = p.translator.Translate(ctx, answer, language)
			return nil
		})
	}

	var clip audio.Clip
	err = p.step(ctx, "synthesize", func(ctx context.Context) error {
		var err error
		clip, err = p.synthesizer.Synthesize(ctx, spoken, language)
		return err
	})
	if err == nil && clip.Empty() {
		err = ErrEmptyAudio
	}
	if err != nil {
		return Reply{}, nil, "synthesize", fmt.Errorf("failed to synthesize reply: %w", err)
	}
	s.LastAudio = &clip

	callSID, turn := ev.CallSID, len(s.History)/2
	after := []func(){func() { p.events.PublishTurnCompleted(ctx, callSID, language, turn) }}

	instructions := append([]Instruction{{Kind: InstructionPlay, AudioCallSID: ev.CallSID}}, p.listen()...)
	return Reply{Branch: BranchTurn, Instructions: instructions}, after, "", nil
}

// step runs fn under the per-call step timeout and records its duration.
func (p *CallProcessor) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.cfg.StepTimeout)
	defer cancel()

	started := time.Now()
	err := fn(stepCtx)
	p.metrics.ObserveStage(name, started)
	return err
}

// GetAudio returns the most recent synthesized reply for a call. It never mutates state.
func (p *CallProcessor) GetAudio(ctx context.Context, callSID string) (audio.Clip, error) {
	if strings.TrimSpace(callSID) == "" {
		return audio.Clip{}, ErrMissingCallSID
	}

	s, ok, err := p.sessions.Get(ctx, callSID)
	if err != nil {
		p.logger.Error(ctx, "failed to read call session", err)
		return audio.Clip{}, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if !ok || s.LastAudio == nil || s.LastAudio.Empty() {
		return audio.Clip{}, ErrAudioNotFound
	}
	return *s.LastAudio, nil
}

func (p *CallProcessor) pinPrompt(branch, message string) Reply {
	return Reply{
		Branch: branch,
		Instructions: []Instruction{
			{
				Kind:      InstructionGather,
				Text:      fmt.Sprintf(message, p.cfg.PINLength),
				Action:    p.cfg.WebhookPath,
				NumDigits: p.cfg.PINLength,
				Timeout:   p.cfg.GatherTimeout,
			},
			// Reached only when the caller enters nothing.
			{Kind: InstructionRedirect, Action: p.cfg.WebhookPath},
		},
	}
}

func (p *CallProcessor) listen() []Instruction {
	return []Instruction{
		{
			Kind:      InstructionRecord,
			Action:    p.cfg.WebhookPath,
			Timeout:   p.cfg.RecordTimeout,
			MaxLength: p.cfg.RecordMaxLength,
		},
		// Reached only when nothing was recorded.
		{Kind: InstructionRedirect, Action: p.cfg.WebhookPath},
	}
}

func (p *CallProcessor) unheard() Reply {
	instructions := append([]Instruction{{Kind: InstructionSay, Text: msgUnheard}}, p.listen()...)
	return Reply{Branch: BranchUnheard, Instructions: instructions}
}

func (p *CallProcessor) fatal(stage string) Reply {
	p.metrics.CountFailure(stage)
	p.metrics.CountEvent(BranchFatal)
	return Reply{
		Branch:       BranchFatal,
		Instructions: []Instruction{{Kind: InstructionSay, Text: msgApology}},
	}
}
