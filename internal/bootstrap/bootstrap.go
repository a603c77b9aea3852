package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"
	"voice-assistant/internal/callsession"
	"voice-assistant/internal/config"
	"voice-assistant/internal/events"
	"voice-assistant/internal/jobs/scheduler"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/store"

	authProcessor "voice-assistant/internal/auth/processor"
	"voice-assistant/internal/clients/googleai"
	kafkaClient "voice-assistant/internal/clients/kafka"
	openaiClient "voice-assistant/internal/clients/openai"
	redisClient "voice-assistant/internal/clients/redis"
	"voice-assistant/internal/clients/sarvam"
	schedulerJobs "voice-assistant/internal/jobs/scheduler/jobs"
	voiceCallHandler "voice-assistant/internal/voicecall/handler"
	voiceCallProcessor "voice-assistant/internal/voicecall/processor"
	"voice-assistant/internal/voicecall/twilio"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// sessionLockMargin is added to the turn timeout to size a call's redis lock.
const sessionLockMargin = 15 * time.Second

func sessionLockTTL(turnTimeout time.Duration) time.Duration {
	return turnTimeout + sessionLockMargin
}

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store    store.Store
	Logger   *observability.Logger
	Registry *prometheus.Registry
	Metrics  *observability.CallMetrics

	// Handlers
	VoiceCallHandler voiceCallHandler.Handler

	// Background jobs
	Scheduler *scheduler.Scheduler

	// Clients (for cleanup)
	RedisClient   *redisClient.Client
	KafkaProducer *kafkaClient.Producer
	closers       []func() error
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger:    logger,
		Registry:  prometheus.NewRegistry(),
		Scheduler: scheduler.New(logger),
	}
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Metrics = observability.NewCallMetrics(deps.Registry)

	// Initialize database store
	var err error
	deps.Store, err = store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.OnClose(deps.Store.Close)

	sessions, err := deps.initSessions(cfg, logger)
	if err != nil {
		deps.Cleanup()
		return nil, err
	}

	// Initialize speech, language and reasoning clients
	sarvamClient := sarvam.NewClient(
		cfg.Services.SarvamAPIKey,
		cfg.Services.SarvamBaseURL,
		cfg.Call.CanonicalLanguage,
		cfg.Call.FallbackLanguage,
		logger,
	)

	reasoner, err := deps.initReasoner(ctx, cfg, logger)
	if err != nil {
		deps.Cleanup()
		return nil, err
	}

	var synthesizer voiceCallProcessor.Synthesizer = sarvamClient
	if cfg.Services.SynthesisProvider == config.SynthesisProviderOpenAI {
		synthesizer = openaiClient.NewSynthesizer(cfg.Services.OpenAIAPIKey, cfg.Services.OpenAIVoice, logger)
	}

	// Initialize call events
	var producer events.EventProducer
	if cfg.Kafka.Enabled() {
		deps.KafkaProducer = kafkaClient.NewProducer(kafkaClient.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
		deps.OnClose(deps.KafkaProducer.Close)
		producer = deps.KafkaProducer
	}
	publisher := events.NewPublisher(producer, logger)

	// Initialize voice call processor and handler
	callProc := voiceCallProcessor.New(voiceCallProcessor.Config{
		WebhookPath:       voiceCallProcessor.DefaultWebhookPath,
		PINLength:         cfg.Call.PINLength,
		GatherTimeout:     cfg.Call.GatherTimeout,
		RecordTimeout:     cfg.Call.RecordTimeout,
		RecordMaxLength:   cfg.Call.RecordMaxLength,
		CanonicalLanguage: cfg.Call.CanonicalLanguage,
		StepTimeout:       cfg.Call.StepTimeout,
		TurnTimeout:       cfg.Call.TurnTimeout,
	}, voiceCallProcessor.Dependencies{
		Sessions:    sessions,
		Auth:        authProcessor.NewPINAuthenticator(&deps.Store, logger),
		Recordings:  twilio.NewRecordingDownloader(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, logger),
		Transcriber: sarvamClient,
		Reasoner:    reasoner,
		Translator:  sarvamClient,
		Synthesizer: synthesizer,
		Events:      publisher,
		Metrics:     deps.Metrics,
	}, logger)

	signer := authProcessor.NewAudioTokenSigner(cfg.Call.AudioURLSecret, cfg.Call.AudioURLTTL)
	deps.VoiceCallHandler = voiceCallHandler.New(callProc, signer, cfg.Server.PublicBaseURL, logger)

	return deps, nil
}

// initSessions picks the call session backend. The memory backend gets a reaper job,
// redis expires sessions through key TTLs.
func (d *Dependencies) initSessions(cfg *config.Config, logger *observability.Logger) (callsession.Store, error) {
	if cfg.Session.Backend != config.SessionBackendRedis {
		memory := callsession.NewMemoryStore(d.Metrics)
		d.Scheduler.Register(schedulerJobs.NewSessionReaperJob(memory, logger, cfg.Session.TTL, cfg.Session.ReapInterval))
		return memory, nil
	}

	client, err := redisClient.NewClient(cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if !client.IsEnabled() {
		return nil, errors.New("redis session backend selected but redis is disabled")
	}
	d.RedisClient = client
	d.OnClose(client.Close)
	return callsession.NewRedisStore(client, cfg.Session.TTL, sessionLockTTL(cfg.Call.TurnTimeout), logger), nil
}

func (d *Dependencies) initReasoner(ctx context.Context, cfg *config.Config, logger *observability.Logger) (voiceCallProcessor.Reasoner, error) {
	if cfg.Services.ReasoningProvider == config.ReasoningProviderOpenAI {
		return openaiClient.NewReasoner(cfg.Services.OpenAIAPIKey, cfg.Services.OpenAIModel, logger), nil
	}

	reasoner, err := googleai.NewReasoner(ctx, cfg.Services.GeminiAPIKey, cfg.Services.GeminiModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	d.OnClose(reasoner.Close)
	return reasoner, nil
}

// OnClose registers fn to run during Cleanup.
func (d *Dependencies) OnClose(fn func() error) {
	d.closers = append(d.closers, fn)
}

// Cleanup closes all resources that need cleanup, most recently opened first.
func (d *Dependencies) Cleanup() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Error(context.Background(), "failed to close dependency", err)
		}
	}
	d.closers = nil
}
