package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

var ErrUnknownProvider = errors.New("unknown provider")

var ErrNonPositiveValue = errors.New("value must be positive")

const (
	ReasoningProviderGemini = "gemini"
	ReasoningProviderOpenAI = "openai"

	SynthesisProviderSarvam = "sarvam"
	SynthesisProviderOpenAI = "openai"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Services ServicesConfig
	Twilio   TwilioConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Call     CallConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	PublicBaseURL  string   // Externally reachable base URL, used for <Play> URLs and signature checks
	AllowedOrigins []string // CORS origins for the JSON endpoints
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	SarvamAPIKey      string
	SarvamBaseURL     string
	GeminiAPIKey      string
	GeminiModel       string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIVoice       string
	ReasoningProvider string
	SynthesisProvider string
}

// TwilioConfig holds telephony provider credentials
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	ValidateSignature bool
}

// DatabaseConfig holds the profile database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
	SSLMode  string
}

// SessionConfig holds call session storage settings
type SessionConfig struct {
	Backend      string
	TTL          time.Duration
	ReapInterval time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// KafkaConfig holds call event streaming configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether call events should be published
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// CallConfig holds the call flow tunables
type CallConfig struct {
	PINLength         int
	GatherTimeout     time.Duration
	RecordTimeout     time.Duration // silence before a recording ends
	RecordMaxLength   time.Duration
	CanonicalLanguage string // language the reasoning step answers in
	FallbackLanguage  string // used when transcription reports no language
	StepTimeout       time.Duration
	TurnTimeout       time.Duration
	AudioURLSecret    string
	AudioURLTTL       time.Duration
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}
	var err error

	// Server configuration
	if cfg.Server.Port, err = intEnv("SERVER_PORT", 8000); err != nil {
		return nil, err
	}
	cfg.Server.PublicBaseURL = strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	cfg.Server.AllowedOrigins = listEnv("ALLOWED_ORIGINS")

	// Services configuration
	if cfg.Services.SarvamAPIKey, err = requireEnv("SARVAM_API_KEY"); err != nil {
		return nil, err
	}
	cfg.Services.SarvamBaseURL = getEnvWithDefault("SARVAM_BASE_URL", "https://api.sarvam.ai")
	cfg.Services.GeminiModel = getEnvWithDefault("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.Services.OpenAIModel = getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.Services.OpenAIVoice = getEnvWithDefault("OPENAI_VOICE", "alloy")

	cfg.Services.ReasoningProvider = getEnvWithDefault("REASONING_PROVIDER", ReasoningProviderGemini)
	switch cfg.Services.ReasoningProvider {
	case ReasoningProviderGemini:
		if cfg.Services.GeminiAPIKey, err = requireEnv("GEMINI_API_KEY"); err != nil {
			return nil, err
		}
	case ReasoningProviderOpenAI:
		if cfg.Services.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("REASONING_PROVIDER %q: %w", cfg.Services.ReasoningProvider, ErrUnknownProvider)
	}

	cfg.Services.SynthesisProvider = getEnvWithDefault("SYNTHESIS_PROVIDER", SynthesisProviderSarvam)
	switch cfg.Services.SynthesisProvider {
	case SynthesisProviderSarvam:
	case SynthesisProviderOpenAI:
		if cfg.Services.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("SYNTHESIS_PROVIDER %q: %w", cfg.Services.SynthesisProvider, ErrUnknownProvider)
	}

	// Twilio configuration
	cfg.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	if cfg.Twilio.ValidateSignature, err = boolEnv("TWILIO_VALIDATE_SIGNATURE", false); err != nil {
		return nil, err
	}
	if cfg.Twilio.ValidateSignature {
		if cfg.Twilio.AuthToken == "" {
			return nil, fmt.Errorf("TWILIO_AUTH_TOKEN is not set: %w", ErrEmptyEnvironmentVariable)
		}
		if cfg.Server.PublicBaseURL == "" {
			return nil, fmt.Errorf("PUBLIC_BASE_URL is not set: %w", ErrEmptyEnvironmentVariable)
		}
	}

	// Database configuration
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}
	cfg.Database.SSLMode = getEnvWithDefault("DB_SSLMODE", "require")

	// Session configuration
	cfg.Session.Backend = getEnvWithDefault("SESSION_BACKEND", SessionBackendMemory)
	if cfg.Session.Backend != SessionBackendMemory && cfg.Session.Backend != SessionBackendRedis {
		return nil, fmt.Errorf("SESSION_BACKEND %q: %w", cfg.Session.Backend, ErrUnknownProvider)
	}
	if cfg.Session.TTL, err = positiveDurationEnv("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Session.ReapInterval, err = positiveDurationEnv("SESSION_REAP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	// Redis configuration
	cfg.Redis.Enabled = cfg.Session.Backend == SessionBackendRedis
	cfg.Redis.Host = getEnvWithDefault("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = intEnv("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// Kafka configuration
	cfg.Kafka.Brokers = listEnv("KAFKA_BROKERS")
	cfg.Kafka.Topic = getEnvWithDefault("KAFKA_TOPIC", "call-events")

	// Call flow configuration
	if cfg.Call.PINLength, err = positiveIntEnv("PIN_LENGTH", 4); err != nil {
		return nil, err
	}
	if cfg.Call.GatherTimeout, err = positiveDurationEnv("GATHER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Call.RecordTimeout, err = positiveDurationEnv("RECORD_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.Call.RecordMaxLength, err = positiveDurationEnv("RECORD_MAX_LENGTH", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.Call.CanonicalLanguage = getEnvWithDefault("CANONICAL_LANGUAGE", "en-IN")
	cfg.Call.FallbackLanguage = getEnvWithDefault("FALLBACK_LANGUAGE", "hi-IN")
	if cfg.Call.StepTimeout, err = positiveDurationEnv("STEP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Call.TurnTimeout, err = positiveDurationEnv("TURN_TIMEOUT", 45*time.Second); err != nil {
		return nil, err
	}
	cfg.Call.AudioURLSecret = os.Getenv("AUDIO_URL_SECRET")
	if cfg.Call.AudioURLTTL, err = positiveDurationEnv("AUDIO_URL_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Name, c.SSLMode)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}

func boolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}

func positiveIntEnv(key string, defaultValue int) (int, error) {
	value, err := intEnv(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s=%d: %w", key, value, ErrNonPositiveValue)
	}
	return value, nil
}

// positiveDurationEnv is durationEnv that rejects zero and negative values.
func positiveDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value, err := durationEnv(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s=%s: %w", key, value, ErrNonPositiveValue)
	}
	return value, nil
}

// listEnv splits a comma separated variable, dropping empty entries
func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
