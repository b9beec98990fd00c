package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	// Voice Live upstream
	Endpoint     string // Azure Voice Live resource endpoint (https://...)
	APIKey       string
	TenantID     string // service principal (alternative to APIKey)
	ClientID     string
	ClientSecret string
	Model        string
	APIVersion   string

	// Voice
	VoiceName        string
	VoiceEndpointID  string  // custom neural voice endpoint, optional
	VoiceTemperature float64 // 0 means upstream default

	// Turn detection (server VAD)
	VADThreshold         float64
	VADPrefixPaddingMs   int
	VADSilenceDurationMs int
	VADRemoveFillerWords bool

	// End-of-utterance detection, optional (enabled when EOUModel is set)
	EOUModel     string
	EOUThreshold float64
	EOUTimeoutMs int

	// Input audio processing
	EchoCancellation      bool
	NoiseReduction        string // noise reduction mode, empty disables
	TranscriptionModel    string // input audio transcription, optional
	TranscriptionLanguage string

	// Agent behaviour
	InstructionsFile        string
	EnableProactiveGreeting bool

	// Authentication
	AdminUsername   string
	AdminPassword   string
	SessionTokenTTL time.Duration

	// Server
	Port           int
	RedisURL       string
	RedisPassword  string
	MaxSessions    int
	SessionTimeout time.Duration
	AllowedOrigins []string
	ReadLimit      int64 // max client WebSocket message size in bytes
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Model:                   "gpt-realtime",
		APIVersion:              "2025-10-01",
		VoiceName:               "alloy",
		VADThreshold:            0.5,
		VADPrefixPaddingMs:      300,
		VADSilenceDurationMs:    500,
		EchoCancellation:        true,
		NoiseReduction:          "azure_deep_noise_suppression",
		InstructionsFile:        "agent_instructions.md",
		EnableProactiveGreeting: true,
		AdminUsername:           "admin",
		SessionTokenTTL:         12 * time.Hour,
		Port:                    8080,
		RedisURL:                "localhost:6379",
		MaxSessions:             100,
		SessionTimeout:          30 * time.Minute,
		AllowedOrigins:          []string{"*"},
		ReadLimit:               512 * 1024,
	}

	// Required: AZURE_VOICELIVE_ENDPOINT
	config.Endpoint = os.Getenv("AZURE_VOICELIVE_ENDPOINT")
	if config.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_VOICELIVE_ENDPOINT environment variable is required")
	}

	// Credentials: either an API key or a full service principal triplet
	config.APIKey = os.Getenv("AZURE_VOICELIVE_API_KEY")
	config.TenantID = os.Getenv("AZURE_TENANT_ID")
	config.ClientID = os.Getenv("AZURE_CLIENT_ID")
	config.ClientSecret = os.Getenv("AZURE_CLIENT_SECRET")
	if config.APIKey == "" && !config.HasServicePrincipal() {
		return nil, fmt.Errorf("either AZURE_VOICELIVE_API_KEY or the AZURE_TENANT_ID/AZURE_CLIENT_ID/AZURE_CLIENT_SECRET triplet is required")
	}

	if v := os.Getenv("AZURE_VOICELIVE_MODEL"); v != "" {
		config.Model = v
	}
	if v := os.Getenv("AZURE_API_VERSION"); v != "" {
		config.APIVersion = v
	}
	if v := os.Getenv("VOICE_NAME"); v != "" {
		config.VoiceName = v
	}
	config.VoiceEndpointID = os.Getenv("VOICE_ENDPOINT_ID")

	if v := os.Getenv("VOICE_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid VOICE_TEMPERATURE: %w", err)
		}
		config.VoiceTemperature = f
	}

	if v := os.Getenv("VAD_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid VAD_THRESHOLD: %w", err)
		}
		config.VADThreshold = f
	}
	if v := os.Getenv("VAD_PREFIX_PADDING_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VAD_PREFIX_PADDING_MS: %w", err)
		}
		config.VADPrefixPaddingMs = n
	}
	if v := os.Getenv("VAD_SILENCE_DURATION_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VAD_SILENCE_DURATION_MS: %w", err)
		}
		config.VADSilenceDurationMs = n
	}
	if v := os.Getenv("VAD_REMOVE_FILLER_WORDS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VAD_REMOVE_FILLER_WORDS: %w", err)
		}
		config.VADRemoveFillerWords = b
	}

	config.EOUModel = os.Getenv("EOU_MODEL")
	if v := os.Getenv("EOU_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid EOU_THRESHOLD: %w", err)
		}
		config.EOUThreshold = f
	}
	if v := os.Getenv("EOU_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EOU_TIMEOUT_MS: %w", err)
		}
		config.EOUTimeoutMs = n
	}

	if v := os.Getenv("ECHO_CANCELLATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ECHO_CANCELLATION: %w", err)
		}
		config.EchoCancellation = b
	}
	if v, ok := os.LookupEnv("NOISE_REDUCTION"); ok {
		config.NoiseReduction = v
	}
	config.TranscriptionModel = os.Getenv("TRANSCRIPTION_MODEL")
	config.TranscriptionLanguage = os.Getenv("TRANSCRIPTION_LANGUAGE")

	if v := os.Getenv("AGENT_INSTRUCTIONS_FILE"); v != "" {
		config.InstructionsFile = v
	}
	if v := os.Getenv("ENABLE_PROACTIVE_GREETING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ENABLE_PROACTIVE_GREETING: %w", err)
		}
		config.EnableProactiveGreeting = b
	}

	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		config.AdminUsername = v
	}
	config.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	if v := os.Getenv("SESSION_TOKEN_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TOKEN_TTL: %w", err)
		}
		config.SessionTokenTTL = time.Duration(n) * time.Minute
	}

	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = n
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		config.RedisURL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.RedisPassword = v
	}
	if v := os.Getenv("MAX_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = n
	}
	if v := os.Getenv("SESSION_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(n) * time.Minute
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		config.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("MAX_AUDIO_CHUNK"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_AUDIO_CHUNK: %w", err)
		}
		config.ReadLimit = n
	}

	return config, nil
}

// HasServicePrincipal reports whether a complete client-credentials triplet is configured
func (c *Config) HasServicePrincipal() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}
