// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file)
// and provides defaults for the server, the dialogue engine, model providers,
// and optional integrations (archive, Sentry, Better Stack, metrics auth).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
)

// Default model settings. An OpenAI-compatible endpoint defaults to DeepSeek.
const (
	DefaultOpenAIBaseURL = "https://api.deepseek.com/v1"
	DefaultOpenAIModels  = "deepseek-chat"
	DefaultGeminiModels  = "gemini-2.5-flash,gemini-2.5-flash-lite"
	DefaultGroqModels    = "llama-3.3-70b-versatile,llama-3.1-8b-instant"
	DefaultLLMProviders  = "openai,gemini,groq"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	ServerName      string // Service name attached to every log record
	InstanceID      string // Optional instance identifier (defaults to hostname)

	// Data Configuration
	DataDir  string // Data directory for SQLite database
	Timezone string // IANA zone used to resolve relative dates

	// Dialogue Configuration
	Chat ChatConfig

	// LLM Configuration
	LLMProviders  []string      // Provider order for fallback: openai, gemini, groq
	LLMTimeout    time.Duration // Budget for all model calls of one turn
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModels  []string
	GeminiAPIKey  string
	GeminiModels  []string
	GroqAPIKey    string
	GroqModels    []string

	// Archive (S3-compatible object storage, e.g. Cloudflare R2)
	ArchiveEnabled         bool
	ArchiveAccountID       string
	ArchiveEndpoint        string
	ArchiveAccessKeyID     string
	ArchiveSecretAccessKey string
	ArchiveBucketName      string
	ArchivePrefix          string

	// Sentry (Better Stack Errors)
	SentryEnabled     bool
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentryRelease     string
	SentrySampleRate  float64

	// Better Stack Logs
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword    string
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	LoadDotEnv()

	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads a .env file into the environment if one exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	chatDefaults := DefaultChatConfig()

	cfg := &Config{
		// Server Configuration
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		ServerName:      getEnv(EnvServerName, "uniflow-chat"),
		InstanceID:      getEnv(EnvInstanceID, ""),

		// Data Configuration
		DataDir:  getEnv(EnvDataDir, getDefaultDataDir()),
		Timezone: getEnv(EnvTimezone, "Asia/Shanghai"),

		// Dialogue Configuration
		Chat: ChatConfig{
			SessionTTL:           getDurationEnv(EnvSessionTTL, chatDefaults.SessionTTL),
			SessionSweepInterval: getDurationEnv(EnvSessionSweepInterval, chatDefaults.SessionSweepInterval),
			PublishThreshold:     getFloatEnv(EnvPublishThreshold, chatDefaults.PublishThreshold),
			HistoryLimit:         getIntEnv(EnvHistoryLimit, chatDefaults.HistoryLimit),
			MaxTurns:             getIntEnv(EnvMaxTurns, chatDefaults.MaxTurns),
			MaxMessageLength:     getIntEnv(EnvMaxMessageLength, chatDefaults.MaxMessageLength),
			TurnRateBurst:        getFloatEnv(EnvChatRateBurst, chatDefaults.TurnRateBurst),
			TurnRatePerHour:      getFloatEnv(EnvChatRateRefill, chatDefaults.TurnRatePerHour),
			TurnDailyLimit:       getIntEnv(EnvChatRateDaily, chatDefaults.TurnDailyLimit),
			GlobalRateLimitRPS:   getFloatEnv(EnvGlobalRateRPS, chatDefaults.GlobalRateLimitRPS),
		},

		// LLM Configuration
		LLMProviders:  getListEnv(EnvLLMProviders, DefaultLLMProviders),
		LLMTimeout:    getDurationEnv(EnvLLMTimeout, LLMRequest),
		OpenAIAPIKey:  getEnv(EnvOpenAIAPIKey, ""),
		OpenAIBaseURL: getEnv(EnvOpenAIBaseURL, DefaultOpenAIBaseURL),
		OpenAIModels:  getListEnv(EnvOpenAIModels, DefaultOpenAIModels),
		GeminiAPIKey:  getEnv(EnvGeminiAPIKey, ""),
		GeminiModels:  getListEnv(EnvGeminiModels, DefaultGeminiModels),
		GroqAPIKey:    getEnv(EnvGroqAPIKey, ""),
		GroqModels:    getListEnv(EnvGroqModels, DefaultGroqModels),

		// Archive
		ArchiveEnabled:         getBoolEnv(EnvArchiveEnabled, false),
		ArchiveAccountID:       getEnv(EnvArchiveAccountID, ""),
		ArchiveEndpoint:        getEnv(EnvArchiveEndpoint, ""),
		ArchiveAccessKeyID:     getEnv(EnvArchiveAccessKeyID, ""),
		ArchiveSecretAccessKey: getEnv(EnvArchiveSecretAccessKey, ""),
		ArchiveBucketName:      getEnv(EnvArchiveBucketName, ""),
		ArchivePrefix:          getEnv(EnvArchivePrefix, "events"),

		// Sentry
		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:     getEnv(EnvSentryRelease, ""),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		// Better Stack
		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		// Metrics Authentication
		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),
	}

	// Feature switches gate their credentials so a stray token does nothing.
	if !cfg.BetterStackEnabled {
		cfg.BetterStackToken = ""
	}
	if !cfg.SentryEnabled {
		cfg.SentryToken = ""
	}

	return cfg
}

// Validate checks if required configuration values are set.
// Missing model credentials are reported as errors.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.ShutdownTimeout))
	}
	if err := c.Chat.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chat config: %w", err))
	}

	if !c.HasLLMProvider() {
		errs = append(errs, fmt.Errorf("%w: at least one of %s, %s, %s is required",
			apperrors.ErrConfiguration, EnvOpenAIAPIKey, EnvGeminiAPIKey, EnvGroqAPIKey))
	}
	if c.LLMTimeout < LLMMinRetryBudget {
		errs = append(errs, fmt.Errorf("LLM_TIMEOUT must be at least %v, got %v", LLMMinRetryBudget, c.LLMTimeout))
	}
	if c.LLMTimeout >= HTTPWrite {
		errs = append(errs, fmt.Errorf("LLM_TIMEOUT must be below the HTTP write timeout %v, got %v", HTTPWrite, c.LLMTimeout))
	}
	for _, p := range c.LLMProviders {
		switch p {
		case "openai", "gemini", "groq":
		default:
			errs = append(errs, fmt.Errorf("%w: unknown LLM provider %q", apperrors.ErrConfiguration, p))
		}
	}

	if c.ArchiveEnabled {
		if c.ArchiveBucketName == "" {
			errs = append(errs, errors.New("ARCHIVE_BUCKET_NAME is required when archive is enabled"))
		}
		if c.ArchiveAccessKeyID == "" || c.ArchiveSecretAccessKey == "" {
			errs = append(errs, errors.New("archive credentials are required when archive is enabled"))
		}
		if c.ArchiveAccountID == "" && c.ArchiveEndpoint == "" {
			errs = append(errs, errors.New("ARCHIVE_ACCOUNT_ID or ARCHIVE_ENDPOINT is required when archive is enabled"))
		}
	}

	if c.SentryEnabled && (c.SentryToken == "" || c.SentryHost == "") {
		errs = append(errs, errors.New("SENTRY_TOKEN and SENTRY_HOST are required when Sentry is enabled"))
	}
	if c.BetterStackEnabled && c.BetterStackToken == "" {
		errs = append(errs, errors.New("BETTERSTACK_TOKEN is required when Better Stack is enabled"))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, errors.New("METRICS_PASSWORD is required when metrics auth is enabled"))
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping blanks and lower-casing nothing.
func getListEnv(key, defaultValue string) []string {
	return splitList(getEnv(key, defaultValue))
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "events.db")
}

// HasLLMProvider returns true if at least one LLM provider is configured.
func (c *Config) HasLLMProvider() bool {
	return c.OpenAIAPIKey != "" || c.GeminiAPIKey != "" || c.GroqAPIKey != ""
}

// ArchiveEndpointURL returns the S3 endpoint, deriving the R2 URL from the account ID.
func (c *Config) ArchiveEndpointURL() string {
	if c.ArchiveEndpoint != "" {
		return c.ArchiveEndpoint
	}
	if c.ArchiveAccountID == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.ArchiveAccountID)
}
