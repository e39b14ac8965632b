// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "UNIFLOW_PORT"
	EnvLogLevel        = "UNIFLOW_LOG_LEVEL"
	EnvShutdownTimeout = "UNIFLOW_SHUTDOWN_TIMEOUT"
	EnvServerName      = "UNIFLOW_SERVER_NAME"
	EnvInstanceID      = "UNIFLOW_INSTANCE_ID"

	// Data
	EnvDataDir  = "UNIFLOW_DATA_DIR"
	EnvTimezone = "UNIFLOW_TIMEZONE"

	// Dialogue
	EnvSessionTTL           = "UNIFLOW_SESSION_TTL"
	EnvSessionSweepInterval = "UNIFLOW_SESSION_SWEEP_INTERVAL"
	EnvPublishThreshold     = "UNIFLOW_PUBLISH_THRESHOLD"
	EnvHistoryLimit         = "UNIFLOW_HISTORY_LIMIT"
	EnvMaxTurns             = "UNIFLOW_MAX_TURNS"
	EnvMaxMessageLength     = "UNIFLOW_MAX_MESSAGE_LENGTH"

	// Rate Limits
	EnvGlobalRateRPS  = "UNIFLOW_GLOBAL_RATE_RPS"
	EnvChatRateBurst  = "UNIFLOW_CHAT_RATE_BURST"
	EnvChatRateRefill = "UNIFLOW_CHAT_RATE_REFILL"
	EnvChatRateDaily  = "UNIFLOW_CHAT_RATE_DAILY"

	// LLM
	EnvLLMProviders  = "UNIFLOW_LLM_PROVIDERS"
	EnvLLMTimeout    = "UNIFLOW_LLM_TIMEOUT"
	EnvOpenAIAPIKey  = "UNIFLOW_OPENAI_API_KEY"
	EnvOpenAIBaseURL = "UNIFLOW_OPENAI_BASE_URL"
	EnvOpenAIModels  = "UNIFLOW_OPENAI_MODELS"
	EnvGeminiAPIKey  = "UNIFLOW_GEMINI_API_KEY"
	EnvGeminiModels  = "UNIFLOW_GEMINI_MODELS"
	EnvGroqAPIKey    = "UNIFLOW_GROQ_API_KEY"
	EnvGroqModels    = "UNIFLOW_GROQ_MODELS"

	// Archive Feature
	EnvArchiveEnabled         = "UNIFLOW_ARCHIVE_ENABLED"
	EnvArchiveAccountID       = "UNIFLOW_ARCHIVE_ACCOUNT_ID"
	EnvArchiveEndpoint        = "UNIFLOW_ARCHIVE_ENDPOINT"
	EnvArchiveAccessKeyID     = "UNIFLOW_ARCHIVE_ACCESS_KEY_ID"
	EnvArchiveSecretAccessKey = "UNIFLOW_ARCHIVE_SECRET_ACCESS_KEY"
	EnvArchiveBucketName      = "UNIFLOW_ARCHIVE_BUCKET_NAME"
	EnvArchivePrefix          = "UNIFLOW_ARCHIVE_PREFIX"

	// Sentry Feature
	EnvSentryEnabled     = "UNIFLOW_SENTRY_ENABLED"
	EnvSentryToken       = "UNIFLOW_SENTRY_TOKEN"
	EnvSentryHost        = "UNIFLOW_SENTRY_HOST"
	EnvSentryEnvironment = "UNIFLOW_SENTRY_ENVIRONMENT"
	EnvSentryRelease     = "UNIFLOW_SENTRY_RELEASE"
	EnvSentrySampleRate  = "UNIFLOW_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackEnabled  = "UNIFLOW_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "UNIFLOW_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "UNIFLOW_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "UNIFLOW_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "UNIFLOW_METRICS_USERNAME"
	EnvMetricsPassword    = "UNIFLOW_METRICS_PASSWORD"
)
