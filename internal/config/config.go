package config

import (
	"fmt"
	"time"
)

const (
	LLMProviderOpenAI = "openai"
	LLMProviderGemini = "gemini"
)

type Config struct {
	Env                        string
	DiscordToken               string
	DiscordGuildID             string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	DefaultLanguage            string
	LLMProvider                string
	OpenAIAPIKey               string
	OpenAIBaseURL              string
	OpenAIModel                string
	GeminiAPIKey               string
	GeminiModel                string
	SettingsFile               string
	ConversationLogFile        string
	DatabaseURL                string
	VoicePresetsFile           string
	ThinkingSoundOgg           string
	ThinkingSoundMP3           string
	CaptureSilenceMs           int
	CaptureMinDurationMs       int
	CaptureMaxAgeMin           int
	CaptureSweepIntervalSec    int
	CaptureTempDir             string
	CaptureVADMode             int
	HistoryMaxMessages         int
	WakeWordPhonetic           bool
	MediaTimeoutSec            int
	YtDlpPath                  string
	FFmpegPath                 string
	YtDlpCookiesFile           string
	YtDlpCookiesBrowser        string
	ConversationWebhookURL     string
	OpsAddr                    string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.LLMProvider {
	case LLMProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=%s", LLMProviderOpenAI)
		}
	case LLMProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=%s", LLMProviderGemini)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", LLMProviderOpenAI, LLMProviderGemini, c.LLMProvider)
	}
	for _, pos := range c.positiveFieldChecks() {
		if pos.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", pos.name, pos.value)
		}
	}
	if c.CaptureVADMode < 0 || c.CaptureVADMode > 3 {
		return fmt.Errorf("CAPTURE_VAD_MODE must be between 0 and 3, got %d", c.CaptureVADMode)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "DEFAULT_LANGUAGE", value: c.DefaultLanguage},
		{name: "SETTINGS_FILE", value: c.SettingsFile},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveFieldChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "CAPTURE_SILENCE_MS", value: c.CaptureSilenceMs},
		{name: "CAPTURE_MIN_DURATION_MS", value: c.CaptureMinDurationMs},
		{name: "CAPTURE_MAX_AGE_MIN", value: c.CaptureMaxAgeMin},
		{name: "CAPTURE_SWEEP_INTERVAL_SEC", value: c.CaptureSweepIntervalSec},
		{name: "HISTORY_MAX_MESSAGES", value: c.HistoryMaxMessages},
		{name: "MEDIA_TIMEOUT_SEC", value: c.MediaTimeoutSec},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) SilenceTimeout() time.Duration {
	return time.Duration(c.CaptureSilenceMs) * time.Millisecond
}

func (c *Config) MinCaptureDuration() time.Duration {
	return time.Duration(c.CaptureMinDurationMs) * time.Millisecond
}

func (c *Config) CaptureMaxAge() time.Duration {
	return time.Duration(c.CaptureMaxAgeMin) * time.Minute
}

func (c *Config) CaptureSweepInterval() time.Duration {
	return time.Duration(c.CaptureSweepIntervalSec) * time.Second
}

func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.MediaTimeoutSec) * time.Second
}

func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
