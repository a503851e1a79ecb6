package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kotodama/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	DiscordToken               string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID             string `env:"DISCORD_GUILD_ID"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	DefaultLanguage            string `env:"DEFAULT_LANGUAGE" envDefault:"en-US"`
	LLMProvider                string `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey               string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL              string `env:"OPENAI_BASE_URL"`
	OpenAIModel                string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey               string `env:"GEMINI_API_KEY"`
	GeminiModel                string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	SettingsFile               string `env:"SETTINGS_FILE" envDefault:"guild_settings.json"`
	ConversationLogFile        string `env:"CONVERSATION_LOG_FILE"`
	DatabaseURL                string `env:"DATABASE_URL"`
	VoicePresetsFile           string `env:"VOICE_PRESETS_FILE"`
	ThinkingSoundOgg           string `env:"THINKING_SOUND_OGG" envDefault:"thinking.ogg"`
	ThinkingSoundMP3           string `env:"THINKING_SOUND_MP3" envDefault:"thinking.mp3"`
	CaptureSilenceMs           int    `env:"CAPTURE_SILENCE_MS" envDefault:"700"`
	CaptureMinDurationMs       int    `env:"CAPTURE_MIN_DURATION_MS" envDefault:"1000"`
	CaptureMaxAgeMin           int    `env:"CAPTURE_MAX_AGE_MIN" envDefault:"10"`
	CaptureSweepIntervalSec    int    `env:"CAPTURE_SWEEP_INTERVAL_SEC" envDefault:"120"`
	CaptureTempDir             string `env:"CAPTURE_TEMP_DIR"`
	CaptureVADMode             int    `env:"CAPTURE_VAD_MODE" envDefault:"2"`
	HistoryMaxMessages         int    `env:"HISTORY_MAX_MESSAGES" envDefault:"6"`
	WakeWordPhonetic           bool   `env:"WAKE_WORD_PHONETIC" envDefault:"false"`
	MediaTimeoutSec            int    `env:"MEDIA_TIMEOUT_SEC" envDefault:"30"`
	YtDlpPath                  string `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath                 string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	YtDlpCookiesFile           string `env:"YTDLP_COOKIES_FILE"`
	YtDlpCookiesBrowser        string `env:"YTDLP_COOKIES_BROWSER"`
	ConversationWebhookURL     string `env:"CONVERSATION_WEBHOOK_URL"`
	OpsAddr                    string `env:"OPS_ADDR"`
}

func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env file")
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		DiscordToken:               raw.DiscordToken,
		DiscordGuildID:             raw.DiscordGuildID,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		DefaultLanguage:            raw.DefaultLanguage,
		LLMProvider:                raw.LLMProvider,
		OpenAIAPIKey:               raw.OpenAIAPIKey,
		OpenAIBaseURL:              raw.OpenAIBaseURL,
		OpenAIModel:                raw.OpenAIModel,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiModel:                raw.GeminiModel,
		SettingsFile:               raw.SettingsFile,
		ConversationLogFile:        raw.ConversationLogFile,
		DatabaseURL:                raw.DatabaseURL,
		VoicePresetsFile:           raw.VoicePresetsFile,
		ThinkingSoundOgg:           raw.ThinkingSoundOgg,
		ThinkingSoundMP3:           raw.ThinkingSoundMP3,
		CaptureSilenceMs:           raw.CaptureSilenceMs,
		CaptureMinDurationMs:       raw.CaptureMinDurationMs,
		CaptureMaxAgeMin:           raw.CaptureMaxAgeMin,
		CaptureSweepIntervalSec:    raw.CaptureSweepIntervalSec,
		CaptureTempDir:             raw.CaptureTempDir,
		CaptureVADMode:             raw.CaptureVADMode,
		HistoryMaxMessages:         raw.HistoryMaxMessages,
		WakeWordPhonetic:           raw.WakeWordPhonetic,
		MediaTimeoutSec:            raw.MediaTimeoutSec,
		YtDlpPath:                  raw.YtDlpPath,
		FFmpegPath:                 raw.FFmpegPath,
		YtDlpCookiesFile:           raw.YtDlpCookiesFile,
		YtDlpCookiesBrowser:        raw.YtDlpCookiesBrowser,
		ConversationWebhookURL:     raw.ConversationWebhookURL,
		OpsAddr:                    raw.OpsAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
