package session

import (
	"log/slog"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/discord"
	"github.com/foxseedlab/kotodama/internal/history"
	"github.com/foxseedlab/kotodama/internal/llm"
	"github.com/foxseedlab/kotodama/internal/media"
	"github.com/foxseedlab/kotodama/internal/observe"
	"github.com/foxseedlab/kotodama/internal/playback"
	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/settings"
	"github.com/foxseedlab/kotodama/internal/transcriber"
	"github.com/foxseedlab/kotodama/internal/tts"
	"github.com/foxseedlab/kotodama/internal/wakeword"
	"github.com/foxseedlab/kotodama/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (settings.Presets, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return settings.LoadPresets(cfg.VoicePresetsFile)
	})
	do.Provide(injector, func(i do.Injector) (*history.Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return history.NewStore(cfg.HistoryMaxMessages), nil
	})
	do.Provide(injector, func(i do.Injector) (*wakeword.Gate, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return wakeword.NewGate(cfg.WakeWordPhonetic), nil
	})
	do.Provide(injector, func(i do.Injector) (*playback.Registry, error) {
		newEncoder := do.MustInvoke[audio.EncoderFactory](i)
		return playback.NewRegistry(newEncoder, func(guildID string, err error) {
			slog.Error("playback failed", "error", err, "guild_id", guildID)
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		return NewManager(Deps{
			Config:        do.MustInvoke[*config.Config](i),
			Discord:       do.MustInvoke[discord.Client](i),
			Settings:      do.MustInvoke[*settings.Store](i),
			Presets:       do.MustInvoke[settings.Presets](i),
			History:       do.MustInvoke[*history.Store](i),
			Gate:          do.MustInvoke[*wakeword.Gate](i),
			Transcriber:   do.MustInvoke[transcriber.Transcriber](i),
			LLM:           do.MustInvoke[llm.Responder](i),
			TTS:           do.MustInvoke[tts.Synthesizer](i),
			Media:         do.MustInvoke[*media.Resolver](i),
			Players:       do.MustInvoke[*playback.Registry](i),
			Transcoder:    do.MustInvoke[audio.Transcoder](i),
			NewDecoder:    do.MustInvoke[audio.DecoderFactory](i),
			NewDetector:   do.MustInvoke[audio.SpeechDetectorFactory](i),
			Conversations: do.MustInvoke[repository.Repository](i),
			Webhook:       do.MustInvoke[webhook.Sender](i),
			Metrics:       do.MustInvoke[*observe.Metrics](i),
		}), nil
	})
}
