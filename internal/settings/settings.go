// Package settings holds per-guild preferences: TTS voice, STT language, wake
// word, log channel, thinking sound and persona.
package settings

import "strings"

const (
	MinRate  = 0.25
	MaxRate  = 4.0
	MinPitch = -20.0
	MaxPitch = 20.0

	MaxPersonaLength = 2000

	DefaultLanguage   = "en-US"
	DefaultSSMLGender = "NEUTRAL"
	DefaultWakeWord   = "hey bot"
	DefaultTriggerURL = "local://thinking.ogg"
	DefaultPersona    = "You are the spirit of Aleister Crowley, speaking aloud in a live Discord voice chat on the server 'Syzygy'. You are hearing users, not reading messages. Address listeners directly. Keep responses brief, vivid, and suited for text-to-speech; avoid markdown/emojis, and do not mention being an AI. Stay in character unless a user explicitly says 'drop character'."
)

type Voice struct {
	LanguageCode string `json:"languageCode" yaml:"languageCode"`
	Name         string `json:"name,omitempty" yaml:"name"`
	SSMLGender   string `json:"ssmlGender,omitempty" yaml:"ssmlGender"`
}

type Wake struct {
	Enabled bool   `json:"enabled"`
	Word    string `json:"word"`
}

type Trigger struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// GuildSettings mirrors the on-disk JSON layout of guild_settings.json.
type GuildSettings struct {
	Voice        Voice   `json:"voice"`
	Rate         float64 `json:"rate"`
	Pitch        float64 `json:"pitch"`
	Lang         string  `json:"lang"`
	Wake         Wake    `json:"wake"`
	LogChannelID string  `json:"logChannelId,omitempty"`
	Trigger      Trigger `json:"trigger"`
	Persona      string  `json:"persona"`
}

func Default() GuildSettings {
	return GuildSettings{
		Voice:   Voice{LanguageCode: DefaultLanguage, SSMLGender: DefaultSSMLGender},
		Rate:    1.0,
		Pitch:   0.0,
		Lang:    DefaultLanguage,
		Wake:    Wake{Enabled: true, Word: DefaultWakeWord},
		Trigger: Trigger{Enabled: true, URL: DefaultTriggerURL},
		Persona: DefaultPersona,
	}
}

// Normalize fills blank fields with defaults and brings numeric fields into range.
func (s GuildSettings) Normalize() GuildSettings {
	def := Default()
	if strings.TrimSpace(s.Voice.LanguageCode) == "" {
		s.Voice.LanguageCode = def.Voice.LanguageCode
	}
	if s.Rate == 0 {
		s.Rate = def.Rate
	}
	s.Rate = ClampRate(s.Rate)
	s.Pitch = ClampPitch(s.Pitch)
	if strings.TrimSpace(s.Lang) == "" {
		s.Lang = def.Lang
	}
	if strings.TrimSpace(s.Wake.Word) == "" {
		s.Wake.Word = def.Wake.Word
	}
	if strings.TrimSpace(s.Trigger.URL) == "" {
		s.Trigger.URL = def.Trigger.URL
	}
	if strings.TrimSpace(s.Persona) == "" {
		s.Persona = def.Persona
	}
	return s
}

func ClampRate(v float64) float64 {
	return clamp(v, MinRate, MaxRate)
}

func ClampPitch(v float64) float64 {
	return clamp(v, MinPitch, MaxPitch)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TruncatePersona caps persona text at MaxPersonaLength runes.
func TruncatePersona(text string) string {
	r := []rune(text)
	if len(r) <= MaxPersonaLength {
		return text
	}
	return string(r[:MaxPersonaLength])
}
