package tts

import "context"

type Voice struct {
	LanguageCode string
	Name         string
	SSMLGender   string
	Rate         float64
	Pitch        float64
}

type VoiceInfo struct {
	Name          string
	LanguageCodes []string
	SSMLGender    string
}

// Synthesizer returns Ogg/Opus encoded speech at 48 kHz.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
	ListVoices(ctx context.Context, languageCode string) ([]VoiceInfo, error)
}
