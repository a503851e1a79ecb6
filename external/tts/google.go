package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/foxseedlab/kotodama/internal/tts"
)

const (
	audioEncoding        = "OGG_OPUS"
	audioSampleRateHertz = 48000
)

type GoogleSynthesizer struct {
	service *texttospeech.Service
}

func NewGoogleSynthesizer(ctx context.Context, credentialsJSON string) (*GoogleSynthesizer, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	return newGoogleSynthesizer(ctx, option.WithAuthCredentials(creds))
}

func newGoogleSynthesizer(ctx context.Context, opts ...option.ClientOption) (*GoogleSynthesizer, error) {
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech service: %w", err)
	}
	return &GoogleSynthesizer{service: svc}, nil
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	params := &texttospeech.VoiceSelectionParams{
		LanguageCode: voice.LanguageCode,
		Name:         voice.Name,
		SsmlGender:   voice.SSMLGender,
	}
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: params,
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   audioEncoding,
			SampleRateHertz: audioSampleRateHertz,
			SpeakingRate:    voice.Rate,
			Pitch:           voice.Pitch,
		},
	}
	resp, err := s.service.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	slog.Debug("speech synthesized", "voice", voice.Name, "language", voice.LanguageCode, "bytes", len(audio))
	return audio, nil
}

func (s *GoogleSynthesizer) ListVoices(ctx context.Context, languageCode string) ([]tts.VoiceInfo, error) {
	call := s.service.Voices.List().Context(ctx)
	if languageCode != "" {
		call = call.LanguageCode(languageCode)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	voices := make([]tts.VoiceInfo, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, tts.VoiceInfo{
			Name:          v.Name,
			LanguageCodes: v.LanguageCodes,
			SSMLGender:    v.SsmlGender,
		})
	}
	return voices, nil
}
