package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

type CloudSpeechTranscriber struct {
	client          *speech.Client
	recognizer      string
	defaultLanguage string
	model           string
}

func NewCloudSpeechTranscriber(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeechTranscriber, error) {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &CloudSpeechTranscriber{
		client:          client,
		recognizer:      fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, location),
		defaultLanguage: cfg.Language,
		model:           strings.TrimSpace(cfg.Model),
	}, nil
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, pcm []byte, language string) (string, error) {
	if language == "" {
		language = t.defaultLanguage
	}
	slog.Debug("recognizing utterance", "language", language, "model", t.model, "bytes", len(pcm))

	resp, err := t.client.Recognize(ctx, recognizeRequest(t.recognizer, t.model, language, pcm))
	if err != nil {
		slog.Warn("speech recognition failed", "language", language, "code", status.Code(err).String())
		return "", fmt.Errorf("recognize: %w", err)
	}
	return joinResults(resp.GetResults()), nil
}

func (t *CloudSpeechTranscriber) Close() error {
	return t.client.Close()
}

func recognizeRequest(recognizer, model, language string, pcm []byte) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Recognizer: recognizer,
		Config: &speechpb.RecognitionConfig{
			Model:         model,
			LanguageCodes: []string{language},
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   audio.SampleRate,
					AudioChannelCount: audio.CaptureChannels,
				},
			},
			Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: pcm},
	}
}

// joinResults concatenates the top alternative of every result.
func joinResults(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

var _ transcriber.Transcriber = (*CloudSpeechTranscriber)(nil)
